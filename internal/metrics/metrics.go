package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // SolveDuration records encode+solve+decode wall time by outcome status
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "vrp_solve_duration_seconds", Help: "Solve duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300}},
        []string{"status"},
    )
    // SolveIterations records search iterations per solve
    SolveIterations = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "vrp_search_iterations", Help: "Search iterations per solve.", Buckets: prometheus.ExponentialBuckets(10, 4, 6)},
    )
    // UnassignableOrders counts orders left out of every route
    UnassignableOrders = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "vrp_unassignable_orders_total", Help: "Orders reported as unassignable."},
    )
    // SolveErrors counts solves rejected before or during encoding
    SolveErrors = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "vrp_solve_errors_total", Help: "Solve requests that failed with an error."},
    )

    // WebhookDeliveries counts callback delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
    // RunsPruned counts solve runs removed by the retention job
    RunsPruned = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "vrp_runs_pruned_total", Help: "Solve runs removed by retention."},
    )
)

// RegisterDefault registers collectors to the API registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(SolveIterations)
        Registry.MustRegister(UnassignableOrders)
        Registry.MustRegister(SolveErrors)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        Registry.MustRegister(RunsPruned)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// ObserveSolve records one finished solve.
func ObserveSolve(status string, seconds float64, iterations, unassignable int) {
    SolveDuration.WithLabelValues(status).Observe(seconds)
    SolveIterations.Observe(float64(iterations))
    UnassignableOrders.Add(float64(unassignable))
}
