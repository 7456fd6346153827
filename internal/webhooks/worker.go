package webhooks

import (
    "bytes"
    "context"
    "log"
    "net/http"
    "strconv"
    "time"

    "vrpadapter/internal/metrics"
    "vrpadapter/internal/store"
)

type Worker struct {
    Store       store.Store
    HTTP        *http.Client
    MaxAttempts int
    Interval    time.Duration
    BatchSize   int
}

func NewWorker(s store.Store, maxAttempts int) *Worker {
    if maxAttempts <= 0 { maxAttempts = 10 }
    return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, MaxAttempts: maxAttempts, Interval: time.Second, BatchSize: 50}
}

// Run polls for due deliveries until ctx is done.
func (w *Worker) Run(ctx context.Context) {
    ticker := time.NewTicker(w.Interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            w.processOnce(ctx)
        }
    }
}

func (w *Worker) processOnce(parent context.Context) {
    ctx, cancel := context.WithTimeout(parent, 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, w.BatchSize)
    if err != nil {
        log.Printf("webhooks: fetch due deliveries: %v", err)
        return
    }
    for _, it := range items {
        w.deliver(ctx, it)
    }
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
    success := false
    next := time.Now().Add(nextBackoff(it.Attempts))
    code := 0
    lastErr := ""
    start := time.Now()
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
    if err == nil {
        req.Header.Set("Content-Type", "application/json")
        req.Header.Set(HeaderEventType, it.EventType)
        req.Header.Set(HeaderRunID, it.RunID)
        if it.Secret != "" {
            req.Header.Set(HeaderSignature, SignHMAC(it.Secret, it.Payload))
        }
        var resp *http.Response
        resp, err = w.HTTP.Do(req)
        if err == nil {
            code = resp.StatusCode
            _ = resp.Body.Close()
            success = code >= 200 && code < 300
            if !success { lastErr = "status " + strconv.Itoa(code) }
        }
    }
    if err != nil { lastErr = err.Error() }
    latency := int(time.Since(start).Milliseconds())

    outcome := "delivered"
    switch {
    case success:
        err = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
    case it.Attempts+1 >= w.MaxAttempts:
        outcome = "failed"
        err = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
    default:
        outcome = "retry"
        err = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
    }
    if err != nil {
        log.Printf("webhooks: record delivery=%s outcome=%s: %v", it.ID, outcome, err)
    }
    metrics.WebhookDeliveries.WithLabelValues(it.EventType, outcome).Inc()
    metrics.WebhookLatency.WithLabelValues(it.EventType, outcome).Observe(float64(latency))
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 10 { attempts = 10 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
