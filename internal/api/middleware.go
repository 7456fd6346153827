package api

import (
    "bufio"
    "errors"
    "net"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "vrpadapter/internal/metrics"
)

// RateLimit applies a token bucket per client IP. rps <= 0 disables limiting.
func RateLimit(rps float64, burst int, next http.Handler) http.Handler {
    if rps <= 0 { return next }
    if burst <= 0 { burst = 1 }
    var mu sync.Mutex
    limiters := map[string]*rate.Limiter{}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        key := clientIP(r)
        mu.Lock()
        lim := limiters[key]
        if lim == nil {
            lim = rate.NewLimiter(rate.Limit(rps), burst)
            limiters[key] = lim
        }
        mu.Unlock()
        if !lim.Allow() {
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}

func clientIP(r *http.Request) string {
    if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
        return strings.TrimSpace(strings.Split(xf, ",")[0])
    }
    host, _, err := net.SplitHostPort(r.RemoteAddr)
    if err != nil { return r.RemoteAddr }
    return host
}

// Metrics records request counts and durations by method, route and status.
func Metrics(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(sw, r)
        labels := []string{r.Method, routeLabel(r.URL.Path), strconv.Itoa(sw.status)}
        metrics.HTTPRequests.WithLabelValues(labels...).Inc()
        metrics.HTTPDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
    })
}

// routeLabel collapses run ids so the path label stays low-cardinality.
func routeLabel(path string) string {
    rest, ok := strings.CutPrefix(path, "/v1/solves/")
    if !ok || rest == "ws" { return path }
    parts := strings.SplitN(rest, "/", 2)
    if len(parts) == 2 { return "/v1/solves/{id}/" + parts[1] }
    return "/v1/solves/{id}"
}

type statusWriter struct {
    http.ResponseWriter
    status int
}

func (w *statusWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (w *statusWriter) Flush() {
    if f, ok := w.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the connection.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := w.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("hijacking not supported") }
    return h.Hijack()
}
