package opt

import "sync"

var (
    mu    sync.Mutex
    store = map[string]Metrics{}
)

// RecordMetrics keeps the search statistics of a solve run for later lookup.
func RecordMetrics(runID string, m Metrics) {
    mu.Lock()
    store[runID] = m
    mu.Unlock()
}

func GetMetrics(runID string) (Metrics, bool) {
    mu.Lock()
    defer mu.Unlock()
    m, ok := store[runID]
    return m, ok
}

// ForgetMetrics drops the statistics of runs that no longer exist.
func ForgetMetrics(runIDs ...string) {
    mu.Lock()
    defer mu.Unlock()
    for _, id := range runIDs {
        delete(store, id)
    }
}
