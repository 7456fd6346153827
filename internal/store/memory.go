package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "vrpadapter/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu         sync.Mutex
    runs       map[string]model.SolveRun // id -> run
    deliveries map[string]*memDelivery   // id -> delivery state
    byRun      map[string][]string       // run id -> delivery ids
    order      []string                  // delivery ids in enqueue order
    dlq        []map[string]any          // dead-lettered deliveries
}

func NewMemory() *Memory {
    return &Memory{
        runs: map[string]model.SolveRun{},
        deliveries: map[string]*memDelivery{},
        byRun: map[string][]string{},
        dlq: []map[string]any{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) SaveRun(ctx context.Context, run model.SolveRun) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.CreatedAt.IsZero() { run.CreatedAt = time.Now().UTC() }
    if _, dup := m.runs[run.ID]; dup { return ErrConflict }
    m.runs[run.ID] = run
    return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.SolveRun, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, ok := m.runs[id]
    if !ok { return model.SolveRun{}, ErrNotFound }
    return r, nil
}

func (m *Memory) ListRuns(ctx context.Context, cursor string, limit int) ([]model.SolveRun, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    ids := make([]string, 0, len(m.runs))
    for id := range m.runs {
        if cursor == "" || id > cursor { ids = append(ids, id) }
    }
    sort.Strings(ids)
    out := []model.SolveRun{}
    for _, id := range ids {
        out = append(out, summary(m.runs[id]))
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit && len(ids) > limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (m *Memory) DeleteRunsBefore(ctx context.Context, before time.Time) ([]string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    removed := []string{}
    for id, r := range m.runs {
        if r.CreatedAt.Before(before) {
            delete(m.runs, id)
            for _, did := range m.byRun[id] { delete(m.deliveries, did) }
            delete(m.byRun, id)
            removed = append(removed, id)
        }
    }
    if len(removed) > 0 {
        kept := m.order[:0]
        for _, did := range m.order {
            if _, ok := m.deliveries[did]; ok { kept = append(kept, did) }
        }
        m.order = kept
    }
    sort.Strings(removed)
    return removed, nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, RunID: runID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.byRun[runID] = append(m.byRun[runID], id)
    m.order = append(m.order, id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.order {
        d := m.deliveries[id]
        if d == nil { continue }
        if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return nil }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
    } else {
        d.Status = "retry"
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d != nil {
        d.Status = "failed"
        d.Attempts++
        d.LastError = lastError
    }
    m.dlq = append(m.dlq, map[string]any{"id": id, "lastError": lastError, "responseCode": responseCode, "latencyMs": latencyMs})
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, runID string) ([]map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    for _, id := range m.byRun[runID] {
        d := m.deliveries[id]
        if d == nil { continue }
        item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
        if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
        if d.LastError != "" { item["lastError"] = d.LastError }
        if d.ResponseCode != 0 { item["responseCode"] = d.ResponseCode }
        out = append(out, item)
    }
    return out, nil
}
