package store

import (
    "context"
    "errors"
    "time"

    "vrpadapter/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
    // Solve runs
    SaveRun(ctx context.Context, run model.SolveRun) error
    GetRun(ctx context.Context, id string) (model.SolveRun, error)
    // ListRuns returns summaries (no request, solver data or response bodies) ordered by id.
    ListRuns(ctx context.Context, cursor string, limit int) (items []model.SolveRun, nextCursor string, err error)
    // DeleteRunsBefore removes runs created before the cutoff and returns their ids.
    DeleteRunsBefore(ctx context.Context, before time.Time) ([]string, error)

    // Completion callbacks
    EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, runID string) ([]map[string]any, error)
}

type WebhookDelivery struct {
    ID        string
    RunID     string
    EventType string
    URL       string
    Secret    string
    Payload   []byte
    Status    string
    Attempts  int
}

var ErrNotFound = errors.New("not found")

// ErrConflict is returned by SaveRun when the run id is already taken.
var ErrConflict = errors.New("conflict")

const defaultListLimit = 100

func clampLimit(limit int) int {
    if limit <= 0 || limit > 500 { return defaultListLimit }
    return limit
}

// summary strips the bodies from a run for listings.
func summary(r model.SolveRun) model.SolveRun {
    r.Request = nil
    r.SolverData = nil
    r.Response = nil
    return r
}
