package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"vrpadapter/internal/store"
)

// Solve lifecycle event types.
const (
	EventSolveCompleted = "solve.completed"
	EventSolveFailed    = "solve.failed"
)

// Callback is where a caller asked to be told about a finished run.
type Callback struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

type Publisher struct {
	Store store.Store
}

func NewPublisher(s store.Store) *Publisher {
	return &Publisher{Store: s}
}

// Event is the JSON body POSTed to a callback URL.
type Event struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	RunID string `json:"runId"`
	TS    string `json:"ts"`
	Data  any    `json:"data"`
}

// Emit queues one delivery of eventType for the run. It is a no-op without a callback URL.
func (p *Publisher) Emit(ctx context.Context, cb Callback, runID, eventType string, data any) (string, error) {
	if cb.URL == "" {
		return "", nil
	}
	evt := Event{
		ID:    uuid.New().String(),
		Type:  eventType,
		RunID: runID,
		TS:    time.Now().UTC().Format(time.RFC3339),
		Data:  data,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return "", err
	}
	return p.Store.EnqueueWebhook(ctx, runID, eventType, cb.URL, cb.Secret, body)
}
