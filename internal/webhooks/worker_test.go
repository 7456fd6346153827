package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpadapter/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func newTestWorker(rs *recordStore, client *http.Client, maxAttempts int) *Worker {
	w := NewWorker(rs, maxAttempts)
	w.HTTP = client
	return w
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType, gotRun string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotType = r.Header.Get(HeaderEventType)
		gotRun = r.Header.Get(HeaderRunID)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := newTestWorker(rs, srv.Client(), 3)
	pub := NewPublisher(rs)
	id, err := pub.Emit(context.Background(), Callback{URL: srv.URL, Secret: "secret"}, "run-1", EventSolveCompleted, map[string]any{"status": "ROUTING_SUCCESS"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	w.processOnce(context.Background())

	assert.Equal(t, EventSolveCompleted, gotType)
	assert.Equal(t, "run-1", gotRun)
	assert.True(t, VerifyHMAC("secret", body, gotSig), "signature must cover the body")
	var evt Event
	require.NoError(t, json.Unmarshal(body, &evt))
	assert.Equal(t, "run-1", evt.RunID)
	require.Len(t, rs.marks, 1)
	assert.True(t, rs.marks[0].Success)
	assert.Equal(t, 200, rs.marks[0].Code)
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := newTestWorker(rs, srv.Client(), 2)
	_, err := rs.Memory.EnqueueWebhook(context.Background(), "run-1", EventSolveFailed, srv.URL, "", []byte(`{}`))
	require.NoError(t, err)

	w.processOnce(context.Background())
	require.Len(t, rs.marks, 1)
	assert.False(t, rs.marks[0].Success)
	assert.Equal(t, "status 500", rs.marks[0].LastErr)
	assert.Empty(t, rs.fails)

	// the retry is backed off; nothing is due yet
	w.processOnce(context.Background())
	assert.Len(t, rs.marks, 1)
}

func TestWorkerProcessOnce_Fail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := newTestWorker(rs, srv.Client(), 1)
	_, _ = rs.Memory.EnqueueWebhook(context.Background(), "run-1", EventSolveCompleted, srv.URL, "", []byte(`{}`))
	w.processOnce(context.Background())
	require.Len(t, rs.fails, 1)
	assert.Equal(t, 500, rs.fails[0].Code)
}

func TestPublisherWithoutCallbackIsNoop(t *testing.T) {
	rs := &recordStore{Memory: store.NewMemory()}
	id, err := NewPublisher(rs).Emit(context.Background(), Callback{}, "run-1", EventSolveCompleted, nil)
	require.NoError(t, err)
	assert.Empty(t, id)
	due, err := rs.FetchDueWebhookDeliveries(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(-1))
	assert.Equal(t, 4*time.Second, nextBackoff(2))
	assert.Equal(t, 1024*time.Second, nextBackoff(50))
}

func TestVerifyHMAC(t *testing.T) {
	sig := SignHMAC("k", []byte("body"))
	assert.True(t, VerifyHMAC("k", []byte("body"), sig))
	assert.True(t, VerifyHMAC("k", []byte("body"), sig[len("sha256="):]))
	assert.False(t, VerifyHMAC("other", []byte("body"), sig))
	assert.False(t, VerifyHMAC("k", []byte("body"), "not-hex"))
}
