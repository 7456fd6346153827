package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"

    "vrpadapter/internal/config"
    "vrpadapter/internal/errs"
    "vrpadapter/internal/metrics"
    "vrpadapter/internal/model"
    "vrpadapter/internal/opt"
    "vrpadapter/internal/orders"
    "vrpadapter/internal/store"
    "vrpadapter/internal/vrp"
    "vrpadapter/internal/webhooks"
)

// solveBody is the POST /v1/solve payload.
type solveBody struct {
    RunID          string             `json:"runId,omitempty"`
    Request        *model.Request     `json:"request"`
    SolverData     *model.SolverData  `json:"solverData"`
    Options        *config.SolverFile `json:"options,omitempty"`
    CallbackURL    string             `json:"callbackUrl,omitempty"`
    CallbackSecret string             `json:"callbackSecret,omitempty"`
}

// SolveHandler handles POST /v1/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var body solveBody
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateSolveBody(&body); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    opts := s.Options
    if body.Options != nil {
        o, err := body.Options.Apply(opts)
        if err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid solver options", err.Error(), r.URL.Path)
            return
        }
        opts = o
    }
    runID := body.RunID
    if runID == "" {
        runID = uuid.New().String()
    } else if _, err := s.Store.GetRun(r.Context(), runID); err == nil {
        writeProblem(w, http.StatusConflict, "Run exists", "run "+runID+" already exists", r.URL.Path)
        return
    } else if !errors.Is(err, store.ErrNotFound) {
        writeProblem(w, http.StatusInternalServerError, "Get solve failed", err.Error(), r.URL.Path)
        return
    }
    cb := webhooks.Callback{URL: body.CallbackURL, Secret: body.CallbackSecret}
    run := model.SolveRun{ID: runID, CreatedAt: time.Now().UTC(), Request: body.Request, SolverData: body.SolverData}

    publishRun(s.Broker, runID, SSEEvent{Type: "solve.started", Data: map[string]any{"runId": runID, "routes": len(body.Request.Routes)}})

    res, err := vrp.NewSolver(s.Backend, s.Zones, opts).Solve(r.Context(), body.Request, body.SolverData)
    run.DurationMs = time.Since(run.CreatedAt).Milliseconds()
    if err != nil {
        metrics.SolveErrors.Inc()
        run.Status = model.StatusNotSolved
        run.Error = err.Error()
        if cerr := s.finishRun(r.Context(), run, cb, webhooks.EventSolveFailed, map[string]any{"runId": runID, "error": err.Error()}); cerr != nil {
            writeProblem(w, http.StatusConflict, "Run exists", cerr.Error(), r.URL.Path)
            return
        }
        status, title := solveErrorStatus(err)
        writeProblem(w, status, title, err.Error(), r.URL.Path)
        return
    }

    resp := res.Response
    run.Status = resp.Status
    run.Response = resp
    metrics.ObserveSolve(resp.Status.String(), res.Elapsed.Seconds(), res.Search.Iterations, len(resp.UnassignableOrders))
    if err := s.finishRun(r.Context(), run, cb, webhooks.EventSolveCompleted, map[string]any{
        "runId":        runID,
        "status":       resp.Status.String(),
        "routes":       len(resp.Routes),
        "unassignable": len(resp.UnassignableOrders),
        "objective":    resp.Objective,
    }); err != nil {
        writeProblem(w, http.StatusConflict, "Run exists", err.Error(), r.URL.Path)
        return
    }
    opt.RecordMetrics(runID, res.Search)
    writeJSON(w, http.StatusOK, map[string]any{"id": runID, "response": resp})
}

// finishRun persists the run, publishes the outcome and queues the callback.
// It only fails when another request took the run id meanwhile; nothing is
// published then.
func (s *Server) finishRun(ctx context.Context, run model.SolveRun, cb webhooks.Callback, eventType string, data map[string]any) error {
    ctx = context.WithoutCancel(ctx)
    saveErr := s.Store.SaveRun(ctx, run)
    if errors.Is(saveErr, store.ErrConflict) {
        return fmt.Errorf("run %s: %w", run.ID, saveErr)
    }
    publishRun(s.Broker, run.ID, SSEEvent{Type: eventType, Data: data})
    if saveErr != nil {
        // the callback references the run, so skip it
        log.Printf("solve %s: save run: %v", run.ID, saveErr)
        return nil
    }
    if _, err := s.Pub.Emit(ctx, cb, run.ID, eventType, data); err != nil {
        log.Printf("solve %s: enqueue callback: %v", run.ID, err)
    }
    return nil
}

// solveErrorStatus maps solver errors to HTTP status codes: bad input is 422, the rest 500.
func solveErrorStatus(err error) (int, string) {
    for _, target := range []error{errs.ErrValueIsRequired, errs.ErrValueIsInvalid, errs.ErrValueIsOutOfRange, errs.ErrObjectNotFound, orders.ErrChainCycle} {
        if errors.Is(err, target) {
            return http.StatusUnprocessableEntity, "Unsolvable input"
        }
    }
    return http.StatusInternalServerError, "Solve failed"
}

// SolvesIndexHandler handles GET /v1/solves
func (s *Server) SolvesIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/solves" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListRuns(r.Context(), cursor, limit)
    if err != nil { writeProblem(w, 500, "List solves failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// SolveByIDHandler handles GET /v1/solves/{id} and its /events, /metrics and /deliveries sub-resources
func (s *Server) SolveByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.TrimPrefix(path, "/v1/solves/")
    if rest == path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    sub := ""
    if len(parts) > 1 { sub = parts[1] }
    switch sub {
    case "events":
        s.streamEvents(w, r, id)
    case "metrics":
        m, ok := opt.GetMetrics(id)
        if !ok { writeProblem(w, 404, "Metrics not found", "no search metrics for "+id, path); return }
        writeJSON(w, 200, searchMetricsJSON(m, r.URL.Query().Get("includeWeights")))
    case "deliveries":
        items, err := s.Store.ListWebhookDeliveries(r.Context(), id)
        if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), path); return }
        writeJSON(w, 200, map[string]any{"items": items})
    case "":
        run, err := s.Store.GetRun(r.Context(), id)
        if errors.Is(err, store.ErrNotFound) { writeProblem(w, 404, "Solve not found", id, path); return }
        if err != nil { writeProblem(w, 500, "Get solve failed", err.Error(), path); return }
        writeJSON(w, 200, run)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", path)
    }
}

// streamEvents serves a run's events as SSE until the client goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, id string) {
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    heartbeat := func() {
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"runId\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
        flusher.Flush()
    }
    heartbeat()
    ticker := time.NewTicker(15 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-ticker.C:
            heartbeat()
        }
    }
}

func searchMetricsJSON(m opt.Metrics, includeWeights string) map[string]any {
    out := map[string]any{
        "iterations":            m.Iterations,
        "improvements":          m.Improvements,
        "acceptedWorse":         m.AcceptedWorse,
        "seedCost":              m.SeedCost,
        "bestCost":              m.BestCost,
        "stopReason":            m.StopReason,
        "elapsedMs":             m.Elapsed.Milliseconds(),
        "removalSelects":        []int{m.RemovalSelects[0], m.RemovalSelects[1]},
        "insertSelects":         []int{m.InsertSelects[0], m.InsertSelects[1]},
        "finalRemovalWeights":   []float64{m.FinalRemovalWeights[0], m.FinalRemovalWeights[1]},
        "finalInsertionWeights": []float64{m.FinalInsertionWeights[0], m.FinalInsertionWeights[1]},
    }
    if strings.EqualFold(includeWeights, "true") || includeWeights == "1" {
        snaps := make([]map[string]any, 0, len(m.Snapshots))
        for _, sn := range m.Snapshots {
            snaps = append(snaps, map[string]any{
                "iteration": sn.Iteration,
                "removal":   []float64{sn.Removal[0], sn.Removal[1]},
                "insertion": []float64{sn.Insertion[0], sn.Insertion[1]},
            })
        }
        out["snapshots"] = snaps
    }
    return out
}

// SolverConfigHandler returns the effective default solver options
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"defaults": config.Describe(s.Options)})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
