package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "embed"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "io/fs"
    "sort"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "vrpadapter/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded migrations in file name order. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
    names, err := fs.Glob(migrations, "migrations/*.sql")
    if err != nil { return err }
    sort.Strings(names)
    for _, name := range names {
        b, err := migrations.ReadFile(name)
        if err != nil { return err }
        if _, err := p.db.ExecContext(ctx, string(b)); err != nil {
            return fmt.Errorf("migrate %s: %w", name, err)
        }
    }
    return nil
}

// SaveRun inserts a run. An id that already exists is ErrConflict.
func (p *Postgres) SaveRun(ctx context.Context, run model.SolveRun) error {
    if run.ID == "" { run.ID = uuid.New().String() }
    if run.CreatedAt.IsZero() { run.CreatedAt = time.Now().UTC() }
    req, err := jsonOrNil(run.Request)
    if err != nil { return err }
    data, err := jsonOrNil(run.SolverData)
    if err != nil { return err }
    resp, err := jsonOrNil(run.Response)
    if err != nil { return err }
    res, err := p.db.ExecContext(ctx, `INSERT INTO solve_runs (id, created_at, status_code, duration_ms, request, solver_data, response, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO NOTHING`,
        run.ID, run.CreatedAt, run.Status.Code(), run.DurationMs, req, data, resp, nullIfEmpty(run.Error))
    if err != nil { return err }
    n, err := res.RowsAffected()
    if err != nil { return err }
    if n == 0 { return ErrConflict }
    return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.SolveRun, error) {
    var r model.SolveRun
    var code int
    var req, data, resp []byte
    var errStr sql.NullString
    err := p.db.QueryRowContext(ctx, `SELECT id::text, created_at, status_code, duration_ms, request, solver_data, response, error FROM solve_runs WHERE id::text=$1`, id).
        Scan(&r.ID, &r.CreatedAt, &code, &r.DurationMs, &req, &data, &resp, &errStr)
    if errors.Is(err, sql.ErrNoRows) { return model.SolveRun{}, ErrNotFound }
    if err != nil { return model.SolveRun{}, err }
    r.Status = model.StatusFromCode(code)
    r.Error = errStr.String
    if len(req) > 0 {
        r.Request = &model.Request{}
        if err := json.Unmarshal(req, r.Request); err != nil { return model.SolveRun{}, fmt.Errorf("decode request: %w", err) }
    }
    if len(data) > 0 {
        r.SolverData = &model.SolverData{}
        if err := json.Unmarshal(data, r.SolverData); err != nil { return model.SolveRun{}, fmt.Errorf("decode solver data: %w", err) }
    }
    if len(resp) > 0 {
        r.Response = &model.Response{}
        if err := json.Unmarshal(resp, r.Response); err != nil { return model.SolveRun{}, fmt.Errorf("decode response: %w", err) }
    }
    return r, nil
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]model.SolveRun, string, error) {
    limit = clampLimit(limit)
    q := `SELECT id::text, created_at, status_code, duration_ms, COALESCE(error,'') FROM solve_runs`
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, q+` WHERE id::text > $1 ORDER BY id::text LIMIT $2`, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, q+` ORDER BY id::text LIMIT $1`, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.SolveRun{}
    var last string
    for rows.Next() {
        var r model.SolveRun
        var code int
        if err := rows.Scan(&r.ID, &r.CreatedAt, &code, &r.DurationMs, &r.Error); err != nil { return nil, "", err }
        r.Status = model.StatusFromCode(code)
        out = append(out, r)
        last = r.ID
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteRunsBefore(ctx context.Context, before time.Time) ([]string, error) {
    rows, err := p.db.QueryContext(ctx, `DELETE FROM solve_runs WHERE created_at < $1 RETURNING id::text`, before)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []string{}
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil { return nil, err }
        out = append(out, id)
    }
    sort.Strings(out)
    return out, rows.Err()
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, runID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, run_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now(),$7)
        ON CONFLICT (run_id, event_type, url, dedup_key) DO NOTHING`, id, runID, eventType, url, nullIfEmpty(secret), string(payload), dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, run_id::text, event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.RunID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$1, next_attempt_at=$2, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$3`, nullIfEmpty(lastError), *nextAttemptAt, id, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    if err != nil { return err }
    // move to DLQ
    _, err = p.db.ExecContext(ctx, `INSERT INTO webhook_dlq (delivery_id, run_id, event_type, url, payload, attempts, last_error)
        SELECT id, run_id, event_type, url, payload, attempts, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError))
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, runID string) ([]map[string]any, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), url
        FROM webhook_deliveries WHERE run_id::text=$1 ORDER BY updated_at, id`, runID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []map[string]any{}
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts, code int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &code, &url); err != nil { return nil, err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        if code != 0 { m["responseCode"] = code }
        out = append(out, m)
    }
    return out, rows.Err()
}

func computeDedupKey(payload []byte) string {
    // try to parse JSON and use id
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

// jsonOrNil encodes v for a jsonb column; nil pointers become SQL NULL.
func jsonOrNil[T any](v *T) (any, error) {
    if v == nil { return nil, nil }
    b, err := json.Marshal(v)
    if err != nil { return nil, err }
    return string(b), nil
}
