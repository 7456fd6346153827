package api

import (
    "context"
    "log"
    "net/http"
    "time"

    "vrpadapter/internal/config"
    "vrpadapter/internal/geo"
    "vrpadapter/internal/routing"
    "vrpadapter/internal/store"
    "vrpadapter/internal/vrp"
    "vrpadapter/internal/webhooks"
)

type Server struct {
    Store   store.Store
    Pub     *webhooks.Publisher
    Broker  EventBroker
    Config  config.Config
    Options vrp.Options
    Backend routing.Backend
    Zones   geo.Containment
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer(cfg config.Config, opts vrp.Options) (*Server, error) {
    var s store.Store
    if cfg.DatabaseURL == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, err
        }
        if cfg.DBMigrate {
            ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
            defer cancel()
            if err := sp.Migrate(ctx); err != nil {
                return nil, err
            }
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker
    if cfg.RedisURL != "" {
        if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
            broker = rb
        } else {
            log.Printf("redis broker unavailable, using in-memory: %v", err)
            broker = NewBroker()
        }
    } else {
        broker = NewBroker()
    }
    return &Server{
        Store:   s,
        Pub:     webhooks.NewPublisher(s),
        Broker:  broker,
        Config:  cfg,
        Options: opts,
        Backend: routing.InProcess{},
        Zones:   geo.Planar{},
    }, nil
}

// Routes registers every endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
    // Solving
    mux.HandleFunc("/v1/solve", s.SolveHandler)
    mux.HandleFunc("/v1/solves", s.SolvesIndexHandler)
    mux.HandleFunc("/v1/solves/ws", s.SolvesWSHandler)
    mux.HandleFunc("/v1/solves/", s.SolveByIDHandler) // includes /events, /metrics, /deliveries
    mux.HandleFunc("/v1/solver/config", s.SolverConfigHandler)

    // Health
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)

    // Docs and debug
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", s.OpenAPIJSONHandler)
    mux.HandleFunc("/docs", s.DocsHandler)
    mux.HandleFunc("/debug/info", s.DebugJSON)
}

// NewWebhookWorker creates a background worker for callback deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts)
}
