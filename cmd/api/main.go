package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "vrpadapter/internal/api"
    "vrpadapter/internal/config"
    "vrpadapter/internal/jobs"
    "vrpadapter/internal/metrics"
)

func main() {
    if err := godotenv.Load(); err != nil {
        log.Println("No .env file found (using environment variables)")
    }
    cfg, err := config.FromEnv()
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    opts, err := config.SolverOptions(cfg.SolverConfig)
    if err != nil {
        log.Fatalf("solver config: %v", err)
    }

    srvDeps, err := api.NewServer(cfg, opts)
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }

    metrics.RegisterDefault()
    mux := http.NewServeMux()
    srvDeps.Routes(mux)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    // Background work: callback deliveries and run retention
    go srvDeps.NewWebhookWorker().Run(ctx)
    retention := jobs.NewRetentionJob(srvDeps.Store, cfg.RunRetention, cfg.RetentionSchedule)
    if err := retention.Start(); err != nil {
        log.Fatalf("retention job: %v", err)
    }
    defer retention.Stop()

    srv := &http.Server{
        Addr:              cfg.Addr(),
        Handler:           logMiddleware(api.Metrics(api.RateLimit(cfg.RateRPS, cfg.RateBurst, mux))),
        ReadHeaderTimeout: 5 * time.Second,
    }

    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        _ = srv.Shutdown(shutdownCtx)
    }()

    log.Printf("API listening on %s", cfg.Addr())
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}
