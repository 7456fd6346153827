package api

import (
    "net/http"
    "time"

    "vrpadapter/internal/buildinfo"
    "vrpadapter/internal/config"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":                 s.Config.Port,
            "RATE_RPS":             s.Config.RateRPS,
            "RATE_BURST":           s.Config.RateBurst,
            "RUN_RETENTION":        s.Config.RunRetention.String(),
            "RETENTION_SCHEDULE":   s.Config.RetentionSchedule,
            "WEBHOOK_MAX_ATTEMPTS": s.Config.WebhookMaxAttempts,
            "SOLVER_CONFIG":        s.Config.SolverConfig,
            "HAS_DATABASE_URL":     s.Config.DatabaseURL != "",
            "HAS_REDIS_URL":        s.Config.RedisURL != "",
        },
        "solver": config.Describe(s.Options),
    }
    writeJSON(w, http.StatusOK, info)
}
