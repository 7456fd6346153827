package config

import (
    "bytes"
    "errors"
    "fmt"
    "io"
    "os"
    "strconv"
    "strings"
    "time"

    yaml "gopkg.in/yaml.v3"

    "vrpadapter/internal/vrp"
)

// Config is the process configuration read from the environment.
type Config struct {
    Port               string
    DatabaseURL        string
    DBMigrate          bool
    RedisURL           string
    RateRPS            float64 // 0 disables rate limiting
    RateBurst          int
    SolverConfig       string // path to a YAML solver config, optional
    RunRetention       time.Duration
    RetentionSchedule  string // cron spec for the retention job
    WebhookMaxAttempts int
}

// FromEnv reads Config from environment variables, applying defaults.
func FromEnv() (Config, error) {
    c := Config{
        Port:               "8080",
        DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
        DBMigrate:          os.Getenv("DB_MIGRATE") != "false",
        RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
        RateBurst:          20,
        SolverConfig:       os.Getenv("SOLVER_CONFIG"),
        RunRetention:       7 * 24 * time.Hour,
        RetentionSchedule:  "@hourly",
        WebhookMaxAttempts: 10,
    }
    if v := os.Getenv("PORT"); v != "" { c.Port = v }
    if v := os.Getenv("RATE_RPS"); v != "" {
        f, err := strconv.ParseFloat(v, 64)
        if err != nil || f < 0 { return Config{}, fmt.Errorf("RATE_RPS: invalid value %q", v) }
        c.RateRPS = f
    }
    if v := os.Getenv("RATE_BURST"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n <= 0 { return Config{}, fmt.Errorf("RATE_BURST: invalid value %q", v) }
        c.RateBurst = n
    }
    if v := os.Getenv("RUN_RETENTION"); v != "" {
        d, err := time.ParseDuration(v)
        if err != nil { return Config{}, fmt.Errorf("RUN_RETENTION: %w", err) }
        c.RunRetention = d
    }
    if v := os.Getenv("RETENTION_SCHEDULE"); v != "" { c.RetentionSchedule = v }
    if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { c.WebhookMaxAttempts = n }
    }
    return c, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// SolverFile is the YAML form of the solver options. Absent keys keep their defaults.
type SolverFile struct {
    TimeLimit           *string `yaml:"timeLimit" json:"timeLimit,omitempty"`
    LogSearch           *bool   `yaml:"logSearch" json:"logSearch,omitempty"`
    Seed                *int64  `yaml:"seed" json:"seed,omitempty"`
    IterationLimit      *int    `yaml:"iterationLimit" json:"iterationLimit,omitempty"`
    SlackMax            *int64  `yaml:"slackMax" json:"slackMax,omitempty"`
    DropPenalty         *int64  `yaml:"dropPenalty" json:"dropPenalty,omitempty"`
    SoftWindowPenalty   *int64  `yaml:"softWindowPenalty" json:"softWindowPenalty,omitempty"`
    SpanCostCoefficient *int64  `yaml:"spanCostCoefficient" json:"spanCostCoefficient,omitempty"`
    SpanCost            *bool   `yaml:"spanCost" json:"spanCost,omitempty"`
    SpanUpperBound      *bool   `yaml:"spanUpperBound" json:"spanUpperBound,omitempty"`
    RouteZones          *bool   `yaml:"routeZones" json:"routeZones,omitempty"`
    TimeZone            *string `yaml:"timeZone" json:"timeZone,omitempty"`
}

// ParseSolverFile decodes YAML solver options. Unknown keys are rejected.
func ParseSolverFile(b []byte) (SolverFile, error) {
    var f SolverFile
    dec := yaml.NewDecoder(bytes.NewReader(b))
    dec.KnownFields(true)
    if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
        return SolverFile{}, fmt.Errorf("solver config: %w", err)
    }
    return f, nil
}

// Apply overlays the file's values on o.
func (f SolverFile) Apply(o vrp.Options) (vrp.Options, error) {
    if f.TimeLimit != nil {
        d, err := time.ParseDuration(*f.TimeLimit)
        if err != nil { return o, fmt.Errorf("timeLimit: %w", err) }
        if d <= 0 { return o, fmt.Errorf("timeLimit: must be positive") }
        o.TimeLimit = d
    }
    if f.LogSearch != nil { o.LogSearch = *f.LogSearch }
    if f.Seed != nil { o.Seed = *f.Seed }
    if f.IterationLimit != nil {
        if *f.IterationLimit < 0 { return o, fmt.Errorf("iterationLimit: must be >= 0") }
        o.IterationLimit = *f.IterationLimit
    }
    if f.SlackMax != nil {
        if *f.SlackMax < 0 { return o, fmt.Errorf("slackMax: must be >= 0") }
        o.SlackMax = *f.SlackMax
    }
    if f.DropPenalty != nil {
        if *f.DropPenalty < 0 { return o, fmt.Errorf("dropPenalty: must be >= 0") }
        o.DropPenalty = *f.DropPenalty
    }
    if f.SoftWindowPenalty != nil {
        if *f.SoftWindowPenalty < 0 { return o, fmt.Errorf("softWindowPenalty: must be >= 0") }
        o.SoftWindowPenalty = *f.SoftWindowPenalty
    }
    if f.SpanCostCoefficient != nil {
        if *f.SpanCostCoefficient < 0 { return o, fmt.Errorf("spanCostCoefficient: must be >= 0") }
        o.SpanCostCoefficient = *f.SpanCostCoefficient
    }
    if f.SpanCost != nil { o.EnableSpanCost = *f.SpanCost }
    if f.SpanUpperBound != nil { o.EnableSpanUpperBound = *f.SpanUpperBound }
    if f.RouteZones != nil { o.EnableRouteZones = *f.RouteZones }
    if f.TimeZone != nil {
        loc, err := time.LoadLocation(*f.TimeZone)
        if err != nil { return o, fmt.Errorf("timeZone: %w", err) }
        o.Location = loc
    }
    return o, nil
}

// SolverOptions returns the default options overlaid with the file at path, if any.
func SolverOptions(path string) (vrp.Options, error) {
    o := vrp.DefaultOptions()
    if strings.TrimSpace(path) == "" { return o, nil }
    b, err := os.ReadFile(path)
    if err != nil { return o, fmt.Errorf("solver config: %w", err) }
    f, err := ParseSolverFile(b)
    if err != nil { return o, err }
    return f.Apply(o)
}

// Describe renders options in the SolverFile shape, for the config endpoint.
func Describe(o vrp.Options) SolverFile {
    tl := o.TimeLimit.String()
    f := SolverFile{
        TimeLimit: &tl, LogSearch: &o.LogSearch, Seed: &o.Seed, IterationLimit: &o.IterationLimit,
        SlackMax: &o.SlackMax, DropPenalty: &o.DropPenalty, SoftWindowPenalty: &o.SoftWindowPenalty,
        SpanCostCoefficient: &o.SpanCostCoefficient, SpanCost: &o.EnableSpanCost,
        SpanUpperBound: &o.EnableSpanUpperBound, RouteZones: &o.EnableRouteZones,
    }
    if o.Location != nil {
        tz := o.Location.String()
        f.TimeZone = &tz
    }
    return f
}
