// Command vrpsolve solves one request/solver-data pair from JSON files and
// prints the response.
package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "log"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"

    "vrpadapter/internal/config"
    "vrpadapter/internal/model"
    "vrpadapter/internal/vrp"
)

func main() {
    _ = godotenv.Load()
    var (
        reqPath  = flag.String("request", "", "path to the request JSON")
        dataPath = flag.String("data", "", "path to the solver data JSON")
        cfgPath  = flag.String("config", os.Getenv("SOLVER_CONFIG"), "optional YAML solver config")
        quiet    = flag.Bool("quiet", false, "suppress search logging")
    )
    flag.Parse()
    if *reqPath == "" || *dataPath == "" {
        flag.Usage()
        os.Exit(2)
    }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    if err := run(ctx, *reqPath, *dataPath, *cfgPath, *quiet, os.Stdout); err != nil {
        log.Fatal(err)
    }
}

func run(ctx context.Context, reqPath, dataPath, cfgPath string, quiet bool, out io.Writer) error {
    opts, err := config.SolverOptions(cfgPath)
    if err != nil {
        return err
    }
    if quiet {
        opts.LogSearch = false
        opts.Logger = log.New(io.Discard, "", 0)
    }
    var req model.Request
    if err := readJSON(reqPath, &req); err != nil {
        return err
    }
    var data model.SolverData
    if err := readJSON(dataPath, &data); err != nil {
        return err
    }
    res, err := vrp.NewSolver(nil, nil, opts).Solve(ctx, &req, &data)
    if err != nil {
        return err
    }
    enc := json.NewEncoder(out)
    enc.SetIndent("", "  ")
    return enc.Encode(res.Response)
}

func readJSON(path string, v any) error {
    b, err := os.ReadFile(path)
    if err != nil {
        return err
    }
    if err := json.Unmarshal(b, v); err != nil {
        return fmt.Errorf("%s: %w", path, err)
    }
    return nil
}
