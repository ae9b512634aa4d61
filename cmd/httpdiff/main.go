// Command httpdiff runs declared HTTP requests against multiple
// environments for a table of users and reports where responses diverge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/l0p7/httpdiff/internal/aggregate"
	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/engine"
	"github.com/l0p7/httpdiff/internal/logging"
	"github.com/l0p7/httpdiff/internal/metrics"
	"github.com/l0p7/httpdiff/internal/report"
)

// Exit codes, per the CLI contract: 0 identical, 1 differences found, 2
// configuration error, 3 execution error (run aborted before completing).
const (
	exitIdentical   = 0
	exitDifferences = 1
	exitConfigError = 2
	exitRunError    = 3
)

// newConfigLoader and newEngine are package vars so tests can substitute
// fakes without touching global state, the same seam the teacher's cmd/main
// uses for newConfigLoader/newHTTPServer.
var (
	newConfigLoader = func(envPrefix, path string) configLoader {
		return config.NewLoader(envPrefix, path)
	}
	newEngine = func(cfg config.Config, logger *slog.Logger, rec *metrics.Recorder) (runEngine, error) {
		return engine.New(cfg, logger, rec)
	}
)

type configLoader interface {
	Load(ctx context.Context) (config.Config, error)
}

type runEngine interface {
	Run(ctx context.Context, users []config.UserData, opts engine.Options) (aggregate.Report, error)
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "init" {
		return runInit(args[1:], stdout, stderr)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runCompare(ctx, args, stdout, stderr)
}

type envList []string

func (e *envList) String() string { return strings.Join(*e, ",") }
func (e *envList) Set(v string) error {
	*e = append(*e, v)
	return nil
}

func runCompare(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("httpdiff", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var envs envList
	configPath := fs.String("config", "", "path to config file (defaults to "+config.EnvConfigVar+")")
	usersPath := fs.String("users", "users.csv", "path to CSV user-record table")
	envPrefix := fs.String("env-prefix", "HTTPDIFF", "environment variable prefix for config overrides")
	concurrency := fs.Int("concurrency", 0, "override the configured concurrency cap")
	output := fs.String("output", "cli", "output format: cli, json, or html")
	pretty := fs.Bool("pretty", true, "pretty-print JSON output")
	errorsOnly := fs.Bool("errors-only", false, "only report routes with errors")
	fs.Var(&envs, "env", "restrict the run to this environment (repeatable)")

	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	loader := newConfigLoader(*envPrefix, *configPath)
	cfg, err := loader.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "httpdiff: load configuration: %v\n", err)
		return exitConfigError
	}

	logger, err := logging.New(cfg.Global.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "httpdiff: configure logging: %v\n", err)
		return exitConfigError
	}

	users, err := config.LoadUserData(*usersPath)
	if err != nil {
		fmt.Fprintf(stderr, "httpdiff: load user records: %v\n", err)
		return exitConfigError
	}

	if err := cfg.ValidateWithColumns(config.UserColumns(users)); err != nil {
		fmt.Fprintf(stderr, "httpdiff: validate configuration: %v\n", err)
		return exitConfigError
	}

	var recorder *metrics.Recorder
	if cfg.Global.Metrics.Enabled {
		recorder = metrics.NewRecorder(nil)
		go serveMetrics(cfg.Global.Metrics.Listen, recorder, logger)
	}

	eng, err := newEngine(cfg, logger, recorder)
	if err != nil {
		fmt.Fprintf(stderr, "httpdiff: build engine: %v\n", err)
		return exitConfigError
	}

	rpt, err := eng.Run(ctx, users, engine.Options{
		Environments: envs,
		Concurrency:  *concurrency,
	})
	if err != nil {
		fmt.Fprintf(stderr, "httpdiff: run: %v\n", err)
		return exitConfigError
	}

	results := rpt.Results
	if *errorsOnly {
		results = report.ErrorsOnly(results)
	}

	switch strings.ToLower(*output) {
	case "json":
		b, err := report.JSON(results, *pretty)
		if err != nil {
			fmt.Fprintf(stderr, "httpdiff: render report: %v\n", err)
			return exitConfigError
		}
		fmt.Fprintln(stdout, string(b))
	case "cli":
		fmt.Fprint(stdout, report.CLISummary(results))
	case "html":
		fmt.Fprintln(stderr, "httpdiff: html output is not implemented by the engine; consume --output json with an external renderer")
		return exitConfigError
	default:
		fmt.Fprintf(stderr, "httpdiff: unknown output format %q\n", *output)
		return exitConfigError
	}

	return exitCodeFor(rpt)
}

func exitCodeFor(rpt aggregate.Report) int {
	switch {
	case rpt.Cancelled:
		return exitRunError
	case !rpt.IsIdentical:
		return exitDifferences
	default:
		return exitIdentical
	}
}

func serveMetrics(addr string, rec *metrics.Recorder, logger *slog.Logger) {
	if strings.TrimSpace(addr) == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener stopped", slog.Any("error", err))
	}
}

func runInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("httpdiff init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "httpdiff.toml", "path to write the starter config file")
	usersPath := fs.String("users", "users.csv", "path to write the starter user-record table")
	force := fs.Bool("force", false, "overwrite files that already exist")

	if err := fs.Parse(args); err != nil {
		return exitConfigError
	}

	configWritten, err := writeIfAbsent(*configPath, defaultConfigTemplate, *force)
	if err != nil {
		fmt.Fprintf(stderr, "httpdiff: init: %v\n", err)
		return exitConfigError
	}
	usersWritten, err := writeIfAbsent(*usersPath, defaultUsersTemplate, *force)
	if err != nil {
		fmt.Fprintf(stderr, "httpdiff: init: %v\n", err)
		return exitConfigError
	}

	report := func(path string, written bool) {
		if written {
			fmt.Fprintf(stdout, "wrote %s\n", path)
		} else {
			fmt.Fprintf(stdout, "%s already exists, skipped\n", path)
		}
	}
	report(*configPath, configWritten)
	report(*usersPath, usersWritten)

	return exitIdentical
}

func writeIfAbsent(path, content string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !os.IsNotExist(err) {
			return false, err
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
