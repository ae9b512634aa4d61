// Package engine wires the engine's components — plan, runner, comparator,
// classifier, and aggregator — into the single Run call the CLI drives:
// Config + Users -> plan -> Runner -> Comparator -> Aggregator -> Report,
// per spec §2's data-flow diagram.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/l0p7/httpdiff/internal/aggregate"
	"github.com/l0p7/httpdiff/internal/classify"
	"github.com/l0p7/httpdiff/internal/compare"
	"github.com/l0p7/httpdiff/internal/condition"
	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/httpclient"
	"github.com/l0p7/httpdiff/internal/logging"
	"github.com/l0p7/httpdiff/internal/metrics"
	"github.com/l0p7/httpdiff/internal/plan"
	"github.com/l0p7/httpdiff/internal/runner"
)

// Options narrows and tunes one Run call.
type Options struct {
	// Environments restricts the run to a subset of cfg.Environments. Empty
	// means every configured environment.
	Environments []string
	// Concurrency overrides the config's concurrency cap when > 0.
	Concurrency int
	// Progress, if non-nil, is forwarded to the runner unchanged.
	Progress runner.Progress
}

// Engine holds everything a Run call needs that outlives a single run: the
// validated config, a shared HTTP client, and the compiled condition
// evaluator.
type Engine struct {
	cfg        config.Config
	logger     *slog.Logger
	metrics    *metrics.Recorder
	client     *httpclient.Client
	conditions *condition.Evaluator
	plan       *plan.Plan
}

// New builds an Engine from a validated config. logger and rec may be nil;
// a nil logger discards output, a nil recorder no-ops every metric.
func New(cfg config.Config, logger *slog.Logger, rec *metrics.Recorder) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}

	evaluator, err := condition.New()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	p, err := plan.Build(cfg.Routes)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	client := httpclient.New(time.Duration(cfg.Global.Timeout())*time.Second, cfg.Global.Redirects())

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		metrics:    rec,
		client:     client,
		conditions: evaluator,
		plan:       p,
	}, nil
}

// Run executes every (route, environment, user) cell for users, compares
// responses across environments, classifies failures, and returns the
// aggregated report. The returned error is non-nil only for a run-level
// failure (an unknown requested environment); per-cell failures are always
// captured in the report, never returned here.
func (e *Engine) Run(ctx context.Context, users []config.UserData, opts Options) (aggregate.Report, error) {
	runID := uuid.New().String()
	logger := logging.ForRun(e.logger, runID)

	envNames, err := e.resolveEnvironments(opts.Environments)
	if err != nil {
		return aggregate.Report{}, err
	}
	reference := e.cfg.ReferenceEnvironment()

	logger.Info("run starting",
		slog.Int("routes", len(e.cfg.Routes)),
		slog.Int("users", len(users)),
		slog.Any("environments", envNames),
		slog.String("reference", reference),
	)

	r := runner.New(e.cfg, e.plan, e.client, e.conditions, e.metrics, logger)
	runResult := r.Run(ctx, envNames, users, opts.Concurrency, opts.Progress)

	comparator := compare.New(e.cfg.Global.IgnoredHeaders)

	var results []compare.Result
	var entries []classify.Entry

	for _, userRun := range runResult.Users {
		for _, route := range e.cfg.Routes {
			cellsByEnv := userRun.Cells[route.Name]
			ran := make(map[string]httpclient.Response, len(cellsByEnv))
			for _, envName := range envNames {
				cell, ok := cellsByEnv[envName]
				if !ok || !cell.Ran() {
					continue
				}
				ran[envName] = cell.Response
				entries = append(entries, classify.Entry{Route: route.Name, Environment: envName, Response: cell.Response})
				e.metrics.ObserveCell(route.Name, envName, cellOutcome(cell), cell.Response.Duration)
			}
			for envName, cell := range cellsByEnv {
				if cell.Ran() {
					continue
				}
				e.metrics.ObserveCell(route.Name, envName, cellOutcome(cell), 0)
			}

			res := comparator.Compare(route.Name, userRun.User, reference, ran, envNames)
			for _, d := range res.Differences {
				e.metrics.ObserveDifference(route.Name, string(d.Kind))
			}
			e.metrics.ObserveComparison(route.Name, comparisonOutcome(res))
			results = append(results, res)
		}
	}

	errSummary := classify.Summarize(entries)
	report := aggregate.Build(results, errSummary, runResult.Cancelled)

	logger.Info("run complete",
		slog.Int("total", report.Total),
		slog.Int("differing", report.Differing),
		slog.Int("errored", report.Errored),
		slog.Bool("cancelled", report.Cancelled),
	)

	return report, nil
}

// resolveEnvironments returns the sorted set of environment names a run
// should use: every configured environment when requested is empty, or the
// requested subset after checking every name exists.
func (e *Engine) resolveEnvironments(requested []string) ([]string, error) {
	if len(requested) == 0 {
		names := make([]string, 0, len(e.cfg.Environments))
		for name := range e.cfg.Environments {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}
	for _, name := range requested {
		if _, ok := e.cfg.Environments[name]; !ok {
			return nil, fmt.Errorf("engine: unknown environment %q", name)
		}
	}
	out := append([]string{}, requested...)
	sort.Strings(out)
	return out, nil
}

func cellOutcome(c runner.Cell) string {
	switch {
	case c.Cancelled:
		return "cancelled"
	case c.Skipped:
		return "skipped"
	case c.BuildErr != nil:
		return "build_error"
	case c.Response.Failed():
		return "transport_error"
	case c.Response.StatusCode >= 400:
		return "http_error"
	default:
		return "ran"
	}
}

func comparisonOutcome(res compare.Result) string {
	switch {
	case res.HasErrors:
		return "error"
	case !res.IsIdentical:
		return "differs"
	default:
		return "identical"
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
