// Package runner fans out the (route x environment x user) execution plan
// within a global concurrency cap, respecting the per-user, per-environment
// depends_on order between routes. It is the C8 component of the engine:
// Builder -> Client -> Extractor wired together and scheduled.
package runner

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/l0p7/httpdiff/internal/condition"
	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/extract"
	"github.com/l0p7/httpdiff/internal/httpclient"
	"github.com/l0p7/httpdiff/internal/logging"
	"github.com/l0p7/httpdiff/internal/metrics"
	"github.com/l0p7/httpdiff/internal/plan"
	"github.com/l0p7/httpdiff/internal/reqbuild"
	"github.com/l0p7/httpdiff/internal/scope"
	"github.com/l0p7/httpdiff/internal/urlbuild"
)

// Cell is the outcome of one (route, environment, user) triple.
type Cell struct {
	Route       string
	Environment string
	Skipped     bool
	SkipReasons []string
	Cancelled   bool
	BuildErr    error
	Response    httpclient.Response
	Extracted   []extract.Result
}

// Ran reports whether this cell produced an HttpResponse — false for both
// skipped and build-failed cells, which never reach the client.
func (c Cell) Ran() bool {
	return !c.Skipped && !c.Cancelled && c.BuildErr == nil
}

// UserRun collects every cell produced for one user record, keyed by route
// name then environment name.
type UserRun struct {
	User  config.UserData
	Cells map[string]map[string]Cell
}

// Result is the outcome of one Run call across every user and environment.
type Result struct {
	Users     []UserRun
	Cancelled bool
}

// Progress reports (completed, total) work units and the label of the cell
// that just finished. The runner serialises invocations: it never calls
// Progress concurrently from two goroutines, so the callback does not need
// its own locking.
type Progress func(completed, total int, label string)

// Runner executes a route plan against every (environment, user) pair.
type Runner struct {
	cfg        config.Config
	plan       *plan.Plan
	client     *httpclient.Client
	conditions *condition.Evaluator
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

// New builds a Runner over cfg's environments and the given dependency
// plan, client, and condition evaluator. rec and logger may be nil: a nil
// recorder no-ops every metric (Recorder's methods are nil-receiver-safe)
// and a nil logger discards every cell log line.
func New(cfg config.Config, p *plan.Plan, client *httpclient.Client, conditions *condition.Evaluator, rec *metrics.Recorder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{cfg: cfg, plan: p, client: client, conditions: conditions, metrics: rec, logger: logger}
}

// Run drives every (route, environment, user) cell, never more than
// concurrency requests in flight at once. If concurrency is <= 0 the
// config's configured default is used. ctx cancellation stops dispatching
// new cells but lets in-flight ones finish; Result.Cancelled reports
// whether that happened.
func (r *Runner) Run(ctx context.Context, envNames []string, users []config.UserData, concurrency int, progress Progress) *Result {
	if concurrency <= 0 {
		concurrency = r.cfg.Global.ConcurrencyLimit()
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	total := len(users) * len(envNames) * len(r.plan.Order)
	var completed int64
	var inFlight int64
	var progressMu sync.Mutex
	var cancelled atomic.Bool

	result := &Result{Users: make([]UserRun, len(users))}
	for ui, user := range users {
		cells := make(map[string]map[string]Cell, len(r.plan.Order))
		for _, name := range r.plan.Order {
			cells[name] = make(map[string]Cell, len(envNames))
		}
		result.Users[ui] = UserRun{User: user, Cells: cells}
	}

	var outer sync.WaitGroup
	for ui, user := range users {
		for _, envName := range envNames {
			outer.Add(1)
			go func(ui int, user config.UserData, envName string) {
				defer outer.Done()
				r.runUserEnv(ctx, sem, user, ui, envName, result, &completed, &inFlight, total, progress, &progressMu, &cancelled)
			}(ui, user, envName)
		}
	}
	outer.Wait()

	result.Cancelled = cancelled.Load()
	return result
}

// runUserEnv walks the dependency plan for one (user, environment) pair,
// spawning one goroutine per route that blocks on its dependencies' done
// channels before competing for the global semaphore.
func (r *Runner) runUserEnv(
	ctx context.Context,
	sem *semaphore.Weighted,
	user config.UserData,
	userIdx int,
	envName string,
	result *Result,
	completed *int64,
	inFlight *int64,
	total int,
	progress Progress,
	progressMu *sync.Mutex,
	cancelled *atomic.Bool,
) {
	env := r.cfg.Environments[envName]
	sc := scope.New(user.Columns)
	sc.SetSystem("env", envName)
	sc.SetSystem("base_url", env.BaseURL)
	var scopeMu sync.Mutex

	done := make(map[string]chan struct{}, len(r.plan.Order))
	for _, name := range r.plan.Order {
		done[name] = make(chan struct{})
	}

	var wg sync.WaitGroup
	for _, name := range r.plan.Order {
		wg.Add(1)
		go func(routeName string) {
			defer wg.Done()
			defer close(done[routeName])

			route := r.plan.ByName[routeName]
			for _, dep := range route.DependsOn {
				<-done[dep]
			}

			if ctx.Err() != nil {
				cancelled.Store(true)
				r.record(result, userIdx, routeName, envName, Cell{Route: routeName, Environment: envName, Cancelled: true}, completed, total, progress, progressMu)
				return
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				cancelled.Store(true)
				r.record(result, userIdx, routeName, envName, Cell{Route: routeName, Environment: envName, Cancelled: true}, completed, total, progress, progressMu)
				return
			}
			defer sem.Release(1)

			r.metrics.SetInFlight(int(atomic.AddInt64(inFlight, 1)))
			defer func() { r.metrics.SetInFlight(int(atomic.AddInt64(inFlight, -1))) }()

			scopeMu.Lock()
			snapshot := sc.Fork()
			scopeMu.Unlock()

			cell := r.runCell(ctx, route, envName, env, snapshot)

			if cell.Ran() {
				scopeMu.Lock()
				for _, ex := range cell.Extracted {
					if ex.Contributes() {
						sc.SetExtracted(ex.Name, ex.Value)
					}
				}
				scopeMu.Unlock()
			}

			r.record(result, userIdx, routeName, envName, cell, completed, total, progress, progressMu)
		}(name)
	}
	wg.Wait()
}

// runCell evaluates conditions, and when satisfied builds and executes one
// request, then runs its extraction rules against whatever response came
// back (even an error response — extraction is best-effort).
func (r *Runner) runCell(ctx context.Context, route config.Route, envName string, env config.Environment, sc *scope.Scope) Cell {
	cell := Cell{Route: route.Name, Environment: envName}

	outcome, err := r.conditions.Evaluate(route, sc)
	if err != nil {
		cell.BuildErr = err
		return cell
	}
	if !outcome.Satisfied {
		cell.Skipped = true
		cell.SkipReasons = outcome.Reasons
		return cell
	}

	base := urlbuild.BaseURL(route, envName, env)
	builtURL, err := urlbuild.Build(route, r.cfg.Global.Params, base, sc)
	if err != nil {
		cell.BuildErr = err
		return cell
	}

	headers, err := reqbuild.Headers(r.cfg.Global.Headers, env.Headers, route.Headers, sc)
	if err != nil {
		cell.BuildErr = err
		return cell
	}

	body, err := reqbuild.Body(route.Body, sc)
	if err != nil {
		cell.BuildErr = err
		return cell
	}

	rendered := reqbuild.Rendered{Method: reqbuild.Method(route), URL: builtURL, Headers: headers, Body: body}
	resp := r.client.Do(context.WithoutCancel(ctx), rendered)
	cell.Response = resp
	cell.Extracted = extract.Apply(route.Extract, resp)
	return cell
}

// logCell emits one structured log line per finished cell, tagged with its
// route and environment, at a level chosen by outcome: cancelled and
// build-failed cells are warnings, skips and successes are debug-level
// since they're expected traffic in a normal run.
func (r *Runner) logCell(routeName, envName string, cell Cell) {
	logger := logging.ForCell(r.logger, routeName, envName)
	switch {
	case cell.Cancelled:
		logger.Warn("cell cancelled")
	case cell.BuildErr != nil:
		logger.Warn("cell build failed", slog.Any("error", cell.BuildErr))
	case cell.Skipped:
		logger.Debug("cell skipped", slog.Any("reasons", cell.SkipReasons))
	case cell.Response.Failed():
		logger.Warn("cell transport failure", slog.Any("error", cell.Response.TransportError))
	default:
		logger.Debug("cell completed", slog.Int("status", cell.Response.StatusCode))
	}
}

// record writes a completed cell into result and advances the shared
// progress counter. Both the map write and the progress callback happen
// under progressMu so callers never observe interleaved callback
// invocations or a torn map write.
func (r *Runner) record(
	result *Result,
	userIdx int,
	routeName, envName string,
	cell Cell,
	completed *int64,
	total int,
	progress Progress,
	progressMu *sync.Mutex,
) {
	r.logCell(routeName, envName, cell)

	progressMu.Lock()
	defer progressMu.Unlock()

	result.Users[userIdx].Cells[routeName][envName] = cell
	n := atomic.AddInt64(completed, 1)
	if progress != nil {
		progress(int(n), total, routeName+"@"+envName)
	}
}
