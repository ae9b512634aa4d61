package runner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/l0p7/httpdiff/internal/condition"
	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/httpclient"
	"github.com/l0p7/httpdiff/internal/plan"
	"github.com/stretchr/testify/require"
)

func newEvaluator(t *testing.T) *condition.Evaluator {
	t.Helper()
	ev, err := condition.New()
	require.NoError(t, err)
	return ev
}

func TestRun_DependencyChainOrdersRequests(t *testing.T) {
	var mu sync.Mutex
	var order []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		order = append(order, req.URL.Path)
		mu.Unlock()
		switch req.URL.Path {
		case "/login":
			w.Write([]byte(`{"token":"tok-1"}`))
		case "/me":
			w.Header().Set("X-Auth", req.Header.Get("Authorization"))
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	cfg := config.Config{
		Environments: map[string]config.Environment{"a": {BaseURL: srv.URL}},
		Routes: []config.Route{
			{Name: "login", Method: "GET", Path: "/login", Extract: []config.ValueExtractionRule{
				{Name: "token", Kind: config.ExtractJSONPath, Source: "$.token"},
			}},
			{Name: "me", Method: "GET", Path: "/me", DependsOn: []string{"login"}, Headers: map[string]string{
				"Authorization": "Bearer {token}",
			}},
		},
	}
	p, err := plan.Build(cfg.Routes)
	require.NoError(t, err)

	client := httpclient.New(5*time.Second, true)
	r := New(cfg, p, client, newEvaluator(t), nil, nil)

	users := []config.UserData{{Columns: map[string]string{"id": "1"}}}
	res := r.Run(context.Background(), []string{"a"}, users, 4, nil)

	require.False(t, res.Cancelled)
	meCell := res.Users[0].Cells["me"]["a"]
	require.True(t, meCell.Ran())
	require.Equal(t, []string{"/login", "/me"}, order)
	require.Equal(t, "Bearer tok-1", http.Header(meCell.Response.Headers).Get("X-Auth"))
}

func TestRun_ConditionSkipsRouteForSomeUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := config.Config{
		Environments: map[string]config.Environment{"a": {BaseURL: srv.URL}},
		Routes: []config.Route{
			{Name: "gold-only", Method: "GET", Path: "/x", Conditions: []config.ExecutionCondition{
				{Variable: "tier", Operator: config.OpEquals, Value: "gold"},
			}},
		},
	}
	p, err := plan.Build(cfg.Routes)
	require.NoError(t, err)
	client := httpclient.New(5*time.Second, true)
	r := New(cfg, p, client, newEvaluator(t), nil, nil)

	users := []config.UserData{
		{Columns: map[string]string{"tier": "gold"}},
		{Columns: map[string]string{"tier": "silver"}},
	}
	res := r.Run(context.Background(), []string{"a"}, users, 4, nil)

	require.True(t, res.Users[0].Cells["gold-only"]["a"].Ran())
	require.True(t, res.Users[1].Cells["gold-only"]["a"].Skipped)
	require.NotEmpty(t, res.Users[1].Cells["gold-only"]["a"].SkipReasons)
}

func TestRun_ConcurrencyCapNeverExceeded(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var routes []config.Route
	for i := 0; i < 20; i++ {
		routes = append(routes, config.Route{Name: fmt.Sprintf("r%d", i), Method: "GET", Path: "/x"})
	}
	cfg := config.Config{
		Environments: map[string]config.Environment{"a": {BaseURL: srv.URL}},
		Routes:       routes,
	}
	p, err := plan.Build(cfg.Routes)
	require.NoError(t, err)
	client := httpclient.New(5*time.Second, true)
	r := New(cfg, p, client, newEvaluator(t), nil, nil)

	users := []config.UserData{{Columns: map[string]string{}}}
	res := r.Run(context.Background(), []string{"a"}, users, 3, nil)

	require.False(t, res.Cancelled)
	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, maxInFlight, 3)
}

func TestRun_ProgressCallbackReachesTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := config.Config{
		Environments: map[string]config.Environment{"a": {BaseURL: srv.URL}, "b": {BaseURL: srv.URL}},
		Routes: []config.Route{
			{Name: "one", Method: "GET", Path: "/x"},
			{Name: "two", Method: "GET", Path: "/y"},
		},
	}
	p, err := plan.Build(cfg.Routes)
	require.NoError(t, err)
	client := httpclient.New(5*time.Second, true)
	r := New(cfg, p, client, newEvaluator(t), nil, nil)

	users := []config.UserData{{Columns: map[string]string{}}, {Columns: map[string]string{}}}

	var mu sync.Mutex
	var lastCompleted, lastTotal int
	calls := 0
	progress := func(completed, total int, label string) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		lastCompleted, lastTotal = completed, total
	}

	res := r.Run(context.Background(), []string{"a", "b"}, users, 4, progress)
	require.False(t, res.Cancelled)
	require.Equal(t, 8, calls) // 2 users x 2 envs x 2 routes
	require.Equal(t, lastTotal, lastCompleted)
}

func TestRun_CancellationStopsNewWork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var routes []config.Route
	for i := 0; i < 10; i++ {
		routes = append(routes, config.Route{Name: fmt.Sprintf("r%d", i), Method: "GET", Path: "/x"})
	}
	cfg := config.Config{
		Environments: map[string]config.Environment{"a": {BaseURL: srv.URL}},
		Routes:       routes,
	}
	p, err := plan.Build(cfg.Routes)
	require.NoError(t, err)
	client := httpclient.New(5*time.Second, true)
	r := New(cfg, p, client, newEvaluator(t), nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	users := []config.UserData{{Columns: map[string]string{}}}
	res := r.Run(ctx, []string{"a"}, users, 2, nil)
	require.True(t, res.Cancelled)
}
