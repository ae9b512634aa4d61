// Package plan computes the dependency order routes must run in. The order
// is shared across every user: depends_on names routes, not per-user state,
// so one topological sort serves every (environment, user) cell the runner
// drives through it.
package plan

import (
	"fmt"
	"sort"

	"github.com/l0p7/httpdiff/internal/config"
)

// Plan is a topologically sorted view of a route set: Order lists route
// names such that every route appears after everything it depends on, and
// Dependents maps a route name to the routes that become eligible once it
// completes.
type Plan struct {
	Order      []string
	ByName     map[string]config.Route
	Dependents map[string][]string
}

// Build topologically sorts routes by depends_on using Kahn's algorithm.
// config.Config.Validate rejects cyclic dependency graphs before a plan is
// ever built; Build still reports a cycle rather than looping forever if
// called directly against an unvalidated route set.
func Build(routes []config.Route) (*Plan, error) {
	byName := make(map[string]config.Route, len(routes))
	indegree := make(map[string]int, len(routes))
	dependents := make(map[string][]string, len(routes))

	for _, r := range routes {
		byName[r.Name] = r
		if _, ok := indegree[r.Name]; !ok {
			indegree[r.Name] = 0
		}
	}
	for _, r := range routes {
		for _, dep := range r.DependsOn {
			indegree[r.Name]++
			dependents[dep] = append(dependents[dep], r.Name)
		}
	}
	for dep := range dependents {
		sort.Strings(dependents[dep])
	}

	var ready []string
	for _, r := range routes {
		if indegree[r.Name] == 0 {
			ready = append(ready, r.Name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(routes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		var newlyReady []string
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		sort.Strings(newlyReady)
		ready = append(ready, newlyReady...)
	}

	if len(order) != len(routes) {
		return nil, fmt.Errorf("plan: dependsOn graph has a cycle")
	}

	return &Plan{Order: order, ByName: byName, Dependents: dependents}, nil
}

// Roots returns the route names with no dependencies, the initial ready set
// for a fresh per-user DAG walk.
func (p *Plan) Roots() []string {
	var roots []string
	for _, name := range p.Order {
		if len(p.ByName[name].DependsOn) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}
