// Package config loads and validates the declarative model that drives the
// httpdiff engine: environments, routes, and the CSV-shaped user records
// that parameterise them.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Config is the fully loaded and validated declarative model for one run.
type Config struct {
	Global       GlobalConfig          `koanf:"global"`
	Environments map[string]Environment `koanf:"environments"`
	Routes       []Route               `koanf:"routes"`
}

// GlobalConfig collects the run-wide defaults layered under environment and
// route-specific overrides.
type GlobalConfig struct {
	TimeoutSeconds  int               `koanf:"timeoutSeconds"`
	FollowRedirects *bool             `koanf:"followRedirects"`
	Headers         map[string]string `koanf:"headers"`
	Params          map[string]string `koanf:"params"`
	Concurrency     int               `koanf:"concurrency"`
	IgnoredHeaders  []string          `koanf:"ignoredHeaders"`
	Logging         LoggingConfig     `koanf:"logging"`
	Metrics         MetricsConfig     `koanf:"metrics"`
}

// LoggingConfig configures the engine's slog logger: level and format,
// following the same knobs the teacher's internal/logging.New reads.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig configures the optional Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// Timeout returns the configured request timeout, defaulting to 30s.
func (g GlobalConfig) Timeout() int {
	if g.TimeoutSeconds <= 0 {
		return 30
	}
	return g.TimeoutSeconds
}

// Redirects reports whether the client should follow redirects. Defaults to
// true when unset.
func (g GlobalConfig) Redirects() bool {
	if g.FollowRedirects == nil {
		return true
	}
	return *g.FollowRedirects
}

// ConcurrencyLimit returns the configured concurrency cap, defaulting to 10
// in-flight requests.
func (g GlobalConfig) ConcurrencyLimit() int {
	if g.Concurrency <= 0 {
		return 10
	}
	return g.Concurrency
}

// Environment is a named backend target that one or more routes are run
// against.
type Environment struct {
	BaseURL string            `koanf:"baseUrl"`
	Headers map[string]string `koanf:"headers"`
	IsBase  *bool             `koanf:"isBase"`
}

// Base reports whether this environment was explicitly flagged as the
// comparison reference.
func (e Environment) Base() bool {
	return e.IsBase != nil && *e.IsBase
}

// Route is a named request template executed against every environment for
// every user record.
type Route struct {
	Name       string                  `koanf:"name"`
	Method     string                  `koanf:"method"`
	Path       string                  `koanf:"path"`
	Headers    map[string]string       `koanf:"headers"`
	Params     map[string]string       `koanf:"params"`
	Body       string                  `koanf:"body"`
	BaseURLs   map[string]string       `koanf:"baseUrls"`
	Extract    []ValueExtractionRule   `koanf:"extract"`
	Conditions []ExecutionCondition    `koanf:"conditions"`
	DependsOn  []string                `koanf:"dependsOn"`
}

// ExtractionKind enumerates the supported value-extraction strategies.
type ExtractionKind string

const (
	ExtractJSONPath ExtractionKind = "jsonpath"
	ExtractHeader   ExtractionKind = "header"
	ExtractStatus   ExtractionKind = "status"
	ExtractRegex    ExtractionKind = "regex"
)

// ValueExtractionRule pulls a named value out of a response for use by
// dependent routes and execution conditions.
type ValueExtractionRule struct {
	Name    string         `koanf:"name"`
	Kind    ExtractionKind `koanf:"kind"`
	Source  string         `koanf:"source"`
	Default *string        `koanf:"default"`
}

// ConditionOperator enumerates the comparison operators ExecutionCondition
// supports.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "notEquals"
	OpExists      ConditionOperator = "exists"
	OpNotExists   ConditionOperator = "notExists"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "notContains"
	OpMatches     ConditionOperator = "matches"
	OpGreaterThan ConditionOperator = "greaterThan"
	OpLessThan    ConditionOperator = "lessThan"
)

// ExecutionCondition gates whether a route runs for a given user/environment
// cell. All conditions on a route are ANDed.
type ExecutionCondition struct {
	Variable string            `koanf:"variable"`
	Operator ConditionOperator `koanf:"operator"`
	Value    string            `koanf:"value"`
}

// UserData is a single record from the CSV user table: column name to string
// value, immutable once loaded.
type UserData struct {
	Columns map[string]string
}

// Value looks up a column, reporting whether it was present.
func (u UserData) Value(name string) (string, bool) {
	v, ok := u.Columns[name]
	return v, ok
}

// Validate checks every configuration invariant and collects every
// violation before returning, rather than failing on the first one.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if len(c.Environments) == 0 {
		errs = append(errs, fmt.Errorf("config: no environments configured"))
	}
	if len(c.Routes) == 0 {
		errs = append(errs, fmt.Errorf("config: %w", ErrNoRoutes))
	}

	baseCount := 0
	for name, env := range c.Environments {
		if strings.TrimSpace(env.BaseURL) == "" {
			errs = append(errs, fmt.Errorf("config: environments[%s].baseUrl required", name))
		}
		if env.Base() {
			baseCount++
		}
	}
	if baseCount > 1 {
		errs = append(errs, fmt.Errorf("config: at most one environment may set isBase"))
	}

	seenRoutes := make(map[string]struct{}, len(c.Routes))
	for i, route := range c.Routes {
		if strings.TrimSpace(route.Name) == "" {
			errs = append(errs, fmt.Errorf("config: routes[%d].name required", i))
			continue
		}
		if _, dup := seenRoutes[route.Name]; dup {
			errs = append(errs, fmt.Errorf("config: duplicate route name %q", route.Name))
		}
		seenRoutes[route.Name] = struct{}{}

		if !knownMethod(route.Method) {
			errs = append(errs, fmt.Errorf("config: routes[%s].method unknown: %q", route.Name, route.Method))
		}
		for _, baseURLName := range sortedKeys(route.BaseURLs) {
			if _, ok := c.Environments[baseURLName]; !ok {
				errs = append(errs, fmt.Errorf("config: routes[%s].baseUrls references unknown environment %q", route.Name, baseURLName))
			}
		}
		for j, rule := range route.Extract {
			if strings.TrimSpace(rule.Name) == "" {
				errs = append(errs, fmt.Errorf("config: routes[%s].extract[%d].name required", route.Name, j))
			}
			switch rule.Kind {
			case ExtractJSONPath, ExtractHeader, ExtractStatus, ExtractRegex:
			default:
				errs = append(errs, fmt.Errorf("config: routes[%s].extract[%d].kind unsupported: %q", route.Name, j, rule.Kind))
			}
			if rule.Kind != ExtractStatus && strings.TrimSpace(rule.Source) == "" {
				errs = append(errs, fmt.Errorf("config: routes[%s].extract[%d].source required", route.Name, j))
			}
		}
		for j, cond := range route.Conditions {
			if strings.TrimSpace(cond.Variable) == "" {
				errs = append(errs, fmt.Errorf("config: routes[%s].conditions[%d].variable required", route.Name, j))
			}
			switch cond.Operator {
			case OpEquals, OpNotEquals, OpExists, OpNotExists, OpContains, OpNotContains, OpMatches, OpGreaterThan, OpLessThan:
			default:
				errs = append(errs, fmt.Errorf("config: routes[%s].conditions[%d].operator unsupported: %q", route.Name, j, cond.Operator))
			}
		}
	}

	for _, route := range c.Routes {
		for _, dep := range route.DependsOn {
			if _, ok := seenRoutes[dep]; !ok {
				errs = append(errs, fmt.Errorf("config: routes[%s].dependsOn references unknown route %q", route.Name, dep))
			}
		}
	}

	if cycle := findCycle(c.Routes); cycle != "" {
		errs = append(errs, fmt.Errorf("config: dependsOn cycle detected: %s", cycle))
	}

	if len(errs) == 0 {
		if err := c.validatePlaceholders(); err != nil {
			errs = append(errs, err.(ValidationErrors)...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func knownMethod(method string) bool {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
		return true
	default:
		return false
	}
}

// findCycle reports the first dependency cycle found among routes, or an
// empty string when the dependsOn graph is acyclic.
func findCycle(routes []Route) string {
	byName := make(map[string]Route, len(routes))
	for _, r := range routes {
		byName[r.Name] = r
	}
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int, len(routes))
	var path []string

	var visit func(name string) string
	visit = func(name string) string {
		switch state[name] {
		case black:
			return ""
		case gray:
			path = append(path, name)
			return strings.Join(path, " -> ")
		}
		state[name] = gray
		path = append(path, name)
		for _, dep := range byName[name].DependsOn {
			if _, ok := byName[dep]; !ok {
				continue
			}
			if cyc := visit(dep); cyc != "" {
				return cyc
			}
		}
		path = path[:len(path)-1]
		state[name] = black
		return ""
	}

	for _, r := range routes {
		if state[r.Name] == white {
			if cyc := visit(r.Name); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}

// ReferenceEnvironment returns the name of the environment all others are
// compared against: the one flagged isBase, or else the
// lexicographically-first environment name.
func (c *Config) ReferenceEnvironment() string {
	for name, env := range c.Environments {
		if env.Base() {
			return name
		}
	}
	names := sortedKeys(c.Environments)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
