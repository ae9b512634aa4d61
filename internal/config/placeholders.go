package config

import (
	"fmt"

	"github.com/l0p7/httpdiff/internal/substitute"
)

// reservedSystemNames are always resolvable regardless of user data or
// extraction output.
var reservedSystemNames = map[string]struct{}{
	"env":      {},
	"base_url": {},
}

// columnSet holds the column names of the user-record header row; has
// reports whether name is one of them.
type columnSet map[string]struct{}

func (c columnSet) has(name string) bool {
	_, ok := c[name]
	return ok
}

// validatePlaceholders enforces the rule that every `{x}` referenced by a
// route template must be resolvable from the user-record header, a
// transitive dependency's extraction names, or a reserved system name. It
// is checked at validation time so a bad reference never reaches request
// time.
//
// Because the user-record header isn't known until the CSV is loaded (and
// config validation runs before that), this runs without a column set and
// so reports nothing: a placeholder that is neither produced by a transitive
// dependency's extract rules nor a reserved name may still be a user column.
// The caller checks those names against the loaded user header by calling
// ValidateWithColumns with the CSV's column names.
func (c *Config) validatePlaceholders() error {
	return c.ValidateWithColumns(nil)
}

// ValidateWithColumns re-checks the placeholder invariant against a known
// set of user-record column names, catching references to columns that the
// CSV header never defines. Passing a nil set skips the column check and
// only validates against extraction names and reserved system names.
func (c *Config) ValidateWithColumns(userColumns []string) error {
	var errs ValidationErrors

	extractedBy := make(map[string][]string, len(c.Routes))
	byName := make(map[string]Route, len(c.Routes))
	for _, r := range c.Routes {
		byName[r.Name] = r
		names := make([]string, 0, len(r.Extract))
		for _, rule := range r.Extract {
			names = append(names, rule.Name)
		}
		extractedBy[r.Name] = names
	}

	var cols columnSet
	if userColumns != nil {
		cols = make(columnSet, len(userColumns))
		for _, name := range userColumns {
			cols[name] = struct{}{}
		}
	}

	for _, route := range c.Routes {
		available := availableNames(route, byName, extractedBy)
		templates := []string{route.Path, route.Body}
		for _, v := range route.Headers {
			templates = append(templates, v)
		}
		for _, v := range route.Params {
			templates = append(templates, v)
		}
		for _, tmpl := range templates {
			for _, ident := range substitute.Placeholders(tmpl) {
				if _, ok := reservedSystemNames[ident]; ok {
					continue
				}
				if _, ok := available[ident]; ok {
					continue
				}
				if cols != nil && !cols.has(ident) {
					errs = append(errs, fmt.Errorf("config: routes[%s] references unresolvable placeholder %q", route.Name, ident))
				}
				// When cols is nil we can't yet rule out a user column, so
				// nothing is flagged here; such names are assumed to be user
				// columns and checked once the CSV is loaded via
				// ValidateWithColumns.
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// availableNames returns the set of names a route may rely on: every
// extraction name produced by its transitive dependsOn closure.
func availableNames(route Route, byName map[string]Route, extractedBy map[string][]string) map[string]struct{} {
	visited := make(map[string]struct{})
	available := make(map[string]struct{})
	var walk func(name string)
	walk = func(name string) {
		if _, ok := visited[name]; ok {
			return
		}
		visited[name] = struct{}{}
		for _, dep := range byName[name].DependsOn {
			for _, n := range extractedBy[dep] {
				available[n] = struct{}{}
			}
			walk(dep)
		}
	}
	walk(route.Name)
	return available
}
