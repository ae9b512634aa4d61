// Package scope holds the per-(route, environment, user) lookup table that
// placeholder substitution and condition evaluation resolve names against.
package scope

// Scope resolves a name against three layers, in precedence order: values
// extracted from upstream route responses, the current user record, and a
// small set of reserved system values. Extracted values win over user
// columns of the same name, since they are the more specific, route-local
// binding.
type Scope struct {
	extracted map[string]string
	user      map[string]string
	system    map[string]string
}

// New builds a Scope from a user record's columns. Extracted values and
// system values are added afterward via SetExtracted and SetSystem.
func New(userColumns map[string]string) *Scope {
	return &Scope{
		extracted: make(map[string]string),
		user:      userColumns,
		system:    make(map[string]string),
	}
}

// SetExtracted records a value produced by a route's extraction rules,
// making it available to any route that transitively depends on it.
func (s *Scope) SetExtracted(name, value string) {
	s.extracted[name] = value
}

// SetSystem records a reserved system value such as env or base_url.
func (s *Scope) SetSystem(name, value string) {
	s.system[name] = value
}

// Lookup resolves name against extracted values, then the user record, then
// system values, reporting whether it was found in any layer.
func (s *Scope) Lookup(name string) (string, bool) {
	if v, ok := s.extracted[name]; ok {
		return v, true
	}
	if v, ok := s.user[name]; ok {
		return v, true
	}
	if v, ok := s.system[name]; ok {
		return v, true
	}
	return "", false
}

// Fork returns a copy of s that inherits every layer but can have its own
// extracted values added without mutating the parent. The runner forks the
// shared (user, environment) scope to give each route a snapshot to read
// while other routes write their extracted values into the parent.
func (s *Scope) Fork() *Scope {
	extracted := make(map[string]string, len(s.extracted))
	for k, v := range s.extracted {
		extracted[k] = v
	}
	system := make(map[string]string, len(s.system))
	for k, v := range s.system {
		system[k] = v
	}
	return &Scope{extracted: extracted, user: s.user, system: system}
}

// AsMap flattens every layer into a single map, extracted values taking
// precedence, for consumers that want a plain map[string]any view.
func (s *Scope) AsMap() map[string]any {
	out := make(map[string]any, len(s.system)+len(s.user)+len(s.extracted))
	for k, v := range s.system {
		out[k] = v
	}
	for k, v := range s.user {
		out[k] = v
	}
	for k, v := range s.extracted {
		out[k] = v
	}
	return out
}
