package urlbuild

import (
	"testing"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/l0p7/httpdiff/internal/scope"
	"github.com/stretchr/testify/require"
)

func TestBaseURL_RouteOverrideWins(t *testing.T) {
	route := config.Route{BaseURLs: map[string]string{"staging": "https://override.example.com"}}
	env := config.Environment{BaseURL: "https://staging.example.com"}
	require.Equal(t, "https://override.example.com", BaseURL(route, "staging", env))
}

func TestBaseURL_FallsBackToEnvironment(t *testing.T) {
	route := config.Route{}
	env := config.Environment{BaseURL: "https://staging.example.com"}
	require.Equal(t, "https://staging.example.com", BaseURL(route, "staging", env))
}

func TestBuild_SubstitutesPathAndMergesParams(t *testing.T) {
	route := config.Route{
		Name:   "get-user",
		Path:   "/users/{id}",
		Params: map[string]string{"verbose": "true"},
	}
	sc := scope.New(map[string]string{"id": "42"})

	got, err := Build(route, map[string]string{"locale": "en"}, "https://api.example.com", sc)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/users/42?locale=en&verbose=true", got)
}

func TestBuild_RouteParamOverridesGlobal(t *testing.T) {
	route := config.Route{
		Name:   "search",
		Path:   "/search",
		Params: map[string]string{"page": "2"},
	}
	sc := scope.New(nil)

	got, err := Build(route, map[string]string{"page": "1"}, "https://api.example.com", sc)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/search?page=2", got)
}

func TestBuild_MissingPlaceholderIsStrict(t *testing.T) {
	route := config.Route{Name: "get-user", Path: "/users/{id}"}
	sc := scope.New(nil)

	_, err := Build(route, nil, "https://api.example.com", sc)
	require.Error(t, err)
}

func TestJoinURL_HandlesSlashes(t *testing.T) {
	u, err := joinURL("https://api.example.com/", "users/1")
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/users/1", u.String())
}

func TestBuild_URLEncodesPathValue(t *testing.T) {
	route := config.Route{Name: "search", Path: "/q/{term}"}
	sc := scope.New(map[string]string{"term": "a b"})

	got, err := Build(route, nil, "https://api.example.com", sc)
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/q/a%20b", got)
}
