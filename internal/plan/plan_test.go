package plan

import (
	"testing"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/stretchr/testify/require"
)

func TestBuildOrdersDependenciesFirst(t *testing.T) {
	routes := []config.Route{
		{Name: "me", DependsOn: []string{"login"}},
		{Name: "login"},
		{Name: "health"},
	}

	p, err := Build(routes)
	require.NoError(t, err)
	require.Equal(t, []string{"health", "login", "me"}, p.Order)
	require.ElementsMatch(t, []string{"health", "login"}, p.Roots())
	require.Equal(t, []string{"me"}, p.Dependents["login"])
}

func TestBuildDetectsCycle(t *testing.T) {
	routes := []config.Route{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b", DependsOn: []string{"a"}},
	}
	_, err := Build(routes)
	require.Error(t, err)
}

func TestBuildIndependentRoutesSortStably(t *testing.T) {
	routes := []config.Route{
		{Name: "zeta"},
		{Name: "alpha"},
		{Name: "beta", DependsOn: []string{"alpha"}},
	}
	p, err := Build(routes)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "zeta", "beta"}, p.Order)
}
