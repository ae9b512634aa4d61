package logging

import (
	"testing"

	"github.com/l0p7/httpdiff/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToInfoJSON(t *testing.T) {
	logger, err := New(config.LoggingConfig{})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "verbose"})
	require.Error(t, err)
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(config.LoggingConfig{Format: "xml"})
	require.Error(t, err)
}

func TestForRunAndForCell_ChainTags(t *testing.T) {
	logger, err := New(config.LoggingConfig{})
	require.NoError(t, err)
	require.NotNil(t, ForCell(ForRun(logger, "run-1"), "login", "prod"))
}
