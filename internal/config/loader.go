package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvConfigVar is the environment variable consulted for a default config
// path when the caller does not supply one explicitly.
const EnvConfigVar = "HTTP_DIFF_CONFIG"

// Loader hydrates the run configuration following env > file > default
// precedence.
type Loader struct {
	envPrefix string
	path      string
}

// NewLoader prepares a hydrator for the config document at path. envPrefix,
// when non-empty, overlays environment variables (double-underscore nested,
// e.g. GLOBAL__TIMEOUTSECONDS) on top of the file.
func NewLoader(envPrefix, path string) *Loader {
	return &Loader{envPrefix: envPrefix, path: path}
}

// Load parses the configured document, applies env overrides, unmarshals
// into Config and validates it structurally. Validation failures are
// returned as a ValidationErrors aggregate, not the first error encountered.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultConfigMap(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	select {
	case <-ctx.Done():
		return Config{}, ctx.Err()
	default:
	}

	if strings.TrimSpace(l.path) == "" {
		return Config{}, fmt.Errorf("config: no config path supplied (set --config or %s)", EnvConfigVar)
	}
	if _, err := os.Stat(l.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: file %s not found", l.path)
		}
		return Config{}, fmt.Errorf("config: stat %s: %w", l.path, err)
	}

	parser, err := parserForPath(l.path)
	if err != nil {
		return Config{}, err
	}
	if err := k.Load(file.Provider(l.path), parser); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", l.path, err)
	}

	if l.envPrefix != "" {
		known := k.Keys()
		transform := func(s string) string {
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
			for _, existing := range known {
				if strings.EqualFold(existing, key) {
					return existing
				}
			}
			return key
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parserForPath picks the koanf parser matching the config file's
// extension, supporting TOML, YAML, and JSON documents interchangeably.
func parserForPath(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unrecognised file extension %q (want .toml, .yaml, .yml, or .json)", filepath.Ext(path))
	}
}

func defaultConfigMap() map[string]any {
	return map[string]any{
		"global": map[string]any{
			"timeoutSeconds":  30,
			"followRedirects": true,
			"concurrency":     10,
		},
	}
}
