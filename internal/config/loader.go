package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if SCOUT_CONFIG is set
//  3. env (prefix SCOUT_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx // reserved for future remote providers

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("SCOUT_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SCOUT_ADDR, SCOUT_MAX_WORKERS, ...
	// Map env keys like SCOUT_MAX_WORKERS -> max_workers (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("SCOUT_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "scout_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxWorkers < 1:
		return fmt.Errorf("%w: max_workers must be at least 1", ErrInvalidConfig)
	case c.KeepaliveIntervalSec < 1:
		return fmt.Errorf("%w: keepalive_interval_sec must be at least 1", ErrInvalidConfig)
	case c.MaxConcurrentStreams < 1:
		return fmt.Errorf("%w: max_concurrent_streams must be at least 1", ErrInvalidConfig)
	case c.RequestTimeoutSec < 1:
		return fmt.Errorf("%w: request_timeout_sec must be at least 1", ErrInvalidConfig)
	}
	return nil
}
