// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package infq

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Config is the serializable subset of a [Queue]'s options, for hosts that
// read their scheduler settings from a file:
//
//	max_concurrency: 2
//	priority: user-initiated
//	backlog_limit: 64
type Config struct {
	MaxConcurrency int      `yaml:"max_concurrency"`
	Priority       Priority `yaml:"priority"`
	BacklogLimit   int      `yaml:"backlog_limit"`
}

// DefaultConfig returns the configuration equivalent to passing no options to
// [New].
func DefaultConfig() Config {
	return Config{MaxConcurrency: -1}
}

// ParseConfig decodes a YAML document. Fields that are absent keep the values
// of [DefaultConfig]; unknown fields are an error.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing queue config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that no queue accepts.
func (c Config) Validate() error {
	if c.BacklogLimit < 0 {
		return fmt.Errorf("invalid queue config: backlog_limit %d is negative", c.BacklogLimit)
	}
	return nil
}

// Options converts c to the equivalent options for [New].
func (c Config) Options() []Option {
	return []Option{
		WithMaxConcurrency(c.MaxConcurrency),
		WithPriority(c.Priority),
		WithBacklogLimit(c.BacklogLimit),
	}
}
