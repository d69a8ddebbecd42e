// Package matcher attributes an owner to every row of a sales table.
//
// Each row goes through a fixed sequence of stages and stops at the first
// one that produces an answer:
//  1. Missing subject: blank client cells get the MISSING_SUBJECT marker
//  2. Exact: the normalized client name is a key of the reference map
//  3. Approximate: the best scoring key reaches Config.Threshold
//  4. Not found: the row gets the NOT_FOUND marker
//
// Rows are independent, so the engine fans them out across workers and
// writes each result back into its original slot.
//
// Example usage:
//
//	config := matcher.DefaultConfig()
//	config.Workers = 4
//
//	engine, err := matcher.NewEngine(config, mapping, log)
//	results, err := engine.Attribute(ctx, sales, assignment)
package matcher

import (
	"fmt"
	"strings"
	"time"

	"sales-attribution-service/internal/similarity"
	"sales-attribution-service/pkg/logger"
)

// DefaultThreshold is the minimum similarity an approximate match must reach.
const DefaultThreshold = 0.70

// Config holds the parameters of the attribution engine.
type Config struct {
	// Threshold is the inclusive cutoff for approximate matches, in (0, 1]
	Threshold float64 `json:"threshold" mapstructure:"threshold"`

	// Scorer names the similarity function (gestalt or levenshtein)
	Scorer string `json:"scorer" mapstructure:"scorer"`

	// Workers is the number of goroutines; 0 means one per CPU
	Workers int `json:"workers" mapstructure:"workers"`

	// MinRowsPerWorker keeps small tables from being split across goroutines
	MinRowsPerWorker int `json:"min_rows_per_worker" mapstructure:"min_rows_per_worker"`

	// ProgressInterval is how often progress is logged during a run
	ProgressInterval time.Duration `json:"progress_interval" mapstructure:"progress_interval"`

	// OnProgress, when set, receives progress snapshots during a run
	OnProgress func(logger.ProgressStats) `json:"-" mapstructure:"-"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Threshold:        DefaultThreshold,
		Scorer:           similarity.GestaltName,
		Workers:          0,
		MinRowsPerWorker: 500,
		ProgressInterval: 2 * time.Second,
	}
}

// StrictConfig returns a configuration that only accepts close spellings
func StrictConfig() *Config {
	config := DefaultConfig()
	config.Threshold = 0.85
	return config
}

// RelaxedConfig returns a configuration that tolerates heavier drift
func RelaxedConfig() *Config {
	config := DefaultConfig()
	config.Threshold = 0.60
	return config
}

// Preset names accepted by PresetConfig
const (
	PresetDefault = "default"
	PresetStrict  = "strict"
	PresetRelaxed = "relaxed"
)

// PresetConfig returns the configuration registered under name; an empty
// name selects the default preset
func PresetConfig(name string) (*Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDefault:
		return DefaultConfig(), nil
	case PresetStrict:
		return StrictConfig(), nil
	case PresetRelaxed:
		return RelaxedConfig(), nil
	default:
		return nil, fmt.Errorf("unknown matching preset %q (valid: %s, %s, %s)",
			name, PresetDefault, PresetStrict, PresetRelaxed)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Threshold <= 0.0 || c.Threshold > 1.0 {
		return fmt.Errorf("threshold must be in (0.0, 1.0]: %f", c.Threshold)
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative: %d", c.Workers)
	}

	if c.MinRowsPerWorker < 0 {
		return fmt.Errorf("min rows per worker cannot be negative: %d", c.MinRowsPerWorker)
	}

	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval cannot be negative: %s", c.ProgressInterval)
	}

	if _, err := similarity.ScorerByName(c.Scorer); err != nil {
		return err
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Threshold: %.2f, Scorer: %s, Workers: %d}",
		c.Threshold, c.Scorer, c.Workers)
}
