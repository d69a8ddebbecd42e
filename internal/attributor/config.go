package attributor

import (
	"fmt"
	"strings"

	"sales-attribution-service/internal/matcher"
	"sales-attribution-service/internal/parsers"
	"sales-attribution-service/internal/reporter"
	"sales-attribution-service/internal/rules"
)

// Config holds configuration options for the attribution service
type Config struct {
	Matching       *matcher.Config
	ReferenceParse *parsers.ParseConfig
	SalesParse     *parsers.ParseConfig
	Rules          *rules.Rules

	// OwnerHeader names the derived owner column of the consolidated table
	OwnerHeader string
}

// DefaultConfig returns a default configuration for the attribution service
func DefaultConfig() *Config {
	return &Config{
		Matching:       matcher.DefaultConfig(),
		ReferenceParse: parsers.DefaultParseConfig(),
		SalesParse:     parsers.DefaultParseConfig(),
		Rules:          rules.Default(),
		OwnerHeader:    reporter.DefaultOwnerHeader,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}

	for name, pc := range map[string]*parsers.ParseConfig{"reference": c.ReferenceParse, "sales": c.SalesParse} {
		if pc == nil {
			return fmt.Errorf("%s parse configuration is required", name)
		}
		if err := pc.Validate(); err != nil {
			return fmt.Errorf("invalid %s parse configuration: %w", name, err)
		}
	}

	if c.Rules == nil {
		return fmt.Errorf("keyword rules are required")
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("invalid keyword rules: %w", err)
	}

	if strings.TrimSpace(c.OwnerHeader) == "" {
		return fmt.Errorf("owner header cannot be empty")
	}
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		Matching:       c.Matching.Clone(),
		ReferenceParse: c.ReferenceParse.Clone(),
		SalesParse:     c.SalesParse.Clone(),
		Rules:          c.Rules.Clone(),
		OwnerHeader:    c.OwnerHeader,
	}
}
