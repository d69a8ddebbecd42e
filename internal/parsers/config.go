package parsers

import (
	"fmt"
	"unicode/utf8"
)

// ParseConfig holds configuration for reading tabular files
type ParseConfig struct {
	// Sheet selects a workbook sheet by name; empty means the first sheet
	Sheet string `json:"sheet" mapstructure:"sheet"`

	// Delimiter separates CSV fields; 0 sniffs it from the header line
	Delimiter rune `json:"delimiter" mapstructure:"delimiter"`

	// Comment marks CSV lines to skip; 0 disables comments
	Comment rune `json:"comment" mapstructure:"comment"`

	TrimLeadingSpace bool `json:"trim_leading_space" mapstructure:"trim_leading_space"`
	LazyQuotes       bool `json:"lazy_quotes" mapstructure:"lazy_quotes"`

	// SkipEmptyRows drops data rows whose cells are all blank
	SkipEmptyRows bool `json:"skip_empty_rows" mapstructure:"skip_empty_rows"`

	// Charset is passed to the legacy .xls decoder
	Charset string `json:"charset" mapstructure:"charset"`
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        0,
		TrimLeadingSpace: true,
		LazyQuotes:       true,
		SkipEmptyRows:    true,
		Charset:          "utf-8",
	}
}

// Validate checks if the configuration is valid
func (c *ParseConfig) Validate() error {
	if c.Delimiter != 0 {
		if !validDelim(c.Delimiter) {
			return fmt.Errorf("invalid delimiter %q", c.Delimiter)
		}
		if c.Delimiter == c.Comment {
			return fmt.Errorf("delimiter and comment cannot both be %q", c.Delimiter)
		}
	}
	if c.Comment != 0 && !validDelim(c.Comment) {
		return fmt.Errorf("invalid comment character %q", c.Comment)
	}
	return nil
}

// Clone creates a copy of the configuration
func (c *ParseConfig) Clone() *ParseConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// validDelim mirrors the rules encoding/csv applies to Comma and Comment
func validDelim(r rune) bool {
	return r != 0 && r != '"' && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}
