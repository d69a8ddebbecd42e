package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"sales-attribution-service/internal/attributor"
	"sales-attribution-service/internal/matcher"
	"sales-attribution-service/internal/parsers"
	"sales-attribution-service/internal/reporter"
	"sales-attribution-service/internal/rules"
	"sales-attribution-service/pkg/logger"
)

// Settings holds the values collected from flags, environment and config file
type Settings struct {
	ReferenceFile  string  `mapstructure:"reference-file"`
	SalesFile      string  `mapstructure:"sales-file"`
	OutputFile     string  `mapstructure:"output-file"`
	OutputFormat   string  `mapstructure:"output-format"`
	Preset         string  `mapstructure:"preset"`
	Threshold      float64 `mapstructure:"threshold"`
	Workers        int     `mapstructure:"workers"`
	Scorer         string  `mapstructure:"scorer"`
	RulesFile      string  `mapstructure:"rules"`
	ReferenceSheet string  `mapstructure:"reference-sheet"`
	SalesSheet     string  `mapstructure:"sheet"`
	Delimiter      string  `mapstructure:"delimiter"`
	OwnerHeader    string  `mapstructure:"owner-header"`
	ShowMapping    bool    `mapstructure:"show-mapping"`
	Progress       bool    `mapstructure:"progress"`
}

// CreateMatchingConfig starts from the named preset and applies CLI
// overrides; a zero threshold keeps the preset's threshold
func CreateMatchingConfig(preset string, threshold float64, workers int, scorer string) (*matcher.Config, error) {
	config, err := matcher.PresetConfig(preset)
	if err != nil {
		return nil, err
	}

	if threshold > 0 {
		config.Threshold = threshold
	}
	config.Workers = workers
	if scorer != "" {
		config.Scorer = strings.ToLower(scorer)
	}

	return config, nil
}

// CreateParseConfig creates a table reader configuration for one input file
func CreateParseConfig(sheet, delimiter string) (*parsers.ParseConfig, error) {
	config := parsers.DefaultParseConfig()
	config.Sheet = sheet

	switch delimiter {
	case "":
	case `\t`, "tab":
		config.Delimiter = '\t'
	default:
		if utf8.RuneCountInString(delimiter) != 1 {
			return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
		}
		r, _ := utf8.DecodeRuneInString(delimiter)
		config.Delimiter = r
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadRules reads the keyword rules file, or returns the built-in rules when
// path is empty
func LoadRules(path string) (*rules.Rules, error) {
	if path == "" {
		return rules.Default(), nil
	}
	return rules.Load(path)
}

// CreateAttributorConfig assembles the service configuration from settings
func CreateAttributorConfig(s Settings) (*attributor.Config, error) {
	r, err := LoadRules(s.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	referenceParse, err := CreateParseConfig(s.ReferenceSheet, s.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("invalid reference parse settings: %w", err)
	}
	salesParse, err := CreateParseConfig(s.SalesSheet, s.Delimiter)
	if err != nil {
		return nil, fmt.Errorf("invalid sales parse settings: %w", err)
	}

	matching, err := CreateMatchingConfig(s.Preset, s.Threshold, s.Workers, s.Scorer)
	if err != nil {
		return nil, err
	}

	config := attributor.DefaultConfig()
	config.Matching = matching
	config.ReferenceParse = referenceParse
	config.SalesParse = salesParse
	config.Rules = r
	if s.OwnerHeader != "" {
		config.OwnerHeader = s.OwnerHeader
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ResolveOutputFormat returns the requested format, or infers it from the
// output file extension when none was given. The default is xlsx.
func ResolveOutputFormat(format, outputFile string) (reporter.OutputFormat, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(outputFile)) {
		case ".csv":
			return reporter.FormatCSV, nil
		case ".json":
			return reporter.FormatJSON, nil
		case ".md":
			return reporter.FormatMarkdown, nil
		case ".html", ".htm":
			return reporter.FormatHTML, nil
		case ".txt":
			return reporter.FormatConsole, nil
		default:
			return reporter.FormatXLSX, nil
		}
	}

	f := reporter.OutputFormat(strings.ToLower(format))
	if !f.IsValid() {
		return "", fmt.Errorf("invalid output format '%s'. Valid formats: xlsx, csv, json, console, markdown, html", format)
	}
	return f, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format reporter.OutputFormat, showMapping bool, ownerHeader string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = format
	config.IncludeMapping = showMapping
	if ownerHeader != "" {
		config.OwnerHeader = ownerHeader
	}

	switch format {
	case reporter.FormatConsole:
		config.IncludeUnmatched = true
		config.IncludeOwners = true
	case reporter.FormatJSON:
		config.IncludeUnmatched = true
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	}

	return config
}

// CreateLoggerConfig creates the logger configuration for the CLI
func CreateLoggerConfig(verbose bool, format string) *logger.Config {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.DebugConfig()
	} else {
		config.Level = logger.WarnLevel
	}
	if format != "" {
		config.Format = logger.Format(strings.ToLower(format))
	}
	return config
}
