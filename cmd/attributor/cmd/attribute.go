package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sales-attribution-service/cmd/attributor/config"
	"sales-attribution-service/internal/attributor"
	"sales-attribution-service/internal/matcher"
	"sales-attribution-service/internal/reporter"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// settings holds the attribute command's resolved flag values
var settings config.Settings

// attributeCmd represents the attribute command
var attributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Attribute sales rows to salespeople",
	Long: `Attribute reads a reference sheet and a sales sheet and writes the sales
table with a salesperson column added.

The reference sheet holds one or more "Vendedor | Cliente" column pairs side by
side. The sales sheet must have a date column ("Data Aprovação"), a client
column ("Clientes") and an amount column ("Valor Total"); similar headers are
recognized too.

Rows whose client is blank get MISSING_SUBJECT; rows whose client matches no
reference client closely enough get NOT_FOUND.

Examples:
  # Consolidated workbook (Relatorio_Vendas_Consolidado.xlsx)
  attributor attribute -r vendedores.xlsx -s vendas.xlsx

  # Choose the sheets and the output file
  attributor attribute -r base.xlsx --reference-sheet Base -s vendas.xlsx --sheet Janeiro \
    -o janeiro.xlsx

  # Summary on the terminal, with the consolidated reference map
  attributor attribute -r vendedores.xlsx -s vendas.csv -f console --show-mapping

  # Stricter matching and custom header keywords
  attributor attribute -r ref.xlsx -s vendas.xlsx --preset strict --rules rules.yaml

  # Explicit threshold
  attributor attribute -r ref.xlsx -s vendas.xlsx --threshold 0.8`,

	PreRunE: validateAttributeFlags,
	RunE:    runAttribute,
}

func init() {
	rootCmd.AddCommand(attributeCmd)

	flags := attributeCmd.Flags()

	// Required flags
	flags.StringP("reference-file", "r", "", "path to the salesperson/client reference sheet (required)")
	flags.StringP("sales-file", "s", "", "path to the sales sheet (required)")

	// Input flags
	flags.String("reference-sheet", "", "reference workbook sheet (default: first sheet)")
	flags.String("sheet", "", "sales workbook sheet (default: first sheet)")
	flags.String("delimiter", "", "CSV delimiter (default: detected)")
	flags.String("rules", "", "YAML file with header keyword rules")

	// Matching flags
	flags.String("preset", matcher.PresetDefault, "matching preset: default (0.70), strict (0.85) or relaxed (0.60)")
	flags.Float64("threshold", 0, "minimum similarity for approximate matches (0.0-1.0], overrides the preset")
	flags.Int("workers", 0, "attribution goroutines (0 = one per CPU)")
	flags.String("scorer", "gestalt", "similarity function: gestalt or levenshtein")

	// Output flags
	flags.StringP("output-format", "f", "", "output format: xlsx, csv, json, console, markdown, html (default: from output file, else xlsx)")
	flags.StringP("output-file", "o", "", "output file path (default: Relatorio_Vendas_Consolidado.<ext>, stdout for text formats)")
	flags.String("owner-header", reporter.DefaultOwnerHeader, "header of the salesperson column")
	flags.Bool("show-mapping", false, "include the consolidated reference map in the report")

	// UI flags
	flags.Bool("progress", false, "show progress indicators")

	attributeCmd.MarkFlagRequired("reference-file")
	attributeCmd.MarkFlagRequired("sales-file")

	for _, name := range []string{
		"reference-file", "sales-file", "reference-sheet", "sheet", "delimiter", "rules",
		"preset", "threshold", "workers", "scorer", "output-format", "output-file", "owner-header",
		"show-mapping", "progress",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

// loadSettings reads the command settings from viper, which layers flags over
// environment variables and the config file
func loadSettings() config.Settings {
	return config.Settings{
		ReferenceFile:  viper.GetString("reference-file"),
		SalesFile:      viper.GetString("sales-file"),
		OutputFile:     viper.GetString("output-file"),
		OutputFormat:   viper.GetString("output-format"),
		Preset:         viper.GetString("preset"),
		Threshold:      viper.GetFloat64("threshold"),
		Workers:        viper.GetInt("workers"),
		Scorer:         viper.GetString("scorer"),
		RulesFile:      viper.GetString("rules"),
		ReferenceSheet: viper.GetString("reference-sheet"),
		SalesSheet:     viper.GetString("sheet"),
		Delimiter:      viper.GetString("delimiter"),
		OwnerHeader:    viper.GetString("owner-header"),
		ShowMapping:    viper.GetBool("show-mapping"),
		Progress:       viper.GetBool("progress"),
	}
}

func validateAttributeFlags(cmd *cobra.Command, args []string) error {
	settings = loadSettings()

	if settings.ReferenceFile == "" {
		return fmt.Errorf("reference-file is required")
	}
	if settings.SalesFile == "" {
		return fmt.Errorf("sales-file is required")
	}

	if err := validateFileExists(settings.ReferenceFile, "reference file"); err != nil {
		return err
	}
	if err := validateFileExists(settings.SalesFile, "sales file"); err != nil {
		return err
	}

	if _, err := config.ResolveOutputFormat(settings.OutputFormat, settings.OutputFile); err != nil {
		return err
	}

	if _, err := matcher.PresetConfig(settings.Preset); err != nil {
		return err
	}
	if settings.Threshold < 0.0 || settings.Threshold > 1.0 {
		return fmt.Errorf("threshold must be between 0.0 and 1.0 (0 keeps the preset), got %.2f", settings.Threshold)
	}
	if settings.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}

	if settings.OutputFile != "" {
		dir := filepath.Dir(settings.OutputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("input", description)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runAttribute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stderr := cmd.ErrOrStderr()
	if settings.Progress || viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "Reference file: %s\n", settings.ReferenceFile)
		fmt.Fprintf(stderr, "Sales file: %s\n", settings.SalesFile)
	}

	attributorConfig, err := config.CreateAttributorConfig(settings)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "attribute", err.Error(), err)
	}

	service, err := attributor.NewService(attributorConfig, logger.GetGlobalLogger())
	if err != nil {
		return err
	}

	if settings.Progress {
		service.AddProgressCallback(progressPrinter(stderr))
	}

	result, err := service.Run(ctx, attributor.Request{
		ReferenceFile: settings.ReferenceFile,
		SalesFile:     settings.SalesFile,
	})
	if settings.Progress {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	path, err := writeReport(cmd.OutOrStdout(), result.Report, settings)
	if err != nil {
		return err
	}

	s := result.Report.Summary
	fmt.Fprintf(stderr, "%d rows attributed: %d exact, %d approximate, %d not found, %d without client\n",
		s.Stages.TotalRows, s.Stages.Exact, s.Stages.Approximate, s.Stages.NotFound, s.Stages.MissingSubject)
	if path != "" {
		fmt.Fprintf(stderr, "Report written to %s\n", path)
	}
	if viper.GetBool("verbose") {
		fmt.Fprintf(stderr, "Run ID: %s\nProcessing time: %v\n", result.RunID, result.Duration)
	}

	return nil
}

// writeReport writes the report to a file, or to stdout for text formats
// when no output file was given. It returns the file written, if any.
func writeReport(stdout io.Writer, report *reporter.Report, s config.Settings) (string, error) {
	format, err := config.ResolveOutputFormat(s.OutputFormat, s.OutputFile)
	if err != nil {
		return "", err
	}

	generator, err := reporter.NewSafeReportGenerator(
		config.CreateReportConfig(format, s.ShowMapping, s.OwnerHeader),
		logger.GetGlobalLogger(),
	)
	if err != nil {
		return "", err
	}

	if s.OutputFile == "" && !format.IsBinary() {
		return "", generator.GenerateReportSafely(report, stdout)
	}
	return generator.WriteFile(report, s.OutputFile)
}

func progressPrinter(w io.Writer) attributor.ProgressCallback {
	return func(p attributor.Progress) {
		if p.TotalRows > 0 && p.Step == attributor.StepAttribute {
			fmt.Fprintf(w, "\r[%d/%d] %s: %d/%d rows (%.1f%% complete)",
				p.CompletedSteps, p.TotalSteps, p.Step, p.RowsProcessed, p.TotalRows, p.PercentComplete)
			return
		}
		fmt.Fprintf(w, "\r[%d/%d] %s (%.1f%% complete)          ",
			p.CompletedSteps, p.TotalSteps, p.Step, p.PercentComplete)
	}
}
