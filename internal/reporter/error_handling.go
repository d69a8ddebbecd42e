package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with file handling and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// DefaultOutputPath returns the default report file name for the format
func DefaultOutputPath(format OutputFormat) string {
	return DefaultOutputBase + format.Extension()
}

// GenerateReportSafely writes report to writer, falling back to the console
// format when a structured format fails before anything was written.
func (srg *SafeReportGenerator) GenerateReportSafely(report *Report, writer io.Writer) error {
	if report == nil {
		return errors.InternalError(errors.CodeUnexpectedError, "report_generation", fmt.Errorf("report cannot be nil"))
	}
	if writer == nil {
		return errors.InternalError(errors.CodeUnexpectedError, "report_generation", fmt.Errorf("writer cannot be nil"))
	}

	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Info("Starting report generation")

	counter := &countingWriter{w: writer}
	err := srg.GenerateReport(report, counter)
	if err == nil {
		srg.logger.Info("Report generation completed successfully")
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")
	if counter.n > 0 || !srg.shouldAttemptFormatFallback(writer) {
		return srg.wrapGenerationError(err)
	}
	return srg.generateWithFormatFallback(report, writer, err)
}

// WriteFile writes report to path, or to the default file name when path is
// empty. When path cannot be created, the report goes to a backup file next
// to it, then to the system temp directory. It returns the path written.
func (srg *SafeReportGenerator) WriteFile(report *Report, path string) (string, error) {
	if path == "" {
		path = DefaultOutputPath(srg.config.Format)
	}

	err := srg.writeTo(report, path)
	if err == nil {
		srg.logger.WithField("output_file", path).Info("Report written")
		return path, nil
	}
	if !srg.isFileError(err) {
		return "", srg.wrapGenerationError(err)
	}

	for _, backup := range []string{srg.generateBackupPath(path), filepath.Join(os.TempDir(), filepath.Base(srg.generateBackupPath(path)))} {
		srg.logger.WithFields(logger.Fields{
			"original_file": path,
			"backup_file":   backup,
		}).Info("Attempting output fallback")

		if backupErr := srg.writeTo(report, backup); backupErr == nil {
			srg.logger.WithField("backup_file", backup).Warn("Report saved to backup location")
			return backup, nil
		}
	}

	return "", errors.FileError(errors.CodeFileWrite, path, err)
}

func (srg *SafeReportGenerator) writeTo(report *Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := srg.GenerateReport(report, file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

// shouldAttemptFormatFallback reports whether a console rendering can replace
// the requested format on this writer
func (srg *SafeReportGenerator) shouldAttemptFormatFallback(writer io.Writer) bool {
	if srg.config.Format == FormatConsole {
		return false
	}
	file, ok := writer.(*os.File)
	return ok && (file == os.Stdout || file == os.Stderr)
}

// generateWithFormatFallback renders the console format instead
func (srg *SafeReportGenerator) generateWithFormatFallback(report *Report, writer io.Writer, originalErr error) error {
	fallbackConfig := srg.config.Clone()
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(report, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	srg.logger.Info("Report generated successfully using format fallback")
	return nil
}

// isFileError checks if the error is file-related
func (srg *SafeReportGenerator) isFileError(err error) bool {
	return os.IsPermission(err) ||
		os.IsNotExist(err) ||
		os.IsExist(err) ||
		isSpaceError(err)
}

// generateBackupPath creates a backup file path
func (srg *SafeReportGenerator) generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("check the output destination and report format settings")
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
