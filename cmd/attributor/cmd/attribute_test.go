package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xuri/excelize/v2"

	"sales-attribution-service/cmd/attributor/config"
	"sales-attribution-service/internal/attributor"
	"sales-attribution-service/internal/reporter"
	"sales-attribution-service/pkg/errors"
)

const (
	referenceCSV = "Vendedor,Cliente,Vendedor,Cliente\n" +
		"Carlos,Tech Solutions,Ana,Acme\n" +
		"Bruno,Globex,,\n"

	salesCSV = "Obs,Data Aprovação,Clientes,Valor Total\n" +
		"a,2024-01-05,tech solucoes,100\n" +
		"b,2024-01-06,,50\n" +
		"c,2024-01-07,Umbrella,10\n" +
		"d,2024-01-08,ACME,\"1.000,00\"\n"
)

func writeFixtures(t *testing.T) (dir, reference, sales string) {
	t.Helper()
	dir = t.TempDir()
	reference = filepath.Join(dir, "vendedores.csv")
	sales = filepath.Join(dir, "vendas.csv")
	if err := os.WriteFile(reference, []byte(referenceCSV), 0644); err != nil {
		t.Fatalf("failed to create reference file: %v", err)
	}
	if err := os.WriteFile(sales, []byte(salesCSV), 0644); err != nil {
		t.Fatalf("failed to create sales file: %v", err)
	}
	return dir, reference, sales
}

func defaultSettings(reference, sales string) config.Settings {
	return config.Settings{
		ReferenceFile: reference,
		SalesFile:     sales,
		Threshold:     0.70,
		Scorer:        "gestalt",
		OwnerHeader:   reporter.DefaultOwnerHeader,
	}
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.csv")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		expectError bool
		notFound    bool
	}{
		{"valid file", validFile, false, false},
		{"empty path", "", true, false},
		{"non-existent file", filepath.Join(tmpDir, "missing.csv"), true, true},
		{"directory instead of file", tmpDir, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")

			if tt.expectError && err == nil {
				t.Fatal("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.notFound {
				appErr, ok := errors.AsAppError(err)
				if !ok || appErr.Code != errors.CodeFileNotFound {
					t.Errorf("expected file not found AppError, got %v", err)
				}
			}
		})
	}
}

func TestValidateAttributeFlags(t *testing.T) {
	dir, reference, sales := writeFixtures(t)

	tests := []struct {
		name        string
		setup       func()
		expectError string
	}{
		{
			name: "valid flags",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("threshold", 0.70)
			},
		},
		{
			name: "missing reference file",
			setup: func() {
				viper.Set("sales-file", sales)
				viper.Set("threshold", 0.70)
			},
			expectError: "reference-file is required",
		},
		{
			name: "missing sales file",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("threshold", 0.70)
			},
			expectError: "sales-file is required",
		},
		{
			name: "invalid output format",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("threshold", 0.70)
				viper.Set("output-format", "pdf")
			},
			expectError: "pdf",
		},
		{
			name: "zero threshold keeps preset",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("preset", "strict")
				viper.Set("threshold", 0.0)
			},
		},
		{
			name: "negative threshold",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("threshold", -0.5)
			},
			expectError: "threshold",
		},
		{
			name: "unknown preset",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("preset", "loose")
			},
			expectError: "unknown matching preset",
		},
		{
			name: "threshold above one",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("threshold", 1.5)
			},
			expectError: "threshold",
		},
		{
			name: "negative workers",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("threshold", 0.70)
				viper.Set("workers", -2)
			},
			expectError: "workers",
		},
		{
			name: "missing output directory",
			setup: func() {
				viper.Set("reference-file", reference)
				viper.Set("sales-file", sales)
				viper.Set("threshold", 0.70)
				viper.Set("output-file", filepath.Join(dir, "nope", "out.xlsx"))
			},
			expectError: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			tt.setup()

			err := validateAttributeFlags(&cobra.Command{}, nil)

			if tt.expectError == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if settings.ReferenceFile != reference || settings.SalesFile != sales {
					t.Errorf("settings not loaded from viper: %+v", settings)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.expectError)
			}
			if !strings.Contains(err.Error(), tt.expectError) {
				t.Errorf("expected error containing %q, got %v", tt.expectError, err)
			}
		})
	}
}

func newTestCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetContext(context.Background())
	return cmd, stdout, stderr
}

func TestRunAttributeJSONToStdout(t *testing.T) {
	_, reference, sales := writeFixtures(t)
	viper.Reset()
	defer viper.Reset()

	settings = defaultSettings(reference, sales)
	settings.OutputFormat = "json"

	cmd, stdout, stderr := newTestCommand()
	if err := runAttribute(cmd, nil); err != nil {
		t.Fatalf("runAttribute failed: %v", err)
	}

	var decoded struct {
		Summary struct {
			Stages struct {
				TotalRows      int `json:"total_rows"`
				NotFound       int `json:"not_found"`
				MissingSubject int `json:"missing_subject"`
			} `json:"stages"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if decoded.Summary.Stages.TotalRows != 4 {
		t.Errorf("expected 4 rows, got %d", decoded.Summary.Stages.TotalRows)
	}
	if decoded.Summary.Stages.NotFound != 1 || decoded.Summary.Stages.MissingSubject != 1 {
		t.Errorf("unexpected stage counts %+v", decoded.Summary.Stages)
	}

	if !strings.Contains(stderr.String(), "4 rows attributed") {
		t.Errorf("expected stage counts on stderr, got %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "Report written to") {
		t.Error("stdout output should not report a written file")
	}
}

func TestRunAttributeStrictPreset(t *testing.T) {
	_, reference, sales := writeFixtures(t)
	viper.Reset()
	defer viper.Reset()

	// "tech solucoes" scores about 0.81 against TECH SOLUTIONS: matched by
	// default, rejected by the strict preset.
	settings = defaultSettings(reference, sales)
	settings.Threshold = 0
	settings.Preset = "strict"
	settings.OutputFormat = "json"

	cmd, stdout, _ := newTestCommand()
	if err := runAttribute(cmd, nil); err != nil {
		t.Fatalf("runAttribute failed: %v", err)
	}

	var decoded struct {
		Summary struct {
			Stages struct {
				Exact    int `json:"exact"`
				NotFound int `json:"not_found"`
			} `json:"stages"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if decoded.Summary.Stages.NotFound != 2 || decoded.Summary.Stages.Exact != 1 {
		t.Errorf("expected 1 exact and 2 not found under strict preset, got %+v", decoded.Summary.Stages)
	}
}

func TestRunAttributeWorkbook(t *testing.T) {
	dir, reference, sales := writeFixtures(t)
	viper.Reset()
	defer viper.Reset()

	output := filepath.Join(dir, "consolidado.xlsx")
	settings = defaultSettings(reference, sales)
	settings.OutputFile = output
	settings.Progress = true

	cmd, _, stderr := newTestCommand()
	if err := runAttribute(cmd, nil); err != nil {
		t.Fatalf("runAttribute failed: %v", err)
	}

	if !strings.Contains(stderr.String(), "Report written to "+output) {
		t.Errorf("expected written path on stderr, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), attributor.StepCompleted) {
		t.Errorf("expected progress output, got %q", stderr.String())
	}

	f, err := excelize.OpenFile(output)
	if err != nil {
		t.Fatalf("failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(reporter.SheetConsolidated)
	if err != nil {
		t.Fatalf("failed to read consolidated sheet: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header plus 4 rows, got %d", len(rows))
	}
	want := []string{"Data Aprovação", "Clientes", "Valor Total", "Vendedor", "Obs"}
	for i, header := range want {
		if rows[0][i] != header {
			t.Errorf("header %d = %q, want %q", i, rows[0][i], header)
		}
	}
	owners := []string{"Carlos", "MISSING_SUBJECT", "NOT_FOUND", "Ana"}
	for i, owner := range owners {
		if rows[i+1][3] != owner {
			t.Errorf("row %d owner = %q, want %q", i+1, rows[i+1][3], owner)
		}
	}
}

func TestRunAttributeUnresolvedColumns(t *testing.T) {
	dir, reference, _ := writeFixtures(t)
	viper.Reset()
	defer viper.Reset()

	sales := filepath.Join(dir, "vendas_sem_valor.csv")
	if err := os.WriteFile(sales, []byte("Data Aprovação,Clientes\n2024-01-05,Acme\n"), 0644); err != nil {
		t.Fatalf("failed to create sales file: %v", err)
	}
	settings = defaultSettings(reference, sales)
	settings.OutputFormat = "console"

	cmd, stdout, _ := newTestCommand()
	err := runAttribute(cmd, nil)
	if err == nil {
		t.Fatal("expected unresolved column error")
	}
	if !stderrors.Is(err, errors.ErrUnresolvedRole) {
		t.Errorf("expected unresolved role error, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("no report expected, got %q", stdout.String())
	}

	var out bytes.Buffer
	if code := NewCLIErrorHandler(&out).HandleError(err); code != 5 {
		t.Errorf("expected exit code 5, got %d", code)
	}
	if !strings.Contains(out.String(), "Valor Total") {
		t.Errorf("expected missing column in message, got %q", out.String())
	}
}

func TestWriteReportConsole(t *testing.T) {
	_, reference, sales := writeFixtures(t)

	service, err := attributor.NewService(nil, nil)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	result, err := service.Run(context.Background(), attributor.Request{ReferenceFile: reference, SalesFile: sales})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	s := defaultSettings(reference, sales)
	s.OutputFormat = "console"
	s.ShowMapping = true

	var buf bytes.Buffer
	path, err := writeReport(&buf, result.Report, s)
	if err != nil {
		t.Fatalf("writeReport failed: %v", err)
	}
	if path != "" {
		t.Errorf("expected stdout output, got path %q", path)
	}
	for _, want := range []string{"SALES ATTRIBUTION REPORT", "TECH SOLUTIONS", "Total:          4"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("console report missing %q:\n%s", want, buf.String())
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	printer := progressPrinter(&buf)

	printer(attributor.Progress{Step: attributor.StepLoadSales, CompletedSteps: 2, TotalSteps: 6, PercentComplete: 33.3})
	if !strings.Contains(buf.String(), "[2/6] load sales (33.3% complete)") {
		t.Errorf("unexpected step output %q", buf.String())
	}

	buf.Reset()
	printer(attributor.Progress{Step: attributor.StepAttribute, CompletedSteps: 4, TotalSteps: 6,
		PercentComplete: 66.7, RowsProcessed: 50, TotalRows: 200})
	if !strings.Contains(buf.String(), "attribute rows: 50/200 rows") {
		t.Errorf("unexpected row output %q", buf.String())
	}
}

func TestCLIErrorHandlerExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{"nil", nil, 0, ""},
		{
			name:     "file not found",
			err:      errors.FileError(errors.CodeFileNotFound, "vendas.xlsx", os.ErrNotExist),
			wantCode: 2,
			wantText: "File error help",
		},
		{
			name:     "parse",
			err:      errors.ParseError(errors.CodeInvalidFormat, "vendas.xlsx", "corrupt workbook", nil),
			wantCode: 3,
			wantText: "Parse error help",
		},
		{
			name:     "configuration",
			err:      errors.ConfigurationError(errors.CodeInvalidConfig, "threshold", "2", nil),
			wantCode: 4,
			wantText: "Configuration error help",
		},
		{
			name:     "no reference pairs",
			err:      errors.NoReferencePairsError([]string{"Nome", "Cidade"}),
			wantCode: 5,
			wantText: "columns: Nome, Cidade",
		},
		{
			name:     "generic not exist",
			err:      fmt.Errorf("open x: %w", os.ErrNotExist),
			wantCode: 2,
			wantText: "File not found",
		},
		{
			name:     "generic",
			err:      fmt.Errorf("unknown flag: --bogus"),
			wantCode: 1,
			wantText: "unknown flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			code := NewCLIErrorHandler(&out).HandleError(tt.err)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.wantText) {
				t.Errorf("output missing %q:\n%s", tt.wantText, out.String())
			}
		})
	}
}

func TestAttributeCommandHelp(t *testing.T) {
	for _, flag := range []string{
		"reference-file", "sales-file", "reference-sheet", "sheet", "delimiter", "rules",
		"preset", "threshold", "workers", "scorer", "output-format", "output-file", "owner-header",
		"show-mapping", "progress",
	} {
		if attributeCmd.Flags().Lookup(flag) == nil {
			t.Errorf("attribute command is missing flag --%s", flag)
		}
	}
	for _, flag := range []string{"addr", "max-body", "request-timeout", "shutdown-timeout"} {
		if serveCmd.Flags().Lookup(flag) == nil {
			t.Errorf("serve command is missing flag --%s", flag)
		}
	}
}
