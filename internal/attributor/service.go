// Package attributor runs a complete sales attribution.
//
// A run reads the reference and sales tables, folds the reference pairs into
// a client → salesperson map, resolves the sales columns, attributes every
// sales row and assembles the consolidated report. Missing reference pairs
// and unresolved sales columns stop the run before any row is attributed.
//
// Example usage:
//
//	service, err := attributor.NewService(attributor.DefaultConfig(), log)
//	service.AddProgressCallback(func(p attributor.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.Step)
//	})
//	result, err := service.Run(ctx, attributor.Request{
//		ReferenceFile: "vendedores.xlsx",
//		SalesFile:     "vendas.xlsx",
//	})
package attributor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sales-attribution-service/internal/mapping"
	"sales-attribution-service/internal/matcher"
	"sales-attribution-service/internal/models"
	"sales-attribution-service/internal/parsers"
	"sales-attribution-service/internal/reporter"
	"sales-attribution-service/internal/roles"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// Step names reported through progress callbacks
const (
	StepLoadReference = "load reference"
	StepBuildMapping  = "build mapping"
	StepLoadSales     = "load sales"
	StepResolveRoles  = "resolve roles"
	StepAttribute     = "attribute rows"
	StepSummarize     = "summarize"
	StepCompleted     = "completed"
)

// Request names the two input files of a run
type Request struct {
	ReferenceFile string `json:"reference_file"`
	SalesFile     string `json:"sales_file"`
}

// Validate validates the request
func (r Request) Validate() error {
	if r.ReferenceFile == "" {
		return fmt.Errorf("reference file path is required")
	}
	if r.SalesFile == "" {
		return fmt.Errorf("sales file path is required")
	}
	for _, path := range []string{r.ReferenceFile, r.SalesFile} {
		if _, ok := parsers.DetectFormat(path); !ok {
			return fmt.Errorf("unsupported file type: %s", path)
		}
	}
	return nil
}

// Result contains the complete outcome of a run
type Result struct {
	RunID          string                     `json:"run_id"`
	Reference      *mapping.Result            `json:"reference"`
	Roles          *roles.Resolution          `json:"roles"`
	Attributions   []models.AttributionResult `json:"attributions"`
	Report         *reporter.Report           `json:"report"`
	ReferenceStats *parsers.ParseStats        `json:"reference_stats,omitempty"`
	SalesStats     *parsers.ParseStats        `json:"sales_stats,omitempty"`
	Duration       time.Duration              `json:"duration"`
}

// Progress describes how far a run has come
type Progress struct {
	RunID              string        `json:"run_id"`
	Step               string        `json:"step"`
	CompletedSteps     int           `json:"completed_steps"`
	TotalSteps         int           `json:"total_steps"`
	PercentComplete    float64       `json:"percent_complete"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`

	// Row counters, set while rows are attributed
	RowsProcessed int64 `json:"rows_processed"`
	TotalRows     int64 `json:"total_rows"`
}

// ProgressCallback is called to report run progress
type ProgressCallback func(Progress)

// Service coordinates reading, mapping, resolution, attribution and reporting
type Service struct {
	config    *Config
	reference *parsers.Reader
	sales     *parsers.Reader
	mapper    *mapping.Builder
	resolver  *roles.Resolver
	logger    logger.Logger

	callbacksMu sync.RWMutex
	callbacks   []ProgressCallback
}

// NewService creates a new attribution service
func NewService(config *Config, log logger.Logger) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "attributor", err.Error(), err).
			WithSuggestion("check the matching, parsing and rules settings")
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	config = config.Clone()
	return &Service{
		config:    config,
		reference: parsers.NewReader(config.ReferenceParse, log),
		sales:     parsers.NewReader(config.SalesParse, log),
		mapper:    mapping.NewBuilder(config.Rules, log),
		resolver:  roles.NewResolver(config.Rules, log),
		logger:    log.WithComponent("attributor"),
	}, nil
}

// Config returns a copy of the service configuration
func (s *Service) Config() *Config {
	return s.config.Clone()
}

// AddProgressCallback adds a progress callback function
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Run reads both files and attributes every sales row.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "request", req, err).
			WithSuggestion("provide a reference file and a sales file (.xlsx, .xls, .csv or .json)")
	}

	r := s.newRun(6)
	op := logger.NewOperationLogger("attribution", s.logger).
		WithField("run_id", r.id).
		WithField("reference_file", req.ReferenceFile).
		WithField("sales_file", req.SalesFile)

	r.step(StepLoadReference)
	op.Step(StepLoadReference)
	reference, refStats, err := s.reference.Read(req.ReferenceFile)
	if err != nil {
		op.Error(err, "Failed to read reference file")
		return nil, err
	}

	r.step(StepBuildMapping)
	op.Step(StepBuildMapping)
	built, err := s.buildMapping(reference)
	if err != nil {
		op.Error(err, "Reference file has no salesperson/client column pair")
		return nil, err
	}

	r.step(StepLoadSales)
	op.Step(StepLoadSales)
	sales, salesStats, err := s.sales.Read(req.SalesFile)
	if err != nil {
		op.Error(err, "Failed to read sales file")
		return nil, err
	}
	s.logger.WithField("rows", sales.Len()).Info("Sales table loaded")

	result, err := s.attribute(ctx, r, op, built, sales)
	if err != nil {
		return nil, err
	}
	result.ReferenceStats = refStats
	result.SalesStats = salesStats
	return result, nil
}

// RunTables attributes sales rows against an already parsed reference table.
func (s *Service) RunTables(ctx context.Context, reference, sales *models.RawTable) (*Result, error) {
	if reference == nil || sales == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "run_tables",
			fmt.Errorf("reference and sales tables are required"))
	}

	r := s.newRun(4)
	op := logger.NewOperationLogger("attribution", s.logger).WithField("run_id", r.id)

	r.step(StepBuildMapping)
	op.Step(StepBuildMapping)
	built, err := s.buildMapping(reference)
	if err != nil {
		op.Error(err, "Reference table has no salesperson/client column pair")
		return nil, err
	}

	return s.attribute(ctx, r, op, built, sales)
}

func (s *Service) buildMapping(reference *models.RawTable) (*mapping.Result, error) {
	built, err := s.mapper.Build(reference)
	if err != nil {
		return nil, err
	}
	if len(built.Conflicts) > 0 {
		s.logger.WithField("conflicts", len(built.Conflicts)).
			Warn("Some clients appear under more than one salesperson")
	}
	return built, nil
}

// attribute runs the steps shared by Run and RunTables, starting at role
// resolution.
func (s *Service) attribute(ctx context.Context, r *run, op *logger.OperationLogger, built *mapping.Result, sales *models.RawTable) (*Result, error) {
	r.step(StepResolveRoles)
	op.Step(StepResolveRoles)
	resolution := s.resolver.Resolve(sales)
	if err := resolution.Err(sales.Columns); err != nil {
		op.Error(err, "Sales table is missing required columns")
		return nil, err
	}

	r.step(StepAttribute)
	op.Step(StepAttribute)
	matching := s.config.Matching.Clone()
	matching.OnProgress = r.rows
	engine, err := matcher.NewEngine(matching, built.Map, s.logger)
	if err != nil {
		op.Error(err, "Failed to create matching engine")
		return nil, err
	}
	results, err := engine.Attribute(ctx, sales, resolution.Assignment)
	if err != nil {
		op.Error(err, "Row attribution failed")
		return nil, err
	}

	r.step(StepSummarize)
	op.Step(StepSummarize)
	duration := time.Since(r.start)
	report := reporter.NewReport(reporter.Input{
		RunID:          r.id,
		Sales:          sales,
		Roles:          resolution.Assignment,
		Results:        results,
		Mapping:        built.Map,
		ReferencePairs: built.PairsFound,
		Duration:       duration,
	}, s.config.OwnerHeader)

	r.done()
	op.WithField("rows", len(results)).
		WithField("matched", report.Summary.Stages.Matched()).
		WithField("not_found", report.Summary.Stages.NotFound).
		WithField("missing_subject", report.Summary.Stages.MissingSubject).
		Success("Attribution completed")

	return &Result{
		RunID:        r.id,
		Reference:    built,
		Roles:        resolution,
		Attributions: results,
		Report:       report,
		Duration:     duration,
	}, nil
}

// run tracks the progress of one Run or RunTables call
type run struct {
	id        string
	start     time.Time
	total     int
	completed int
	current   Progress
	callbacks []ProgressCallback
	mu        sync.Mutex
}

func (s *Service) newRun(totalSteps int) *run {
	s.callbacksMu.RLock()
	callbacks := make([]ProgressCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.callbacksMu.RUnlock()

	return &run{
		id:        uuid.NewString(),
		start:     time.Now(),
		total:     totalSteps,
		completed: -1,
		callbacks: callbacks,
	}
}

// step starts the named step; the previous one counts as completed
func (r *run) step(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.current = r.progress(name)
	r.notify()
}

func (r *run) done() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = r.total
	r.current = r.progress(StepCompleted)
	r.notify()
}

// rows forwards matcher progress while the attribute step runs
func (r *run) rows(stats logger.ProgressStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.RowsProcessed = stats.Current
	r.current.TotalRows = stats.Total
	r.current.ElapsedTime = time.Since(r.start)
	r.notify()
}

func (r *run) progress(step string) Progress {
	elapsed := time.Since(r.start)
	p := Progress{
		RunID:           r.id,
		Step:            step,
		CompletedSteps:  r.completed,
		TotalSteps:      r.total,
		PercentComplete: float64(r.completed) / float64(r.total) * 100,
		ElapsedTime:     elapsed,
	}
	if r.completed > 0 && r.completed < r.total {
		avg := elapsed / time.Duration(r.completed)
		p.EstimatedRemaining = avg * time.Duration(r.total-r.completed)
	}
	return p
}

func (r *run) notify() {
	for _, callback := range r.callbacks {
		callback(r.current)
	}
}
