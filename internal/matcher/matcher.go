package matcher

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"sales-attribution-service/internal/models"
	"sales-attribution-service/internal/normalize"
	"sales-attribution-service/internal/similarity"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// Engine attributes owners to sales rows against one reference map. An
// Engine is read-only after construction and safe for concurrent use.
type Engine struct {
	config  *Config
	scorer  similarity.Scorer
	mapping *models.SubjectOwnerMap
	keys    []string
	logger  logger.Logger
}

// NewEngine creates an engine for the given reference map
func NewEngine(config *Config, mapping *models.SubjectOwnerMap, log logger.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matcher", config.String(), err)
	}
	scorer, _ := similarity.ScorerByName(config.Scorer)

	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Engine{
		config:  config.Clone(),
		scorer:  scorer,
		mapping: mapping,
		keys:    mapping.Keys(),
		logger:  log.WithComponent("matcher"),
	}, nil
}

// Config returns a copy of the engine configuration
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// Attribute resolves an owner for every row of table. The result has one
// entry per row, in row order. The two preconditions (every role resolved
// and a non-empty reference map) are checked before any row is read.
func (e *Engine) Attribute(ctx context.Context, table *models.RawTable, roles models.ColumnRoleAssignment) ([]models.AttributionResult, error) {
	if missing := roles.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, r := range missing {
			names[i] = r.CanonicalHeader()
		}
		return nil, errors.UnresolvedRolesError(names, table.Columns)
	}
	if e.mapping.IsEmpty() {
		return nil, errors.New(errors.CategoryReference, errors.CodeEmptyReference,
			"reference map has no client keys").
			WithSuggestion("check that the reference client columns contain names")
	}

	subjectCol, _ := roles.Column(models.RoleSubject)
	n := table.Len()
	results := make([]models.AttributionResult, n)
	memo := newMemo()

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "attribute rows",
		Total:       int64(n),
		LogInterval: e.config.ProgressInterval,
		Logger:      e.logger,
		OnUpdate:    e.config.OnProgress,
	})

	workers := e.workerCount(n)
	e.logger.WithFields(logger.Fields{
		"rows":      n,
		"keys":      len(e.keys),
		"workers":   workers,
		"threshold": e.config.Threshold,
		"scorer":    e.scorer.Name(),
	}).Debug("Starting row attribution")

	g, gctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for start := 0; start < n; start += chunk {
		start := start // per-iteration copy; go 1.21 shares loop variables across iterations
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = e.attributeCell(i, table.Rows[i], cellAt(table.Rows[i], subjectCol), memo)
				progress.Increment()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryAttribution, errors.CodeCancelled, "row attribution cancelled").
			WithContext("processed", progress.GetStats().Current).
			WithContext("rows", n)
	}
	progress.Complete()

	return results, nil
}

// AttributeRow resolves the owner of a single row whose client name sits in
// subjectColumn.
func (e *Engine) AttributeRow(rowIndex int, row models.Row, subjectColumn int) models.AttributionResult {
	return e.attributeCell(rowIndex, row, cellAt(row, subjectColumn), nil)
}

func (e *Engine) attributeCell(rowIndex int, row models.Row, subject models.Cell, memo *memo) models.AttributionResult {
	result := models.AttributionResult{RowIndex: rowIndex, Row: row}

	if subject.IsMissing() {
		result.Owner = models.OwnerMissingSubject
		result.Stage = models.StageMissingSubject
		return result
	}

	query := normalize.Cell(subject)
	result.Query = query
	if query == "" {
		result.Owner = models.OwnerMissingSubject
		result.Stage = models.StageMissingSubject
		return result
	}

	if owner, ok := e.mapping.Lookup(query); ok {
		result.Owner = owner
		result.Stage = models.StageExact
		result.MatchedKey = query
		result.Score = 1.0
		return result
	}

	match, ok := e.bestMatch(query, memo)
	if !ok {
		result.Owner = models.OwnerNotFound
		result.Stage = models.StageNotFound
		return result
	}

	owner, _ := e.mapping.Lookup(match.Key)
	result.Owner = owner
	result.Stage = models.StageApproximate
	result.MatchedKey = match.Key
	result.Score = match.Score
	return result
}

func (e *Engine) bestMatch(query string, m *memo) (similarity.Match, bool) {
	if m != nil {
		if hit, ok := m.get(query); ok {
			return hit.match, hit.ok
		}
	}
	match, ok := similarity.BestMatch(query, e.keys, e.config.Threshold, e.scorer)
	if m != nil {
		m.put(query, memoEntry{match: match, ok: ok})
	}
	return match, ok
}

// workerCount bounds the configured workers so each gets MinRowsPerWorker rows
func (e *Engine) workerCount(rows int) int {
	workers := e.config.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	if per := e.config.MinRowsPerWorker; per > 0 {
		workers = min(workers, rows/per)
	}
	return max(workers, 1)
}

func cellAt(row models.Row, col int) models.Cell {
	if col < 0 || col >= len(row) {
		return models.Empty()
	}
	return row[col]
}

type memoEntry struct {
	match similarity.Match
	ok    bool
}

// memo caches approximate lookups for repeated client names within a run
type memo struct {
	mu      sync.RWMutex
	entries map[string]memoEntry
}

func newMemo() *memo {
	return &memo{entries: make(map[string]memoEntry)}
}

func (m *memo) get(query string) (memoEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[query]
	return entry, ok
}

func (m *memo) put(query string, entry memoEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[query] = entry
}
