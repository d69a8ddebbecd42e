// Package httpapi exposes the attribution service over HTTP.
//
// Routes:
//
//	GET  /healthz          liveness probe
//	POST /v1/attributions  attribute a sales table against a reference table
//
// The attribution request body is JSON with two tables, each either
// {"columns": [...], "rows": [[...]]} or an array of flat objects:
//
//	{"reference": [{"Vendedor": "Carlos", "Cliente": "Tech Solutions"}],
//	 "sales": [{"Data Aprovação": "2024-01-01", "Clientes": "tech solucoes", "Valor Total": 100}]}
//
// The response is the report in the format named by the "format" query
// parameter (json by default).
package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sales-attribution-service/internal/attributor"
	"sales-attribution-service/internal/models"
	"sales-attribution-service/internal/parsers"
	"sales-attribution-service/internal/reporter"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// DefaultMaxBodyBytes caps the size of an attribution request
const DefaultMaxBodyBytes = 32 << 20

// Options configures the HTTP handler
type Options struct {
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	OwnerHeader    string
}

// DefaultOptions returns the default handler options
func DefaultOptions() Options {
	return Options{
		MaxBodyBytes:   DefaultMaxBodyBytes,
		RequestTimeout: 2 * time.Minute,
		OwnerHeader:    reporter.DefaultOwnerHeader,
	}
}

// AttributionRequest is the body of POST /v1/attributions
type AttributionRequest struct {
	Reference   json.RawMessage `json:"reference"`
	Sales       json.RawMessage `json:"sales"`
	ShowMapping bool            `json:"show_mapping,omitempty"`
}

// ErrorResponse is the body returned for failed requests
type ErrorResponse struct {
	Error *errors.AppError `json:"error"`
}

// Server routes HTTP requests to the attribution service
type Server struct {
	router  *chi.Mux
	service *attributor.Service
	options Options
	logger  logger.Logger
}

// NewServer creates the router and registers all routes
func NewServer(service *attributor.Service, options Options, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if options.MaxBodyBytes <= 0 {
		options.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if options.OwnerHeader == "" {
		options.OwnerHeader = reporter.DefaultOwnerHeader
	}

	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		options: options,
		logger:  log.WithComponent("http"),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	if options.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(options.RequestTimeout))
	}

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/v1/attributions", s.handleAttribution)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleAttribution(w http.ResponseWriter, r *http.Request) {
	format := reporter.FormatJSON
	if f := r.URL.Query().Get("format"); f != "" {
		format = reporter.OutputFormat(f)
		if !format.IsValid() {
			s.writeError(w, r, errors.New(errors.CategoryConfiguration, errors.CodeInvalidConfig,
				fmt.Sprintf("unsupported report format %q", f)).
				WithSuggestion("use one of xlsx, csv, json, console, markdown, html"))
			return
		}
	}

	var req AttributionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.options.MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errors.ParseError(errors.CodeInvalidFormat, "request body", err.Error(), err).
			WithSuggestion("send a JSON object with reference and sales tables"))
		return
	}

	reference, err := decodeTable("reference", req.Reference)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sales, err := decodeTable("sales", req.Sales)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.service.RunTables(r.Context(), reference, sales)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	config := reporter.DefaultReportConfig()
	config.Format = format
	config.OwnerHeader = s.options.OwnerHeader
	config.IncludeMapping = req.ShowMapping
	generator, err := reporter.NewReportGenerator(config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body bytes.Buffer
	if err := generator.GenerateReport(result.Report, &body); err != nil {
		s.writeError(w, r, errors.InternalError(errors.CodeUnexpectedError, "report_generation", err))
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	if format == reporter.FormatXLSX {
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", reporter.DefaultOutputPath(format)))
	}
	w.Header().Set("X-Run-ID", result.RunID)
	w.WriteHeader(http.StatusOK)
	w.Write(body.Bytes())
}

func decodeTable(name string, raw json.RawMessage) (*models.RawTable, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New(errors.CategoryParse, errors.CodeEmptyTable,
			fmt.Sprintf("the %s table is required", name)).
			WithSuggestion(fmt.Sprintf(`add a "%s" field with {"columns": [...], "rows": [...]} or an array of objects`, name))
	}
	table, err := parsers.DecodeJSONTable(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, name, err.Error(), err).
			WithSuggestion(`tables are {"columns": [...], "rows": [[...]]} or an array of flat objects`)
	}
	return table, nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.InternalError(errors.CodeUnexpectedError, "attribution", err)
	}

	status := statusFor(appErr)
	log := s.logger.WithFields(logger.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"category":   appErr.Category,
		"code":       appErr.Code,
		"status":     status,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: appErr})
}

// statusFor maps error categories to HTTP status codes
func statusFor(err *errors.AppError) int {
	switch err.Category {
	case errors.CategoryParse, errors.CategoryConfiguration, errors.CategoryFile:
		return http.StatusBadRequest
	case errors.CategoryReference, errors.CategorySchema:
		return http.StatusUnprocessableEntity
	case errors.CategoryAttribution:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func contentType(format reporter.OutputFormat) string {
	switch format {
	case reporter.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case reporter.FormatCSV:
		return "text/csv; charset=utf-8"
	case reporter.FormatJSON:
		return "application/json"
	case reporter.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case reporter.FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// requestLogger logs each request through the service logger
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logger.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		}).Info("Request handled")
	})
}
