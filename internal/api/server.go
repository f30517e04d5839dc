package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/config"
	"github.com/JakeFAU/employee-directory/internal/directory"
	"github.com/JakeFAU/employee-directory/internal/logging"
	"github.com/JakeFAU/employee-directory/internal/metrics"
	"github.com/JakeFAU/employee-directory/internal/perf"
)

// RunStarter starts streamed performance runs; *perf.Reporter satisfies it.
type RunStarter interface {
	Start(ctx context.Context, total int) (*perf.Run, error)
}

// Server wires HTTP handlers to the record store, search service and reporter.
type Server struct {
	router   chi.Router
	store    directory.RecordStore
	searcher directory.Searcher
	runs     RunStarter
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The request
// timeout applies to every route except the performance stream, which may
// legitimately run for minutes.
func NewServer(
	store directory.RecordStore,
	searcher directory.Searcher,
	runs RunStarter,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	metrics.Init()
	s := &Server{
		store:    store,
		searcher: searcher,
		runs:     runs,
		cfg:      cfg,
		logger:   logging.OrNop(logger).Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Run-ID"},
		AllowCredentials: true,
	}))

	r.Get("/performance/search", s.performanceSearch)

	r.Group(func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(timeoutMiddleware(cfg.Server.RequestTimeout))
		}
		r.Get("/", s.root)
		r.Get("/health", s.health)
		r.Get("/readyz", s.readyz)
		r.Get("/db-test", s.dbTest)
		r.Get("/db-stats", s.dbStats)
		// Path used by existing frontend clients.
		r.Get("/sqlalchemy-test", s.dbStats)
		r.Get("/search/john-smith", s.searchJohnSmith)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Employee Directory API is running"})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "backend"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err), zap.String("request_id", requestID(r.Context())))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// dbTest reports connectivity in the body; it answers 200 even when the
// database is down so the frontend can show the message.
func (s *Server) dbTest(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("database test failed", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "error",
			"message": "Database connection failed: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "connected",
		"message": "Database connection successful",
	})
}

type dbStatsResponse struct {
	Status         string                    `json:"status"`
	Message        string                    `json:"message"`
	TotalEmployees int64                     `json:"total_employees"`
	SampleEmployee *directory.EmployeeRecord `json:"sample_employee"`
}

func (s *Server) dbStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("database stats failed", zap.Error(err), zap.String("request_id", requestID(r.Context())))
		writeError(w, http.StatusInternalServerError, "Database error occurred while reading directory stats")
		return
	}
	writeJSON(w, http.StatusOK, dbStatsResponse{
		Status:         "connected",
		Message:        "Directory query successful",
		TotalEmployees: stats.TotalEmployees,
		SampleEmployee: stats.SampleEmployee,
	})
}

func (s *Server) searchJohnSmith(w http.ResponseWriter, r *http.Request) {
	result, err := s.searcher.SearchFixedName(r.Context())
	if err != nil {
		s.logger.Error("search endpoint failed", zap.Error(err), zap.String("request_id", requestID(r.Context())))
		msg := "An unexpected error occurred while processing your request"
		if errors.Is(err, directory.ErrDataAccess) {
			msg = "Database error occurred while searching for employees"
		}
		writeError(w, http.StatusInternalServerError, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
