package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/perf"
)

// performanceSearch streams a run as "data: <json>\n\n" frames, flushing
// after each one. Faults after the headers are sent travel in-band as an
// ErrorSummary frame.
func (s *Server) performanceSearch(w http.ResponseWriter, r *http.Request) {
	total, err := s.queryCount(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok || !streamable(w) {
		s.logger.Error("response writer cannot stream", zap.String("request_id", requestID(r.Context())))
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred during performance test")
		return
	}

	run, err := s.runs.Start(r.Context(), total)
	if err != nil {
		if errors.Is(err, perf.ErrInvalidQueryCount) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("queries must be between 1 and %d", s.cfg.Perf.MaxQueries))
			return
		}
		s.logger.Error("performance run failed to start", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred during performance test")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Run-ID", run.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for evt := range run.Events {
		if err := writeFrame(w, evt); err != nil {
			// The client is gone; the request context cancellation stops the
			// run and closes the channel, so keep draining.
			s.logger.Debug("performance frame write failed", zap.String("run_id", run.ID), zap.Error(err))
			continue
		}
		flusher.Flush()
	}
}

func (s *Server) queryCount(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("queries")
	if raw == "" {
		if s.cfg.Perf.DefaultQueries > 0 {
			return s.cfg.Perf.DefaultQueries, nil
		}
		return perf.DefaultQueries, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("queries must be a positive integer, got %q", raw)
	}
	return n, nil
}

func writeFrame(w http.ResponseWriter, evt perf.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// streamable reports whether the innermost writer supports flushing. The
// middleware wrappers always expose Flush, so their answer is not enough.
func streamable(w http.ResponseWriter) bool {
	for {
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			break
		}
		w = u.Unwrap()
	}
	_, ok := w.(http.Flusher)
	return ok
}
