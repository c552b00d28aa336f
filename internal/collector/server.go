// Package collector receives forwarded record batches and keeps them
// in SQLite.
package collector

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jfmyers9/listenlog/internal/metrics"
)

const (
	// MaxBatchBytes bounds one submitted batch.
	MaxBatchBytes = 32 << 20

	defaultListLimit = 50
	maxListLimit     = 500
)

// Server is the collector HTTP API.
type Server struct {
	store  *Store
	token  string
	now    func() time.Time
	logger zerolog.Logger
}

// NewServer creates a Server. A non-empty token requires submitters to
// send it as a bearer token.
func NewServer(store *Store, token string, logger zerolog.Logger) *Server {
	return &Server{
		store:  store,
		token:  token,
		now:    time.Now,
		logger: logger.With().Str("component", "collector").Logger(),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/submit/*", s.handleSubmit)
		r.Get("/batches", s.handleList)
		r.Get("/batches/{id}", s.handleGet)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("collector listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info().Msg("collector shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type submitResponse struct {
	ID        int64  `json:"id,omitempty"`
	BatchID   string `json:"batch_id"`
	Records   int    `json:"records"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	endpoint := "submit/" + strings.Trim(chi.URLParam(r, "*"), "/")
	if endpoint == "submit/" {
		writeProblem(w, http.StatusNotFound, "unknown endpoint", "submit requires an endpoint name", nil)
		return
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(http.MaxBytesReader(w, r.Body, MaxBatchBytes)); err != nil {
		writeProblem(w, http.StatusRequestEntityTooLarge, "batch too large", err.Error(), nil)
		return
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body.Bytes(), &records); err != nil || records == nil {
		writeProblem(w, http.StatusBadRequest, "invalid batch", "body must be a JSON array of records", nil)
		return
	}

	logger := s.logger.With().Str("endpoint", endpoint).Int("records", len(records)).Logger()
	if header := r.Header.Get("X-Record-Count"); header != "" && header != strconv.Itoa(len(records)) {
		logger.Warn().Str("header", header).Msg("record count header does not match body")
	}

	batchID := r.Header.Get("X-Batch-ID")
	if batchID == "" {
		batchID = uuid.NewString()
	}

	id, err := s.store.Add(r.Context(), Batch{
		BatchID:     batchID,
		Endpoint:    endpoint,
		RecordCount: len(records),
		Payload:     body.Bytes(),
		ReceivedAt:  s.now(),
	})
	switch {
	case errors.Is(err, ErrDuplicateBatch):
		logger.Info().Str("batch_id", batchID).Msg("duplicate batch ignored")
		writeJSON(w, http.StatusOK, submitResponse{BatchID: batchID, Records: len(records), Duplicate: true})
		return
	case err != nil:
		logger.Error().Err(err).Msg("failed to store batch")
		writeProblem(w, http.StatusInternalServerError, "storage failure", "batch could not be stored", nil)
		return
	}

	metrics.RecordCollectorBatch(endpoint, len(records))
	logger.Info().Int64("id", id).Str("batch_id", batchID).Msg("batch stored")
	writeJSON(w, http.StatusCreated, submitResponse{ID: id, BatchID: batchID, Records: len(records)})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeProblem(w, http.StatusBadRequest, "invalid limit", "limit must be a positive integer", map[string][]string{"limit": {v}})
			return
		}
		limit = min(n, maxListLimit)
	}
	withPayload, _ := strconv.ParseBool(q.Get("payload"))

	batches, err := s.store.List(r.Context(), q.Get("endpoint"), limit, withPayload)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list batches")
		writeProblem(w, http.StatusInternalServerError, "storage failure", "batches could not be listed", nil)
		return
	}
	if batches == nil {
		batches = []Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid id", "id must be an integer", nil)
		return
	}

	b, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		writeProblem(w, http.StatusNotFound, "not found", err.Error(), nil)
	case err != nil:
		s.logger.Error().Err(err).Int64("id", id).Msg("failed to load batch")
		writeProblem(w, http.StatusInternalServerError, "storage failure", "batch could not be loaded", nil)
	default:
		writeJSON(w, http.StatusOK, b)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load stats")
		writeProblem(w, http.StatusInternalServerError, "storage failure", "stats could not be loaded", nil)
		return
	}
	if stats == nil {
		stats = []EndpointStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "not ready", "database not reachable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	want := []byte("Bearer " + s.token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
			writeProblem(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
