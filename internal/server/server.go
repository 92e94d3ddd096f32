// Package server exposes the feedback webhook and read-only views of the
// candidate store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/feedback"
	"github.com/sells-group/oem-scout/internal/metrics"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/pipeline"
	"github.com/sells-group/oem-scout/internal/store"
	"github.com/sells-group/oem-scout/internal/validate"
)

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
	defaultAudit    = 50
)

// Deps are the collaborators behind the HTTP handlers. Metrics, Tracker
// and Gatherer may be nil.
type Deps struct {
	Store    store.Store
	Learner  *feedback.Learner
	Tracker  *pipeline.Tracker
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server serves the feedback webhook.
type Server struct {
	cfg config.ServerConfig
	Deps
	now func() time.Time
}

// New creates a Server.
func New(cfg config.ServerConfig, d Deps) *Server {
	return &Server{cfg: cfg, Deps: d, now: time.Now}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/feedback", s.handleFeedback)
	r.Get("/feedback/summary", s.handleSummary)
	r.Get("/patterns", s.handlePatterns)
	r.Get("/audit", s.handleAudit)
	r.Get("/tracker", s.handleTracker)
	r.Post("/interactions", s.handleInteraction)

	r.Route("/candidates", func(r chi.Router) {
		r.Get("/", s.handleListCandidates)
		r.Get("/{id}", s.handleGetCandidate)
		r.Get("/{id}/review", s.handleReview)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			zap.L().Error("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// feedbackRequest accepts either free text ("relevant - good price") or an
// explicit sentiment with a reason.
type feedbackRequest struct {
	CandidateID string `json:"candidate_id"`
	Text        string `json:"text"`
	Sentiment   string `json:"sentiment"`
	Reason      string `json:"reason"`
}

func (req feedbackRequest) parse() (model.Sentiment, string, error) {
	if req.Text != "" {
		return feedback.ParseFeedback(req.Text)
	}
	sent, err := feedback.ParseSentiment(req.Sentiment)
	if err != nil {
		return "", "", err
	}
	reason := req.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	return sent, reason, nil
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CandidateID == "" {
		writeError(w, http.StatusBadRequest, "candidate_id is required")
		return
	}
	sent, reason, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := s.Store.GetCandidate(r.Context(), req.CandidateID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	n, err := s.Learner.RecordFeedback(r.Context(), req.CandidateID, sent, reason)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.Metrics.ObserveFeedback(sent)
	if s.Tracker != nil && sent.Learnable() {
		s.Tracker.RecordFeedback(sent == model.SentimentPositive, c.VendorName)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "recorded",
		"candidate_id": req.CandidateID,
		"vendor_name":  c.VendorName,
		"sentiment":    sent,
		"reason":       reason,
		"patterns":     n,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	st, err := s.Learner.Summary(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.Learner.LearnedPatterns(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if patterns == nil {
		patterns = []model.Pattern{}
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "limit", defaultAudit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.Store.ListValidationLogs(r.Context(), n)
	if err != nil {
		s.storeError(w, err)
		return
	}
	log := validate.NewAuditLog(max(len(entries), 1))
	for _, e := range entries {
		log.Add(e)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(log.Report(n)))
}

func (s *Server) handleTracker(w http.ResponseWriter, _ *http.Request) {
	if s.Tracker == nil {
		writeError(w, http.StatusNotFound, "no tracker in this process")
		return
	}
	points := s.Tracker.Points()
	writeJSON(w, http.StatusOK, map[string]any{
		"points": points,
		"grade":  pipeline.Grade(points),
		"stats":  s.Tracker.Stats(),
	})
}

type interactionRequest struct {
	VendorName string `json:"vendor_name"`
	Score      *int   `json:"score"`
	Response   string `json:"response"`
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VendorName == "" {
		writeError(w, http.StatusBadRequest, "vendor_name is required")
		return
	}
	if err := s.Store.RecordInteraction(r.Context(), req.VendorName, req.Score, req.Response, s.now()); err != nil {
		s.storeError(w, err)
		return
	}
	in, err := s.Store.GetInteraction(r.Context(), req.VendorName)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, in)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	minScore, err := intParam(r, "min_score", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.Store.ListCandidates(r.Context(), store.CandidateFilter{
		VendorName: r.URL.Query().Get("vendor"),
		MinScore:   minScore,
		Limit:      limit,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	if list == nil {
		list = []model.Candidate{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.GetCandidate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	text, err := s.Learner.RequestFeedback(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("server: store", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs one line per request at Debug, or Warn for 5xx.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if ww.Status() >= http.StatusInternalServerError {
			zap.L().Warn("http request", fields...)
			return
		}
		zap.L().Debug("http request", fields...)
	})
}
