// Package server exposes the match and slug engines over HTTP. Handlers are
// stateless: every request carries its own records.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadmatch/internal/model"
	"github.com/sells-group/leadmatch/internal/resolve"
	"github.com/sells-group/leadmatch/internal/slug"
)

const defaultMaxBodyBytes = 32 << 20

// Options configures the API.
type Options struct {
	Match          resolve.Config
	Merge          resolve.MergeOptions
	Slug           slug.Config
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// Server routes API requests to the engines.
type Server struct {
	opts   Options
	router chi.Router
}

// New builds a Server with its routes mounted.
func New(opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/match", s.handleMatch)
		r.Post("/slugs", s.handleSlugs)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// MatchRequest is the body of POST /v1/match.
type MatchRequest struct {
	Sources []model.BusinessRecord `json:"sources"`
	Pool    []model.BusinessRecord `json:"pool"`
	// Carry overrides the configured carry columns when non-nil.
	Carry []string `json:"carry,omitempty"`
}

// MatchResponse is the body returned by POST /v1/match.
type MatchResponse struct {
	Decisions []model.Decision    `json:"decisions"`
	Counts    model.TierCounts    `json:"counts"`
	Updates   []model.FieldUpdate `json:"updates"`
}

// SlugsRequest is the body of POST /v1/slugs.
type SlugsRequest struct {
	Records []model.BusinessRecord `json:"records"`
	// Seen lists slugs already in use outside this batch.
	Seen []string `json:"seen,omitempty"`
}

// SlugsResponse is the body returned by POST /v1/slugs.
type SlugsResponse struct {
	Records    []model.BusinessRecord `json:"records"`
	Changes    []slug.Change          `json:"changes"`
	Duplicates int                    `json:"duplicates"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	matcher := resolve.NewMatcher(s.opts.Match)
	decisions, counts := matcher.Resolve(req.Sources, resolve.NewPool(req.Pool))

	mergeOpts := s.opts.Merge
	if req.Carry != nil {
		mergeOpts.Carry = req.Carry
	}
	updates := resolve.PlanMerge(decisions, mergeOpts)

	if decisions == nil {
		decisions = []model.Decision{}
	}
	if updates == nil {
		updates = []model.FieldUpdate{}
	}
	writeJSON(w, http.StatusOK, MatchResponse{Decisions: decisions, Counts: counts, Updates: updates})
}

func (s *Server) handleSlugs(w http.ResponseWriter, r *http.Request) {
	var req SlugsRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	records := req.Records
	if records == nil {
		records = []model.BusinessRecord{}
	}
	changes, err := slug.NewAssigner(s.opts.Slug).Assign(records, slug.NewSeen(req.Seen...))
	if err != nil {
		if eris.Is(err, slug.ErrSlugCollisionExhausted) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		zap.L().Error("server: assign slugs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "slug assignment failed")
		return
	}
	if changes == nil {
		changes = []slug.Change{}
	}

	writeJSON(w, http.StatusOK, SlugsResponse{
		Records:    records,
		Changes:    changes,
		Duplicates: slug.Duplicates(records),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return eris.Wrap(err, "server: decode body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
