// Package api serves the matching engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/product-match/internal/matching"
	"github.com/sells-group/product-match/internal/model"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 20

// Options configures the HTTP handler.
type Options struct {
	// Catalog is used when a request does not carry its own.
	Catalog []model.CatalogProduct
	// Defaults are the options applied when a request names no profile and
	// no explicit options.
	Defaults model.MatchingOptions
	// Research allows requests to ask for research enhancement.
	Research bool
	// Metrics serves GET /metrics when set.
	Metrics     http.Handler
	CORSOrigins []string
}

// Server holds the engine and request defaults.
type Server struct {
	engine *matching.Engine
	opts   Options
}

// NewServer creates a server over engine.
func NewServer(engine *matching.Engine, opts Options) *Server {
	if len(opts.Defaults.Strategies) == 0 {
		opts.Defaults = matching.DefaultOptions()
	}
	return &Server{engine: engine, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/match", s.handleMatch)
		r.Post("/match/batch", s.handleBatch)
		r.Get("/stats", s.handleStats)
		r.Delete("/stats", s.handleResetStats)
		r.Get("/profiles", s.handleProfiles)
		r.Get("/strategies", s.handleStrategies)
	})
	return r
}

// matchRequest is the body of POST /v1/match.
type matchRequest struct {
	Product model.CompetitorProduct `json:"product"`
	Catalog []model.CatalogProduct  `json:"catalog,omitempty"`
	Profile string                  `json:"profile,omitempty"`
	Options *model.MatchingOptions  `json:"options,omitempty"`
	Enhance bool                    `json:"enhance,omitempty"`
}

// batchRequest is the body of POST /v1/match/batch.
type batchRequest struct {
	Products []model.CompetitorProduct `json:"products"`
	Catalog  []model.CatalogProduct    `json:"catalog,omitempty"`
	Profile  string                    `json:"profile,omitempty"`
	Options  *model.MatchingOptions    `json:"options,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"catalog":    len(s.opts.Catalog),
		"strategies": s.engine.Strategies(),
	})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}
	catalog, opts, ok := s.resolve(w, req.Catalog, req.Profile, req.Options)
	if !ok {
		return
	}

	resp, err := s.engine.Match(r.Context(), req.Product, catalog, opts)
	if err != nil {
		writeMatchError(w, err, resp)
		return
	}
	if req.Enhance && s.opts.Research && matching.NeedsResearch(resp) {
		if enhanced, err := s.engine.Enhance(r.Context(), resp, catalog, opts); err == nil {
			resp = enhanced
		}
	}
	writeJSON(w, http.StatusOK, withoutEvidence(resp))
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Products) == 0 {
		writeError(w, http.StatusBadRequest, "products is required")
		return
	}
	catalog, opts, ok := s.resolve(w, req.Catalog, req.Profile, req.Options)
	if !ok {
		return
	}

	result, err := s.engine.MatchBatch(r.Context(), req.Products, catalog, opts)
	if err != nil && result == nil {
		writeMatchError(w, err, nil)
		return
	}
	for i := range result.Items {
		result.Items[i].Response = withoutEvidence(result.Items[i].Response)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleResetStats(w http.ResponseWriter, _ *http.Request) {
	s.engine.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]model.MatchingOptions)
	for _, name := range matching.ProfileNames() {
		opts, err := matching.ProfileOptions(name)
		if err != nil {
			continue
		}
		out[name] = opts
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	type strategyInfo struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Range       model.Range `json:"confidence_range"`
	}
	names := s.engine.Strategies()
	out := make([]strategyInfo, 0, len(names))
	for _, name := range names {
		st := s.engine.Strategy(name)
		out = append(out, strategyInfo{Name: st.Name(), Description: st.Description(), Range: st.ConfidenceRange()})
	}
	writeJSON(w, http.StatusOK, out)
}

// resolve picks the catalog and options for a request. Explicit options win
// over a profile name, which wins over the server defaults.
func (s *Server) resolve(w http.ResponseWriter, catalog []model.CatalogProduct, profile string, opts *model.MatchingOptions) ([]model.CatalogProduct, model.MatchingOptions, bool) {
	if len(catalog) == 0 {
		catalog = s.opts.Catalog
	}

	resolved := s.opts.Defaults
	switch {
	case opts != nil:
		resolved = opts.WithDefaults()
	case profile != "":
		p, err := matching.ProfileOptions(profile)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, resolved, false
		}
		resolved = p
	}
	return catalog, resolved, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeMatchError(w http.ResponseWriter, err error, resp *model.MatchingResponse) {
	var inputErr *matching.InputValidationError
	var optsErr *matching.OptionsError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "response": withoutEvidence(resp)})
	case errors.As(err, &optsErr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("api: match failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "match failed")
	}
}

// withoutEvidence drops raw strategy candidates from a response copy.
func withoutEvidence(resp *model.MatchingResponse) *model.MatchingResponse {
	if resp == nil || len(resp.Evidence) == 0 {
		return resp
	}
	c := *resp
	c.Evidence = nil
	return &c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request at debug level with its chi request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
