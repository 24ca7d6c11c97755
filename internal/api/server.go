// Package api serves company and segment results over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/cyberrisk/internal/aggregate"
	"github.com/sells-group/cyberrisk/internal/config"
	"github.com/sells-group/cyberrisk/internal/metrics"
	"github.com/sells-group/cyberrisk/internal/query"
)

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 1 << 20

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	query   *query.Service
	holder  *aggregate.Holder
	loader  aggregate.Loader
	metrics *metrics.Metrics
	cfg     config.ServerConfig
}

// New creates a Server. loader may be nil, in which case POST /index/reload
// answers 503.
func New(holder *aggregate.Holder, loader aggregate.Loader, m *metrics.Metrics, cfg config.ServerConfig) *Server {
	if m == nil {
		m = metrics.New()
	}
	m.IndexCompanies.Set(float64(holder.Load().Len()))
	return &Server{
		query:   query.NewService(holder),
		holder:  holder,
		loader:  loader,
		metrics: m,
		cfg:     cfg,
	}
}

// Routes returns the router with middleware and every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoverer)
	r.Use(s.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleWelcome)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimitRPS > 0 {
			r.Use(rateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))
		}
		// The static segment route wins over {company_id}; the store
		// rejects "segment" as a company id.
		r.Get("/results/segment", s.handleSegmentGet)
		r.Post("/results/segment", s.handleSegmentPost)
		r.Get("/results/{company_id}", s.handleCompany)
		r.Post("/index/reload", s.handleReload)
	})

	return r
}
