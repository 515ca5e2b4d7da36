// Package server monta o roteador HTTP do gateway: CORS, health, request id,
// access log, métricas e a rota do chat protegida pelo controle de admissão.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	Addr          string
	AllowedOrigin string

	// Chat atende POST /api/chat.
	Chat http.Handler
	// Admission envolve só a rota do chat (rate limit, concorrência). Ordem: de fora para dentro.
	Admission []func(http.Handler) http.Handler

	Logger *zap.Logger
	// Registry, se não nil, recebe as métricas HTTP e é exposto em GET /metrics.
	Registry *prometheus.Registry
	Now      func() time.Time

	// WriteTimeout precisa ser maior que o timeout do upstream.
	WriteTimeout time.Duration
}

type Server struct {
	router *chi.Mux
	srv    *http.Server
	log    *zap.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 40 * time.Second
	}

	var httpMetrics *HTTPMetrics
	if opts.Registry != nil {
		httpMetrics = NewHTTPMetrics(opts.Registry)
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(opts.Logger, httpMetrics))
	r.Use(middleware.Recoverer)
	r.Use(CORS(opts.AllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})

	r.Get("/api/health", HealthHandler(opts.Now))
	if opts.Chat != nil {
		r.With(opts.Admission...).Post("/api/chat", opts.Chat.ServeHTTP)
	}
	if opts.Registry != nil {
		r.Get("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	s := &Server{router: r, log: opts.Logger}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       90 * time.Second,
	}
	return s
}

// Handler expõe o roteador (testes).
func (s *Server) Handler() http.Handler { return s.router }

// Start bloqueia até o servidor parar. Retorna http.ErrServerClosed após Shutdown.
func (s *Server) Start() error {
	s.log.Info("gateway listening", zap.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down gateway")
	return s.srv.Shutdown(ctx)
}

func formatStatus(code int) string { return strconv.Itoa(code) }
