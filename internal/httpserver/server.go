package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"profitcruiser/internal/auth"
	"profitcruiser/internal/payment"
	"profitcruiser/internal/shop"
)

// Deps are the collaborators the HTTP layer exposes.
type Deps struct {
	Logger  *slog.Logger
	Auth    *auth.Service
	Shop    *shop.Service
	Webhook http.Handler
	Crypto  *payment.Client
}

// Server wraps the storefront API behind a plain http.Server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds the router and the server around it.
func New(addr string, deps Deps) *Server {
	h := &handler{
		logger: deps.Logger.With("component", "http"),
		auth:   deps.Auth,
		shop:   deps.Shop,
		crypto: deps.Crypto,
	}

	r := chi.NewRouter()
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Get("/auth/me", h.me)

		r.Get("/payments/providers", h.listProviders)
		r.Get("/crypto/prices", h.cryptoPrices)

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)

		r.Method(http.MethodPost, "/nowpayments/webhook", deps.Webhook)

		r.Get("/chats", h.listChats)

		r.Get("/scripts", h.listScripts)
		r.Get("/scripts/visibility", h.scriptVisibility)

		r.Post("/views/{slug}", h.recordView)
		r.Get("/views", h.views)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)

			r.Get("/overview", h.adminOverview)
			r.Patch("/settings", h.updateSettings)

			r.Get("/scripts", h.adminScripts)
			r.Post("/scripts", h.createScript)
			r.Patch("/scripts/{slug}", h.updateScript)
			r.Delete("/scripts/{slug}", h.deleteScript)
			r.Patch("/scripts/{slug}/visibility", h.setScriptVisibility)

			r.Get("/robux-settings", h.robuxSettings)
			r.Patch("/robux-settings", h.updateRobuxSettings)

			r.Get("/chats", h.adminChats)
			r.Get("/chats/{id}", h.adminChat)
			r.Patch("/chats/{id}", h.setChatStatus)
			r.Post("/chats/{id}/messages", h.postAdminMessage)
		})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: deps.Logger.With("component", "httpserver"),
	}
}

// Start blocks until the listener fails or the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start).String(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
