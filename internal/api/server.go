// Package api provides the bdoc REST API server.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/bdoc/core/errors"
	"github.com/FocuswithJustin/bdoc/core/reconcile"
	"github.com/FocuswithJustin/bdoc/internal/config"
	"github.com/FocuswithJustin/bdoc/internal/logging"
	"github.com/FocuswithJustin/bdoc/internal/store"
)

// Version is reported by /health. The CLI overrides it at build time.
var Version = "dev"

// Server serves documents from a store.
type Server struct {
	cfg      config.ServerConfig
	opts     reconcile.Options
	store    *store.Store
	hub      *Hub
	upgrader websocket.Upgrader
	started  time.Time
}

// New creates a server for st. The hub is not running until ListenAndServe
// (or Hub().Run) is called; events broadcast before that are queued.
func New(cfg *config.Config, st *store.Store) *Server {
	return &Server{
		cfg:      cfg.Server,
		opts:     cfg.ReconcileOptions(),
		store:    st,
		hub:      NewHub(),
		upgrader: newUpgrader(cfg.Server.AllowedOrigins),
		started:  time.Now(),
	}
}

// Hub returns the server's websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the router with its middleware chain, outermost first:
// request logging, panic recovery, CORS, rate limiting, authentication,
// security headers and the body size cap.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(logging.CombinedMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(s.cfg.AllowedOrigins))
	if s.cfg.RateLimitRequests > 0 {
		rl := NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: s.cfg.RateLimitRequests,
			BurstSize:         s.cfg.RateLimitBurst,
		})
		r.Use(rl.Middleware)
	}
	r.Use(AuthMiddleware(s.cfg.APIKey))
	r.Use(SecurityHeaders)
	r.Use(MaxBodyMiddleware(s.cfg.MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path)
	})

	r.Get("/health", s.handleHealth)
	r.Post("/convert", s.handleConvert)
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleListDocuments)
		r.Post("/", s.handlePutDocument)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Post("/changes", s.handleApplyChanges)
			r.Post("/merge", s.handleMerge)
			r.Get("/history", s.handleHistory)
		})
	})
	r.Get("/ws", s.handleWebSocket)
	return r
}

// ListenAndServe runs the hub and serves until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	tlsEnabled := s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != ""

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		if tlsEnabled {
			errc <- srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	protocol, wsProtocol := "http", "ws"
	if tlsEnabled {
		protocol, wsProtocol = "https", "wss"
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"websocket_protocol", wsProtocol,
		"auth", s.cfg.APIKey != "",
		"rate_limit_per_minute", s.cfg.RateLimitRequests)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Info("shutting down", "reason", ctx.Err())
		return srv.Shutdown(shutdownCtx)
	}
}
