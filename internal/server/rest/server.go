// Package rest is the HTTP JSON surface of the server.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/auth"
	"github.com/dmitrijs2005/linkkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/linkkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxBodyBytes      = 1 << 20
)

// Pinger reports whether the storage backend answers. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	address     string
	accounts    *services.AccountService
	tokens      *auth.TokenManager
	db          Pinger
	metrics     *metrics.Metrics
	logger      logging.Logger
	corsOrigins []string

	handler http.Handler
}

func NewServer(address string, l logging.Logger, as *services.AccountService, tm *auth.TokenManager,
	db Pinger, m *metrics.Metrics, corsOrigins []string) *Server {
	s := &Server{
		address:     address,
		accounts:    as,
		tokens:      tm,
		db:          db,
		metrics:     m,
		logger:      l.With("module", "http_server"),
		corsOrigins: corsOrigins,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.observe)
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/link", s.handleLink)
			r.Delete("/link/{platform}", s.handleUnlink)
			r.Get("/profile", s.handleProfile)
			r.Get("/tokens", s.handleTokens)
			r.Get("/tokens/{platform}", s.handleToken)
			r.Put("/password", s.handleChangePassword)

			if s.accounts.RevocationEnabled() {
				r.Post("/logout", s.handleLogout)
			}
		})
	})

	return r
}

func (s *Server) corsOptions() cors.Options {
	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	credentials := true
	for _, o := range origins {
		if o == "*" {
			credentials = false
		}
	}

	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: credentials,
		MaxAge:           300,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener. It returns once the server and its
// shutdown goroutine have both stopped.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	err := srv.Serve(listen)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return err
	}

	<-done
	return nil
}
