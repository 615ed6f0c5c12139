package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/akolanti/docqa/internal/adapter/utils"
	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/internal/handlers"
	"github.com/akolanti/docqa/internal/middleware"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

type Server struct {
	http   *http.Server
	logger *logger_i.Logger
}

// NewRouter mounts every endpoint. Only /login, /health, /metrics and
// /swagger are reachable without a token.
func NewRouter(a *app.App, limiter *middleware.IPRateLimiter) *chi.Mux {
	h := handlers.New(a)
	mw := middleware.New(a.Tokens, limiter)

	r := utils.NewRouter()
	r.Get("/health", mw.WrapPublic(h.GetHandler))
	r.Post("/login", mw.WrapPublic(h.Login))

	r.Post("/chat", mw.Wrap(h.ChatHandler))
	r.Get("/chat/{id}", mw.Wrap(h.GetChatHandler))
	r.Post("/ingest", mw.Wrap(h.PostIngestHandler))
	r.Get("/ingest/{id}", mw.Wrap(h.GetIngestHandler))
	r.Get("/files", mw.Wrap(h.ListFilesHandler))
	r.Post("/files", mw.Wrap(h.UploadFileHandler))
	r.Delete("/files/{name}", mw.Wrap(h.DeleteFileHandler))
	r.Get("/status", mw.Wrap(h.GetStatusHandler))
	return r
}

func New(listenAddr string, a *app.App) *Server {
	return &Server{
		http: &http.Server{
			Addr:         listenAddr,
			Handler:      NewRouter(a, middleware.NewDefaultIPRateLimiter()),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		logger: logger_i.NewLogger("Server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server is listening at", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server crashed", "error", err, "addr", s.http.Addr)
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	s.logger.Info("Server is shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	s.http.SetKeepAlivesEnabled(false)
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Could not shutdown gracefully", "error", err)
		return err
	}
	s.logger.Info("Server stopped gracefully")
	return nil
}
