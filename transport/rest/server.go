package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	idleTimeout     = 30 * time.Second
	handlerTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server exposes the controller status and a button simulator over HTTP.
type Server struct {
	logger *slog.Logger
	router *chi.Mux
}

func New(logger *slog.Logger, state stateSource, panel panelSource, buttons presser) *Server {
	log := logger.With("component", "rest")

	h := &handlers{
		logger:  log,
		state:   state,
		panel:   panel,
		buttons: buttons,
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(handlerTimeout))

	router.Get("/ping", NewPingHandler().PingHandler)
	router.Get("/state", h.getState)
	router.Get("/leds", h.getLEDs)
	router.Post("/buttons/{index}", h.pressButton)

	return &Server{
		logger: log,
		router: router,
	}
}

// Router exposes the handler for tests.
func (that *Server) Router() http.Handler {
	return that.router
}

// Start - serves on the port until the context is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		that.logger.Info("Starting HTTP server", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}
