package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
)

const shutdownTimeout = 5 * time.Second

// StatusSource reports the runtime state served on /healthz.
type StatusSource interface {
	Active() []domain.EntityID
	Live() []domain.EntityID
}

type health struct {
	Status  string   `json:"status"`
	Tracked []string `json:"tracked"`
	Live    []string `json:"live"`
}

// NewHandler routes /metrics to the Prometheus registry and /healthz to a
// JSON summary of source.
func NewHandler(source StatusSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := health{Status: "ok", Tracked: []string{}, Live: []string{}}
		if source != nil {
			for _, id := range source.Active() {
				body.Tracked = append(body.Tracked, string(id))
			}
			for _, id := range source.Live() {
				body.Live = append(body.Live, string(id))
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	return r
}

// Serve listens on addr until ctx ends, then shuts the server down.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return ServeListener(ctx, listener, handler)
}

func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler) error {
	logger := log.WithComponent("http")
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	logger.Info().Str("addr", listener.Addr().String()).Msg("metrics server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown failed")
		return err
	}
	<-errCh

	return nil
}
