package liveness

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Server answers the hosting platform's liveness probe.
type Server struct {
	srv *http.Server
}

func NewServer(port int) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort("0.0.0.0", strconv.Itoa(port)),
			Handler:           Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// Run serves until ctx is done, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("liveness endpoint listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("liveness server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("liveness server shutdown: %w", err)
	}

	log.Info().Msg("liveness endpoint stopped")
	return nil
}
