// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grimm-is/sniffagent/internal/logging"
)

// Server exposes the registry's scrape endpoint and a liveness probe over
// HTTP. A bind or listen failure is logged and otherwise non-fatal: the
// agent keeps sniffing and flushing counters even with no scrape target
// reachable.
type Server struct {
	addr   string
	http   *http.Server
	logger *logging.Logger
}

// NewServer builds a Server bound to addr (e.g. "127.0.0.1:10010") serving
// GET /metrics and GET /-/health on a gorilla/mux router.
func NewServer(addr string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/-/health", handleHealth).Methods("GET")

	return &Server{
		addr: addr,
		http: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger.WithComponent("metrics-server"),
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "health")
}

// Run starts serving in the background and blocks until ctx is cancelled,
// at which point it shuts the listener down gracefully. A listen failure
// is logged at Error level; it does not propagate to the caller.
func (s *Server) Run(ctx context.Context) {
	go func() {
		s.logger.Info("metrics server listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	if err := s.http.Shutdown(context.Background()); err != nil {
		s.logger.Error("metrics server shutdown error", "error", err)
	}
}
