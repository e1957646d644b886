package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/pkg/obs"
)

// Status reports the live pipeline position for /healthz.
type Status interface {
	Cursor() uint64
	InFlight() int64
}

type Health struct {
	Status   string `json:"status"`
	BootID   string `json:"boot_id"`
	Uptime   string `json:"uptime"`
	Cursor   uint64 `json:"cursor"`
	InFlight int64  `json:"in_flight"`
}

type Server struct {
	addr    string
	status  Status
	log     *zap.Logger
	started time.Time
}

// New builds the admin server. status may be nil for binaries that do not
// run a scheduler.
func New(addr string, status Status, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		addr:    addr,
		status:  status,
		log:     log.With(zap.String("component", "admin")),
		started: time.Now(),
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	h := Health{
		Status: "ok",
		BootID: obs.BootID(),
		Uptime: time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.status != nil {
		h.Cursor = s.status.Cursor()
		h.InFlight = s.status.InFlight()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}

// Serve listens on the configured address until ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
