package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:3000"

// Status is the pipeline state reported by /api/health.
type Status struct {
	State   string
	Records uint64
}

// StatusFunc reports the current pipeline status. It must be safe to call
// from any goroutine.
type StatusFunc func() Status

// Server provides a read-only HTTP API over the live chart state.
type Server struct {
	addr      string
	snapshots *SnapshotHolder
	status    StatusFunc
	metrics   http.Handler
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. metrics may be nil to disable /metrics.
func NewServer(addr string, snapshots *SnapshotHolder, status StatusFunc, metrics http.Handler) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if status == nil {
		status = func() Status { return Status{State: "unknown"} }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		snapshots: snapshots,
		status:    status,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/snapshot", s.handleSnapshot)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("httpserver: serve failed", "addr", s.addr, "error", err)
		}
	}()
	return nil
}

// Addr returns the active listen address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.status()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.startTime).String(),
		"state":   st.State,
		"records": st.Records,
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, ok := s.snapshots.Latest()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, snap)
}
