// Package server exposes the latest build over HTTP for the rendering
// client: nested entries, per-title lookups, selection state and metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hurttlocker/holdings/internal/pipeline"
)

// Config holds settings for the data API server.
type Config struct {
	Addr   string
	Holder *pipeline.Holder
	Logger *zap.Logger
}

// Server serves the data API.
type Server struct {
	addr   string
	holder *pipeline.Holder
	log    *zap.Logger
	engine *gin.Engine
}

// New builds the router. It does not start listening.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{addr: cfg.Addr, holder: cfg.Holder, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog(), allowOrigin())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/entries", s.handleEntries)
	api.GET("/titles/:id", s.handleTitle)
	api.GET("/titles/:id/cluster", s.handleCluster)
	api.GET("/stats", s.handleStats)
	api.GET("/selection", s.handleGetSelection)
	api.PUT("/selection", s.handlePutSelection)
	api.POST("/selection/:id/toggle", s.handleToggle)
	api.POST("/rebuild", s.handleRebuild)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run listens on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("data API listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

func allowOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}
