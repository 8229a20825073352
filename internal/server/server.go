// Package server exposes report generation over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/overlapengine/internal/access"
	"github.com/dshills/overlapengine/internal/observability"
	"github.com/dshills/overlapengine/internal/pipeline"
	"github.com/dshills/overlapengine/internal/premise"
	"github.com/dshills/overlapengine/internal/style"
)

// Generator produces reports. *pipeline.Pipeline implements it.
type Generator interface {
	Generate(ctx context.Context, req premise.Request) (*pipeline.Result, error)
	Styles() *style.Registry
}

// DefaultUserHeader carries the caller identity checked by the access gate.
const DefaultUserHeader = "X-User-ID"

// Server routes HTTP requests to a Generator.
type Server struct {
	gen        Generator
	gate       access.Gate
	userHeader string
	version    string
	log        *zap.Logger
	metrics    *observability.Metrics
	gatherer   prometheus.Gatherer
	router     *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithGate sets the access gate. The default admits every caller.
func WithGate(g access.Gate) Option {
	return func(s *Server) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithUserHeader sets the header that carries the caller identity.
func WithUserHeader(h string) Option {
	return func(s *Server) {
		if h != "" {
			s.userHeader = h
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records request metrics into m and serves g on /metrics.
func WithMetrics(m *observability.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithVersion sets the version reported by /health and report envelopes.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New builds a Server with its routes registered.
func New(gen Generator, opts ...Option) *Server {
	s := &Server{
		gen:        gen,
		gate:       access.Unlimited{},
		userHeader: DefaultUserHeader,
		version:    "dev",
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())
	r.POST("/v1/report", s.handleReport)
	r.GET("/v1/styles", s.handleStyles)
	r.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe listens on addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve serves on ln until ctx ends, then shuts down gracefully, waiting at
// most shutdownTimeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
