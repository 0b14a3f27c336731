// Package server exposes aggregation and comparison over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/spice-tally/internal/certs"
	"github.com/Veraticus/spice-tally/internal/config"
	"github.com/Veraticus/spice-tally/internal/engine"
	"github.com/Veraticus/spice-tally/internal/profile"
	"github.com/Veraticus/spice-tally/internal/service"
)

const (
	httpXRequestID = "X-Request-Id"
	requestIDKey   = "request_id"
)

// FetcherFactory builds a mail source for per-request credentials.
type FetcherFactory func(server, username, password string) (service.MessageSource, error)

// Options wires the server to the rest of the application.
// Model, Fetcher, NewFetcher, Store and Certificates are optional;
// with Certificates the server speaks HTTPS.
type Options struct {
	Pattern       engine.Classifier
	Model         engine.Classifier
	Profiler      *profile.Profiler
	Fetcher       service.MessageSource
	NewFetcher    FetcherFactory
	Store         service.MessageStore
	Gatherer      prometheus.Gatherer
	Certificates  certs.Manager
	Logger        *slog.Logger
	EngineOptions []engine.Option
}

// Server is the HTTP API.
type Server struct {
	conf       config.ServerConfig
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server
}

// New creates a server. Pattern and Profiler are required.
func New(conf config.ServerConfig, opts Options) (*Server, error) {
	if opts.Pattern == nil {
		return nil, errors.New("pattern classifier is required")
	}
	if opts.Profiler == nil {
		return nil, errors.New("profiler is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		conf:   conf,
		opts:   opts,
		logger: opts.Logger,
	}, nil
}

// RequestID propagates or assigns the X-Request-Id header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(httpXRequestID)
		if requestID == "" {
			requestID = strings.ReplaceAll(uuid.New().String(), "-", "")
		}
		c.Set(requestIDKey, requestID)
		c.Header(httpXRequestID, requestID)
		c.Next()
	}
}

// Logger writes one access log line per request.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		logger.Log(c.Request.Context(), level, "http request",
			"request_id", c.GetString(requestIDKey),
			"ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(t))
	}
}

// Router builds the gin engine with every route.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Logger(s.logger))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	router.NoRoute(func(c *gin.Context) {
		s.writeError(c, http.StatusNotFound, errors.New("not found"))
	})

	apiV1 := router.Group("/api/v1")
	apiV1.POST("/aggregate", s.handleAggregate)
	apiV1.POST("/compare", s.handleCompare)
	apiV1.POST("/fetch-emails", s.handleFetchEmails)

	return router
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	s.httpServer = &http.Server{
		Addr:              s.conf.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.conf.ReadTimeout,
		WriteTimeout:      s.conf.WriteTimeout,
	}

	if s.opts.Certificates != nil {
		cert, err := s.opts.Certificates.GetOrCreateCertificate()
		if err != nil {
			return fmt.Errorf("failed to load tls certificate: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.conf.Addr, "tls", s.httpServer.TLSConfig != nil)
		if s.httpServer.TLSConfig != nil {
			errCh <- s.httpServer.ListenAndServeTLS("", "")
			return
		}
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.conf.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
	})
}
