package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"timeflow/config"
	"timeflow/internal/core"
	"timeflow/internal/observability"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	Path            string        // Route of the completion endpoint (default: /)
	DefaultModel    string        // Model used when the caller names none (default: config.DefaultModel)
	UpstreamTimeout time.Duration // Deadline for one provider call (default: config.DefaultUpstreamTimeout)
	BodySizeLimit   int64         // Max request body size in bytes (default: 1MB)

	Metrics         *observability.Metrics // Optional request/upstream collectors
	MetricsEnabled  bool                   // Whether to expose the Prometheus endpoint
	MetricsEndpoint string                 // HTTP path for metrics endpoint (default: /metrics)
	Gatherer        prometheus.Gatherer    // Source for the metrics endpoint (default: prometheus.DefaultGatherer)

	SwaggerEnabled bool // Serve Swagger UI at /swagger/*

	Logger *slog.Logger // Defaults to slog.Default()
}

// New creates a new HTTP server around a token verifier and a completion provider.
func New(verifier core.TokenVerifier, provider core.CompletionProvider, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	completionPath := cfg.Path
	if completionPath == "" {
		completionPath = "/"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	bodySizeLimit := config.DefaultBodySizeLimit
	if cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}

	handler := NewHandler(provider, HandlerConfig{
		DefaultModel:    cfg.DefaultModel,
		UpstreamTimeout: cfg.UpstreamTimeout,
		BodySizeLimit:   bodySizeLimit,
		Metrics:         cfg.Metrics,
		Logger:          logger,
	})

	// Preflight is answered before routing, so no later middleware can reject it.
	e.Pre(CORSMiddleware())

	// Global middleware stack (order matters)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := core.WithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	e.Use(requestLogger(logger))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic recovered",
				"error", err,
				"request_id", core.GetRequestID(c.Request().Context()),
				"stack", string(stack),
			)
			return err
		},
	}))

	// Public routes
	e.GET("/health", handler.Health)

	if cfg.MetricsEnabled {
		gatherer := cfg.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET(metricsPath(cfg.MetricsEndpoint, completionPath), echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	if cfg.SwaggerEnabled {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	// Body limit runs after authentication so unauthenticated callers always see 401 first.
	e.POST(completionPath, handler.Completion,
		AuthMiddleware(verifier, cfg.Metrics, logger),
		middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)),
	)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// metricsPath normalizes the configured metrics path and keeps it off the API routes.
func metricsPath(endpoint, completionPath string) string {
	if endpoint == "" {
		return "/metrics"
	}
	p := path.Clean("/" + endpoint)
	if p == "/" || p == "/health" || p == completionPath {
		return "/metrics"
	}
	return p
}

// Start starts the HTTP server on the given address.
// The write timeout leaves room for the upstream deadline plus response encoding.
func (s *Server) Start(addr string) error {
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second
	s.echo.Server.WriteTimeout = s.handler.upstreamTimeout + 15*time.Second
	s.echo.Server.IdleTimeout = 90 * time.Second
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency.String(),
				"request_id", v.RequestID,
				"remote_ip", v.RemoteIP,
			}
			if id := core.GetIdentity(c.Request().Context()); id != nil {
				attrs = append(attrs, "uid", id.UID)
			}
			logger.Info("request", attrs...)
			return nil
		},
	})
}

// errorHandler renders errors that escape handlers (routing misses, body limits, panics)
// in the same {"error": "..."} shape as proxy errors.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var proxyErr *core.ProxyError
		if errors.As(err, &proxyErr) {
			_ = writeError(c, proxyErr)
			return
		}

		status := http.StatusInternalServerError
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
		}

		message := http.StatusText(status)
		if status >= http.StatusInternalServerError {
			logger.Error("unhandled error",
				"error", err,
				"request_id", core.GetRequestID(c.Request().Context()),
			)
			message = core.MessageInternalError
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, map[string]string{"error": message})
	}
}
