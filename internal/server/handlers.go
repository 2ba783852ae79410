// Package server provides HTTP handlers and server setup for the TimeFlow completion proxy.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tidwall/gjson"

	"timeflow/config"
	"timeflow/internal/core"
	"timeflow/internal/observability"
)

// HandlerConfig holds the per-request policy of the completion handler
type HandlerConfig struct {
	DefaultModel    string
	UpstreamTimeout time.Duration
	// BodySizeLimit bounds the request body after decompression
	BodySizeLimit int64
	Metrics         *observability.Metrics
	Logger          *slog.Logger
}

// Handler holds the HTTP handlers
type Handler struct {
	provider        core.CompletionProvider
	defaultModel    string
	upstreamTimeout time.Duration
	bodySizeLimit   int64
	metrics         *observability.Metrics
	logger          *slog.Logger
}

// NewHandler creates a new handler with the given provider
func NewHandler(provider core.CompletionProvider, cfg HandlerConfig) *Handler {
	h := &Handler{
		provider:        provider,
		defaultModel:    cfg.DefaultModel,
		upstreamTimeout: cfg.UpstreamTimeout,
		bodySizeLimit:   cfg.BodySizeLimit,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}
	if h.defaultModel == "" {
		h.defaultModel = config.DefaultModel
	}
	if h.upstreamTimeout <= 0 {
		h.upstreamTimeout = config.DefaultUpstreamTimeout
	}
	if h.bodySizeLimit <= 0 {
		h.bodySizeLimit = config.DefaultBodySizeLimit
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Completion handles POST on the completion path
//
// @Summary      Generate a day-planning reply
// @Description  Verifies the caller's ID token, forwards the prompt to the completion provider and relays its reply.
// @Tags         completion
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      core.CompletionRequest  true  "Prompt and optional model"
// @Success      200      {object}  core.CompletionResponse
// @Failure      400      {object}  ErrorBody
// @Failure      401      {object}  ErrorBody
// @Failure      500      {object}  ErrorBody
// @Router       / [post]
func (h *Handler) Completion(c echo.Context) error {
	ctx := c.Request().Context()
	requestID := core.GetRequestID(ctx)

	req, err := decodeCompletionRequest(c.Request(), h.bodySizeLimit)
	if err != nil {
		var proxyErr *core.ProxyError
		if errors.As(err, &proxyErr) {
			h.logger.Warn("invalid request body", "error", proxyErr.Error(), "request_id", requestID)
			h.metrics.ObserveRequest(observability.OutcomeBadRequest)
			return writeError(c, proxyErr)
		}
		return err
	}

	model := req.Model
	if model == "" {
		model = h.defaultModel
	}

	upstreamCtx, cancel := context.WithTimeout(ctx, h.upstreamTimeout)
	defer cancel()

	start := time.Now()
	completion, err := h.provider.Complete(upstreamCtx, model, core.BuildMessages(req.Prompt))
	elapsed := time.Since(start)
	h.metrics.ObserveUpstream(model, err == nil, elapsed)

	attrs := []any{"model", model, "request_id", requestID, "upstream_latency", elapsed.String()}
	if id := core.GetIdentity(ctx); id != nil {
		attrs = append(attrs, "uid", id.UID)
	}

	if err != nil {
		var proxyErr *core.ProxyError
		if !errors.As(err, &proxyErr) || proxyErr.Type != core.ErrorTypeUpstream {
			proxyErr = core.NewUpstreamError("", err.Error(), err)
		}
		h.logger.Error("completion failed", append(attrs, "error", err)...)
		h.metrics.ObserveRequest(observability.OutcomeUpstreamError)
		return writeError(c, proxyErr)
	}

	if completion.Model != "" && completion.Model != model {
		attrs = append(attrs, "upstream_model", completion.Model)
	}
	if len(completion.Usage) > 0 {
		attrs = append(attrs, "total_tokens", gjson.GetBytes(completion.Usage, "total_tokens").Int())
	}
	h.logger.Info("completion served", attrs...)
	h.metrics.ObserveRequest(observability.OutcomeOK)

	return c.JSON(http.StatusOK, core.CompletionResponse{
		Content: completion.Text,
		Usage:   completion.Usage,
	})
}

// Health handles GET /health
//
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Error string `json:"error" example:"Unauthorized"`
}

// writeError renders a proxy error with its public message only
func writeError(c echo.Context, err *core.ProxyError) error {
	return c.JSON(err.HTTPStatusCode(), err.ToJSON())
}
