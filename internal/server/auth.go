package server

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"timeflow/internal/core"
	"timeflow/internal/observability"
)

const bearerPrefix = "Bearer "

// AuthMiddleware creates an Echo middleware that requires a bearer token
// and verifies it before the handler runs.
func AuthMiddleware(verifier core.TokenVerifier, metrics *observability.Metrics, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := core.GetRequestID(req.Context())

			authHeader := req.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				detail := "missing authorization header"
				if authHeader != "" {
					detail = "authorization header is not a bearer token"
				}
				logger.Warn("request rejected", "reason", detail, "request_id", requestID)
				metrics.ObserveRequest(observability.OutcomeUnauthorized)
				return writeError(c, core.NewMissingCredentialError(detail))
			}

			token := strings.TrimPrefix(authHeader, bearerPrefix)
			identity, err := verifier.Verify(req.Context(), token)
			if err != nil || identity == nil {
				proxyErr := core.NewInvalidCredentialError(err)
				logger.Warn("token verification failed", "error", proxyErr.Detail, "request_id", requestID)
				metrics.ObserveRequest(observability.OutcomeInvalidToken)
				return writeError(c, proxyErr)
			}

			c.SetRequest(req.WithContext(core.WithIdentity(req.Context(), identity)))
			return next(c)
		}
	}
}
