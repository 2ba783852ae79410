// Package main is the entry point for the TimeFlow completion proxy.
//
// @title                       TimeFlow API
// @version                     1.0
// @description                 Authenticated completion proxy for the TimeFlow day-planner.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Firebase ID token as "Bearer <token>"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	_ "timeflow/cmd/timeflow/docs"
	"timeflow/config"
	"timeflow/internal/identity"
	"timeflow/internal/logging"
	"timeflow/internal/observability"
	"timeflow/internal/providers/openai"
	"timeflow/internal/server"
	"timeflow/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration before the logger so log settings can come from it
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		slog.Error("invalid log settings", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	slog.Info("starting timeflow",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	verifier, err := identity.New(context.Background(), cfg.Identity)
	if err != nil {
		slog.Error("failed to initialize token verifier", "error", err)
		os.Exit(1)
	}
	slog.Info("token verification enabled", "type", cfg.Identity.Type)
	if cfg.Identity.Type == identity.TypeStatic {
		slog.Warn("SECURITY WARNING: static bearer tokens in use - do not run this mode in production")
	}

	provider := openai.New(cfg.Completion.APIKey, cfg.Completion.BaseURL)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			slog.Error("failed to register metrics", "error", err)
			os.Exit(1)
		}
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	srv := server.New(verifier, provider, &server.Config{
		Path:            cfg.Server.Path,
		DefaultModel:    cfg.Completion.DefaultModel,
		UpstreamTimeout: cfg.Completion.Timeout,
		BodySizeLimit:   cfg.Server.BodySizeLimitBytes,
		Metrics:         metrics,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		SwaggerEnabled:  cfg.Server.SwaggerEnabled,
		Logger:          logger,
	})

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server",
		"address", addr,
		"path", cfg.Server.Path,
		"default_model", cfg.Completion.DefaultModel,
	)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}
