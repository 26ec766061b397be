// Command support-server serves the issue report API and the mail gateway
// over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birdwatch-support/internal/bootstrap"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/observability"
	emailreconcile "birdwatch-support/internal/workers/communication/email-reconcile"
	emailsend "birdwatch-support/internal/workers/communication/email-send"
	submit "birdwatch-support/internal/workers/support/submit-issue-report"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (defaults to configs/config.yaml)")
	gatewayOnly := flag.Bool("gateway-only", false, "serve only the mail gateway")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting support server",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.Bool("gatewayOnly", *gatewayOnly),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.App, cfg.Tracing)
	if err != nil {
		zapLog.Fatal("Failed to initialise tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLog.Warn("Tracing shutdown failed", zap.Error(err))
		}
	}()

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	infra, err := bootstrap.Connect(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to connect to backing stores", zap.Error(err))
	}
	defer infra.Close()

	gateway, err := bootstrap.NewGateway(ctx, cfg, infra, log)
	if err != nil {
		zapLog.Fatal("Failed to build mail gateway", zap.Error(err))
	}

	opts := routerOptions{
		ServiceName:    cfg.App.Name,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gateway:        emailsend.NewHTTPHandler(gateway, cfg.Gateway.APIKey, log),
		Ready:          infra.Ping,
		Logger:         log,
	}

	if !*gatewayOnly {
		resolver := bootstrap.NewResolver(cfg)
		pipeline, err := bootstrap.NewPipeline(cfg, infra, bootstrap.NewMailer(cfg, gateway), resolver, obs, log)
		if err != nil {
			zapLog.Fatal("Failed to build issue pipeline", zap.Error(err))
		}
		var searcher submit.IssueSearcher
		if pipeline.Index != nil {
			searcher = pipeline.Index
		}
		opts.Issues = submit.NewHTTPHandler(pipeline.Service, resolver, searcher, log)
	}

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Without a workflow engine the server reconciles the queue itself.
	if !config.IsWorkerEnabled(cfg, emailreconcile.TaskType) || cfg.Camunda.BrokerAddress == "" {
		go bootstrap.ReconcileLoop(ctx, gateway, config.GetDuration(cfg.Support.Reconcile.PollInterval), log)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      newRouter(opts),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutting down support server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Support server stopped")
}
