// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"birdwatch-support/internal/bootstrap"
	"birdwatch-support/internal/common/camunda"
	"birdwatch-support/internal/common/config"
	"birdwatch-support/internal/common/logger"
	"birdwatch-support/internal/common/observability"
	"birdwatch-support/pkg/registry"

	erc "birdwatch-support/internal/workers/communication/email-reconcile"
	es "birdwatch-support/internal/workers/communication/email-send"
	sir "birdwatch-support/internal/workers/support/submit-issue-report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.App, cfg.Tracing)
	if err != nil {
		zapLog.Fatal("tracing init failed", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = bootstrap.RetryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL, Redis and Elasticsearch with retry ---
	infra, err := bootstrap.Connect(ctx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("backing stores failed after retries", zap.Error(err))
	}
	defer infra.Close()

	gateway, err := bootstrap.NewGateway(ctx, cfg, infra, log)
	if err != nil {
		zapLog.Fatal("mail gateway setup failed", zap.Error(err))
	}
	pipeline, err := bootstrap.NewPipeline(cfg, infra, bootstrap.NewMailer(cfg, gateway), bootstrap.NewResolver(cfg), obs, log)
	if err != nil {
		zapLog.Fatal("issue pipeline setup failed", zap.Error(err))
	}

	activities := registry.Default()
	pool := camunda.NewPool(zeebe.GetClient(), zapLog)
	register := func(ws camunda.WorkerSpec) {
		if _, ok := activities.Find(ws.TaskType); !ok {
			zapLog.Warn("Task type missing from activity registry", zap.String("taskType", ws.TaskType))
		}
		pool.Open(ws)
	}

	// --- Support Workers ---
	submitHandler, err := sir.NewHandler(sir.HandlerOptions{
		AppConfig:    cfg,
		CustomConfig: pipeline.Config,
		Service:      pipeline.Service,
		Logger:       log,
	})
	if err != nil {
		zapLog.Fatal("submit-issue-report handler failed", zap.Error(err))
	}
	register(camunda.WorkerSpec{
		TaskType:      sir.TaskType,
		Enabled:       pipeline.Config.Enabled,
		MaxJobsActive: pipeline.Config.MaxJobsActive,
		Timeout:       pipeline.Config.Timeout,
		Handler:       submitHandler,
	})

	// --- Communication Workers ---
	sendCfg := es.ConfigFromApp(cfg)
	sendHandler, err := es.NewHandler(es.HandlerOptions{
		AppConfig:    cfg,
		CustomConfig: sendCfg,
		Service:      gateway,
		Logger:       log,
	})
	if err != nil {
		zapLog.Fatal("email-send handler failed", zap.Error(err))
	}
	register(camunda.WorkerSpec{
		TaskType:      es.TaskType,
		Enabled:       sendCfg.Enabled,
		MaxJobsActive: sendCfg.MaxJobsActive,
		Timeout:       sendCfg.Timeout,
		Handler:       sendHandler,
	})

	reconcileCfg := erc.ConfigFromApp(cfg)
	reconcileHandler, err := erc.NewHandler(erc.HandlerOptions{
		AppConfig:    cfg,
		CustomConfig: reconcileCfg,
		Reconciler:   gateway,
		Logger:       log,
	})
	if err != nil {
		zapLog.Fatal("email-queue-reconcile handler failed", zap.Error(err))
	}
	register(camunda.WorkerSpec{
		TaskType:      erc.TaskType,
		Enabled:       reconcileCfg.Enabled,
		MaxJobsActive: reconcileCfg.MaxJobsActive,
		Timeout:       reconcileCfg.Timeout,
		Handler:       reconcileHandler,
	})

	zapLog.Info("All workers registered", zap.Int("count", pool.Len()))

	// --- Health and metrics server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"workers": pool.Len(),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		readyCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]interface{}{"status": "ready"}
		if err := zeebe.HealthCheck(readyCtx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]interface{}{"status": "not ready", "error": err.Error()}
		} else if err := infra.Ping(readyCtx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]interface{}{"status": "not ready", "error": err.Error()}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
	mux.Handle("/metrics", promhttp.Handler())

	healthServer := &http.Server{Addr: cfg.Server.MetricsAddress, Handler: mux}
	go func() {
		zapLog.Info("Health server listening", zap.String("address", healthServer.Addr))
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("health server error", zap.Error(err))
		}
	}()

	// --- Wait for shutdown signal ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zapLog.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool.Stop(shutdownCtx)
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("health server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}
