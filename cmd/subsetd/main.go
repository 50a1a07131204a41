package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/hydromet/imerg-subset-service/internal/adapter/archive"
	httpadapter "github.com/hydromet/imerg-subset-service/internal/adapter/http"
	kafkaadapter "github.com/hydromet/imerg-subset-service/internal/adapter/kafka"
	"github.com/hydromet/imerg-subset-service/internal/config"
	"github.com/hydromet/imerg-subset-service/internal/extract"
	"github.com/hydromet/imerg-subset-service/internal/observability"
	"github.com/hydromet/imerg-subset-service/internal/pipeline"
	"github.com/hydromet/imerg-subset-service/internal/quota"
)

// readiness reports ready once the user store has been opened.
type readiness struct {
	ledger *quota.Ledger
}

func (r readiness) CheckReadiness(_ context.Context) error {
	if r.ledger == nil {
		return errors.New("user store not loaded")
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Optional usage-event publishing (feature-flagged via KAFKA_BROKERS).
	var usageWriter *kafkaadapter.UsageWriter
	ledgerOpts := []quota.Option{}
	if cfg.UsageEventsEnabled() {
		usageWriter = kafkaadapter.NewUsageWriter(cfg.KafkaBrokers, cfg.UsageTopic, logger, metrics)
		ledgerOpts = append(ledgerOpts, quota.WithRecorder(usageWriter))
		logger.Info("usage events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.UsageTopic)
	} else {
		logger.Info("usage events disabled")
	}

	ledger, err := quota.Open(cfg.UserDBPath, logger, ledgerOpts...)
	if err != nil {
		logger.Error("failed to open user store", "path", cfg.UserDBPath, "error", err)
		os.Exit(1)
	}

	client := archive.NewClient(cfg.ArchiveBaseURL, cfg.EarthdataToken, cfg.DownloadDir, cfg.FetchTimeout, logger, metrics)
	orch := pipeline.NewOrchestrator(client, cfg.MaxParallel, logger, metrics)
	engine := extract.NewEngine(logger, metrics)
	svc := pipeline.NewService(ledger, orch, engine, cfg.OutputDir, logger, metrics)

	// Admin endpoints require ADMIN_SECRET; without it they stay disabled.
	var authority *quota.AdminAuthority
	if cfg.AdminSecret != "" {
		authority = quota.NewAdminAuthority([]byte(cfg.AdminSecret), cfg.AdminTokenTTL, clockwork.NewRealClock())
	} else {
		logger.Info("admin endpoints disabled, ADMIN_SECRET not set")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ledger, authority, readiness{ledger: ledger}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if usageWriter != nil {
		if err := usageWriter.Close(); err != nil {
			logger.Error("usage writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
