package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	"veedor/internal/audit"
	"veedor/internal/domain"
	"veedor/internal/normalizer"
	"veedor/internal/platform/config"
	"veedor/internal/platform/httpserver"
	"veedor/internal/platform/logger"
	"veedor/internal/platform/metrics"
	"veedor/internal/publish"
	"veedor/internal/store"
)

// Exit codes are part of the contract: schedulers and operators branch on
// them, so each failure class gets its own.
const (
	exitOK              = 0
	exitChainFailed     = 10
	exitNormFailures    = 11
	exitNoRules         = 12
	exitConfigError     = 64
	exitOperationalFail = 1
)

// main wires high-level dependencies and runs one audit pass. Business logic
// lives in the internal packages.
func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.FromEnv()
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			return exitConfigError
		}
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		return exitOperationalFail
	}

	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ops := httpserver.New(cfg.OpsAddr, log)
	ops.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ops.Shutdown(shutdownCtx)
	}()

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		return exitOperationalFail
	}
	defer cleanup()

	norm := normalizer.New(cfg.FieldMap, normalizer.WithLogger(log))

	runner, err := audit.NewRunner(st, norm, cfg.Rules,
		audit.WithLogger(log),
		audit.WithMetrics(m),
		audit.WithWorkers(cfg.Workers),
	)
	if err != nil {
		log.Error("runner initialization failed", "error", err)
		return exitOperationalFail
	}

	report, err := runner.Run(ctx)
	if errors.Is(err, audit.ErrNoRulesEnabled) {
		log.Error("every rule is disabled, refusing to run a no-op audit")
		return exitNoRules
	}
	if err != nil {
		log.Error("audit run failed", "error", err)
		return exitOperationalFail
	}

	log.Info("audit run complete",
		"run_id", report.RunID,
		"snapshots", report.SnapshotCount,
		"alerts", len(report.Alerts),
		"normalization_failures", len(report.NormalizationFailures),
		"chain_failures", len(report.ChainFailures),
	)

	if err := export(ctx, cfg, log, report); err != nil {
		log.Error("export failed", "error", err)
		return exitOperationalFail
	}

	// ChainFailures carries integrity breaks only; store outages surfaced as
	// errors from Run and already exited operational above.
	switch {
	case len(report.ChainFailures) > 0:
		return exitChainFailed
	case len(report.NormalizationFailures) > 0:
		return exitNormFailures
	default:
		return exitOK
	}
}

// buildStore selects Postgres when a DSN is configured and the filesystem
// evidence layout otherwise.
func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.PostgresDSN != "" {
		pg, err := store.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return pg, func() { _ = pg.Close() }, nil
	}
	fs, err := store.NewFS(cfg.StorageRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("open evidence directory: %w", err)
	}
	return fs, func() {}, nil
}

// export pushes run outcomes to the optional external consumers. Failures
// here are operational, not audit findings.
func export(ctx context.Context, cfg config.Config, log *slog.Logger, report domain.AuditReport) error {
	if cfg.RedisAddr != "" && len(report.ChainTips) > 0 {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		exporter, err := publish.NewTipExporter(client, log)
		if err != nil {
			return err
		}
		if err := exporter.Export(ctx, report.ChainTips); err != nil {
			return err
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		opts := []publish.KafkaOption{publish.WithKafkaLogger(log)}
		if cfg.AlertTopic != "" {
			opts = append(opts, publish.WithAlertTopic(cfg.AlertTopic))
		}
		if cfg.ReportTopic != "" {
			opts = append(opts, publish.WithReportTopic(cfg.ReportTopic))
		}
		pub, err := publish.NewKafkaPublisher(cfg.KafkaBrokers, opts...)
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.PublishAlerts(ctx, report.Alerts); err != nil {
			return err
		}
		if err := pub.PublishReport(ctx, report); err != nil {
			return err
		}
	}
	return nil
}
