package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	evidencestore "github.com/proofgate/proofgate/internal/adapter/outbound/evidence"
	"github.com/proofgate/proofgate/internal/adapter/outbound/memory"
	"github.com/proofgate/proofgate/internal/adapter/outbound/sqlite"
	"github.com/proofgate/proofgate/internal/config"
	"github.com/proofgate/proofgate/internal/domain/audit"
	"github.com/proofgate/proofgate/internal/domain/auth"
	"github.com/proofgate/proofgate/internal/metrics"
	"github.com/proofgate/proofgate/internal/registry"
	"github.com/proofgate/proofgate/internal/sandbox"
	"github.com/proofgate/proofgate/internal/service"
)

// pipeline bundles the wired components shared by run, serve, and
// replay. Stdout stays reserved for command output and the RPC stream;
// everything diagnostic goes to stderr.
type pipeline struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    audit.Store
	recorder *service.AuditService
	policies *service.PolicyService
	evidence *evidencestore.FileStore
	keyring  *auth.Keyring
	runner   *service.Runner

	traceShutdown func(context.Context) error
}

// newLogger builds the stderr text logger from the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
}

// parseLogLevel converts a string log level to slog.Level, defaulting
// to info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildPipeline wires the full run pipeline from configuration.
// The audit worker is started; callers must Close the pipeline.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	p := &pipeline{cfg: cfg, logger: logger}

	// Tracing has to be installed before NewRunner grabs its tracer.
	if cfg.Server.Trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		p.traceShutdown = tp.Shutdown
	}

	store, err := buildAuditStore(cfg)
	if err != nil {
		return nil, err
	}
	p.store = store

	flush := config.DurationOr(cfg.Audit.FlushInterval, time.Second)
	if flush <= 0 {
		flush = time.Second
	}
	p.recorder = service.NewAuditService(store, logger,
		service.WithChannelSize(cfg.Audit.ChannelSize),
		service.WithBatchSize(cfg.Audit.BatchSize),
		service.WithFlushInterval(flush),
		service.WithSendTimeout(config.DurationOr(cfg.Audit.SendTimeout, 100*time.Millisecond)),
		service.WithWarningThreshold(cfg.Audit.WarningThreshold),
	)
	p.recorder.Start(ctx)

	policies, err := service.NewPolicyService(cfg.Policy.Path, logger,
		service.WithCacheSize(cfg.Policy.CacheSize))
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("load policy: %w", err)
	}
	p.policies = policies

	evStore, err := evidencestore.NewFileStore(cfg.Evidence.Root)
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("open evidence store: %w", err)
	}
	p.evidence = evStore

	keyring, err := auth.LoadKeyring(cfg.Auth.KeyFile)
	if err != nil {
		p.Close(ctx)
		return nil, fmt.Errorf("load key file: %w", err)
	}
	p.keyring = keyring

	executor := sandbox.NewExecutor(logger)
	tools := registry.NewSandboxTools(executor, cfg.Sandbox.Workspace, evStore.ArtifactDir, logger)
	reg := registry.New(p.recorder, logger)
	tools.RegisterAll(reg)

	m := metrics.New(prometheus.NewRegistry())
	p.runner = service.NewRunner(policies, reg, p.recorder, evStore, m, cfg.Sandbox.Workspace, logger)

	return p, nil
}

// buildAuditStore selects the audit backend from the output setting.
// Stdout mode writes JSON lines to stderr: stdout carries the RPC
// stream in serve mode and the decision document in run mode.
func buildAuditStore(cfg *config.Config) (audit.Store, error) {
	if config.IsSQLiteOutput(cfg.Audit.Output) {
		store, err := sqlite.Open(config.SQLitePath(cfg.Audit.Output))
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
		return store, nil
	}
	return memory.NewAuditStoreWithWriter(os.Stderr, cfg.Audit.BufferSize), nil
}

// Close stops the audit worker and releases every resource, in reverse
// wiring order so the final audit flush still has a live store.
func (p *pipeline) Close(ctx context.Context) {
	if p.policies != nil {
		if err := p.policies.Close(); err != nil {
			p.logger.Warn("close policy service", "error", err)
		}
	}
	if p.recorder != nil {
		p.recorder.Stop()
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			p.logger.Warn("close audit store", "error", err)
		}
	}
	if p.traceShutdown != nil {
		if err := p.traceShutdown(ctx); err != nil {
			p.logger.Warn("shutdown trace exporter", "error", err)
		}
	}
}
