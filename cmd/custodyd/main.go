package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"custody/config"
	"custody/core"
	"custody/core/genesis"
	"custody/native/common"
	"custody/observability/logging"
	"custody/observability/metrics"
	telemetry "custody/observability/otel"
	"custody/rpc"
	"custody/rpc/middleware"
	"custody/storage"
)

const serviceName = "custodyd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a YAML genesis file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if g := strings.TrimSpace(*genesisFlag); g != "" {
		cfg.GenesisFile = g
	}

	logger, closer := logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("custodyd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	programID, err := cfg.ProgramID()
	if err != nil {
		return fmt.Errorf("vault program id: %w", err)
	}
	tokenProgram, err := cfg.TokenProgram()
	if err != nil {
		return fmt.Errorf("token program id: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Backend, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	proc := core.NewProcessor(db, core.Options{
		ProgramID:    programID,
		TokenProgram: tokenProgram,
		Pauses:       common.NewPauses(cfg.Vault.Paused...),
		Logger:       logger,
		Metrics:      metrics.Custody(),
	})

	if path := cfg.ResolvePath(strings.TrimSpace(cfg.GenesisFile)); path != "" {
		spec, err := genesis.Load(path)
		if err != nil {
			return err
		}
		applied, err := proc.ApplyGenesis(spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		if !applied {
			logger.Info("genesis already applied, skipping", slog.String("path", path))
		}
	}

	logger.Info("custody node ready",
		slog.String("program_id", programID.String()),
		slog.String("token_program", tokenProgram.String()),
		slog.String("storage", cfg.Storage.Backend))

	server := rpc.NewServer(proc, rpc.Options{
		AuthToken:      cfg.RPC.AuthToken,
		MaxBodyBytes:   cfg.RPC.MaxBodyBytes,
		RateLimit:      middleware.RateLimit{RequestsPerMinute: cfg.RPC.RequestsPerMinute, Burst: cfg.RPC.Burst},
		TrustedProxies: cfg.RPC.TrustedProxies,
		ServiceName:    serviceName,
		LogRequests:    logging.ParseLevel(cfg.Logging.Level) <= slog.LevelDebug,
	}, logger)
	err = server.Serve(ctx, cfg.RPCAddress,
		time.Duration(cfg.RPC.ReadTimeoutSecs)*time.Second,
		time.Duration(cfg.RPC.WriteTimeoutSecs)*time.Second)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("custody node stopped")
	return nil
}
