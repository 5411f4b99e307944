package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alejandrodnm/signalbot/config"
	"github.com/alejandrodnm/signalbot/internal/adapters/kraken"
	"github.com/alejandrodnm/signalbot/internal/adapters/notify"
	"github.com/alejandrodnm/signalbot/internal/adapters/storage"
	"github.com/alejandrodnm/signalbot/internal/adapters/twitter"
	"github.com/alejandrodnm/signalbot/internal/application/engine"
	"github.com/alejandrodnm/signalbot/internal/observability"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one reconciliation cycle and exit")
	dryRun := flag.Bool("dry-run", false, "log venue writes (orders, cancels) instead of sending them")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print one table per cycle (default: compact 1-line)")
	report := flag.Bool("report", false, "print persisted state and recent cycles, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *dryRun {
		cfg.Engine.DryRun = true
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*table)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		runReport(ctx, store, notifier)
		return
	}

	slog.Info("signalbot starting",
		"config", *configPath,
		"pairs", len(cfg.Pairs),
		"interval", cfg.Interval(),
		"dry_run", cfg.Engine.DryRun,
		"once", *once,
	)

	venueClient, err := kraken.NewClient(cfg.API.KrakenBase, cfg.Kraken.APIKey, cfg.Kraken.APISecret)
	if err != nil {
		slog.Error("failed to create kraken client — check KRAKEN_API_SECRET", "err", err)
		os.Exit(1)
	}
	var venue ports.Venue = venueClient
	if cfg.Engine.DryRun {
		venue = engine.DryRunVenue(venueClient)
	}

	source := twitter.NewClient(cfg.API.TwitterBase, cfg.Twitter.BearerToken).
		WithPageSize(cfg.API.TwitterPageSize)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg, cfg.Metrics.Namespace)
	if cfg.Metrics.Addr != "" {
		srv := observability.Serve(cfg.Metrics.Addr, reg)
		defer srv.Close()
		slog.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
	}

	eng := engine.New(engine.Config{
		Pairs:      cfg.DomainPairs(),
		Aliases:    cfg.AliasTable(),
		VenuePairs: cfg.VenuePairTable(),
	}, source, venue, store, notifier, metrics)

	if err := eng.Restore(ctx); err != nil {
		slog.Error("failed to restore state", "err", err)
		os.Exit(1)
	}

	if err := run(ctx, eng, cfg.Interval(), *once); err != nil {
		slog.Error("signalbot exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("signalbot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
