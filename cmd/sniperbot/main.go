package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/sniperbot/config"
	"github.com/alejandrodnm/sniperbot/internal/adapters/features"
	"github.com/alejandrodnm/sniperbot/internal/adapters/gateway"
	"github.com/alejandrodnm/sniperbot/internal/adapters/model"
	"github.com/alejandrodnm/sniperbot/internal/adapters/notify"
	"github.com/alejandrodnm/sniperbot/internal/adapters/storage"
	"github.com/alejandrodnm/sniperbot/internal/application/session"
	"github.com/alejandrodnm/sniperbot/internal/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	label := flag.Bool("label", false, "run the offline labeling pass and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
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
	setupLogger(cfg.Log)

	slog.Info("sniperbot starting",
		"config", *configPath,
		"symbols", cfg.Trading.Symbols,
		"tick", cfg.ScanTick(),
		"label", *label,
	)

	broker := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.WSURL, cfg.Risk.FallbackEquity)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *label {
		runLabeling(ctx, cfg, broker, store)
		return
	}

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr)
	}

	models, err := model.Load(cfg.Models.Dir, cfg.Trading.Symbols)
	if err != nil {
		slog.Error("failed to load models", "err", err, "dir", cfg.Models.Dir)
		os.Exit(1)
	}

	notifier := buildNotifier(cfg)

	guard := session.NewRegimeGuard(broker, cfg.Guard.Symbols, cfg.Guard.EMAPeriod,
		cfg.GuardInterval(), cfg.GuardLookback(), cfg.GuardTimeout())

	gate := session.NewEntryGate(features.NewSource(broker), models,
		cfg.Trading.EntryThreshold, cfg.Trading.RSICeiling, cfg.Cooldown())

	builder := session.NewBracketBuilder(cfg.Trading.PositionFraction,
		cfg.Trading.EntryPremium, cfg.Barrier.TargetFraction, cfg.Trading.TrailingStopPct)

	controller := session.NewController(session.Config{
		Symbols:          cfg.Trading.Symbols,
		Tick:             cfg.ScanTick(),
		Cooldown:         cfg.Cooldown(),
		StartHour:        cfg.Trading.StartHour,
		EndHour:          cfg.Trading.EndHour,
		Location:         cfg.Location(),
		ReconnectBackoff: cfg.ReconnectBackoff(),
	}, broker, guard, gate, builder,
		session.NewCircuitBreaker(cfg.Risk.MaxLossFraction), store, notifier)

	if err := controller.Run(ctx); err != nil {
		slog.Error("session exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("sniperbot stopped cleanly")
}

// buildNotifier always includes the console; telegram joins when configured.
func buildNotifier(cfg *config.Config) ports.Notifier {
	console := notify.NewConsole()
	if cfg.Telegram.Token == "" {
		return console
	}

	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		slog.Warn("telegram disabled", "err", err)
		return console
	}
	slog.Info("telegram notifier enabled", "chat_id", cfg.Telegram.ChatID)
	return notify.NewMulti(console, tg)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics server stopped", "err", err)
	}
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
