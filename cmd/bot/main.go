package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tradebot/internal/config"
	"tradebot/internal/engine"
	"tradebot/internal/exchange"
	"tradebot/internal/journal"
	"tradebot/internal/market"
	"tradebot/internal/metrics"
	"tradebot/internal/notify"
	"tradebot/internal/predict"
	"tradebot/internal/state"
)

// shutdownDelay keeps a crash-restart loop under a supervisor from hammering
// the exchange API.
const shutdownDelay = 10 * time.Second

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := config.Load()
	logger := setupLogger(cfg.LogLevel)

	logger.Info("Starting trading bot",
		"symbol", cfg.Symbol(),
		"interval", cfg.Interval,
		"shadow_limit", cfg.ShadowLimitEnabled,
	)

	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		logger.Error("Failed to load credentials", "error", err)
		time.Sleep(shutdownDelay)
		os.Exit(1)
	}

	telegram := notify.NewTelegram(
		creds.TgBotToken, creds.TgRecipient,
		cfg.Asset, cfg.QuoteAsset,
		cfg.QtyDecimals, cfg.PriceDecimals,
		cfg.PredictionMAWindow, logger)

	// fatal surfaces a startup failure to the operator before exiting.
	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		telegram.Send(fmt.Sprintf("%s\n%v", msg, err), false, false)
		time.Sleep(shutdownDelay)
		os.Exit(1)
	}

	store, err := state.Load(cfg.StateFile, cfg.Mode, logger)
	if err != nil {
		fatal("Failed to load state", err)
	}
	mode := store.Snapshot().Mode
	logger.Info("State loaded", "state_file", cfg.StateFile, "mode", mode)

	model, err := predict.LoadLinearModel(modelPath(cfg.ModelFile, mode), logger)
	if err != nil {
		fatal("Failed to load prediction model", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway := exchange.NewBinanceGateway(
		creds.BinanceKey, creds.BinanceSecret,
		cfg.Symbol(), cfg.QtyDecimals, cfg.PriceDecimals,
		cfg.CallTimeout, logger)

	candles, err := market.Bootstrap(ctx, cfg.Symbol(), cfg.Interval, cfg.BootstrapCandles)
	if err != nil {
		fatal("Failed to bootstrap candle history", err)
	}
	history := market.NewHistory(candles)
	logger.Info("Candle history bootstrapped", "candles", history.Len())

	dispatcher := notify.NewDispatcher(
		&notify.LogSink{Logger: logger},
		telegram,
		metrics.Sink{},
	)
	if cfg.DatabaseURL != "" {
		jrnl, err := journal.Open(ctx, cfg.DatabaseURL, cfg.Symbol(), logger)
		if err != nil {
			fatal("Failed to open order journal", err)
		}
		defer jrnl.Close()
		dispatcher.Register(jrnl)
	}

	eng, err := engine.New(cfg, store, gateway, history, model, dispatcher, logger,
		engine.WithShutdown(func(reason string) {
			logger.Info("Shutdown requested", "reason", reason)
			cancel()
		}),
	)
	if err != nil {
		fatal("Failed to create engine", err)
	}

	if err := eng.Recover(ctx); err != nil {
		fatal("Failed to reconcile state with exchange", err)
	}

	streamer := market.NewStreamer(cfg.Symbol(), cfg.Interval, eng.Events(), logger)
	streamErrC, err := streamer.Start(ctx)
	if err != nil {
		fatal("Failed to start market stream", err)
	}
	defer streamer.Stop()

	poller := notify.NewPoller(creds.TgBotToken, creds.TgRecipient, eng.Events(), logger)
	go poller.Run(ctx)

	status := metrics.NewStatusServer(cfg.StatusAddr, func() any {
		return store.Snapshot()
	}, logger)
	status.Start()

	go eng.Run(ctx)
	logger.Info("Trading bot is running", "status_addr", cfg.StatusAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-streamErrC:
		logger.Error("Market stream failed", "error", err)
		telegram.Send(fmt.Sprintf("Warning: market stream failed\n%v", err), false, false)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := status.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping status server", "error", err)
	}

	// The engine flushes state on context cancellation; give it a moment
	// before the process exits.
	time.Sleep(time.Second)
	logger.Info("Trading bot stopped")
}

// modelPath resolves the per-mode model file: model.json becomes
// model_v01.json for mode v01.
func modelPath(base, mode string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + mode + ext
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	return slog.New(handler)
}
