package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hearthside-Labs/Mosaic/internal/api"
	"github.com/Hearthside-Labs/Mosaic/internal/atlas"
	"github.com/Hearthside-Labs/Mosaic/internal/config"
	"github.com/Hearthside-Labs/Mosaic/internal/engine"
	"github.com/Hearthside-Labs/Mosaic/internal/narrative"
	"github.com/Hearthside-Labs/Mosaic/internal/palette"
	"github.com/Hearthside-Labs/Mosaic/internal/scoring"
	"github.com/Hearthside-Labs/Mosaic/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Region store
	var st store.Store
	switch cfg.Dataset.Source {
	case "", "geojson":
		st, err = store.NewFileStore(cfg.Dataset.Path, cfg.Dataset.StateFilter, cfg.Dataset.InvertKeys, logger)
	case "postgres":
		st, err = store.NewPostgresStore(ctx, cfg.Database.URL, cfg.Dataset.InvertKeys)
	default:
		err = fmt.Errorf("unknown dataset source %q", cfg.Dataset.Source)
	}
	if err != nil {
		logger.Error("failed to open region store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	dataset, err := st.LoadDataset(ctx, cfg.Dataset.Name)
	if err != nil {
		logger.Error("failed to load dataset", "name", cfg.Dataset.Name, "error", err)
		os.Exit(1)
	}
	logger.Info("dataset loaded", "name", dataset.Name, "regions", dataset.Len())

	// Atlas (optional)
	var atlasClient atlas.Client
	if cfg.Atlas.URL != "" {
		ac, err := atlas.NewNATSClient(ctx, cfg.Atlas.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to atlas, running without map events", "error", err)
		} else {
			atlasClient = ac
			defer ac.Close()
			logger.Info("connected to atlas")
		}
	}

	// Narrative provider (optional)
	modelClient, err := narrative.NewClient(cfg.Narrative.Provider, cfg.Narrative.APIKey, cfg.Narrative.BaseURL)
	if err != nil {
		logger.Error("failed to configure narrative provider", "error", err)
		os.Exit(1)
	}
	var requestor *narrative.Requestor
	var translator *narrative.Translator
	if modelClient != nil {
		requestor = narrative.NewRequestor(modelClient, cfg.Narrative.Model, cfg.Narrative.MaxTokens,
			cfg.NarrativeTimeout(), cfg.Narrative.Fallback, logger)
		translator = narrative.NewTranslator(modelClient, cfg.Narrative.Model, logger)
		defer requestor.CancelAll()
		logger.Info("narrative provider ready", "provider", cfg.Narrative.Provider, "model", cfg.Narrative.Model)
	}

	// Scoring schema and palette
	schema, err := scoring.SchemaByName(cfg.Scoring.Scheme)
	if err != nil {
		logger.Error("failed to build scoring schema", "error", err)
		os.Exit(1)
	}
	pal, err := palette.ByName(cfg.Scoring.Palette, cfg.Scoring.MatchCutoff)
	if err != nil {
		logger.Error("failed to build palette", "error", err)
		os.Exit(1)
	}

	// Engine
	e := engine.New(dataset, schema, pal, atlasClient, requestor, cfg, logger)
	e.Start(ctx)
	defer e.Stop()
	logger.Info("engine started", "frame_interval", cfg.FrameInterval(), "session_ttl", cfg.SessionTTL())

	// Subscribe to atlas events for map-driven narration
	e.SetupSubscriptions()

	// API server
	router := api.NewRouter(e, st, translator, requestor, cfg.Server.AdminToken, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsRouter := api.NewMetricsRouter()
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsRouter,
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
	// e.Stop() and requestor.CancelAll() handled by defers above

	logger.Info("shutdown complete")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
