package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/ais-ship-tracker/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ais-ship-tracker/internal/adapter/kafka"
	"github.com/couchcryptid/ais-ship-tracker/internal/adapter/mapbox"
	"github.com/couchcryptid/ais-ship-tracker/internal/config"
	"github.com/couchcryptid/ais-ship-tracker/internal/domain"
	"github.com/couchcryptid/ais-ship-tracker/internal/observability"
	"github.com/couchcryptid/ais-ship-tracker/internal/pipeline"
	"github.com/couchcryptid/ais-ship-tracker/internal/session"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Reverse geocoding of last positions (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	opts := pipeline.Options{
		InfoBaseURL:    cfg.InfoBaseURL,
		CacheSize:      cfg.CacheSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Geocoder:       geocoder,
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts.Loader = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(opts, logger, metrics)
	sessions := session.NewStore(cfg.SessionTTL, nil)

	srvOpts := httpadapter.Options{
		Addr:           cfg.HTTPAddr,
		MaxUploadBytes: cfg.MaxUploadBytes,
		PreviewRows:    cfg.PreviewRows,
		MapZoom:        cfg.MapZoom,
	}
	if cfg.MapboxToken != "" {
		srvOpts.TileURL = mapbox.TileURL(cfg.MapboxToken)
		srvOpts.TileAttribution = mapbox.TileAttribution
	}
	srv := httpadapter.NewServer(srvOpts, p, sessions, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Expire idle sessions.
	go sessions.RunSweeper(ctx, sweepInterval, func(remaining int) {
		metrics.ActiveSessions.Set(float64(remaining))
	})

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
