// Command splashdown runs the buoy weather pipeline once: it reads the raw
// NDBC reports, selects the stations near each splashdown site, and writes
// the GeoPackage, Parquet and CSV outputs. With HTTP_ADDR set it keeps serving
// health, metrics and the run summary until interrupted.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/splashdown-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/splashdown-etl/internal/adapter/fs"
	"github.com/couchcryptid/splashdown-etl/internal/adapter/gpkg"
	httpadapter "github.com/couchcryptid/splashdown-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/splashdown-etl/internal/adapter/kafka"
	"github.com/couchcryptid/splashdown-etl/internal/adapter/parquet"
	"github.com/couchcryptid/splashdown-etl/internal/config"
	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/observability"
	"github.com/couchcryptid/splashdown-etl/internal/pipeline"
	"github.com/couchcryptid/splashdown-etl/internal/spatial"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	sites, err := fs.LoadSites(cfg.SitesFile)
	if err != nil {
		logger.Error("failed to load sites", "error", err)
		os.Exit(1)
	}
	if err := domain.ValidateSites(sites); err != nil {
		logger.Error("invalid sites", "error", err)
		os.Exit(1)
	}

	fields := domain.DefaultFieldMap()
	if cfg.FieldMapFile != "" {
		if fields, err = fs.LoadFieldMap(cfg.FieldMapFile); err != nil {
			logger.Error("failed to load field map", "error", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("failed to create output dir", "error", err)
		os.Exit(1)
	}

	out := pipeline.Outputs{
		Layers:     gpkg.NewWriter(cfg.OutputPath(config.GeoPackageFile)),
		Nearby:     parquet.NewWriter(cfg.OutputPath(config.NearbyParquetFile)),
		Conditions: csvfile.NewConditionsWriter(cfg.OutputPath(config.ConditionsCSVFile)),
	}
	var publisher *kafkaadapter.Writer
	if cfg.PublishEnabled() {
		publisher = kafkaadapter.NewWriter(cfg, logger)
		out.Publisher = publisher
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(fs.NewSource(cfg.DataDir, cfg.StationsFile), out, pipeline.Options{
		Sites:              sites,
		Fields:             fields,
		KnotsFactor:        cfg.KnotsToFtps,
		BufferRadiusMeters: spatial.NauticalMilesToMeters(cfg.BufferRadiusNM),
		CRS:                cfg.SpatialCRS,
		Sampling:           cfg.Sampling,
		Workers:            cfg.ParseWorkers,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	code := 0
	if _, err := p.Run(ctx); err != nil {
		logger.Error("pipeline failed", "error", err)
		code = 1
	}

	if srv != nil && code == 0 {
		logger.Info("run complete, serving until interrupted", "addr", cfg.HTTPAddr)
		<-ctx.Done()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if code != 0 {
		stop()
		cancel()
		os.Exit(code)
	}
}
