// Command fetch downloads the NDBC master station list and the realtime .txt
// and .spec report of every listed station into DATA_DIR, in the layout the
// pipeline reads. Stations whose download failed are written to the
// miss-list CSVs in OUTPUT_DIR.
//
// Usage:
//
//	go run ./cmd/fetch [-workers 8]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/splashdown-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/splashdown-etl/internal/adapter/ndbc"
	"github.com/couchcryptid/splashdown-etl/internal/config"
	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	workers := flag.Int("workers", 8, "concurrent downloads")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := ndbc.NewClient(cfg.NDBCBaseURL, cfg.NDBCTimeout, logger, metrics)
	dl := ndbc.NewDownloader(client, cfg.DataDir, *workers, logger)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	stations, err := dl.FetchStationList(ctx, cfg.StationsFile)
	if err != nil {
		return fmt.Errorf("fetch station list: %w", err)
	}
	total := len(stations)
	stations = domain.Sample(stations, cfg.Sampling)
	logger.Info("station list saved", "path", cfg.StationsFile, "stations", total, "sampled", len(stations))

	res, err := dl.FetchReports(ctx, stations)
	if err != nil {
		return fmt.Errorf("fetch reports: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	missing := map[domain.ReportKind]string{
		domain.KindGeneral:  config.MissingGeneralFile,
		domain.KindSpectrum: config.MissingSpecFile,
	}
	for kind, name := range missing {
		if err := csvfile.WriteStationList(cfg.OutputPath(name), res.Missing[kind]); err != nil {
			return fmt.Errorf("write miss-list: %w", err)
		}
	}

	logger.Info("download complete",
		"stations", res.Stations,
		"txt", res.Downloaded[domain.KindGeneral],
		"spec", res.Downloaded[domain.KindSpectrum],
		"missing_txt", len(res.Missing[domain.KindGeneral]),
		"missing_spec", len(res.Missing[domain.KindSpectrum]),
	)
	return nil
}
