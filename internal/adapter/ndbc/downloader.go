package ndbc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// Fetcher is the subset of Client the Downloader needs.
type Fetcher interface {
	LatestObs(ctx context.Context) ([]byte, error)
	Report(ctx context.Context, stationID string, kind domain.ReportKind) ([]byte, error)
}

// Result summarizes one download run.
type Result struct {
	Stations   int
	Downloaded map[domain.ReportKind]int
	// Missing lists, per kind, the stations whose download failed, sorted.
	Missing map[domain.ReportKind][]string
}

// Downloader saves station reports in the layout read by fs.Source.
type Downloader struct {
	fetcher Fetcher
	dir     string
	workers int
	logger  *slog.Logger
}

// NewDownloader writes into dir using up to workers concurrent requests.
func NewDownloader(f Fetcher, dir string, workers int, logger *slog.Logger) *Downloader {
	if workers < 1 {
		workers = 1
	}
	return &Downloader{fetcher: f, dir: dir, workers: workers, logger: logger}
}

// FetchStationList downloads the master station list to path and returns the
// station ids it names, sorted.
func (d *Downloader) FetchStationList(ctx context.Context, path string) ([]string, error) {
	body, err := d.fetcher.LatestObs(ctx)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(path, body); err != nil {
		return nil, fmt.Errorf("save station list: %w", err)
	}

	rep, _, err := domain.ParseReport(bytes.NewReader(body), "", domain.KindStations, d.logger)
	if err != nil {
		return nil, fmt.Errorf("parse station list: %w", err)
	}
	locs, _ := domain.ParseStationLocations(rep, domain.DefaultFieldMap(), d.logger)
	ids := make([]string, 0, len(locs))
	for _, l := range locs {
		ids = append(ids, l.StationID)
	}
	sort.Strings(ids)
	return ids, nil
}

// FetchReports downloads the .txt and .spec report of every station. A failed
// download puts the station on that kind's miss-list and the run continues;
// only cancellation stops it early.
func (d *Downloader) FetchReports(ctx context.Context, stations []string) (Result, error) {
	if err := os.MkdirAll(filepath.Join(d.dir, "spec"), 0o755); err != nil {
		return Result{}, fmt.Errorf("create data dir: %w", err)
	}

	res := Result{
		Stations:   len(stations),
		Downloaded: map[domain.ReportKind]int{},
		Missing:    map[domain.ReportKind][]string{},
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for _, id := range stations {
		for _, kind := range []domain.ReportKind{domain.KindGeneral, domain.KindSpectrum} {
			g.Go(func() error {
				err := d.fetchOne(gctx, id, kind)
				if err != nil && gctx.Err() != nil {
					return gctx.Err()
				}

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					d.logger.Warn("download failed", "station", id, "kind", kind, "error", err)
					res.Missing[kind] = append(res.Missing[kind], id)
					return nil
				}
				res.Downloaded[kind]++
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	for kind := range res.Missing {
		sort.Strings(res.Missing[kind])
	}
	return res, nil
}

func (d *Downloader) fetchOne(ctx context.Context, id string, kind domain.ReportKind) error {
	body, err := d.fetcher.Report(ctx, id, kind)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: %s.%s is empty", domain.ErrDownloadFailure, id, kind)
	}
	if err := writeAtomic(d.reportPath(id, kind), body); err != nil {
		return errors.Join(domain.ErrDownloadFailure, err)
	}
	return nil
}

func (d *Downloader) reportPath(id string, kind domain.ReportKind) string {
	name := fmt.Sprintf("%s.%s", id, kind)
	if kind == domain.KindSpectrum {
		return filepath.Join(d.dir, "spec", name)
	}
	return filepath.Join(d.dir, name)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
