package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// ReportSource lists and opens the raw NDBC reports and the station list.
type ReportSource interface {
	ReportFiles(ctx context.Context) ([]domain.ReportFile, error)
	Open(ctx context.Context, f domain.ReportFile) (io.ReadCloser, error)
	OpenStationList(ctx context.Context) (io.ReadCloser, error)
}

// ingestResult is the typed output of the ingestion stage.
type ingestResult struct {
	general  []domain.Observation
	spectrum []domain.Observation
	stats    map[domain.ReportKind]*domain.ParseStats
	files    int
	// fileErrs collects per-file failures; they are reported, never fatal.
	fileErrs *multierror.Error
}

type parsedFile struct {
	obs     []domain.Observation
	stats   domain.ParseStats
	invalid int
	err     error
}

// ingest parses every report with a bounded worker pool. Results are gathered
// back in file order, so sequence numbers do not depend on scheduling.
func (p *Pipeline) ingest(ctx context.Context) (ingestResult, error) {
	files, err := p.source.ReportFiles(ctx)
	if err != nil {
		return ingestResult{}, fmt.Errorf("list reports: %w", err)
	}
	files = p.sampleFiles(files)

	parsed := make([]parsedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i] = p.parseFile(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ingestResult{}, err
	}

	res := ingestResult{
		stats: map[domain.ReportKind]*domain.ParseStats{
			domain.KindGeneral:  {},
			domain.KindSpectrum: {},
		},
		files: len(files),
	}
	seq := 0
	for i, f := range files {
		pf := parsed[i]
		kind := f.Kind
		if pf.err != nil {
			res.fileErrs = multierror.Append(res.fileErrs, fmt.Errorf("%s: %w", f.Path, pf.err))
			p.metrics.FileErrors.WithLabelValues(string(kind)).Inc()
			continue
		}

		st := res.stats[kind]
		st.Add(pf.stats)
		st.Skipped += pf.invalid
		p.metrics.RecordsParsed.WithLabelValues(string(kind)).Add(float64(len(pf.obs)))
		p.metrics.MalformedRows.WithLabelValues(string(kind)).Add(float64(pf.stats.Skipped + pf.invalid))

		seq = domain.AssignSequence(pf.obs, seq)
		if kind == domain.KindSpectrum {
			res.spectrum = append(res.spectrum, pf.obs...)
		} else {
			res.general = append(res.general, pf.obs...)
		}
	}
	return res, nil
}

func (p *Pipeline) parseFile(ctx context.Context, f domain.ReportFile) parsedFile {
	if f.Kind != domain.KindGeneral && f.Kind != domain.KindSpectrum {
		return parsedFile{err: fmt.Errorf("unsupported report kind %q", f.Kind)}
	}
	rc, err := p.source.Open(ctx, f)
	if err != nil {
		return parsedFile{err: err}
	}
	defer rc.Close()

	rep, stats, err := domain.ParseReport(rc, f.StationID, f.Kind, p.logger)
	if err != nil {
		return parsedFile{err: err}
	}
	obs, invalid := domain.TypeObservations(rep, p.opts.Fields, p.opts.KnotsFactor, p.logger)
	return parsedFile{obs: obs, stats: stats, invalid: invalid}
}

// sampleFiles keeps the reports of a deterministic sample of stations. Both
// report kinds of a sampled station are kept together.
func (p *Pipeline) sampleFiles(files []domain.ReportFile) []domain.ReportFile {
	if !p.opts.Sampling.Enabled() {
		return files
	}
	seen := map[string]bool{}
	var ids []string
	for _, f := range files {
		if !seen[f.StationID] {
			seen[f.StationID] = true
			ids = append(ids, f.StationID)
		}
	}
	sort.Strings(ids)

	keep := map[string]bool{}
	for _, id := range domain.Sample(ids, p.opts.Sampling) {
		keep[id] = true
	}
	out := files[:0:0]
	for _, f := range files {
		if keep[f.StationID] {
			out = append(out, f)
		}
	}
	p.logger.Info("sampled stations", "kept", len(keep), "of", len(ids), "fraction", p.opts.Sampling.Fraction)
	return out
}

// loadStations parses the master station list.
func (p *Pipeline) loadStations(ctx context.Context) ([]domain.StationLocation, error) {
	rc, err := p.source.OpenStationList(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rep, stats, err := domain.ParseReport(rc, "", domain.KindStations, p.logger)
	if err != nil {
		return nil, fmt.Errorf("parse station list: %w", err)
	}
	locs, dupes := domain.ParseStationLocations(rep, p.opts.Fields, p.logger)
	p.metrics.RecordsParsed.WithLabelValues(string(domain.KindStations)).Add(float64(stats.Rows))
	p.metrics.MalformedRows.WithLabelValues(string(domain.KindStations)).Add(float64(stats.Skipped))
	if dupes > 0 {
		p.logger.Warn("duplicate stations in station list, keeping last", "duplicates", dupes)
	}
	return locs, nil
}
