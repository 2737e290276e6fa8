package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/observability"
	"github.com/couchcryptid/splashdown-etl/internal/spatial"
)

// LayerWriter persists the spatial layers of one run.
type LayerWriter interface {
	WriteLayers(ctx context.Context, runID string, layers []spatial.Layer) error
}

// NearbyExporter writes the per-station nearby observations.
type NearbyExporter interface {
	ExportNearby(ctx context.Context, rows []domain.NearbyObservation) error
}

// ConditionsExporter writes the per-site conditions summary.
type ConditionsExporter interface {
	ExportConditions(ctx context.Context, rows []domain.SiteConditions) error
}

// Publisher pushes the per-site conditions to a downstream consumer.
type Publisher interface {
	Publish(ctx context.Context, runID string, rows []domain.SiteConditions) error
}

// Outputs groups the sinks of a run. Publisher may be nil.
type Outputs struct {
	Layers     LayerWriter
	Nearby     NearbyExporter
	Conditions ConditionsExporter
	Publisher  Publisher
}

// Options carries the run parameters.
type Options struct {
	Sites              []domain.Site
	Fields             domain.FieldMap
	KnotsFactor        float64
	BufferRadiusMeters float64
	CRS                string
	Sampling           domain.Sampling
	Workers            int
}

// Summary reports what one run did.
type Summary struct {
	RunID                   string         `json:"run_id"`
	StartedAt               time.Time      `json:"started_at"`
	DurationSeconds         float64        `json:"duration_seconds"`
	CRS                     string         `json:"crs"`
	Files                   int            `json:"files"`
	FileErrors              int            `json:"file_errors"`
	GeneralRows             int            `json:"general_rows"`
	SpectrumRows            int            `json:"spectrum_rows"`
	MalformedRows           int            `json:"malformed_rows"`
	DuplicatesRemoved       int            `json:"duplicates_removed"`
	WithSpectrum            int            `json:"with_spectrum"`
	Stations                int            `json:"stations"`
	StationsMissingLocation []string       `json:"stations_missing_location,omitempty"`
	StationsMatched         map[string]int `json:"stations_matched"`
	NearbyRows              int            `json:"nearby_rows"`
	SiteConditions          int            `json:"site_conditions"`
	Published               int            `json:"published"`
}

// Pipeline runs the batch: ingest, merge, select, aggregate, export.
type Pipeline struct {
	source  ReportSource
	out     Outputs
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	last    atomic.Pointer[Summary]
}

// New creates a Pipeline with the given source, sinks and observability.
func New(src ReportSource, out Outputs, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Fields == nil {
		opts.Fields = domain.DefaultFieldMap()
	}
	return &Pipeline{
		source:  src,
		out:     out,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastSummary returns the summary of the most recent successful run.
func (p *Pipeline) LastSummary() (any, bool) {
	s := p.last.Load()
	if s == nil {
		return nil, false
	}
	return *s, true
}

// Run executes one full batch. Per-file read or parse failures are logged and
// counted; any other stage failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	sum := Summary{
		RunID:     uuid.NewString(),
		StartedAt: domain.Now(),
		CRS:       p.opts.CRS,
	}
	logger := p.logger.With("run_id", sum.RunID)
	logger.Info("pipeline started", "sites", len(p.opts.Sites), "workers", p.opts.Workers)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var (
		ing    ingestResult
		locs   []domain.StationLocation
		merged []domain.Observation
	)
	err := p.stage("ingest", func() error {
		var err error
		if ing, err = p.ingest(ctx); err != nil {
			return err
		}
		locs, err = p.loadStations(ctx)
		return err
	})
	if err != nil {
		return sum, err
	}
	if ing.fileErrs != nil {
		for _, e := range ing.fileErrs.Errors {
			logger.Warn("report skipped", "error", e)
		}
		sum.FileErrors = len(ing.fileErrs.Errors)
	}
	sum.Files = ing.files
	sum.GeneralRows = len(ing.general)
	sum.SpectrumRows = len(ing.spectrum)
	sum.MalformedRows = ing.stats[domain.KindGeneral].Skipped + ing.stats[domain.KindSpectrum].Skipped
	sum.Stations = len(locs)
	logger.Info("ingest complete",
		"files", sum.Files, "file_errors", sum.FileErrors,
		"general", sum.GeneralRows, "spectrum", sum.SpectrumRows,
		"malformed", sum.MalformedRows, "stations", sum.Stations)

	err = p.stage("merge", func() error {
		var ms domain.MergeSummary
		var err error
		merged, ms, err = domain.Merge(ing.general, ing.spectrum, locs)
		if err != nil {
			return err
		}
		p.metrics.DuplicatesRemoved.WithLabelValues(string(domain.KindGeneral)).Add(float64(ms.GeneralDuplicates))
		p.metrics.DuplicatesRemoved.WithLabelValues(string(domain.KindSpectrum)).Add(float64(ms.SpectrumDuplicates))
		sum.DuplicatesRemoved = ms.DuplicatesRemoved()
		sum.WithSpectrum = ms.WithSpectrum
		sum.StationsMissingLocation = ms.StationsMissingLocation
		return nil
	})
	if err != nil {
		return sum, err
	}
	if len(sum.StationsMissingLocation) > 0 {
		logger.Warn("stations without a location", "stations", sum.StationsMissingLocation)
	}
	logger.Info("merge complete", "rows", len(merged), "duplicates_removed", sum.DuplicatesRemoved, "with_spectrum", sum.WithSpectrum)

	var (
		buffers  spatial.BufferSet
		stations spatial.StationSet
		assocs   []domain.Association
	)
	err = p.stage("select", func() error {
		proj, err := spatial.NewProjection(p.opts.CRS, p.opts.Sites)
		if err != nil {
			return err
		}
		if buffers, err = spatial.BuildBuffers(p.opts.Sites, p.opts.BufferRadiusMeters, proj); err != nil {
			return err
		}
		if stations, err = spatial.ProjectStations(locs, proj); err != nil {
			return err
		}
		assocs, err = spatial.Select(buffers, stations)
		return err
	})
	if err != nil {
		return sum, err
	}
	sum.CRS = buffers.CRS.Code
	sum.StationsMatched = domain.StationsPerSite(assocs)
	for _, s := range p.opts.Sites {
		p.metrics.StationsMatched.WithLabelValues(s.Name).Set(float64(sum.StationsMatched[s.Name]))
	}
	logger.Info("selection complete", "crs", sum.CRS, "associations", len(assocs), "per_site", sum.StationsMatched)

	var (
		nearby     []domain.NearbyObservation
		conditions []domain.SiteConditions
	)
	err = p.stage("aggregate", func() error {
		var err error
		nearby, conditions, err = domain.Aggregate(assocs, merged)
		return err
	})
	if err != nil {
		return sum, err
	}
	sum.NearbyRows = len(nearby)
	sum.SiteConditions = len(conditions)

	err = p.stage("export", func() error {
		layers := []spatial.Layer{
			spatial.StationLayer(stations),
			spatial.SiteLayer(buffers),
			spatial.BufferLayer(buffers),
			spatial.NearbyLayer(stations, assocs),
			spatial.WeatherLayer(stations, merged),
		}
		if err := p.out.Layers.WriteLayers(ctx, sum.RunID, layers); err != nil {
			return err
		}
		if err := p.out.Nearby.ExportNearby(ctx, nearby); err != nil {
			return err
		}
		return p.out.Conditions.ExportConditions(ctx, conditions)
	})
	if err != nil {
		return sum, err
	}
	logger.Info("export complete", "nearby_rows", sum.NearbyRows, "site_conditions", sum.SiteConditions)

	if p.out.Publisher != nil {
		err = p.stage("publish", func() error {
			return p.out.Publisher.Publish(ctx, sum.RunID, conditions)
		})
		if err != nil {
			return sum, err
		}
		sum.Published = len(conditions)
		p.metrics.MessagesPublished.Add(float64(sum.Published))
	}

	sum.DurationSeconds = domain.Now().Sub(sum.StartedAt).Seconds()
	p.last.Store(&sum)
	p.ready.Store(true)
	p.metrics.LastRunTimestamp.Set(float64(domain.Now().Unix()))
	logger.Info("pipeline finished", "duration_seconds", sum.DurationSeconds)
	return sum, nil
}

// stage times fn under the given stage label and wraps its error.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
