// Package fs reads NDBC report files and the sites file from local disk.
package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// SpecDir is the subdirectory of the data directory holding .spec reports.
const SpecDir = "spec"

// Source lists and opens reports under a data directory laid out as
//
//	<dir>/<station>.txt        general meteorological reports
//	<dir>/spec/<station>.spec  wave spectrum summaries
//
// plus a master station list (latest_obs.txt) at stationsFile.
type Source struct {
	dir          string
	stationsFile string
}

// NewSource returns a Source for dir and the station list at stationsFile.
func NewSource(dir, stationsFile string) *Source {
	return &Source{dir: dir, stationsFile: stationsFile}
}

// ReportFiles returns the general reports followed by the spectrum reports,
// each group sorted by path. The station list is never returned as a report.
func (s *Source) ReportFiles(ctx context.Context) ([]domain.ReportFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.dir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	general, err := s.glob(filepath.Join(s.dir, "*.txt"), domain.KindGeneral)
	if err != nil {
		return nil, err
	}
	spectrum, err := s.glob(filepath.Join(s.dir, SpecDir, "*.spec"), domain.KindSpectrum)
	if err != nil {
		return nil, err
	}
	return append(general, spectrum...), nil
}

func (s *Source) glob(pattern string, kind domain.ReportKind) ([]domain.ReportFile, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", pattern, err)
	}
	sort.Strings(paths)

	stations, _ := filepath.Abs(s.stationsFile)
	files := make([]domain.ReportFile, 0, len(paths))
	for _, p := range paths {
		if abs, _ := filepath.Abs(p); s.stationsFile != "" && abs == stations {
			continue
		}
		files = append(files, domain.ReportFile{
			Path:      p,
			StationID: strings.ToUpper(domain.StationIDFromPath(p)),
			Kind:      kind,
		})
	}
	return files, nil
}

// Open opens one report for reading.
func (s *Source) Open(_ context.Context, f domain.ReportFile) (io.ReadCloser, error) {
	rc, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", f.Path, err)
	}
	return rc, nil
}

// OpenStationList opens the master station list.
func (s *Source) OpenStationList(_ context.Context) (io.ReadCloser, error) {
	rc, err := os.Open(s.stationsFile)
	if err != nil {
		return nil, fmt.Errorf("open station list: %w", err)
	}
	return rc, nil
}

// LoadSites reads the sites file. Files ending in .yaml or .yml are parsed as
// YAML; anything else as CSV.
func LoadSites(path string) ([]domain.Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return domain.LoadSitesYAML(f)
	default:
		return domain.LoadSitesCSV(f)
	}
}

// LoadFieldMap reads a column mapping file and lays it over the built-in
// mapping. An empty path returns the built-in mapping.
func LoadFieldMap(path string) (domain.FieldMap, error) {
	fm := domain.DefaultFieldMap()
	if path == "" {
		return fm, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open field map: %w", err)
	}
	defer f.Close()

	custom, err := domain.LoadFieldMap(f)
	if err != nil {
		return nil, err
	}
	for raw, norm := range custom {
		fm[raw] = norm
	}
	return fm, nil
}
