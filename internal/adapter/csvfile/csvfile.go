// Package csvfile writes the per-site condition table and the station
// miss-lists as CSV.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

var conditionsHeader = []string{"timestamp", "site_name", "mean_wind_bin", "mean_wave_ht_bin", "wind_samples", "wave_samples"}

// ConditionsWriter writes site conditions to a CSV file.
type ConditionsWriter struct {
	path string
}

// NewConditionsWriter returns a writer for the file at path.
func NewConditionsWriter(path string) *ConditionsWriter {
	return &ConditionsWriter{path: path}
}

// Path returns the destination file.
func (w *ConditionsWriter) Path() string { return w.path }

// ExportConditions replaces the file with one row per (timestamp, site).
// A nil mean is written as an empty cell.
func (w *ConditionsWriter) ExportConditions(ctx context.Context, rows []domain.SiteConditions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := make([][]string, 0, len(rows)+1)
	records = append(records, conditionsHeader)
	for _, r := range rows {
		records = append(records, []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.SiteName,
			formatOptional(r.MeanWindBin),
			formatOptional(r.MeanWaveHeightBin),
			strconv.Itoa(r.WindSamples),
			strconv.Itoa(r.WaveSamples),
		})
	}
	if err := writeAtomic(w.path, records); err != nil {
		return fmt.Errorf("write site conditions: %w", err)
	}
	return nil
}

// ReadConditions parses a file written by ExportConditions.
func ReadConditions(path string) ([]domain.SiteConditions, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, fmt.Errorf("read site conditions: %w", err)
	}
	if len(records) == 0 || !equalHeader(records[0], conditionsHeader) {
		return nil, fmt.Errorf("read site conditions: %s: unexpected header", path)
	}

	out := make([]domain.SiteConditions, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}
		c := domain.SiteConditions{Timestamp: ts, SiteName: rec[1]}
		if c.MeanWindBin, err = parseOptional(rec[2]); err != nil {
			return nil, fmt.Errorf("line %d: mean_wind_bin: %w", line, err)
		}
		if c.MeanWaveHeightBin, err = parseOptional(rec[3]); err != nil {
			return nil, fmt.Errorf("line %d: mean_wave_ht_bin: %w", line, err)
		}
		if c.WindSamples, err = strconv.Atoi(rec[4]); err != nil {
			return nil, fmt.Errorf("line %d: wind_samples: %w", line, err)
		}
		if c.WaveSamples, err = strconv.Atoi(rec[5]); err != nil {
			return nil, fmt.Errorf("line %d: wave_samples: %w", line, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// WriteStationList writes a single-column station_id CSV, as used for the
// download miss-lists.
func WriteStationList(path string, ids []string) error {
	records := make([][]string, 0, len(ids)+1)
	records = append(records, []string{"station_id"})
	for _, id := range ids {
		records = append(records, []string{id})
	}
	if err := writeAtomic(path, records); err != nil {
		return fmt.Errorf("write station list: %w", err)
	}
	return nil
}

// ReadStationList reads a file written by WriteStationList.
func ReadStationList(path string) ([]string, error) {
	records, err := readAll(path)
	if err != nil {
		return nil, fmt.Errorf("read station list: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		ids = append(ids, rec[0])
	}
	return ids, nil
}

func writeAtomic(path string, records [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return records, nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseOptional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
