// Package parquet exports nearby observations as a Parquet file.
package parquet

import (
	"context"
	"fmt"
	"os"
	"time"

	parquetgo "github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// NearbyRow is the Parquet schema of one nearby observation.
type NearbyRow struct {
	SiteName       string   `parquet:"site_name"`
	StationID      string   `parquet:"station_id"`
	Time           int64    `parquet:"time"` // unix seconds, UTC
	WindSpeed      *float64 `parquet:"wind_spd"`
	WindGust       *float64 `parquet:"wind_gust"`
	SwellHeight    *float64 `parquet:"swell_height"`
	SwellPeriod    *float64 `parquet:"swell_period"`
	WindWaveHeight *float64 `parquet:"wind_wave_height"`
	AveragePeriod  *float64 `parquet:"ave_period"`
	Steepness      string   `parquet:"steepness"`
	Latitude       *float64 `parquet:"latitude"`
	Longitude      *float64 `parquet:"longitude"`
	WindBin        *float64 `parquet:"wind_bin"`
	WaveHeightBin  *float64 `parquet:"wave_ht_bin"`
}

// Timestamp returns the row time in UTC.
func (r NearbyRow) Timestamp() time.Time { return time.Unix(r.Time, 0).UTC() }

// FromNearby converts a nearby observation to its Parquet row.
func FromNearby(n domain.NearbyObservation) NearbyRow {
	return NearbyRow{
		SiteName:       n.SiteName,
		StationID:      n.StationID,
		Time:           n.Timestamp.Unix(),
		WindSpeed:      n.WindSpeed,
		WindGust:       n.WindGust,
		SwellHeight:    n.SwellHeight,
		SwellPeriod:    n.SwellPeriod,
		WindWaveHeight: n.WindWaveHeight,
		AveragePeriod:  n.AveragePeriod,
		Steepness:      n.Steepness,
		Latitude:       n.Latitude,
		Longitude:      n.Longitude,
		WindBin:        n.WindBin,
		WaveHeightBin:  n.WaveHeightBin,
	}
}

// Writer writes nearby observations to a Parquet file.
type Writer struct {
	path string
}

// NewWriter returns a Writer for the file at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the destination file.
func (w *Writer) Path() string { return w.path }

// ExportNearby replaces the file with rows, atomically via a .tmp file.
func (w *Writer) ExportNearby(ctx context.Context, rows []domain.NearbyObservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := make([]NearbyRow, len(rows))
	for i := range rows {
		out[i] = FromNearby(rows[i])
	}
	if err := writeFile(w.path, out); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

func writeFile(path string, rows []NearbyRow) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	pw := parquetgo.NewGenericWriter[NearbyRow](f)
	if _, err := pw.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := pw.Close(); err != nil {
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

// ReadNearby reads every row of a file written by ExportNearby.
func ReadNearby(path string) ([]NearbyRow, error) {
	rows, err := parquetgo.ReadFile[NearbyRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
