package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Normalized column names.
const (
	ColStationID      = "station_id"
	ColLatitude       = "latitude"
	ColLongitude      = "longitude"
	ColYear           = "year"
	ColMonth          = "month"
	ColDay            = "day"
	ColHour           = "hour"
	ColMinute         = "minute"
	ColWindSpeed      = "wind_spd"
	ColWindGust       = "wind_gust"
	ColSwellHeight    = "swell_height"
	ColSwellPeriod    = "swell_period"
	ColWindWaveHeight = "wind_wave_height"
	ColAveragePeriod  = "ave_period"
	ColSteepness      = "steepness"
)

// FieldMap translates raw NDBC column names to normalized names.
type FieldMap map[string]string

// DefaultFieldMap covers the realtime2 .txt and .spec headers and latest_obs.txt.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		"STN":       ColStationID,
		"LAT":       ColLatitude,
		"LON":       ColLongitude,
		"YY":        ColYear,
		"YYYY":      ColYear,
		"MM":        ColMonth,
		"DD":        ColDay,
		"hh":        ColHour,
		"mm":        ColMinute,
		"WDIR":      "wind_dir",
		"WSPD":      ColWindSpeed,
		"GST":       ColWindGust,
		"WVHT":      "wave_height",
		"DPD":       "dominant_period",
		"APD":       ColAveragePeriod,
		"MWD":       "mean_wave_dir",
		"PRES":      "pressure",
		"PTDY":      "pressure_tendency",
		"ATMP":      "air_temp",
		"WTMP":      "water_temp",
		"DEWP":      "dew_point",
		"VIS":       "visibility",
		"TIDE":      "tide",
		"SwH":       ColSwellHeight,
		"SwP":       ColSwellPeriod,
		"SwD":       "swell_dir",
		"WWH":       ColWindWaveHeight,
		"WWP":       "wind_wave_period",
		"WWD":       "wind_wave_dir",
		"STEEPNESS": ColSteepness,
	}
}

// LoadFieldMap reads a headerless two-column CSV of raw,normalized names.
// A leading '#' on the raw name is ignored.
func LoadFieldMap(r io.Reader) (FieldMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	fm := FieldMap{}
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load field map: %w", err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("load field map: line %d: want 2 columns, got %d", line, len(rec))
		}
		raw := strings.TrimPrefix(strings.TrimSpace(rec[0]), "#")
		norm := strings.TrimSpace(rec[1])
		if raw == "" || norm == "" {
			continue
		}
		fm[raw] = norm
	}
	if len(fm) == 0 {
		return nil, errors.New("load field map: no mappings")
	}
	return fm, nil
}

// Normalize maps each raw header name. Unmapped names pass through lowercased.
func (fm FieldMap) Normalize(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if n, ok := fm[h]; ok {
			out[i] = n
			continue
		}
		out[i] = strings.ToLower(h)
	}
	return out
}

// Index returns normalized column name -> position for a raw header.
// The first occurrence wins when two raw names map to the same column.
func (fm FieldMap) Index(header []string) map[string]int {
	names := fm.Normalize(header)
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if _, seen := idx[n]; !seen {
			idx[n] = i
		}
	}
	return idx
}
