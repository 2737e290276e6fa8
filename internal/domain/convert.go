package domain

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
)

// KnotsToFeetPerSecond converts wind speed units: 1 knot = 1.68781 ft/s.
const KnotsToFeetPerSecond = 1.68781

// missingSentinel is the NDBC token for a missing measurement.
const missingSentinel = "MM"

// ConvertWindSpeed converts knots to ft/s using factor and rounds to two decimals.
func ConvertWindSpeed(knots, factor float64) float64 {
	return RoundTo(knots*factor, 2)
}

// RoundTo rounds half to even at the given number of decimals.
func RoundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}

// TypeObservations converts a general or spectrum report into observations.
// Rows whose timestamp cannot be built are logged and skipped; the number
// skipped is returned. knotsFactor converts wind speed and gust.
func TypeObservations(rep Report, fields FieldMap, knotsFactor float64, logger *slog.Logger) ([]Observation, int) {
	idx := fields.Index(rep.Header)
	out := make([]Observation, 0, len(rep.Rows))
	skipped := 0

	for i, row := range rep.Rows {
		ts, err := parseTimestamp(row, idx)
		if err != nil {
			logger.Warn("skipping malformed record",
				"error", fmt.Errorf("%w: station %s row %d: %w", ErrMalformedRecord, rep.StationID, i+1, err),
				"station", rep.StationID,
				"kind", rep.Kind,
			)
			skipped++
			continue
		}

		obs := Observation{
			StationID: rep.StationID,
			Timestamp: ts,
		}
		switch rep.Kind {
		case KindSpectrum:
			obs.SwellHeight = optionalFloat(cell(row, idx, ColSwellHeight))
			obs.SwellPeriod = optionalFloat(cell(row, idx, ColSwellPeriod))
			obs.WindWaveHeight = optionalFloat(cell(row, idx, ColWindWaveHeight))
			obs.AveragePeriod = optionalFloat(cell(row, idx, ColAveragePeriod))
			obs.Steepness = optionalString(cell(row, idx, ColSteepness))
		default:
			obs.WindSpeed = convertOptional(optionalFloat(cell(row, idx, ColWindSpeed)), knotsFactor)
			obs.WindGust = convertOptional(optionalFloat(cell(row, idx, ColWindGust)), knotsFactor)
			obs.AveragePeriod = optionalFloat(cell(row, idx, ColAveragePeriod))
		}
		out = append(out, obs)
	}
	return out, skipped
}

// ParseStationLocations converts the master station list into locations.
// Rows without a station id or valid coordinates are logged and skipped.
// A station listed twice keeps its last row; the number replaced is returned.
func ParseStationLocations(rep Report, fields FieldMap, logger *slog.Logger) ([]StationLocation, int) {
	idx := fields.Index(rep.Header)
	byID := make(map[string]int, len(rep.Rows))
	out := make([]StationLocation, 0, len(rep.Rows))
	dupes := 0

	for i, row := range rep.Rows {
		id := cell(row, idx, ColStationID)
		lat := optionalFloat(cell(row, idx, ColLatitude))
		lon := optionalFloat(cell(row, idx, ColLongitude))
		if id == "" || lat == nil || lon == nil || !validLatLon(*lat, *lon) {
			logger.Warn("skipping malformed record",
				"error", fmt.Errorf("%w: station list row %d", ErrMalformedRecord, i+1),
				"station", id,
			)
			continue
		}

		loc := StationLocation{StationID: id, Latitude: *lat, Longitude: *lon}
		if at, ok := byID[id]; ok {
			out[at] = loc
			dupes++
			continue
		}
		byID[id] = len(out)
		out = append(out, loc)
	}
	return out, dupes
}

func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// optionalFloat parses a measurement, returning nil for the missing sentinel,
// empty cells, and unparseable values.
func optionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == missingSentinel {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}

func optionalString(s string) string {
	s = strings.TrimSpace(s)
	if s == missingSentinel {
		return ""
	}
	return s
}

func convertOptional(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	c := ConvertWindSpeed(*v, factor)
	return &c
}

// parseTimestamp builds a UTC time from the year/month/day/hour/minute columns.
// Two-digit years are taken as 20YY.
func parseTimestamp(row []string, idx map[string]int) (time.Time, error) {
	parts := [5]int{}
	for i, col := range []string{ColYear, ColMonth, ColDay, ColHour, ColMinute} {
		v, err := strconv.Atoi(cell(row, idx, col))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s %q", col, cell(row, idx, col))
		}
		parts[i] = v
	}

	year, month, day, hour, minute := parts[0], parts[1], parts[2], parts[3], parts[4]
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("timestamp out of range %04d-%02d-%02d %02d:%02d", year, month, day, hour, minute)
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if ts.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return ts, nil
}

func validLatLon(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
