package domain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

// maxLineBytes bounds a single report line; NDBC lines are under 200 bytes.
const maxLineBytes = 64 * 1024

// StationIDFromPath derives the station id from a report file name,
// e.g. "data/spec/41009.spec" -> "41009".
func StationIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParseReport reads a whitespace-delimited NDBC report. The first line is the
// header, the second (units) is discarded, and every later line becomes a row
// tagged with stationID. Rows whose field count differs from the header are
// logged and skipped; they never fail the file.
func ParseReport(r io.Reader, stationID string, kind ReportKind, logger *slog.Logger) (Report, ParseStats, error) {
	rep := Report{StationID: stationID, Kind: kind}
	var stats ParseStats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for sc.Scan() {
		stats.Lines++
		fields := strings.Fields(sc.Text())

		switch stats.Lines {
		case 1:
			rep.Header = normalizeHeader(fields)
			if len(rep.Header) == 0 {
				return Report{}, stats, fmt.Errorf("parse report %s: empty header", stationID)
			}
			continue
		case 2:
			continue
		}

		if len(fields) != len(rep.Header) {
			err := fmt.Errorf("%w: station %s line %d: got %d fields, want %d",
				ErrMalformedRecord, stationID, stats.Lines, len(fields), len(rep.Header))
			logger.Warn("skipping malformed record",
				"error", err,
				"station", stationID,
				"kind", kind,
				"line", stats.Lines,
			)
			stats.Skipped++
			continue
		}
		rep.Rows = append(rep.Rows, fields)
	}
	if err := sc.Err(); err != nil {
		return Report{}, stats, fmt.Errorf("parse report %s: %w", stationID, err)
	}
	if stats.Lines == 0 {
		return Report{}, stats, fmt.Errorf("parse report %s: %w", stationID, errEmptyReport)
	}

	stats.Rows = len(rep.Rows)
	return rep, stats, nil
}

var errEmptyReport = errors.New("empty report")

// normalizeHeader strips the comment marker NDBC puts on the first column.
func normalizeHeader(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for i, f := range fields {
		if i == 0 {
			f = strings.TrimPrefix(f, "#")
			if f == "" {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}
