package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "station", "41009")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "41009", entry["station"])

	buf.Reset()
	newLogger(&buf, "debug", "text").Debug("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewMetricsForTesting(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.RecordsParsed.WithLabelValues("txt").Add(3)
	assert.InDelta(t, 3.0, testutil.ToFloat64(a.RecordsParsed.WithLabelValues("txt")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.RecordsParsed.WithLabelValues("txt")), 1e-9)
}
