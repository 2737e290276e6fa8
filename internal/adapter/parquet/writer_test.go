package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestExportNearby_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	rows := []domain.NearbyObservation{
		{
			SiteName: "Kennedy",
			Observation: domain.Observation{
				StationID:      "41009",
				Timestamp:      ts,
				WindSpeed:      ptr(16.88),
				WindWaveHeight: ptr(0.9),
				Steepness:      "AVERAGE",
				Latitude:       ptr(28.5),
				Longitude:      ptr(-80.18),
			},
			WindBin:       ptr(17),
			WaveHeightBin: ptr(0.9),
		},
		{
			SiteName:    "Pensacola",
			Observation: domain.Observation{StationID: "42039", Timestamp: ts},
		},
	}

	path := filepath.Join(t.TempDir(), "nearby_wx.parquet")
	require.NoError(t, NewWriter(path).ExportNearby(context.Background(), rows))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := ReadNearby(path)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Kennedy", got[0].SiteName)
	assert.Equal(t, "41009", got[0].StationID)
	assert.Equal(t, ts, got[0].Timestamp())
	require.NotNil(t, got[0].WindSpeed)
	assert.InDelta(t, 16.88, *got[0].WindSpeed, 1e-9)
	assert.InDelta(t, 17.0, *got[0].WindBin, 1e-9)
	assert.Equal(t, "AVERAGE", got[0].Steepness)

	assert.Nil(t, got[1].WindSpeed, "absent values stay null")
	assert.Nil(t, got[1].WaveHeightBin)
}

func TestExportNearby_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "nearby_wx.parquet")
	err := NewWriter(path).ExportNearby(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadNearby_Missing(t *testing.T) {
	_, err := ReadNearby(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
