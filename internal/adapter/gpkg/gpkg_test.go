package gpkg

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/spatial"
)

func testLayers(t *testing.T, proj spatial.Projection) []spatial.Layer {
	t.Helper()
	sites := []domain.Site{
		{Name: "Kennedy", Latitude: 28.4, Longitude: -80.6},
		{Name: "Pensacola", Latitude: 30.2, Longitude: -87.3},
	}
	buffers, err := spatial.BuildBuffers(sites, spatial.NauticalMilesToMeters(150), proj)
	require.NoError(t, err)
	stations, err := spatial.ProjectStations([]domain.StationLocation{
		{StationID: "41009", Latitude: 28.5, Longitude: -80.2},
		{StationID: "42039", Latitude: 28.8, Longitude: -86.0},
		{StationID: "44025", Latitude: 40.3, Longitude: -73.2},
	}, proj)
	require.NoError(t, err)
	assocs, err := spatial.Select(buffers, stations)
	require.NoError(t, err)

	at := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	wind, wave := 16.9, 0.9
	obs := []domain.Observation{
		{StationID: "41009", Timestamp: at, WindSpeed: &wind, WindWaveHeight: &wave, Steepness: "AVERAGE"},
		{StationID: "42039", Timestamp: at},
		{StationID: "99999", Timestamp: at, WindSpeed: &wind},
	}

	return []spatial.Layer{
		spatial.StationLayer(stations),
		spatial.SiteLayer(buffers),
		spatial.BufferLayer(buffers),
		spatial.NearbyLayer(stations, assocs),
		spatial.WeatherLayer(stations, obs),
	}
}

func TestRoundTrip(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	proj, err := spatial.NewProjection("AEQD", []domain.Site{{Name: "c", Latitude: 29, Longitude: -84}})
	require.NoError(t, err)
	layers := testLayers(t, proj)

	path := filepath.Join(t.TempDir(), "splash_down.gpkg")
	ctx := context.Background()
	require.NoError(t, NewWriter(path).WriteLayers(ctx, "run-1", layers))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	appID, err := r.ApplicationID(ctx)
	require.NoError(t, err)
	assert.Equal(t, applicationID, appID)

	infos, err := r.Layers(ctx)
	require.NoError(t, err)
	require.Len(t, infos, len(layers))

	byName := make(map[string]LayerInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	for _, l := range layers {
		info, ok := byName[l.Name]
		require.True(t, ok, "layer %s missing", l.Name)
		assert.Equal(t, len(l.Features), info.Features, l.Name)
		assert.Equal(t, l.CRS, info.CRS, l.Name)
		assert.Equal(t, l.GeometryType, info.GeometryType, l.Name)
		assert.Contains(t, info.Description, "run-1")
	}

	geoms, err := r.Geometries(ctx, spatial.LayerStations)
	require.NoError(t, err)
	require.Len(t, geoms, 3)
	assert.Equal(t, layers[0].Features[0].Geometry, geoms[0])

	rings, err := r.Geometries(ctx, spatial.LayerBuffers)
	require.NoError(t, err)
	require.Len(t, rings, 2)
	poly, ok := rings[0].(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, poly[0], spatial.RingVertices+1)

	nearby, err := r.ReadNearby(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Association{
		{SiteName: "Kennedy", StationID: "41009"},
		{SiteName: "Pensacola", StationID: "42039"},
	}, nearby)

	// wx_data keeps located observations only, with NULL for missing values.
	assert.Equal(t, 2, byName[spatial.LayerWeather].Features)
	var (
		station, ts    string
		windSpd, swell sql.NullFloat64
		steepness      sql.NullString
	)
	require.NoError(t, r.db.QueryRowContext(ctx,
		`SELECT station_id, timestamp, wind_spd, swell_height, steepness FROM wx_data ORDER BY fid LIMIT 1`,
	).Scan(&station, &ts, &windSpd, &swell, &steepness))
	assert.Equal(t, "41009", station)
	assert.Equal(t, "2024-04-26T15:10:00Z", ts)
	assert.Equal(t, sql.NullFloat64{Float64: 16.9, Valid: true}, windSpd)
	assert.False(t, swell.Valid)
	assert.Equal(t, "AVERAGE", steepness.String)
}

func TestWriteLayers_Overwrites(t *testing.T) {
	proj := spatial.NewPlanar("PLANAR:test")
	layers := testLayers(t, proj)
	path := filepath.Join(t.TempDir(), "out.gpkg")
	w := NewWriter(path)
	ctx := context.Background()

	require.NoError(t, w.WriteLayers(ctx, "", layers))
	require.NoError(t, w.WriteLayers(ctx, "", layers[:2]))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	infos, err := r.Layers(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestWriteLayers_RejectsMixedCRS(t *testing.T) {
	layers := testLayers(t, spatial.NewPlanar("PLANAR:test"))
	layers[1].CRS = spatial.WebMercator

	path := filepath.Join(t.TempDir(), "out.gpkg")
	err := NewWriter(path).WriteLayers(context.Background(), "", layers)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProjectionMismatch)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.gpkg"))
	assert.Error(t, err)
}

func TestGeometryBlob(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
	}{
		{"point", orb.Point{1.5, -2.25}},
		{"polygon", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := encodeGeometry(tt.geom, 3857)
			require.NoError(t, err)
			assert.Equal(t, []byte{'G', 'P', 0, 0x03}, blob[:4])

			got, srs, err := decodeGeometry(blob)
			require.NoError(t, err)
			assert.Equal(t, 3857, srs)
			assert.Equal(t, tt.geom, got)
		})
	}

	_, _, err := decodeGeometry([]byte("nope"))
	assert.ErrorIs(t, err, errBadBlob)
}
