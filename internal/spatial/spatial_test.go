package spatial

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

var (
	site1 = domain.Site{Name: "site1", Longitude: 0, Latitude: 0}
	site2 = domain.Site{Name: "site2", Longitude: 3, Latitude: 0}
)

func scenarioStations() []domain.StationLocation {
	return []domain.StationLocation{
		{StationID: "E", Longitude: 0, Latitude: 5},
		{StationID: "A", Longitude: 1.5, Latitude: 0},
		{StationID: "D", Longitude: -5, Latitude: -5},
		{StationID: "B", Longitude: -1, Latitude: 0},
		{StationID: "C", Longitude: 10, Latitude: 10},
	}
}

func selectPlanar(t *testing.T, sites []domain.Site, locs []domain.StationLocation, radius float64) []domain.Association {
	t.Helper()
	proj := NewPlanar("PLANAR:test")
	buffers, err := BuildBuffers(sites, radius, proj)
	require.NoError(t, err)
	stations, err := ProjectStations(locs, proj)
	require.NoError(t, err)
	assocs, err := Select(buffers, stations)
	require.NoError(t, err)
	return assocs
}

func TestSelect_Scenario(t *testing.T) {
	assocs := selectPlanar(t, []domain.Site{site1, site2}, scenarioStations(), 2)

	assert.Equal(t, []domain.Association{
		{SiteName: "site1", StationID: "A"},
		{SiteName: "site1", StationID: "B"},
		{SiteName: "site2", StationID: "A"},
	}, assocs)
}

func TestSelect_BoundaryInclusive(t *testing.T) {
	tests := []struct {
		name   string
		x      float64
		inside bool
	}{
		{"on boundary", 2, true},
		{"just inside", 1.999999, true},
		{"just outside", 2.000001, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assocs := selectPlanar(t, []domain.Site{site1},
				[]domain.StationLocation{{StationID: "X", Longitude: tt.x}}, 2)
			if tt.inside {
				assert.Len(t, assocs, 1)
			} else {
				assert.Empty(t, assocs)
			}
		})
	}
}

func TestSelect_Idempotent(t *testing.T) {
	proj := NewPlanar("PLANAR:test")
	buffers, err := BuildBuffers([]domain.Site{site1, site2}, 2, proj)
	require.NoError(t, err)
	stations, err := ProjectStations(scenarioStations(), proj)
	require.NoError(t, err)

	first, err := Select(buffers, stations)
	require.NoError(t, err)
	second, err := Select(buffers, stations)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSelect_ProjectionMismatch(t *testing.T) {
	proj := NewPlanar("PLANAR:a")
	buffers, err := BuildBuffers([]domain.Site{site1}, 2, proj)
	require.NoError(t, err)

	tests := []struct {
		name string
		crs  CRS
	}{
		{"undefined", CRS{}},
		{"geographic", WGS84},
		{"different planar", PlanarCRS("PLANAR:b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stations := StationSet{CRS: tt.crs, Stations: []StationPoint{{StationID: "A"}}}
			_, err := Select(buffers, stations)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrProjectionMismatch)
		})
	}
}

type geographic struct{}

func (geographic) CRS() CRS                      { return WGS84 }
func (geographic) Forward(p orb.Point) orb.Point { return p }
func (geographic) Inverse(p orb.Point) orb.Point { return p }
func (geographic) Scale(orb.Point) float64       { return 1 }

func TestBuildBuffers_RefusesGeographic(t *testing.T) {
	_, err := BuildBuffers([]domain.Site{site1}, 1000, geographic{})
	assert.ErrorIs(t, err, domain.ErrProjectionMismatch)

	_, err = NewProjection("EPSG:4326", []domain.Site{site1})
	assert.ErrorIs(t, err, domain.ErrProjectionMismatch)
}

func TestBuildBuffers_Ring(t *testing.T) {
	set, err := BuildBuffers([]domain.Site{site2}, 2, NewPlanar("PLANAR:test"))
	require.NoError(t, err)
	require.Len(t, set.Buffers, 1)

	ring := set.Buffers[0].Ring
	require.Len(t, ring, RingVertices+1)
	assert.True(t, ring.Closed())
	for _, p := range ring {
		assert.InDelta(t, 2.0, planarDistance(orb.Point{3, 0}, p), 1e-9)
	}

	_, err = BuildBuffers([]domain.Site{site1}, 0, NewPlanar("PLANAR:test"))
	assert.Error(t, err)
}

func TestAzimuthalEquidistant_PreservesDistanceFromCenter(t *testing.T) {
	center := orb.Point{-80.6, 28.4}
	proj := NewAzimuthalEquidistant(center)

	for _, p := range []orb.Point{{-78.5, 30.1}, {-87.3, 30.2}, {-80.6, 25.0}, {-75.0, 28.4}} {
		projected := proj.Forward(p)
		want := geo.DistanceHaversine(center, p)
		assert.InDelta(t, want, planarDistance(orb.Point{}, projected), 1e-3)

		back := proj.Inverse(projected)
		assert.InDelta(t, p.Lon(), back.Lon(), 1e-9)
		assert.InDelta(t, p.Lat(), back.Lat(), 1e-9)
	}

	assert.Equal(t, orb.Point{0, 0}, proj.Forward(center))
	assert.True(t, proj.CRS().Projected)
}

func TestAzimuthalEquidistant_SelectsByGroundDistance(t *testing.T) {
	sites := []domain.Site{{Name: "Kennedy", Latitude: 28.4, Longitude: -80.6}}
	proj, err := NewProjection("AEQD", sites)
	require.NoError(t, err)

	radius := NauticalMilesToMeters(150)
	near := orb.Point{-80.6, 30.0} // ~96 nm north
	far := orb.Point{-80.6, 31.2}  // ~168 nm north
	require.Less(t, geo.DistanceHaversine(orb.Point{-80.6, 28.4}, near), radius)
	require.Greater(t, geo.DistanceHaversine(orb.Point{-80.6, 28.4}, far), radius)

	buffers, err := BuildBuffers(sites, radius, proj)
	require.NoError(t, err)
	stations, err := ProjectStations([]domain.StationLocation{
		{StationID: "NEAR", Longitude: near.Lon(), Latitude: near.Lat()},
		{StationID: "FAR", Longitude: far.Lon(), Latitude: far.Lat()},
	}, proj)
	require.NoError(t, err)

	assocs, err := Select(buffers, stations)
	require.NoError(t, err)
	assert.Equal(t, []domain.Association{{SiteName: "Kennedy", StationID: "NEAR"}}, assocs)
}

// Sites a continent apart share one CRS; every buffer must still reach the
// same ground distance from its own site.
func TestSelect_WidelySeparatedSites(t *testing.T) {
	florida := domain.Site{Name: "Florida", Latitude: 29.5, Longitude: -80.5}
	pacific := domain.Site{Name: "Pacific", Latitude: 32.5, Longitude: -117.5}
	sites := []domain.Site{florida, pacific}
	radius := NauticalMilesToMeters(150)

	north := func(s domain.Site, nm float64) domain.StationLocation {
		p := geo.PointAtBearingAndDistance(orb.Point{s.Longitude, s.Latitude}, 0, NauticalMilesToMeters(nm))
		return domain.StationLocation{Longitude: p.Lon(), Latitude: p.Lat()}
	}
	locs := []domain.StationLocation{north(pacific, 148), north(pacific, 149), north(pacific, 151), north(florida, 149)}
	for i, id := range []string{"P148", "P149", "P151", "F149"} {
		locs[i].StationID = id
	}

	for _, code := range []string{"AEQD", "EPSG:3857"} {
		t.Run(code, func(t *testing.T) {
			proj, err := NewProjection(code, sites)
			require.NoError(t, err)
			buffers, err := BuildBuffers(sites, radius, proj)
			require.NoError(t, err)
			stations, err := ProjectStations(locs, proj)
			require.NoError(t, err)

			assocs, err := Select(buffers, stations)
			require.NoError(t, err)
			assert.Equal(t, []domain.Association{
				{SiteName: "Florida", StationID: "F149"},
				{SiteName: "Pacific", StationID: "P148"},
				{SiteName: "Pacific", StationID: "P149"},
			}, assocs)

			for _, b := range buffers.Buffers {
				site := orb.Point{b.Site.Longitude, b.Site.Latitude}
				for _, v := range b.Ring {
					assert.InDelta(t, radius, geo.DistanceHaversine(site, proj.Inverse(v)), 1, b.Site.Name)
				}
			}
		})
	}
}

func TestSelect_AcrossAntimeridian(t *testing.T) {
	east := domain.Site{Name: "East", Latitude: 0, Longitude: 179.5}
	west := domain.Site{Name: "West", Latitude: 0, Longitude: -179.5}
	sites := []domain.Site{east, west}

	proj, err := NewProjection("AEQD", sites)
	require.NoError(t, err)
	center := proj.(AzimuthalEquidistant).Center()
	assert.InDelta(t, 180, math.Abs(center.Lon()), 1e-9)
	assert.InDelta(t, 0, center.Lat(), 1e-9)

	north := geo.PointAtBearingAndDistance(orb.Point{west.Longitude, west.Latitude}, 0, NauticalMilesToMeters(100))
	buffers, err := BuildBuffers(sites, NauticalMilesToMeters(150), proj)
	require.NoError(t, err)
	stations, err := ProjectStations([]domain.StationLocation{
		{StationID: "N", Longitude: north.Lon(), Latitude: north.Lat()},
		{StationID: "FAR", Longitude: 170, Latitude: 0},
	}, proj)
	require.NoError(t, err)

	assocs, err := Select(buffers, stations)
	require.NoError(t, err)
	// N is ~117 nm from East across the antimeridian.
	assert.Equal(t, []domain.Association{
		{SiteName: "East", StationID: "N"},
		{SiteName: "West", StationID: "N"},
	}, assocs)
}

func TestMercator(t *testing.T) {
	m := Mercator{}
	assert.InDelta(t, 2.0, m.Scale(orb.Point{0, 60}), 1e-9)
	assert.InDelta(t, 1.0, m.Scale(orb.Point{10, 0}), 1e-9)

	p := orb.Point{-80.6, 28.4}
	back := m.Inverse(m.Forward(p))
	assert.InDelta(t, p.Lon(), back.Lon(), 1e-9)
	assert.InDelta(t, p.Lat(), back.Lat(), 1e-9)
	assert.Equal(t, WebMercator, m.CRS())
}

func TestNewProjection(t *testing.T) {
	sites := []domain.Site{site1, {Name: "x", Latitude: 10, Longitude: 20}}

	p, err := NewProjection("aeqd", sites)
	require.NoError(t, err)
	center := p.(AzimuthalEquidistant).Center()
	assert.InDelta(t, 9.92, center.Lon(), 0.01)
	assert.InDelta(t, 5.08, center.Lat(), 0.01)

	p, err = NewProjection("EPSG:3857", nil)
	require.NoError(t, err)
	assert.Equal(t, WebMercator, p.CRS())

	p, err = NewProjection("PLANAR:grid", nil)
	require.NoError(t, err)
	assert.Equal(t, "PLANAR:grid", p.CRS().Code)

	_, err = NewProjection("AEQD", nil)
	require.Error(t, err)
	_, err = NewProjection("EPSG:9999", sites)
	assert.ErrorIs(t, err, domain.ErrProjectionMismatch)
}

func TestLayers(t *testing.T) {
	proj := NewPlanar("PLANAR:test")
	buffers, err := BuildBuffers([]domain.Site{site1, site2}, 2, proj)
	require.NoError(t, err)
	stations, err := ProjectStations(scenarioStations(), proj)
	require.NoError(t, err)
	assocs, err := Select(buffers, stations)
	require.NoError(t, err)

	layers := []Layer{
		StationLayer(stations),
		SiteLayer(buffers),
		BufferLayer(buffers),
		NearbyLayer(stations, assocs),
		WeatherLayer(stations, []domain.Observation{
			{StationID: "A"},
			{StationID: "missing"},
		}),
	}
	require.NoError(t, ValidateLayers(layers...))
	require.Len(t, layers[4].Features, 1)
	assert.Equal(t, orb.Point{1.5, 0}, layers[4].Features[0].Geometry)
	assert.Nil(t, layers[4].Features[0].Values[2])

	assert.Len(t, layers[0].Features, 5)
	assert.Len(t, layers[1].Features, 2)
	assert.Len(t, layers[2].Features, 2)
	assert.Len(t, layers[3].Features, 3)
	assert.Equal(t, []any{"site1", "A"}, layers[3].Features[0].Values)
	assert.Equal(t, orb.Point{1.5, 0}, layers[3].Features[0].Geometry)

	for _, l := range layers {
		for _, f := range l.Features {
			assert.Len(t, f.Values, len(l.Columns), l.Name)
		}
	}

	mixed := layers[0]
	mixed.Name = "other"
	mixed.CRS = WebMercator
	assert.ErrorIs(t, ValidateLayers(layers[1], mixed), domain.ErrProjectionMismatch)
}
