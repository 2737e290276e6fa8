package spatial

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// Layer names in the output package.
const (
	LayerStations = "buoys_all"
	LayerSites    = "sites"
	LayerBuffers  = "buoy_selection_rings"
	LayerNearby   = "nearby_wx_stations"
	LayerWeather  = "wx_data"
)

// Column types understood by the layer writers.
const (
	TypeText    = "TEXT"
	TypeReal    = "REAL"
	TypeInteger = "INTEGER"
)

// Column is an attribute column of a layer.
type Column struct {
	Name string
	Type string
}

// Feature is one geometry plus its attribute values, in column order.
type Feature struct {
	Geometry orb.Geometry
	Values   []any
}

// Layer is a named, homogeneous set of features in a single CRS.
type Layer struct {
	Name         string
	Description  string
	CRS          CRS
	GeometryType string // POINT or POLYGON
	Columns      []Column
	Features     []Feature
}

// ValidateLayers checks every layer's CRS with ValidateCRS.
func ValidateLayers(layers ...Layer) error {
	crs := make(map[string]CRS, len(layers))
	for _, l := range layers {
		if _, dup := crs[l.Name]; dup {
			return fmt.Errorf("duplicate layer name %q", l.Name)
		}
		crs[l.Name] = l.CRS
	}
	return ValidateCRS(crs)
}

// StationLayer is every projected station as a point.
func StationLayer(set StationSet) Layer {
	l := Layer{
		Name:         LayerStations,
		Description:  "All station locations",
		CRS:          set.CRS,
		GeometryType: "POINT",
		Columns: []Column{
			{Name: "station_id", Type: TypeText},
			{Name: "longitude", Type: TypeReal},
			{Name: "latitude", Type: TypeReal},
		},
	}
	for _, st := range set.Stations {
		l.Features = append(l.Features, Feature{
			Geometry: st.Point,
			Values:   []any{st.StationID, st.LonLat.Lon(), st.LonLat.Lat()},
		})
	}
	return l
}

// SiteLayer is the center point of every buffered site.
func SiteLayer(set BufferSet) Layer {
	l := Layer{
		Name:         LayerSites,
		Description:  "Sites of interest",
		CRS:          set.CRS,
		GeometryType: "POINT",
		Columns: []Column{
			{Name: "name", Type: TypeText},
			{Name: "latitude", Type: TypeReal},
			{Name: "longitude", Type: TypeReal},
		},
	}
	for _, b := range set.Buffers {
		l.Features = append(l.Features, Feature{
			Geometry: b.Center,
			Values:   []any{b.Site.Name, b.Site.Latitude, b.Site.Longitude},
		})
	}
	return l
}

// BufferLayer is the ring polygon of every buffer.
func BufferLayer(set BufferSet) Layer {
	l := Layer{
		Name:         LayerBuffers,
		Description:  "Station selection buffers around each site",
		CRS:          set.CRS,
		GeometryType: "POLYGON",
		Columns: []Column{
			{Name: "site_name", Type: TypeText},
			{Name: "radius", Type: TypeReal},
		},
	}
	for _, b := range set.Buffers {
		l.Features = append(l.Features, Feature{
			Geometry: orb.Polygon{b.Ring},
			Values:   []any{b.Site.Name, b.Radius},
		})
	}
	return l
}

// NearbyLayer is one point per association, located at the station.
func NearbyLayer(set StationSet, assocs []domain.Association) Layer {
	l := Layer{
		Name:         LayerNearby,
		Description:  "Stations inside a site buffer",
		CRS:          set.CRS,
		GeometryType: "POINT",
		Columns: []Column{
			{Name: "site_name", Type: TypeText},
			{Name: "station_id", Type: TypeText},
		},
	}
	points := make(map[string]orb.Point, len(set.Stations))
	for _, st := range set.Stations {
		points[st.StationID] = st.Point
	}
	for _, a := range assocs {
		p, ok := points[a.StationID]
		if !ok {
			continue
		}
		l.Features = append(l.Features, Feature{
			Geometry: p,
			Values:   []any{a.SiteName, a.StationID},
		})
	}
	return l
}

// WeatherLayer is one point per merged observation, located at its station.
// Observations whose station has no location are left out.
func WeatherLayer(set StationSet, obs []domain.Observation) Layer {
	l := Layer{
		Name:         LayerWeather,
		Description:  "Merged station observations",
		CRS:          set.CRS,
		GeometryType: "POINT",
		Columns: []Column{
			{Name: "station_id", Type: TypeText},
			{Name: "timestamp", Type: TypeText},
			{Name: "wind_spd", Type: TypeReal},
			{Name: "wind_gust", Type: TypeReal},
			{Name: "wind_wave_height", Type: TypeReal},
			{Name: "swell_height", Type: TypeReal},
			{Name: "swell_period", Type: TypeReal},
			{Name: "ave_period", Type: TypeReal},
			{Name: "steepness", Type: TypeText},
		},
	}
	points := make(map[string]orb.Point, len(set.Stations))
	for _, st := range set.Stations {
		points[st.StationID] = st.Point
	}
	for _, o := range obs {
		p, ok := points[o.StationID]
		if !ok {
			continue
		}
		var steepness any
		if o.Steepness != "" {
			steepness = o.Steepness
		}
		l.Features = append(l.Features, Feature{
			Geometry: p,
			Values: []any{
				o.StationID, o.Timestamp.UTC().Format(time.RFC3339),
				nullable(o.WindSpeed), nullable(o.WindGust),
				nullable(o.WindWaveHeight), nullable(o.SwellHeight),
				nullable(o.SwellPeriod), nullable(o.AveragePeriod),
				steepness,
			},
		})
	}
	return l
}

// nullable unwraps v so a missing value is stored as NULL.
func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
