package spatial

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// StationPoint is a station location in a planar CRS.
type StationPoint struct {
	StationID string
	LonLat    orb.Point
	Point     orb.Point
}

// StationSet is a collection of projected stations sharing one CRS.
type StationSet struct {
	CRS      CRS
	Stations []StationPoint
}

// ProjectStations projects station locations with proj. The result is sorted
// by station id.
func ProjectStations(locs []domain.StationLocation, proj Projection) (StationSet, error) {
	if proj == nil {
		return StationSet{}, fmt.Errorf("%w: no projection given", domain.ErrProjectionMismatch)
	}
	set := StationSet{CRS: proj.CRS(), Stations: make([]StationPoint, 0, len(locs))}
	for _, l := range locs {
		lonlat := orb.Point{l.Longitude, l.Latitude}
		set.Stations = append(set.Stations, StationPoint{
			StationID: l.StationID,
			LonLat:    lonlat,
			Point:     proj.Forward(lonlat),
		})
	}
	slices.SortFunc(set.Stations, func(a, b StationPoint) int {
		return cmp.Compare(a.StationID, b.StationID)
	})
	return set, nil
}

// Select returns one association per (site, station) pair where the station
// lies inside or on the site's buffer. A station inside several overlapping
// buffers appears once per site. Output follows site order, then station id.
func Select(buffers BufferSet, stations StationSet) ([]domain.Association, error) {
	if err := ValidateCRS(map[string]CRS{
		"buffers":  buffers.CRS,
		"stations": stations.CRS,
	}); err != nil {
		return nil, fmt.Errorf("select nearby stations: %w", err)
	}

	ordered := slices.Clone(stations.Stations)
	slices.SortStableFunc(ordered, func(a, b StationPoint) int {
		return cmp.Compare(a.StationID, b.StationID)
	})

	var out []domain.Association
	for _, b := range buffers.Buffers {
		var last string
		for _, st := range ordered {
			if st.StationID == last {
				continue
			}
			if b.Contains(st) {
				out = append(out, domain.Association{SiteName: b.Site.Name, StationID: st.StationID})
				last = st.StationID
			}
		}
	}
	return out, nil
}
