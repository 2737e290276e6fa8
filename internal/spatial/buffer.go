package spatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

const (
	// MetersPerNauticalMile is the international nautical mile.
	MetersPerNauticalMile = 1852.0

	// RingVertices is the number of distinct vertices in a buffer ring,
	// 16 segments per quarter circle.
	RingVertices = 64
)

// NauticalMilesToMeters converts a radius given in nautical miles.
func NauticalMilesToMeters(nm float64) float64 { return nm * MetersPerNauticalMile }

// Buffer is a fixed-radius disc around one site. Membership is decided by
// great-circle distance from the site; Center and Ring are its footprint in
// the planar CRS. Sites given in a PLANAR CRS have no ground distance and are
// tested in the plane.
type Buffer struct {
	Site         domain.Site
	Center       orb.Point
	Radius       float64 // planar units at the site
	RadiusMeters float64
	Ring         orb.Ring

	planar bool
}

// Contains reports whether st lies inside or on the buffer's circle.
func (b Buffer) Contains(st StationPoint) bool {
	if b.planar {
		return planarDistance(b.Center, st.Point) <= b.Radius
	}
	site := orb.Point{b.Site.Longitude, b.Site.Latitude}
	return geo.DistanceHaversine(site, st.LonLat) <= b.RadiusMeters
}

// BufferSet is the buffers for every site, all in one CRS.
type BufferSet struct {
	CRS     CRS
	Buffers []Buffer
}

// BuildBuffers projects each site and buffers it by radiusMeters of ground
// distance. It refuses to build buffers in a geographic CRS.
func BuildBuffers(sites []domain.Site, radiusMeters float64, proj Projection) (BufferSet, error) {
	if proj == nil {
		return BufferSet{}, fmt.Errorf("%w: no projection given", domain.ErrProjectionMismatch)
	}
	crs := proj.CRS()
	if !crs.Defined() || !crs.Projected {
		return BufferSet{}, fmt.Errorf("%w: cannot buffer in %s", domain.ErrProjectionMismatch, crs)
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return BufferSet{}, fmt.Errorf("buffer radius must be positive, got %v", radiusMeters)
	}

	_, planar := proj.(Planar)
	set := BufferSet{CRS: crs, Buffers: make([]Buffer, 0, len(sites))}
	for _, s := range sites {
		lonlat := orb.Point{s.Longitude, s.Latitude}
		center := proj.Forward(lonlat)
		b := Buffer{
			Site:         s,
			Center:       center,
			Radius:       radiusMeters * proj.Scale(lonlat),
			RadiusMeters: radiusMeters,
			planar:       planar,
		}
		if planar {
			b.Ring = circleRing(center, b.Radius, RingVertices)
		} else {
			b.Ring = geodesicRing(lonlat, radiusMeters, RingVertices, proj)
		}
		set.Buffers = append(set.Buffers, b)
	}
	return set, nil
}

// geodesicRing projects n points at ground distance r from lonlat, starting
// due east and running counter-clockwise, and closes the ring.
func geodesicRing(lonlat orb.Point, r float64, n int, proj Projection) orb.Ring {
	ring := make(orb.Ring, 0, n+1)
	for i := range n {
		bearing := 90 - 360*float64(i)/float64(n)
		p := geo.PointAtBearingAndDistance(lonlat, bearing, r)
		p[0] = normalizeLon(p[0])
		ring = append(ring, proj.Forward(p))
	}
	return append(ring, ring[0])
}

// circleRing returns a closed ring of n distinct vertices on the circle,
// starting due east and running counter-clockwise.
func circleRing(center orb.Point, r float64, n int) orb.Ring {
	ring := make(orb.Ring, 0, n+1)
	for i := range n {
		theta := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{
			center.X() + r*math.Cos(theta),
			center.Y() + r*math.Sin(theta),
		})
	}
	return append(ring, ring[0])
}

func planarDistance(a, b orb.Point) float64 {
	return math.Hypot(a.X()-b.X(), a.Y()-b.Y())
}
