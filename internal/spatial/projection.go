package spatial

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// Projection maps WGS84 lon/lat points into a planar CRS.
type Projection interface {
	CRS() CRS
	// Forward projects a lon/lat point.
	Forward(p orb.Point) orb.Point
	// Inverse returns the lon/lat of a projected point.
	Inverse(p orb.Point) orb.Point
	// Scale is the number of projected units per ground metre at a lon/lat point.
	Scale(p orb.Point) float64
}

// NewProjection builds the projection named by code: "AEQD" (centered on the
// centroid of sites), "EPSG:3857", or "PLANAR:<name>" for coordinates that are
// already projected.
func NewProjection(code string, sites []domain.Site) (Projection, error) {
	switch {
	case strings.EqualFold(code, "AEQD"):
		if len(sites) == 0 {
			return nil, fmt.Errorf("%w: AEQD needs at least one site to center on", domain.ErrProjectionMismatch)
		}
		return NewAzimuthalEquidistant(centroid(sites)), nil
	case strings.EqualFold(code, WebMercator.Code):
		return Mercator{}, nil
	case strings.HasPrefix(strings.ToUpper(code), "PLANAR:"):
		return NewPlanar(code), nil
	case strings.EqualFold(code, WGS84.Code):
		return nil, fmt.Errorf("%w: %s is geographic and cannot be used for metric buffers", domain.ErrProjectionMismatch, code)
	default:
		return nil, fmt.Errorf("%w: unknown coordinate reference %q", domain.ErrProjectionMismatch, code)
	}
}

// Mercator is spherical Web Mercator (EPSG:3857).
type Mercator struct{}

func (Mercator) CRS() CRS { return WebMercator }

func (Mercator) Forward(p orb.Point) orb.Point { return project.WGS84.ToMercator(p) }

func (Mercator) Inverse(p orb.Point) orb.Point { return project.Mercator.ToWGS84(p) }

// Scale grows with latitude as 1/cos(lat); Mercator is conformal, so a
// scale-corrected circle is locally a true circle on the ground.
func (Mercator) Scale(p orb.Point) float64 {
	return 1 / math.Cos(p.Lat()*math.Pi/180)
}

// AzimuthalEquidistant is the spherical azimuthal equidistant projection.
// Distances and directions from the center are true.
type AzimuthalEquidistant struct {
	center orb.Point
	crs    CRS
}

// NewAzimuthalEquidistant centers the projection on a lon/lat point.
func NewAzimuthalEquidistant(center orb.Point) AzimuthalEquidistant {
	return AzimuthalEquidistant{center: center, crs: aeqdCRS(center.Lat(), center.Lon())}
}

func (a AzimuthalEquidistant) CRS() CRS { return a.crs }

// Center returns the lon/lat projection center.
func (a AzimuthalEquidistant) Center() orb.Point { return a.center }

func (a AzimuthalEquidistant) Forward(p orb.Point) orb.Point {
	phi0, lam0 := radians(a.center.Lat()), radians(a.center.Lon())
	phi, lam := radians(p.Lat()), radians(p.Lon())
	dLam := lam - lam0

	// Central angle by haversine; acos loses precision near the center.
	h := math.Pow(math.Sin((phi-phi0)/2), 2) + math.Cos(phi0)*math.Cos(phi)*math.Pow(math.Sin(dLam/2), 2)
	c := 2 * math.Asin(math.Sqrt(math.Min(1, h)))

	k := 1.0
	if s := math.Sin(c); s > 1e-12 {
		k = c / s
	}
	x := orb.EarthRadius * k * math.Cos(phi) * math.Sin(dLam)
	y := orb.EarthRadius * k * (math.Cos(phi0)*math.Sin(phi) - math.Sin(phi0)*math.Cos(phi)*math.Cos(dLam))
	return orb.Point{x, y}
}

func (a AzimuthalEquidistant) Inverse(p orb.Point) orb.Point {
	phi0, lam0 := radians(a.center.Lat()), radians(a.center.Lon())
	rho := math.Hypot(p.X(), p.Y())
	if rho < 1e-9 {
		return a.center
	}
	c := rho / orb.EarthRadius

	phi := math.Asin(math.Cos(c)*math.Sin(phi0) + p.Y()*math.Sin(c)*math.Cos(phi0)/rho)
	lam := lam0 + math.Atan2(p.X()*math.Sin(c), rho*math.Cos(phi0)*math.Cos(c)-p.Y()*math.Sin(phi0)*math.Sin(c))
	return orb.Point{normalizeLon(degrees(lam)), degrees(phi)}
}

// Scale is 1: radial distances from the center are preserved.
func (a AzimuthalEquidistant) Scale(orb.Point) float64 { return 1 }

// Planar treats incoming coordinates as already projected.
type Planar struct {
	crs CRS
}

// NewPlanar returns a pass-through projection tagged with a local CRS.
func NewPlanar(code string) Planar { return Planar{crs: PlanarCRS(code)} }

func (p Planar) CRS() CRS { return p.crs }

func (Planar) Forward(pt orb.Point) orb.Point { return pt }

func (Planar) Inverse(pt orb.Point) orb.Point { return pt }

func (Planar) Scale(orb.Point) float64 { return 1 }

// centroid is the normalized mean of the sites' unit vectors, so sites either
// side of the antimeridian center near it rather than at the prime meridian.
// Antipodal sites have no mean direction and fall back to the first site.
func centroid(sites []domain.Site) orb.Point {
	var x, y, z float64
	for _, s := range sites {
		phi, lam := radians(s.Latitude), radians(s.Longitude)
		x += math.Cos(phi) * math.Cos(lam)
		y += math.Cos(phi) * math.Sin(lam)
		z += math.Sin(phi)
	}
	h := math.Hypot(x, y)
	if h < 1e-12 && math.Abs(z) < 1e-12 {
		return orb.Point{sites[0].Longitude, sites[0].Latitude}
	}
	return orb.Point{degrees(math.Atan2(y, x)), degrees(math.Atan2(z, h))}
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
