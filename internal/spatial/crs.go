// Package spatial projects sites and stations into a planar coordinate
// reference system, buffers sites, and selects the stations inside each buffer.
//
// Every layer carries its CRS explicitly. Layers are compared with
// [ValidateCRS] before any buffer or intersection is computed, and metric
// buffers are never built in geographic (degree) coordinates.
package spatial

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// CRS describes a coordinate reference system. Code identifies it; two CRS
// values are the same reference when their codes are equal.
type CRS struct {
	Code         string
	Name         string
	Organization string
	OrgCode      int
	SRSID        int
	Projected    bool
	Definition   string // WKT
}

// Defined reports whether the CRS carries an identifier.
func (c CRS) Defined() bool { return c.Code != "" }

func (c CRS) String() string {
	if !c.Defined() {
		return "<undefined>"
	}
	return c.Code
}

// WGS84 is the geographic input reference of station and site coordinates.
var WGS84 = CRS{
	Code:         "EPSG:4326",
	Name:         "WGS 84",
	Organization: "EPSG",
	OrgCode:      4326,
	SRSID:        4326,
	Projected:    false,
	Definition: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],` +
		`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`,
}

// WebMercator is the spherical Mercator used by web basemaps.
var WebMercator = CRS{
	Code:         "EPSG:3857",
	Name:         "WGS 84 / Pseudo-Mercator",
	Organization: "EPSG",
	OrgCode:      3857,
	SRSID:        3857,
	Projected:    true,
	Definition: `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",` +
		`SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],` +
		`PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],` +
		`PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1],AUTHORITY["EPSG","3857"]]`,
}

const (
	aeqdSRSID   = 990001
	planarSRSID = 990002
)

// aeqdCRS describes a spherical azimuthal equidistant projection centered on
// (lat0, lon0). The center is part of the code, so two different centers are
// different references.
func aeqdCRS(lat0, lon0 float64) CRS {
	code := fmt.Sprintf("AEQD:%.6f,%.6f", lat0, lon0)
	return CRS{
		Code:         code,
		Name:         "Sphere / Azimuthal Equidistant",
		Organization: "SPLASHDOWN",
		OrgCode:      aeqdSRSID,
		SRSID:        aeqdSRSID,
		Projected:    true,
		Definition: fmt.Sprintf(`PROJCS["%s",GEOGCS["Sphere",DATUM["Sphere",SPHEROID["Sphere",6378137,0]],`+
			`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Azimuthal_Equidistant"],`+
			`PARAMETER["latitude_of_center",%.6f],PARAMETER["longitude_of_center",%.6f],`+
			`PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1]]`, code, lat0, lon0),
	}
}

// PlanarCRS returns a local planar reference whose coordinates are taken as
// already projected, in metres.
func PlanarCRS(code string) CRS {
	return CRS{
		Code:         code,
		Name:         "Local planar " + code,
		Organization: "SPLASHDOWN",
		OrgCode:      planarSRSID,
		SRSID:        planarSRSID,
		Projected:    true,
		Definition:   fmt.Sprintf(`LOCAL_CS["%s",UNIT["metre",1]]`, code),
	}
}

// ValidateCRS checks that every given reference is defined, planar, and the
// same as the others. It returns domain.ErrProjectionMismatch otherwise.
func ValidateCRS(layers map[string]CRS) error {
	var (
		first     CRS
		firstName string
	)
	for _, name := range sortedKeys(layers) {
		c := layers[name]
		if !c.Defined() {
			return fmt.Errorf("%w: layer %q has no coordinate reference", domain.ErrProjectionMismatch, name)
		}
		if !c.Projected {
			return fmt.Errorf("%w: layer %q is in geographic %s; project it before measuring distances",
				domain.ErrProjectionMismatch, name, c)
		}
		if firstName == "" {
			first, firstName = c, name
			continue
		}
		if c.Code != first.Code {
			return fmt.Errorf("%w: layer %q is %s but layer %q is %s",
				domain.ErrProjectionMismatch, name, c, firstName, first)
		}
	}
	return nil
}

// IsGeographicDefinition reports whether a WKT definition describes an
// unprojected reference.
func IsGeographicDefinition(wkt string) bool {
	return strings.HasPrefix(strings.TrimSpace(wkt), "GEOGCS")
}
