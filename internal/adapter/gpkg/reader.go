package gpkg

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/spatial"
)

// LayerInfo describes one feature layer of a GeoPackage.
type LayerInfo struct {
	Name         string
	Description  string
	GeometryType string
	CRS          spatial.CRS
	Features     int
}

// Reader reads layers back out of a GeoPackage.
type Reader struct {
	db *sql.DB
}

// Open opens an existing GeoPackage read-only.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open geopackage: %w", err)
	}
	db, err := sql.Open(driverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open geopackage: %w", err)
	}
	return &Reader{db: db}, nil
}

// Close releases the underlying database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// ApplicationID returns the SQLite application_id; GeoPackages carry "GPKG".
func (r *Reader) ApplicationID(ctx context.Context) (int, error) {
	var id int
	if err := r.db.QueryRowContext(ctx, "PRAGMA application_id").Scan(&id); err != nil {
		return 0, fmt.Errorf("read application_id: %w", err)
	}
	return id, nil
}

// Layers lists the feature layers with their CRS and row counts, by name.
func (r *Reader) Layers(ctx context.Context) ([]LayerInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.table_name, COALESCE(c.description, ''), g.geometry_type_name,
		       s.srs_name, s.srs_id, s.organization, s.organization_coordsys_id,
		       s.definition, COALESCE(s.description, '')
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		JOIN gpkg_spatial_ref_sys s ON s.srs_id = g.srs_id
		WHERE c.data_type = 'features'
		ORDER BY c.table_name`)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	defer rows.Close()

	var layers []LayerInfo
	for rows.Next() {
		var (
			l    LayerInfo
			code string
		)
		if err := rows.Scan(&l.Name, &l.Description, &l.GeometryType,
			&l.CRS.Name, &l.CRS.SRSID, &l.CRS.Organization, &l.CRS.OrgCode,
			&l.CRS.Definition, &code); err != nil {
			return nil, fmt.Errorf("scan layer: %w", err)
		}
		l.CRS.Code = code
		l.CRS.Projected = !spatial.IsGeographicDefinition(l.CRS.Definition)
		layers = append(layers, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}

	for i := range layers {
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", quote(layers[i].Name))
		if err := r.db.QueryRowContext(ctx, q).Scan(&layers[i].Features); err != nil {
			return nil, fmt.Errorf("count %s: %w", layers[i].Name, err)
		}
	}
	return layers, nil
}

// Geometries decodes every geometry of a layer in insertion order. A blob
// whose srs id disagrees with the layer's is a projection mismatch.
func (r *Reader) Geometries(ctx context.Context, layer string) ([]orb.Geometry, error) {
	var want int
	err := r.db.QueryRowContext(ctx,
		"SELECT srs_id FROM gpkg_geometry_columns WHERE table_name = ?", layer).Scan(&want)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", layer, err)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY fid", geomColumn, quote(layer)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", layer, err)
	}
	defer rows.Close()

	var out []orb.Geometry
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan %s: %w", layer, err)
		}
		g, srsID, err := decodeGeometry(blob)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", layer, err)
		}
		if srsID != want {
			return nil, fmt.Errorf("%w: %s geometry has srs %d, layer has %d",
				domain.ErrProjectionMismatch, layer, srsID, want)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ReadNearby returns the site/station associations stored in the nearby layer.
func (r *Reader) ReadNearby(ctx context.Context) ([]domain.Association, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT site_name, station_id FROM %s ORDER BY fid", quote(spatial.LayerNearby)))
	if err != nil {
		return nil, fmt.Errorf("read nearby: %w", err)
	}
	defer rows.Close()

	var out []domain.Association
	for rows.Next() {
		var a domain.Association
		if err := rows.Scan(&a.SiteName, &a.StationID); err != nil {
			return nil, fmt.Errorf("scan nearby: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
