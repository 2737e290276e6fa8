// Package gpkg writes and reads OGC GeoPackage files, the SQLite container
// used for the spatial layers.
package gpkg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/spatial"
)

const (
	driverName = "sqlite3"
	geomColumn = "geom"

	applicationID = 0x47504B47 // "GPKG"
	userVersion   = 10200
)

const schema = `
CREATE TABLE gpkg_spatial_ref_sys (
	srs_name TEXT NOT NULL,
	srs_id INTEGER NOT NULL PRIMARY KEY,
	organization TEXT NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition TEXT NOT NULL,
	description TEXT
);
CREATE TABLE gpkg_contents (
	table_name TEXT NOT NULL PRIMARY KEY,
	data_type TEXT NOT NULL,
	identifier TEXT UNIQUE,
	description TEXT DEFAULT '',
	last_change DATETIME NOT NULL,
	min_x DOUBLE,
	min_y DOUBLE,
	max_x DOUBLE,
	max_y DOUBLE,
	srs_id INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);
CREATE TABLE gpkg_geometry_columns (
	table_name TEXT NOT NULL,
	column_name TEXT NOT NULL,
	geometry_type_name TEXT NOT NULL,
	srs_id INTEGER NOT NULL,
	z TINYINT NOT NULL,
	m TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);
INSERT INTO gpkg_spatial_ref_sys VALUES
	('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
	('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system');
`

// Writer writes spatial layers to a GeoPackage file. The file is built next
// to its destination and renamed into place once complete.
type Writer struct {
	path string
}

// NewWriter returns a Writer for the GeoPackage at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the destination file.
func (w *Writer) Path() string { return w.path }

// WriteLayers replaces the GeoPackage with the given layers. All layers must
// share one projected CRS.
func (w *Writer) WriteLayers(ctx context.Context, runID string, layers []spatial.Layer) error {
	if err := spatial.ValidateLayers(layers...); err != nil {
		return fmt.Errorf("write geopackage: %w", err)
	}

	tmp := w.path + ".tmp"
	_ = os.Remove(tmp)

	if err := writeFile(ctx, tmp, runID, layers); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write geopackage: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename geopackage: %w", err)
	}
	return nil
}

func writeFile(ctx context.Context, path, runID string, layers []spatial.Layer) (err error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() {
		if cerr := db.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	db.SetMaxOpenConns(1)

	pragmas := fmt.Sprintf("PRAGMA application_id = %d; PRAGMA user_version = %d;", applicationID, userVersion)
	if _, err := db.ExecContext(ctx, pragmas); err != nil {
		return fmt.Errorf("set pragmas: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := registerSRS(ctx, tx, spatial.WGS84); err != nil {
		return err
	}
	for _, l := range layers {
		if err := writeLayer(ctx, tx, runID, l); err != nil {
			return fmt.Errorf("layer %s: %w", l.Name, err)
		}
	}
	return tx.Commit()
}

func writeLayer(ctx context.Context, tx *sql.Tx, runID string, l spatial.Layer) error {
	if err := registerSRS(ctx, tx, l.CRS); err != nil {
		return err
	}

	cols := make([]string, 0, len(l.Columns)+2)
	cols = append(cols, "fid INTEGER PRIMARY KEY AUTOINCREMENT", fmt.Sprintf("%s %s", geomColumn, l.GeometryType))
	for _, c := range l.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", quote(c.Name), c.Type))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(l.Name), strings.Join(cols, ", "))); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	names := []string{geomColumn}
	marks := []string{"?"}
	for _, c := range l.Columns {
		names = append(names, quote(c.Name))
		marks = append(marks, "?")
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(l.Name), strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, f := range l.Features {
		if len(f.Values) != len(l.Columns) {
			return fmt.Errorf("feature %d has %d values for %d columns", i, len(f.Values), len(l.Columns))
		}
		blob, err := encodeGeometry(f.Geometry, l.CRS.SRSID)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		args := append([]any{blob}, f.Values...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert feature %d: %w", i, err)
		}
		b := f.Geometry.Bound()
		minX, minY = math.Min(minX, b.Min.X()), math.Min(minY, b.Min.Y())
		maxX, maxY = math.Max(maxX, b.Max.X()), math.Max(maxY, b.Max.Y())
	}

	var extent []any
	if len(l.Features) > 0 {
		extent = []any{minX, minY, maxX, maxY}
	} else {
		extent = []any{nil, nil, nil, nil}
	}
	desc := l.Description
	if runID != "" {
		desc = fmt.Sprintf("%s (run %s)", desc, runID)
	}
	args := append([]any{l.Name, l.Name, desc, domain.Now().Format("2006-01-02T15:04:05.000Z")}, extent...)
	args = append(args, l.CRS.SRSID)
	if _, err := tx.ExecContext(ctx, `INSERT INTO gpkg_contents
		(table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
		VALUES (?, 'features', ?, ?, ?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return fmt.Errorf("register contents: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO gpkg_geometry_columns
		(table_name, column_name, geometry_type_name, srs_id, z, m) VALUES (?, ?, ?, ?, 0, 0)`,
		l.Name, geomColumn, l.GeometryType, l.CRS.SRSID); err != nil {
		return fmt.Errorf("register geometry column: %w", err)
	}
	return nil
}

// registerSRS inserts crs into gpkg_spatial_ref_sys. An srs id already bound
// to a different CRS is a projection mismatch.
func registerSRS(ctx context.Context, tx *sql.Tx, crs spatial.CRS) error {
	var existing string
	err := tx.QueryRowContext(ctx, "SELECT description FROM gpkg_spatial_ref_sys WHERE srs_id = ?", crs.SRSID).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("lookup srs: %w", err)
	case existing == crs.Code:
		return nil
	default:
		return fmt.Errorf("%w: srs id %d is %s, not %s", domain.ErrProjectionMismatch, crs.SRSID, existing, crs)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO gpkg_spatial_ref_sys
		(srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		crs.Name, crs.SRSID, crs.Organization, crs.OrgCode, crs.Definition, crs.Code)
	if err != nil {
		return fmt.Errorf("insert srs: %w", err)
	}
	return nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
