// Command validate checks a finished output directory: the GeoPackage has
// every layer in a single projected CRS, the Parquet file has no
// duplicate (site, station, time) rows, and the site-conditions CSV agrees
// with the Parquet rows it was summarized from.
//
// Usage:
//
//	go run ./cmd/validate -output-dir output
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/splashdown-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/splashdown-etl/internal/adapter/gpkg"
	"github.com/couchcryptid/splashdown-etl/internal/adapter/parquet"
	"github.com/couchcryptid/splashdown-etl/internal/config"
	"github.com/couchcryptid/splashdown-etl/internal/domain"
	"github.com/couchcryptid/splashdown-etl/internal/spatial"
)

// gpkgApplicationID is "GPKG" as a big-endian int32.
const gpkgApplicationID = 0x47504B47

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type outputs struct {
	layers     []gpkg.LayerInfo
	appID      int
	nearbyGPKG []domain.Association
	nearby     []parquet.NearbyRow
	conditions []domain.SiteConditions
}

func main() {
	outputDir := flag.String("output-dir", "output", "directory holding the pipeline outputs")
	flag.Parse()

	if code := run(*outputDir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Splashdown Output Validation ===")
	fmt.Println()

	out, err := load(context.Background(), dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateGeoPackage(out),
		validateNearby(out),
		validateConditions(out),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d layers, %d nearby rows, %d site conditions\n",
		len(out.layers), len(out.nearby), len(out.conditions))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

func load(ctx context.Context, dir string) (outputs, error) {
	var out outputs

	r, err := gpkg.Open(filepath.Join(dir, config.GeoPackageFile))
	if err != nil {
		return out, err
	}
	defer r.Close()

	if out.appID, err = r.ApplicationID(ctx); err != nil {
		return out, err
	}
	if out.layers, err = r.Layers(ctx); err != nil {
		return out, err
	}
	if out.nearbyGPKG, err = r.ReadNearby(ctx); err != nil {
		return out, err
	}
	if out.nearby, err = parquet.ReadNearby(filepath.Join(dir, config.NearbyParquetFile)); err != nil {
		return out, err
	}
	if out.conditions, err = csvfile.ReadConditions(filepath.Join(dir, config.ConditionsCSVFile)); err != nil {
		return out, err
	}
	return out, nil
}

func validateGeoPackage(out outputs) *phase {
	p := &phase{name: "GeoPackage layers and CRS"}

	if out.appID != gpkgApplicationID {
		p.errorf("application_id = %#x, want %#x", out.appID, gpkgApplicationID)
	}

	byName := make(map[string]gpkg.LayerInfo, len(out.layers))
	for _, l := range out.layers {
		byName[l.Name] = l
	}
	var crs string
	for _, name := range []string{spatial.LayerStations, spatial.LayerSites, spatial.LayerBuffers, spatial.LayerNearby, spatial.LayerWeather} {
		l, ok := byName[name]
		if !ok {
			p.errorf("layer %s missing", name)
			continue
		}
		// A selection or a sampled-out series can legitimately be empty.
		if l.Features == 0 && name != spatial.LayerNearby && name != spatial.LayerWeather {
			p.errorf("layer %s has no features", name)
		}
		if !l.CRS.Projected {
			p.errorf("layer %s is in a geographic CRS (%s)", name, l.CRS.Code)
		}
		if crs == "" {
			crs = l.CRS.Code
		} else if l.CRS.Code != crs {
			p.errorf("layer %s CRS %s differs from %s", name, l.CRS.Code, crs)
		}
	}
	return p
}

type nearbyKey struct {
	site, station string
	time          int64
}

func validateNearby(out outputs) *phase {
	p := &phase{name: "Nearby observations (Parquet)"}

	seen := make(map[nearbyKey]bool, len(out.nearby))
	pairs := make(map[domain.Association]bool)
	for i, r := range out.nearby {
		k := nearbyKey{site: r.SiteName, station: r.StationID, time: r.Time}
		if seen[k] {
			p.errorf("row %d: duplicate (%s, %s, %s)", i, r.SiteName, r.StationID, r.Timestamp().Format(time.RFC3339))
		}
		seen[k] = true
		pairs[domain.Association{SiteName: r.SiteName, StationID: r.StationID}] = true
	}

	selected := make(map[domain.Association]bool, len(out.nearbyGPKG))
	for _, a := range out.nearbyGPKG {
		selected[a] = true
	}
	for a := range pairs {
		if !selected[a] {
			p.errorf("station %s has rows for %s but is not in the %s layer", a.StationID, a.SiteName, spatial.LayerNearby)
		}
	}
	return p
}

type conditionKey struct {
	site string
	time int64
}

func validateConditions(out outputs) *phase {
	p := &phase{name: "Site conditions (CSV)"}

	expected := make(map[conditionKey]bool)
	for _, r := range out.nearby {
		expected[conditionKey{site: r.SiteName, time: r.Time}] = true
	}

	for i, c := range out.conditions {
		k := conditionKey{site: c.SiteName, time: c.Timestamp.Unix()}
		if !expected[k] {
			p.errorf("row %d: (%s, %s) has no nearby observations", i, c.SiteName, c.Timestamp.Format(time.RFC3339))
		}
		delete(expected, k)
		if i > 0 {
			prev := out.conditions[i-1]
			if c.Timestamp.Before(prev.Timestamp) || (c.Timestamp.Equal(prev.Timestamp) && c.SiteName <= prev.SiteName) {
				p.errorf("row %d: out of (timestamp, site) order", i)
			}
		}
		if (c.MeanWindBin == nil) != (c.WindSamples == 0) {
			p.errorf("row %d: mean_wind_bin and wind_samples disagree", i)
		}
		if (c.MeanWaveHeightBin == nil) != (c.WaveSamples == 0) {
			p.errorf("row %d: mean_wave_ht_bin and wave_samples disagree", i)
		}
	}
	for k := range expected {
		p.errorf("(%s, %s) has nearby observations but no conditions row", k.site, time.Unix(k.time, 0).UTC().Format(time.RFC3339))
	}
	return p
}
