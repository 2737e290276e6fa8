package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// siteFile is the YAML layout of a sites file.
type siteFile struct {
	Sites []Site `yaml:"sites"`
}

// LoadSitesCSV reads sites from a CSV with a header naming Name, latitude and
// longitude columns (case-insensitive, any order).
func LoadSitesCSV(r io.Reader) ([]Site, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("load sites: read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range []string{"name", ColLatitude, ColLongitude} {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("load sites: missing %q column", want)
		}
	}

	var sites []Site
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load sites: %w", err)
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[cols[ColLatitude]]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec[cols[ColLongitude]]), 64)
		if errLat != nil || errLon != nil {
			return nil, fmt.Errorf("load sites: line %d: invalid coordinates", line)
		}
		sites = append(sites, Site{
			Name:      strings.TrimSpace(rec[cols["name"]]),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	return sites, ValidateSites(sites)
}

// LoadSitesYAML reads sites from a YAML document with a top-level "sites" list.
func LoadSitesYAML(r io.Reader) ([]Site, error) {
	var f siteFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	return f.Sites, ValidateSites(f.Sites)
}

// ValidateSites checks that the set is non-empty, names are unique and
// non-empty, and coordinates are in range.
func ValidateSites(sites []Site) error {
	if len(sites) == 0 {
		return errors.New("load sites: no sites defined")
	}
	seen := make(map[string]struct{}, len(sites))
	for _, s := range sites {
		if s.Name == "" {
			return errors.New("load sites: site with empty name")
		}
		if _, ok := seen[s.Name]; ok {
			return fmt.Errorf("load sites: duplicate site %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if !validLatLon(s.Latitude, s.Longitude) {
			return fmt.Errorf("load sites: site %q: coordinates out of range (%g, %g)", s.Name, s.Latitude, s.Longitude)
		}
	}
	return nil
}
