package domain

import "time"

// ReportKind identifies which NDBC file a report came from.
type ReportKind string

const (
	KindGeneral  ReportKind = "txt"
	KindSpectrum ReportKind = "spec"
	KindStations ReportKind = "stations"
)

// ReportFile locates one raw report on disk.
type ReportFile struct {
	Path      string
	StationID string
	Kind      ReportKind
}

// Report is a normalized, untyped table parsed from one NDBC file.
// Header holds the raw column names (leading '#' stripped).
type Report struct {
	StationID string
	Kind      ReportKind
	Header    []string
	Rows      [][]string
}

// Observation is one station reading at one 10-minute interval, with the wave
// fields attached when a spectrum record matched.
type Observation struct {
	StationID string    `json:"station_id"`
	Timestamp time.Time `json:"timestamp"`

	WindSpeed *float64 `json:"wind_spd,omitempty"`  // ft/s
	WindGust  *float64 `json:"wind_gust,omitempty"` // ft/s

	SwellHeight    *float64 `json:"swell_height,omitempty"`
	SwellPeriod    *float64 `json:"swell_period,omitempty"`
	WindWaveHeight *float64 `json:"wind_wave_height,omitempty"`
	AveragePeriod  *float64 `json:"ave_period,omitempty"`
	Steepness      string   `json:"steepness,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// Seq is the arrival order across all parsed files; later wins on duplicates.
	Seq int `json:"-"`
}

// StationLocation is one row of the master station list.
type StationLocation struct {
	StationID string  `json:"station_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Site is a named location of interest, e.g. a splashdown zone.
type Site struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Association records that a station lies within a site's buffer.
type Association struct {
	SiteName  string `json:"site_name"`
	StationID string `json:"station_id"`
}

// NearbyObservation is an observation from a station near a site, with the
// coarse bins used for charting.
type NearbyObservation struct {
	SiteName string `json:"site_name"`
	Observation

	WindBin       *float64 `json:"wind_bin,omitempty"`
	WaveHeightBin *float64 `json:"wave_ht_bin,omitempty"`
}

// SiteConditions is the mean wind and wave bin for one site at one timestamp.
type SiteConditions struct {
	Timestamp         time.Time `json:"timestamp"`
	SiteName          string    `json:"site_name"`
	MeanWindBin       *float64  `json:"mean_wind_bin,omitempty"`
	MeanWaveHeightBin *float64  `json:"mean_wave_ht_bin,omitempty"`
	WindSamples       int       `json:"wind_samples"`
	WaveSamples       int       `json:"wave_samples"`
}

// ParseStats counts what the normalizer saw in one file.
type ParseStats struct {
	Lines   int
	Rows    int
	Skipped int
}

// Add accumulates s into the receiver.
func (p *ParseStats) Add(s ParseStats) {
	p.Lines += s.Lines
	p.Rows += s.Rows
	p.Skipped += s.Skipped
}
