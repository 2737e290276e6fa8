package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/splashdown-etl/internal/domain"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	DataDir      string
	OutputDir    string
	StationsFile string
	SitesFile    string
	FieldMapFile string

	// Spatial selection.
	BufferRadiusNM float64
	SpatialCRS     string

	KnotsToFtps  float64
	Sampling     domain.Sampling
	ParseWorkers int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional publishing of site conditions; disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string

	NDBCBaseURL string
	NDBCTimeout time.Duration
}

// Output file names inside OutputDir.
const (
	GeoPackageFile     = "splash_down.gpkg"
	NearbyParquetFile  = "nearby_wx.parquet"
	ConditionsCSVFile  = "site_conditions.csv"
	MissingGeneralFile = "stations_missing_txt.csv"
	MissingSpecFile    = "stations_missing_spec.csv"
)

// OutputPath joins name onto OutputDir.
func (c *Config) OutputPath(name string) string { return filepath.Join(c.OutputDir, name) }

// PublishEnabled reports whether site conditions are published to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file (or ENV_FILE) is read first; variables already set
// in the environment win.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	ndbcTimeout, err := parseDuration("NDBC_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	radius, err := parseFloat("BUFFER_RADIUS_NM", 150)
	if err != nil {
		return nil, err
	}
	knots, err := parseFloat("KNOTS_TO_FTPS", domain.KnotsToFeetPerSecond)
	if err != nil {
		return nil, err
	}
	fraction, err := parseFloat("SAMPLE_FRACTION", 1)
	if err != nil {
		return nil, err
	}
	seed, err := strconv.ParseUint(sharedcfg.EnvOrDefault("SAMPLE_SEED", "1"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid SAMPLE_SEED")
	}
	workers, err := strconv.Atoi(sharedcfg.EnvOrDefault("PARSE_WORKERS", strconv.Itoa(runtime.NumCPU())))
	if err != nil || workers < 1 {
		return nil, errors.New("invalid PARSE_WORKERS: must be a positive integer")
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data_raw")
	cfg := &Config{
		DataDir:      dataDir,
		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		StationsFile: sharedcfg.EnvOrDefault("STATIONS_FILE", filepath.Join(dataDir, "latest_obs.txt")),
		SitesFile:    sharedcfg.EnvOrDefault("SITES_FILE", "sites.csv"),
		FieldMapFile: os.Getenv("FIELD_MAP_FILE"),

		BufferRadiusNM: radius,
		SpatialCRS:     sharedcfg.EnvOrDefault("SPATIAL_CRS", "AEQD"),

		KnotsToFtps:  knots,
		Sampling:     domain.Sampling{Fraction: fraction, Seed: seed},
		ParseWorkers: workers,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "splashdown-site-conditions"),

		NDBCBaseURL: sharedcfg.EnvOrDefault("NDBC_BASE_URL", "https://www.ndbc.noaa.gov/data"),
		NDBCTimeout: ndbcTimeout,
	}
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BufferRadiusNM <= 0 {
		return errors.New("invalid BUFFER_RADIUS_NM: must be positive")
	}
	if c.KnotsToFtps <= 0 {
		return errors.New("invalid KNOTS_TO_FTPS: must be positive")
	}
	if c.Sampling.Fraction <= 0 || c.Sampling.Fraction > 1 {
		return errors.New("invalid SAMPLE_FRACTION: must be in (0, 1]")
	}
	if strings.EqualFold(c.SpatialCRS, "EPSG:4326") {
		return errors.New("invalid SPATIAL_CRS: EPSG:4326 is geographic; use AEQD or EPSG:3857")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: must be json or text", c.LogFormat)
	}
	if c.PublishEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func loadEnvFile() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load ENV_FILE %s: %w", path, err)
	}
	return nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: must be a finite number, got %q", key, s)
	}
	return v, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}
