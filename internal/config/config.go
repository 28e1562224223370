package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const dateLayout = "2006-01-02"

// Config holds all service settings, populated from environment variables.
type Config struct {
	SWEArchiveDir     string
	SWEVariable       string
	PrecipArchiveDir  string
	PrecipVariable    string
	OutputDir         string
	WriteIntermediate bool

	// StartDate and EndDate select a one-shot run when both are set.
	StartDate time.Time
	EndDate   time.Time

	// Location selects a single-cell time series when set.
	Location *Location

	ScheduleInterval time.Duration
	LookbackDays     int

	ResampleWorkers int
	PlanCacheSize   int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka product notifications.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Location is a latitude/longitude pair for single-location output.
type Location struct {
	Lat float64
	Lon float64
}

// OneShot reports whether a fixed date range was configured.
func (c *Config) OneShot() bool {
	return !c.StartDate.IsZero() && !c.EndDate.IsZero()
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	interval, err := time.ParseDuration(sharedcfg.EnvOrDefault("SCHEDULE_INTERVAL", "24h"))
	if err != nil || interval <= 0 {
		return nil, errors.New("invalid SCHEDULE_INTERVAL")
	}

	lookback, err := parsePositiveInt("LOOKBACK_DAYS", 4)
	if err != nil {
		return nil, err
	}
	if lookback < 2 {
		return nil, errors.New("LOOKBACK_DAYS must be at least 2")
	}

	workers, err := parsePositiveInt("RESAMPLE_WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("PLAN_CACHE_SIZE", 32)
	if err != nil {
		return nil, err
	}

	writeIntermediate, err := strconv.ParseBool(sharedcfg.EnvOrDefault("WRITE_INTERMEDIATE", "true"))
	if err != nil {
		return nil, errors.New("invalid WRITE_INTERMEDIATE")
	}

	start, err := parseDate("START_DATE")
	if err != nil {
		return nil, err
	}
	end, err := parseDate("END_DATE")
	if err != nil {
		return nil, err
	}

	location, err := parseLocation()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if s := os.Getenv("KAFKA_BROKERS"); s != "" {
		brokers = sharedcfg.ParseBrokers(s)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		SWEArchiveDir:     sharedcfg.EnvOrDefault("SWE_ARCHIVE_DIR", "Archive"),
		SWEVariable:       sharedcfg.EnvOrDefault("SWE_VARIABLE", "SWE"),
		PrecipArchiveDir:  sharedcfg.EnvOrDefault("PRECIP_ARCHIVE_DIR", "Archive_CaPA"),
		PrecipVariable:    sharedcfg.EnvOrDefault("PRECIP_VARIABLE", "accum_precip"),
		OutputDir:         sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		WriteIntermediate: writeIntermediate,
		StartDate:         start,
		EndDate:           end,
		Location:          location,
		ScheduleInterval:  interval,
		LookbackDays:      lookback,
		ResampleWorkers:   workers,
		PlanCacheSize:     cacheSize,
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		KafkaBrokers:      brokers,
		KafkaTopic:        sharedcfg.EnvOrDefault("KAFKA_TOPIC", "lwf-products"),
		KafkaEnabled:      kafkaEnabled,
	}

	if cfg.StartDate.IsZero() != cfg.EndDate.IsZero() {
		return nil, errors.New("START_DATE and END_DATE must be set together")
	}
	if cfg.OneShot() && cfg.EndDate.Before(cfg.StartDate) {
		return nil, errors.New("END_DATE is before START_DATE")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseDate(key string) (time.Time, error) {
	s := os.Getenv(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: want YYYY-MM-DD", key)
	}
	return t, nil
}

func parseLocation() (*Location, error) {
	latStr, lonStr := os.Getenv("LOCATION_LAT"), os.Getenv("LOCATION_LON")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, errors.New("LOCATION_LAT and LOCATION_LON must be set together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, errors.New("invalid LOCATION_LAT")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 360 {
		return nil, errors.New("invalid LOCATION_LON")
	}
	return &Location{Lat: lat, Lon: lon}, nil
}
