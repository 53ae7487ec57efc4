package config

import (
	"os"
	"strconv"
	"strings"

	"clusterkit/internal"
	"clusterkit/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Log       LogConfig
	Scan      ScanConfig
	Stability StabilityConfig
	Store     StoreConfig
	Metrics   MetricsConfig
}

// LogConfig holds logging settings
type LogConfig struct {
	Level internal.LogLevel
}

// ScanConfig holds sample point generation settings
type ScanConfig struct {
	Workers         int
	ImaginaryPrefix string
}

// StabilityConfig holds stability test settings
type StabilityConfig struct {
	Workers     int
	Seed        int64
	Experiments int
	Noise       float64
	Fraction    float64
}

// Supported store drivers
const (
	StoreNone     = ""
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreExcel    = "excel"
)

// StoreConfig selects where data containers are persisted
type StoreConfig struct {
	Driver string
	DSN    string
}

// MetricsConfig toggles prometheus collection
type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Log:       *loadLogConfig(),
		Scan:      *loadScanConfig(),
		Stability: *loadStabilityConfig(),
		Store:     *loadStoreConfig(),
		Metrics:   MetricsConfig{Enabled: getEnvBoolOrDefault("METRICS_ENABLED", false)},
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadLogConfig() *LogConfig {
	level, _ := internal.ParseLogLevel(os.Getenv("LOG_LEVEL"))
	return &LogConfig{Level: level}
}

func loadScanConfig() *ScanConfig {
	return &ScanConfig{
		Workers:         getEnvIntOrDefault("SCAN_WORKERS", 1),
		ImaginaryPrefix: getEnvOrDefault("IMAGINARY_PREFIX", "im_"),
	}
}

func loadStabilityConfig() *StabilityConfig {
	return &StabilityConfig{
		Workers:     getEnvIntOrDefault("STABILITY_WORKERS", 1),
		Seed:        getEnvInt64OrDefault("STABILITY_SEED", 42),
		Experiments: getEnvIntOrDefault("STABILITY_EXPERIMENTS", 10),
		Noise:       getEnvFloatOrDefault("STABILITY_NOISE", 0.01),
		Fraction:    getEnvFloatOrDefault("STABILITY_FRACTION", 0.8),
	}
}

func loadStoreConfig() *StoreConfig {
	return &StoreConfig{
		Driver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreNone)),
		DSN:    getEnvOrDefault("STORE_DSN", ""),
	}
}

// Validate checks the ranges of every setting
func Validate(config *Config) error {
	if config.Scan.Workers < 1 {
		return errors.ConfigInvalid("SCAN_WORKERS must be at least 1")
	}
	if config.Stability.Workers < 1 {
		return errors.ConfigInvalid("STABILITY_WORKERS must be at least 1")
	}
	if config.Stability.Experiments < 1 {
		return errors.ConfigInvalid("STABILITY_EXPERIMENTS must be at least 1")
	}
	if config.Stability.Noise < 0 {
		return errors.ConfigInvalid("STABILITY_NOISE cannot be negative")
	}
	if config.Stability.Fraction <= 0 || config.Stability.Fraction > 1 {
		return errors.ConfigInvalid("STABILITY_FRACTION must be in (0, 1]")
	}
	switch config.Store.Driver {
	case StoreNone:
	case StorePostgres, StoreSQLite, StoreExcel:
		if config.Store.DSN == "" {
			return errors.ConfigInvalid("STORE_DSN is required when STORE_DRIVER is set")
		}
	default:
		return errors.ConfigInvalid("unsupported STORE_DRIVER " + config.Store.Driver)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
