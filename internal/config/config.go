// Package config loads collector configuration and the agricultural region
// set. Precedence (low to high): built-in defaults, YAML file named by
// AGRO_CONFIG, environment variables with the AGRO_ prefix. A .env file is
// honoured when present.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds process configuration. Credential values are opaque to the
// engine and must never be logged.
type AppConfig struct {
	LogLevel string `koanf:"log_level"`
	Port     string `koanf:"port"`

	// DataDir is the root of the partitioned observation layout.
	DataDir string `koanf:"data_dir"`

	// RegionsFile points at the JSON region set.
	RegionsFile string `koanf:"regions_file"`

	OpenWeatherAPIKey string `koanf:"openweather_api_key"`
	INMETToken        string `koanf:"inmet_token"`
	GeocoderAPIKey    string `koanf:"geocoder_api_key"`

	// HTTPTimeout bounds outbound provider calls.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// FetchInterval controls how often the scheduler runs a current-mode
	// collection.
	FetchInterval time.Duration `koanf:"fetch_interval"`

	// Workers bounds how many regions are collected concurrently.
	Workers int `koanf:"workers"`

	// CurrentWindowDays is the rolling current-mode span.
	CurrentWindowDays int `koanf:"current_window_days"`

	// HistoricalMaxYears bounds historical windows.
	HistoricalMaxYears int `koanf:"historical_max_years"`
}

func defaults() *AppConfig {
	return &AppConfig{
		LogLevel:           "info",
		Port:               "8080",
		DataDir:            "dados",
		RegionsFile:        "config/regions.json",
		HTTPTimeout:        30 * time.Second,
		FetchInterval:      6 * time.Hour,
		Workers:            4,
		CurrentWindowDays:  7,
		HistoricalMaxYears: 15,
	}
}

// Load builds the configuration.
func Load() (*AppConfig, error) {
	// Optional .env for local runs; absence is not an error.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv("AGRO_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// AGRO_DATA_DIR -> data_dir, AGRO_FETCH_INTERVAL -> fetch_interval, ...
	envProvider := env.Provider("AGRO_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "agro_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		return nil, errors.New("data_dir must not be empty")
	}
	if cfg.Workers <= 0 {
		return nil, errors.New("workers must be positive")
	}
	if cfg.CurrentWindowDays <= 0 || cfg.CurrentWindowDays > 30 {
		return nil, errors.New("current_window_days must be in 1..30")
	}
	return cfg, nil
}
