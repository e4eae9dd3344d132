// Package config loads pipeline configuration from defaults, an optional YAML
// file and RIDE_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. RIDE_OUTPUT_LOCAL_DIR.
// Leaf fields use split_words rather than envconfig tags so that unprefixed
// variables such as PATH are never picked up.
const EnvPrefix = "RIDE"

// FileEnv names the YAML file to load, if any.
const FileEnv = "RIDE_CONFIG_FILE"

type Config struct {
	Input   InputConfig   `yaml:"input" envconfig:"INPUT"`
	Output  OutputConfig  `yaml:"output" envconfig:"OUTPUT"`
	Catalog CatalogConfig `yaml:"catalog" envconfig:"CATALOG"`
	Metrics MetricsConfig `yaml:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

type InputConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

type OutputConfig struct {
	Backend            string `yaml:"backend" split_words:"true" validate:"oneof=local gcs s3 mem"`
	LocalDir           string `yaml:"local_dir" split_words:"true"`
	Bucket             string `yaml:"bucket" split_words:"true"`
	Prefix             string `yaml:"prefix" split_words:"true"`
	S3Endpoint         string `yaml:"s3_endpoint" split_words:"true"`
	S3Region           string `yaml:"s3_region" split_words:"true"`
	Dataset            string `yaml:"dataset" split_words:"true" validate:"required,excludesall=/"`
	Compression        string `yaml:"compression" split_words:"true" validate:"oneof=none zstd"`
	Parquet            bool   `yaml:"parquet" split_words:"true"`
	ParquetCompression string `yaml:"parquet_compression" split_words:"true" validate:"oneof=snappy zstd none"`
}

type CatalogConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" split_words:"true"`
	Namespace   string `yaml:"namespace" split_words:"true" validate:"required"`
}

type MetricsConfig struct {
	Textfile  string `yaml:"textfile" split_words:"true"`
	Namespace string `yaml:"namespace" split_words:"true" validate:"required"`
}

type LoggingConfig struct {
	Format string `yaml:"format" split_words:"true" validate:"oneof=json text"`
	Level  string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Output: OutputConfig{
			Backend:            "local",
			LocalDir:           "./data/processed",
			Dataset:            "ncr_ride_bookings",
			Compression:        "none",
			ParquetCompression: "snappy",
		},
		Catalog: CatalogConfig{
			Namespace: "rides",
		},
		Metrics: MetricsConfig{
			Namespace: "ride_pipeline",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// RIDE_CONFIG_FILE, then RIDE_* environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the keys present in a YAML file onto cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field backend requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Output.Backend {
	case "local":
		if c.Output.LocalDir == "" {
			return errors.New("output.local_dir is required for the local backend")
		}
	case "gcs", "s3":
		if c.Output.Bucket == "" {
			return fmt.Errorf("output.bucket is required for the %s backend", c.Output.Backend)
		}
	}
	return nil
}

// CSVExtension is the extension of the table artifacts.
func (o OutputConfig) CSVExtension() string {
	if o.Compression == "zstd" {
		return "csv.zst"
	}
	return "csv"
}
