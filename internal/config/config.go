package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lootlens/lootlens/internal/cache"
	"github.com/lootlens/lootlens/internal/ocr"
	"github.com/lootlens/lootlens/internal/strategy"
)

// Config represents the complete configuration for the lootlens application.
// It covers all commands (detect, strategy, corrections, serve) and supports
// loading from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path" json:"catalog_path"`
	LogLevel    string `mapstructure:"log_level"    yaml:"log_level"    json:"log_level"`
	Verbose     bool   `mapstructure:"verbose"      yaml:"verbose"      json:"verbose"`

	// Detection pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for the serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// PipelineConfig contains detection pipeline settings.
type PipelineConfig struct {
	// Strategy preset applied on startup.
	Strategy string `mapstructure:"strategy" yaml:"strategy" json:"strategy"`

	// OCR worker settings
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`

	// Result cache settings
	Cache CacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`
}

// OCRConfig contains OCR engine and worker settings.
type OCRConfig struct {
	Language   string `mapstructure:"language"    yaml:"language"    json:"language"`
	DataPath   string `mapstructure:"data_path"   yaml:"data_path"   json:"data_path"`
	TimeoutSec int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MaxRetries int    `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
}

// CacheConfig contains detection and template cache settings.
type CacheConfig struct {
	TTLMinutes         int `mapstructure:"ttl_minutes"          yaml:"ttl_minutes"          json:"ttl_minutes"`
	CleanupMinutes     int `mapstructure:"cleanup_minutes"      yaml:"cleanup_minutes"      json:"cleanup_minutes"`
	MaxTemplateEntries int `mapstructure:"max_template_entries" yaml:"max_template_entries" json:"max_template_entries"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format              string `mapstructure:"format"               yaml:"format"               json:"format"`
	File                string `mapstructure:"file"                 yaml:"file"                 json:"file"`
	ConfidencePrecision int    `mapstructure:"confidence_precision" yaml:"confidence_precision" json:"confidence_precision"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host"             yaml:"host"             json:"host"`
	Port            int    `mapstructure:"port"             yaml:"port"             json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin"      yaml:"cors_origin"      json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb"    yaml:"max_upload_mb"    json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec"      yaml:"timeout_sec"      json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// BatchConfig contains batch detection settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers"           yaml:"workers"           json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	ocrDefaults := ocr.DefaultTesseractConfig()
	return Config{
		CatalogPath: "catalog.json",
		LogLevel:    "info",
		Verbose:     false,
		Pipeline: PipelineConfig{
			Strategy: strategy.DefaultPreset,
			OCR: OCRConfig{
				Language:   ocrDefaults.Language,
				DataPath:   ocrDefaults.DataPath,
				TimeoutSec: int(ocr.DefaultTimeout / time.Second),
				MaxRetries: ocr.DefaultMaxRetries,
			},
			Cache: CacheConfig{
				TTLMinutes:         int(cache.DefaultTTL / time.Minute),
				CleanupMinutes:     int(cache.DefaultCleanupInterval / time.Minute),
				MaxTemplateEntries: cache.MaxTemplateEntries,
			},
		},
		Output: OutputConfig{
			Format:              "text",
			ConfidencePrecision: 2,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: false,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json"}
	if c.Output.Format != "" && !contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if c.Pipeline.Strategy != "" {
		if _, err := strategy.Preset(c.Pipeline.Strategy); err != nil {
			return fmt.Errorf("invalid strategy preset: %s (must be one of: %s)",
				c.Pipeline.Strategy, strings.Join(strategy.PresetNames(), ", "))
		}
	}

	if c.Pipeline.OCR.TimeoutSec <= 0 {
		return fmt.Errorf("invalid ocr timeout: %d (must be positive)", c.Pipeline.OCR.TimeoutSec)
	}
	if c.Pipeline.Cache.TTLMinutes <= 0 {
		return fmt.Errorf("invalid cache ttl: %d (must be positive)", c.Pipeline.Cache.TTLMinutes)
	}
	if c.Pipeline.Cache.MaxTemplateEntries <= 0 {
		return fmt.Errorf("invalid template cache size: %d (must be positive)", c.Pipeline.Cache.MaxTemplateEntries)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid server timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	return nil
}

// CacheTTL returns the configured detection cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Pipeline.Cache.TTLMinutes) * time.Minute
}

// CleanupInterval returns the configured cache sweep interval as a duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Pipeline.Cache.CleanupMinutes) * time.Minute
}

// OCRTimeout returns the configured OCR timeout as a duration.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.Pipeline.OCR.TimeoutSec) * time.Second
}

func contains(slice []string, value string) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}
