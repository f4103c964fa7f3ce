package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"geoetl/pkg/logger"
)

// Config holds all configuration options for the conversion pipeline
type Config struct {
	// Source database connection
	Source SourceConfig `yaml:"source" json:"source"`

	// Output artifact settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Pipeline execution settings
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Logging configuration
	Logging logger.Config `yaml:"logging" json:"logging"`
}

// SourceConfig holds MongoDB connection configuration
type SourceConfig struct {
	URI                string        `yaml:"uri" json:"uri"`
	Database           string        `yaml:"database" json:"database"`
	AnalysisCollection string        `yaml:"analysis_collection" json:"analysis_collection"`
	MarkCollection     string        `yaml:"mark_collection" json:"mark_collection"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	CursorBatchSize    int32         `yaml:"cursor_batch_size" json:"cursor_batch_size"`
}

// OutputConfig holds output artifact configuration
type OutputConfig struct {
	Directory        string `yaml:"directory" json:"directory"`
	Compress         bool   `yaml:"compress" json:"compress"`
	CompressionLevel int    `yaml:"compression_level" json:"compression_level"`
}

// PipelineConfig holds worker pool and checkpoint configuration
type PipelineConfig struct {
	Workers          int           `yaml:"workers" json:"workers"`
	BatchSize        int           `yaml:"batch_size" json:"batch_size"`
	UnitTimeout      time.Duration `yaml:"unit_timeout" json:"unit_timeout"`
	StaleAfter       time.Duration `yaml:"stale_after" json:"stale_after"`
	CheckpointFile   string        `yaml:"checkpoint_file" json:"checkpoint_file"`
	ReportsDirectory string        `yaml:"reports_directory" json:"reports_directory"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			URI:                "mongodb://localhost:27017/",
			Database:           "camic",
			AnalysisCollection: "analysis",
			MarkCollection:     "mark",
			ConnectTimeout:     10 * time.Second,
			CursorBatchSize:    100,
		},
		Output: OutputConfig{
			Directory:        "./ttl_output",
			Compress:         true,
			CompressionLevel: 6, // 1=fastest, 9=smallest
		},
		Pipeline: PipelineConfig{
			Workers:          runtime.NumCPU(),
			BatchSize:        1000,
			UnitTimeout:      0, // no per-unit timeout unless configured
			StaleAfter:       2 * time.Hour,
			CheckpointFile:   "./checkpoint.json",
			ReportsDirectory: "./recovery_reports",
		},
		Logging: logger.Config{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, a .env file if present, and
// GEOETL_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// .env is optional; ignore absence
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies GEOETL_* environment variables over file values
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GEOETL_MONGO_URI"); v != "" {
		cfg.Source.URI = v
	}
	if v := os.Getenv("GEOETL_MONGO_DATABASE"); v != "" {
		cfg.Source.Database = v
	}
	if v := os.Getenv("GEOETL_OUTPUT_DIR"); v != "" {
		cfg.Output.Directory = v
	}
	if v := os.Getenv("GEOETL_CHECKPOINT_FILE"); v != "" {
		cfg.Pipeline.CheckpointFile = v
	}
	if v := os.Getenv("GEOETL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("GEOETL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Pipeline.BatchSize = n
		}
	}
	if v := os.Getenv("GEOETL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Source.URI == "" {
		return fmt.Errorf("source uri must not be empty")
	}
	if c.Source.Database == "" {
		return fmt.Errorf("source database must not be empty")
	}
	if c.Source.AnalysisCollection == "" || c.Source.MarkCollection == "" {
		return fmt.Errorf("source collection names must not be empty")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline batch size must be at least 1, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.StaleAfter < 0 {
		return fmt.Errorf("pipeline stale_after must not be negative")
	}
	if c.Pipeline.CheckpointFile == "" {
		return fmt.Errorf("pipeline checkpoint_file must not be empty")
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.Output.CompressionLevel < 1 || c.Output.CompressionLevel > 9 {
		return fmt.Errorf("output compression_level must be between 1 and 9, got %d", c.Output.CompressionLevel)
	}
	return nil
}

// SaveExample writes the default configuration as a YAML template.
func SaveExample(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
