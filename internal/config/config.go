// Package config loads process-level configuration for the string-art
// engine: where the face-detection model lives and how it logs. It keeps
// the teacher's YAML-plus-environment-override loading shape, trimmed to
// the two concerns this core actually owns (spec.md §5: no database, no
// object storage, no message bus, no HTTP server config here).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Vision  VisionConfig  `yaml:"vision"`
	Logging LoggingConfig `yaml:"logging"`
}

// VisionConfig controls the optional ONNX RetinaFace detector
// (internal/faces.ONNXDetector). DetectionThreshold below which a
// detection is discarded as noise (spec.md §4.4).
type VisionConfig struct {
	ModelPath          string  `yaml:"model_path"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
}

// LoggingConfig selects the slog level and output handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies FD_-prefixed
// environment variable overrides, matching the teacher's
// load-then-override-then-default sequencing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FD_MODEL_PATH"); v != "" {
		cfg.Vision.ModelPath = v
	}
	if v := os.Getenv("FD_DETECTION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vision.DetectionThreshold = f
		}
	}
	if v := os.Getenv("FD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
