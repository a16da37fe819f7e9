package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "vision:\n  model_path: /models/retinaface.onnx\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vision.ModelPath != "/models/retinaface.onnx" {
		t.Fatalf("model path: got %q", cfg.Vision.ModelPath)
	}
	if cfg.Vision.DetectionThreshold != 0.5 {
		t.Fatalf("expected default detection threshold 0.5, got %f", cfg.Vision.DetectionThreshold)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging config, got %+v", cfg.Logging)
	}
}

func TestLoadEnvOverridesWinOverFile(t *testing.T) {
	path := writeTempConfig(t, "vision:\n  model_path: /models/a.onnx\n  detection_threshold: 0.6\nlogging:\n  level: warn\n")
	t.Setenv("FD_MODEL_PATH", "/models/b.onnx")
	t.Setenv("FD_DETECTION_THRESHOLD", "0.9")
	t.Setenv("FD_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Vision.ModelPath != "/models/b.onnx" {
		t.Fatalf("expected env override for model path, got %q", cfg.Vision.ModelPath)
	}
	if cfg.Vision.DetectionThreshold != 0.9 {
		t.Fatalf("expected env override for detection threshold, got %f", cfg.Vision.DetectionThreshold)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env override for log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
