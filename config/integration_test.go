package config

import (
	"os"
	"path/filepath"
	"testing"

	vmerrors "videomass/internal/errors"
)

// isolate points the user config dir at an empty temp dir so a real
// config file on the machine does not leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	return dir
}

func TestLoadConfig_AllLayersPriority(t *testing.T) {
	isolate(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "videomass.yaml")

	// Config file sets workers to 4 and a threads count
	configContent := `workers: 4
threads: 2
output_dir: /from/file
normalization:
  rms_target: -16
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}

	cfg, rest, err := Load([]string{
		"-config", configPath,
		"-workers", "8",
		"convert", "a.mkv",
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify priority: CLI > File > Defaults
	if cfg.Workers != 8 {
		t.Errorf("Expected workers 8 (from CLI), got %d", cfg.Workers)
	}
	if cfg.Threads != 2 {
		t.Errorf("Expected threads 2 (from file), got %d", cfg.Threads)
	}
	if cfg.OutputDir != "/from/file" {
		t.Errorf("Expected output dir from file, got %s", cfg.OutputDir)
	}
	if cfg.Normalization.RMSTarget != -16 {
		t.Errorf("Expected rms target -16 (from file), got %v", cfg.Normalization.RMSTarget)
	}
	if cfg.Normalization.PeakTarget != -1 {
		t.Errorf("Expected peak target -1 (default), got %v", cfg.Normalization.PeakTarget)
	}
	if cfg.Binaries.FFmpeg != "ffmpeg" {
		t.Errorf("Expected default ffmpeg, got %s", cfg.Binaries.FFmpeg)
	}
	if len(rest) != 2 || rest[0] != "convert" {
		t.Errorf("Expected [convert a.mkv], got %v", rest)
	}
}

func TestLoadConfig_DefaultsOnly(t *testing.T) {
	isolate(t)

	cfg, rest, err := Load([]string{"probe", "x.mkv"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 1 {
		t.Errorf("Expected default workers 1, got %d", cfg.Workers)
	}
	if len(rest) != 2 {
		t.Errorf("Expected command args, got %v", rest)
	}
}

func TestLoadConfig_UserConfigDir(t *testing.T) {
	dir := isolate(t)
	userCfg := filepath.Join(dir, "videomass", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(userCfg), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userCfg, []byte("threads: 6\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := FindConfigFile(); got != userCfg {
		t.Fatalf("FindConfigFile() = %q, want %q", got, userCfg)
	}
	cfg, _, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Threads != 6 {
		t.Errorf("Expected threads 6 from the user config, got %d", cfg.Threads)
	}
}

func TestLoadConfig_ConfigEqualsForm(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(configPath, []byte("overwrite: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := Load([]string{"--config=" + configPath, "info", "formats"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Overwrite {
		t.Error("Expected overwrite from the config file")
	}
}

func TestLoadConfig_InvalidConfig(t *testing.T) {
	isolate(t)

	_, _, err := Load([]string{"-workers", "0"})
	if err == nil {
		t.Fatal("Expected validation error for zero workers")
	}
	if !vmerrors.Is(err, vmerrors.ErrValidation) {
		t.Errorf("Expected a VALIDATION error, got %v", err)
	}
}

func TestLoadConfig_InvalidConfigFile(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("workers: [1, 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := Load([]string{"-config", configPath})
	if err == nil {
		t.Fatal("Expected error for invalid config file")
	}
	if !vmerrors.Is(err, vmerrors.ErrValidation) {
		t.Errorf("Expected a VALIDATION error, got %v", err)
	}
}

func TestLoadConfig_MissingConfigFile(t *testing.T) {
	isolate(t)

	_, _, err := Load([]string{"-config", "/nonexistent/videomass.yaml"})
	if err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestConfigFlag(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"-config", "a.yaml"}, "a.yaml"},
		{[]string{"--config", "b.yaml"}, "b.yaml"},
		{[]string{"-config=c.yaml"}, "c.yaml"},
		{[]string{"-workers", "2", "-config", "d.yaml"}, "d.yaml"},
		{[]string{"--", "-config", "e.yaml"}, ""},
		{[]string{"-config"}, ""},
	}
	for _, tt := range tests {
		if got := configFlag(tt.args); got != tt.want {
			t.Errorf("configFlag(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
