package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/mmdb/core/seq"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmdb.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Seq.IntervalSize != seq.DefaultIntervalSize {
		t.Errorf("IntervalSize = %d", cfg.Seq.IntervalSize)
	}
	if cfg.Load.MaxErrors != 100 || cfg.Load.Proofs != ProofsValidate {
		t.Errorf("Load = %+v", cfg.Load)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
seq:
  interval_size: 50
load:
  max_errors: -1
  premature_eof_label: ax-mp
  proofs: skip
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Seq.IntervalSize != 50 {
		t.Errorf("IntervalSize = %d", cfg.Seq.IntervalSize)
	}
	if cfg.Load.MaxErrors != -1 || cfg.Load.PrematureEOFLabel != "ax-mp" || cfg.Load.Proofs != ProofsSkip {
		t.Errorf("Load = %+v", cfg.Load)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "load:\n  premature_eof_label: th1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Seq.IntervalSize != seq.DefaultIntervalSize || cfg.Load.MaxErrors != 100 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MMDB_INTERVAL_SIZE", "7")
	t.Setenv("MMDB_LOG_LEVEL", "error")
	cfg, err := Load(writeConfig(t, "seq:\n  interval_size: 50\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Seq.IntervalSize != 7 || cfg.Log.Level != "error" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "seq: [", "parse config"},
		{"zero interval", "seq:\n  interval_size: -3\n", "interval_size"},
		{"zero max errors", "load:\n  max_errors: 0\n", "max_errors"},
		{"bad proofs mode", "load:\n  proofs: maybe\n", "load.proofs"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file succeeded")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Load.Proofs != ProofsValidate {
		t.Errorf("Proofs = %q", cfg.Load.Proofs)
	}
}
