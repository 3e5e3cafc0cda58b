package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"even blur kernel", func(c *Config) { c.Edge.BlurKernel = 4 }, "blur_kernel"},
		{"inverted canny", func(c *Config) { c.Edge.CannyHigh = 10 }, "canny_high"},
		{"no candidates", func(c *Config) { c.Detect.MaxCandidates = 0 }, "max_candidates"},
		{"min above max area", func(c *Config) { c.Detect.MinAreaFraction = 0.995 }, "area fractions"},
		{"huge margin", func(c *Config) { c.Fallback.MarginFraction = 0.6 }, "margin_fraction"},
		{"unknown border", func(c *Config) { c.Rectify.Border = "mirror" }, "rectify.border"},
		{"unknown format", func(c *Config) { c.Output.Format = "gif" }, "output.format"},
		{"quality", func(c *Config) { c.Output.Quality = 0 }, "output.quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docscan.yaml")
	body := `
detect:
  max_candidates: 8
enhance:
  grayscale: true
output:
  format: png
server:
  request_timeout: 5s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Detect.MaxCandidates != 8 {
		t.Errorf("MaxCandidates = %d, want 8", cfg.Detect.MaxCandidates)
	}
	if !cfg.Enhance.Grayscale {
		t.Error("Grayscale not applied")
	}
	if cfg.Output.Format != "png" {
		t.Errorf("Format = %q, want png", cfg.Output.Format)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.Server.RequestTimeout)
	}
	if cfg.Edge.CannyHigh != 150 {
		t.Errorf("untouched CannyHigh = %v, want default 150", cfg.Edge.CannyHigh)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("edge:\n  blur_kernel: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() = nil error, want validation failure")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DOCSCAN_CONFIG", "")
	t.Setenv("DOCSCAN_ADDR", ":9999")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Addr = %q, want :9999", cfg.Server.Addr)
	}
}
