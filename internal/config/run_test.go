package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEmptyRunConfigDefaults(t *testing.T) {
	cfg := EmptyRunConfig()

	if cfg.GetImageWidth() != 1600 || cfg.GetImageHeight() != 1200 {
		t.Errorf("image = %dx%d, want 1600x1200", cfg.GetImageWidth(), cfg.GetImageHeight())
	}
	if cfg.GetStartIAWidth() != 128 || cfg.GetEndIAWidth() != 16 {
		t.Errorf("IA widths = %d..%d, want 128..16", cfg.GetStartIAWidth(), cfg.GetEndIAWidth())
	}
	if cfg.GetOverlapFactor() != 0.5 {
		t.Errorf("GetOverlapFactor() = %v, want 0.5", cfg.GetOverlapFactor())
	}
	if cfg.GetAreaDivision() != "no_superposition" {
		t.Errorf("GetAreaDivision() = %q, want no_superposition", cfg.GetAreaDivision())
	}
	if cfg.GetVelocityInheritance() != "area_weighted" {
		t.Errorf("GetVelocityInheritance() = %q, want area_weighted", cfg.GetVelocityInheritance())
	}
	if cfg.GetStability() != "simple" {
		t.Errorf("GetStability() = %q, want simple", cfg.GetStability())
	}
	if cfg.GetClipping() != "no_out_of_bound" {
		t.Errorf("GetClipping() = %q, want no_out_of_bound", cfg.GetClipping())
	}
	if cfg.GetFrameInterval() != time.Millisecond {
		t.Errorf("GetFrameInterval() = %v, want 1ms", cfg.GetFrameInterval())
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate, got %v", err)
	}
}

func TestLoadRunConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "run.json")

	testJSON := `{
  "image_width": 640,
  "start_ia_width": 64,
  "area_division": "superposition",
  "velocity_inheritance": "bicubic_spline",
  "frame_interval": "250us",
  "trace_tiles": [{"level": 2, "i": 3, "j": 4}]
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadRunConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetImageWidth() != 640 {
		t.Errorf("GetImageWidth() = %d, want 640", cfg.GetImageWidth())
	}
	if cfg.GetImageHeight() != 1200 {
		t.Errorf("omitted image_height should default, got %d", cfg.GetImageHeight())
	}
	if cfg.GetStartIAWidth() != 64 {
		t.Errorf("GetStartIAWidth() = %d, want 64", cfg.GetStartIAWidth())
	}
	if cfg.GetAreaDivision() != "superposition" {
		t.Errorf("GetAreaDivision() = %q", cfg.GetAreaDivision())
	}
	if cfg.GetVelocityInheritance() != "bicubic_spline" {
		t.Errorf("GetVelocityInheritance() = %q", cfg.GetVelocityInheritance())
	}
	if cfg.GetFrameInterval() != 250*time.Microsecond {
		t.Errorf("GetFrameInterval() = %v, want 250µs", cfg.GetFrameInterval())
	}
	if len(cfg.TraceTiles) != 1 || cfg.TraceTiles[0] != (TraceTile{Level: 2, I: 3, J: 4}) {
		t.Errorf("TraceTiles = %+v", cfg.TraceTiles)
	}
}

func TestLoadRunConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"wrong extension", write("run.yaml", "{}"), ".json extension"},
		{"bad json", write("bad.json", `{"image_width": "wide"`), "failed to parse"},
		{"invalid value", write("invalid.json", `{"overlap_factor": 1.5}`), "overlap_factor"},
		{"too large", write("large.json", `{"x":"`+strings.Repeat("a", 1<<20)+`"}`), "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRunConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	intPtr := func(v int) *int { return &v }
	floatPtr := func(v float64) *float64 { return &v }
	strPtr := func(v string) *string { return &v }

	tests := []struct {
		name    string
		cfg     RunConfig
		wantErr bool
	}{
		{"empty", RunConfig{}, false},
		{"zero width", RunConfig{ImageWidth: intPtr(0)}, true},
		{"negative end height", RunConfig{EndIAHeight: intPtr(-16)}, true},
		{"negative margin", RunConfig{MarginLeft: intPtr(-1)}, true},
		{"zero margin", RunConfig{MarginTop: intPtr(0)}, false},
		{"zero overlap", RunConfig{OverlapFactor: floatPtr(0)}, true},
		{"full overlap factor", RunConfig{OverlapFactor: floatPtr(1)}, false},
		{"negative superposition level", RunConfig{SuperpositionStartLevel: intPtr(-1)}, true},
		{"negative max displacement", RunConfig{MaxDisplacementPx: floatPtr(-0.1)}, true},
		{"zero iterations", RunConfig{MaxStabilityIterations: intPtr(0)}, true},
		{"zero pitch", RunConfig{PixelPitchM: floatPtr(0)}, true},
		{"bad interval", RunConfig{FrameInterval: strPtr("soon")}, true},
		{"negative interval", RunConfig{FrameInterval: strPtr("-1ms")}, true},
		{"zero workers", RunConfig{Workers: intPtr(0)}, true},
		{"negative trace tile", RunConfig{TraceTiles: []TraceTile{{Level: 0, I: -1}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetFrameIntervalFallback(t *testing.T) {
	bad := "later"
	cfg := &RunConfig{FrameInterval: &bad}
	if got := cfg.GetFrameInterval(); got != time.Millisecond {
		t.Errorf("GetFrameInterval() with bad value = %v, want 1ms", got)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if cfg.GetAreaDivision() != "mixed_superposition" {
		t.Errorf("defaults area_division = %q, want mixed_superposition", cfg.GetAreaDivision())
	}
	if cfg.GetStability() != "max_displacement" {
		t.Errorf("defaults stability = %q, want max_displacement", cfg.GetStability())
	}
	if cfg.GetMaxDisplacementPx() != 0.05 {
		t.Errorf("defaults max_displacement_px = %v, want 0.05", cfg.GetMaxDisplacementPx())
	}
	if cfg.GetMaxStabilityIterations() != 4 {
		t.Errorf("defaults max_stability_iterations = %d, want 4", cfg.GetMaxStabilityIterations())
	}
}
