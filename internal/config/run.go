package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical run defaults file.
const DefaultConfigPath = "config/piv.defaults.json"

// TraceTile names a tile whose inheritance weights should be traced.
type TraceTile struct {
	Level int `json:"level"`
	I     int `json:"i"`
	J     int `json:"j"`
}

// RunConfig is the JSON configuration of a PIV run. Every field is optional;
// the Get* accessors supply defaults for omitted fields.
type RunConfig struct {
	// Image geometry
	ImageWidth   *int `json:"image_width,omitempty"`
	ImageHeight  *int `json:"image_height,omitempty"`
	MarginTop    *int `json:"margin_top,omitempty"`
	MarginBottom *int `json:"margin_bottom,omitempty"`
	MarginLeft   *int `json:"margin_left,omitempty"`
	MarginRight  *int `json:"margin_right,omitempty"`

	// Interrogation areas
	StartIAWidth            *int     `json:"start_ia_width,omitempty"`
	StartIAHeight           *int     `json:"start_ia_height,omitempty"`
	EndIAWidth              *int     `json:"end_ia_width,omitempty"`
	EndIAHeight             *int     `json:"end_ia_height,omitempty"`
	OverlapFactor           *float64 `json:"overlap_factor,omitempty"`
	SuperpositionStartLevel *int     `json:"superposition_start_level,omitempty"`

	// Strategy selection
	AreaDivision        *string `json:"area_division,omitempty"`
	VelocityInheritance *string `json:"velocity_inheritance,omitempty"`
	Stability           *string `json:"stability,omitempty"`
	Clipping            *string `json:"clipping,omitempty"`

	// Stability tuning
	MaxDisplacementPx      *float64 `json:"max_displacement_px,omitempty"`
	MaxStabilityIterations *int     `json:"max_stability_iterations,omitempty"`

	// Calibration
	PixelPitchM   *float64 `json:"pixel_pitch_m,omitempty"`
	FrameInterval *string  `json:"frame_interval,omitempty"` // duration string like "1ms"

	// Execution
	Workers    *int        `json:"workers,omitempty"`
	TraceTiles []TraceTile `json:"trace_tiles,omitempty"`
}

// EmptyRunConfig returns a RunConfig with all fields unset.
func EmptyRunConfig() *RunConfig {
	return &RunConfig{}
}

// LoadRunConfig loads a RunConfig from a JSON file. The file must have a
// .json extension and be under 1MB. Fields omitted from the file fall back
// to the Get* defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRunConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *RunConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/piv/tiling/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadRunConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that can be checked without knowing the chosen
// strategies. Geometry consistency (margins against image size, start
// against end sizes) is checked by the tiling package.
func (c *RunConfig) Validate() error {
	for name, v := range map[string]*int{
		"image_width":     c.ImageWidth,
		"image_height":    c.ImageHeight,
		"start_ia_width":  c.StartIAWidth,
		"start_ia_height": c.StartIAHeight,
		"end_ia_width":    c.EndIAWidth,
		"end_ia_height":   c.EndIAHeight,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}

	for name, v := range map[string]*int{
		"margin_top":    c.MarginTop,
		"margin_bottom": c.MarginBottom,
		"margin_left":   c.MarginLeft,
		"margin_right":  c.MarginRight,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}

	if c.OverlapFactor != nil && (*c.OverlapFactor <= 0 || *c.OverlapFactor > 1) {
		return fmt.Errorf("overlap_factor must be in (0, 1], got %f", *c.OverlapFactor)
	}
	if c.SuperpositionStartLevel != nil && *c.SuperpositionStartLevel < 0 {
		return fmt.Errorf("superposition_start_level must be non-negative, got %d", *c.SuperpositionStartLevel)
	}
	if c.MaxDisplacementPx != nil && *c.MaxDisplacementPx < 0 {
		return fmt.Errorf("max_displacement_px must be non-negative, got %f", *c.MaxDisplacementPx)
	}
	if c.MaxStabilityIterations != nil && *c.MaxStabilityIterations < 1 {
		return fmt.Errorf("max_stability_iterations must be at least 1, got %d", *c.MaxStabilityIterations)
	}
	if c.PixelPitchM != nil && *c.PixelPitchM <= 0 {
		return fmt.Errorf("pixel_pitch_m must be positive, got %f", *c.PixelPitchM)
	}
	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	for _, t := range c.TraceTiles {
		if t.Level < 0 || t.I < 0 || t.J < 0 {
			return fmt.Errorf("trace_tiles entries must be non-negative, got %+v", t)
		}
	}
	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetImageWidth returns image_width or the default (1600).
func (c *RunConfig) GetImageWidth() int { return intOr(c.ImageWidth, 1600) }

// GetImageHeight returns image_height or the default (1200).
func (c *RunConfig) GetImageHeight() int { return intOr(c.ImageHeight, 1200) }

// GetMarginTop returns margin_top or the default (16).
func (c *RunConfig) GetMarginTop() int { return intOr(c.MarginTop, 16) }

// GetMarginBottom returns margin_bottom or the default (16).
func (c *RunConfig) GetMarginBottom() int { return intOr(c.MarginBottom, 16) }

// GetMarginLeft returns margin_left or the default (16).
func (c *RunConfig) GetMarginLeft() int { return intOr(c.MarginLeft, 16) }

// GetMarginRight returns margin_right or the default (16).
func (c *RunConfig) GetMarginRight() int { return intOr(c.MarginRight, 16) }

// GetStartIAWidth returns start_ia_width or the default (128).
func (c *RunConfig) GetStartIAWidth() int { return intOr(c.StartIAWidth, 128) }

// GetStartIAHeight returns start_ia_height or the default (128).
func (c *RunConfig) GetStartIAHeight() int { return intOr(c.StartIAHeight, 128) }

// GetEndIAWidth returns end_ia_width or the default (16).
func (c *RunConfig) GetEndIAWidth() int { return intOr(c.EndIAWidth, 16) }

// GetEndIAHeight returns end_ia_height or the default (16).
func (c *RunConfig) GetEndIAHeight() int { return intOr(c.EndIAHeight, 16) }

// GetOverlapFactor returns overlap_factor or the default (0.5).
func (c *RunConfig) GetOverlapFactor() float64 {
	if c.OverlapFactor == nil {
		return 0.5
	}
	return *c.OverlapFactor
}

// GetSuperpositionStartLevel returns superposition_start_level or the default (1).
func (c *RunConfig) GetSuperpositionStartLevel() int { return intOr(c.SuperpositionStartLevel, 1) }

// GetAreaDivision returns area_division or the default.
func (c *RunConfig) GetAreaDivision() string {
	return stringOr(c.AreaDivision, "no_superposition")
}

// GetVelocityInheritance returns velocity_inheritance or the default.
func (c *RunConfig) GetVelocityInheritance() string {
	return stringOr(c.VelocityInheritance, "area_weighted")
}

// GetStability returns stability or the default.
func (c *RunConfig) GetStability() string {
	return stringOr(c.Stability, "simple")
}

// GetClipping returns clipping or the default.
func (c *RunConfig) GetClipping() string {
	return stringOr(c.Clipping, "no_out_of_bound")
}

// GetMaxDisplacementPx returns max_displacement_px or the default (0.1).
func (c *RunConfig) GetMaxDisplacementPx() float64 {
	if c.MaxDisplacementPx == nil {
		return 0.1
	}
	return *c.MaxDisplacementPx
}

// GetMaxStabilityIterations returns max_stability_iterations or the default (5).
func (c *RunConfig) GetMaxStabilityIterations() int { return intOr(c.MaxStabilityIterations, 5) }

// GetPixelPitchM returns pixel_pitch_m or the default (10µm).
func (c *RunConfig) GetPixelPitchM() float64 {
	if c.PixelPitchM == nil {
		return 10e-6
	}
	return *c.PixelPitchM
}

// GetFrameInterval parses and returns frame_interval.
func (c *RunConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return time.Millisecond // default on parse error
	}
	return d
}

// GetWorkers returns workers or the default (4).
func (c *RunConfig) GetWorkers() int { return intOr(c.Workers, 4) }
