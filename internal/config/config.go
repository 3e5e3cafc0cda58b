// Package config collects every tunable of the scan pipeline in one place.
//
// Values start from Default, may be overridden by a YAML file and, for the
// service, by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline and service configuration.
type Config struct {
	Edge      Edge      `yaml:"edge"`
	Detect    Detect    `yaml:"detect"`
	Fallback  Fallback  `yaml:"fallback"`
	Rectify   Rectify   `yaml:"rectify"`
	Enhance   Enhance   `yaml:"enhance"`
	Visualize Visualize `yaml:"visualize"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
}

// Edge controls how the photo is reduced to a binary edge map.
type Edge struct {
	BlurKernel         int     `yaml:"blur_kernel"`          // Gaussian kernel side, odd
	ThresholdBlockSize int     `yaml:"threshold_block_size"` // adaptive threshold neighbourhood, odd
	ThresholdC         float32 `yaml:"threshold_c"`          // constant subtracted from the local mean
	CannyLow           float32 `yaml:"canny_low"`
	CannyHigh          float32 `yaml:"canny_high"`
	MorphKernel        int     `yaml:"morph_kernel"`      // structuring element side for close/open/dilate
	OpenAfterClose     bool    `yaml:"open_after_close"`  // remove speckles after closing gaps
	DilateIterations   int     `yaml:"dilate_iterations"` // passes thickening the Canny edges
}

// Detect controls the contour search for a four sided document outline.
type Detect struct {
	MinAreaFraction float64 `yaml:"min_area_fraction"` // smallest contour, as a share of the image
	MaxAreaFraction float64 `yaml:"max_area_fraction"` // largest contour, rejects the image frame
	MaxCandidates   int     `yaml:"max_candidates"`    // contours examined, largest first
	ApproxEpsilon   float64 `yaml:"approx_epsilon"`    // polygon tolerance as a share of the perimeter
	MinAngleDeg     float64 `yaml:"min_angle_deg"`     // smallest interior angle of an accepted quad
}

// Fallback controls boundary estimation when no contour qualifies.
type Fallback struct {
	HoughThreshold    int     `yaml:"hough_threshold"`     // accumulator votes for a line
	MaxLines          int     `yaml:"max_lines"`           // strongest lines considered
	AngleToleranceDeg float64 `yaml:"angle_tolerance_deg"` // deviation from the dominant orientations
	MinLineSeparation float64 `yaml:"min_line_separation"` // outer line gap, share of the short side
	MinAreaFraction   float64 `yaml:"min_area_fraction"`   // smallest accepted estimate
	UseContourBox     bool    `yaml:"use_contour_box"`     // try the largest contour's rotated box
	MarginFraction    float64 `yaml:"margin_fraction"`     // final inset, share of the short side
}

// BorderMode selects how samples outside the source are filled.
type BorderMode string

const (
	BorderReplicate BorderMode = "replicate"
	BorderWhite     BorderMode = "white"
)

// Rectify controls the perspective warp.
type Rectify struct {
	Border  BorderMode `yaml:"border"`
	MaxSide int        `yaml:"max_side"` // 0 keeps the measured size
}

// Enhance controls the legibility pass on the rectified page.
type Enhance struct {
	Disabled      bool    `yaml:"disabled"`
	ClipLimit     float64 `yaml:"clip_limit"` // CLAHE contrast limit
	TileGrid      int     `yaml:"tile_grid"`  // CLAHE tiles per side
	BilateralDiam int     `yaml:"bilateral_diameter"`
	SigmaColor    float64 `yaml:"sigma_color"`
	SigmaSpace    float64 `yaml:"sigma_space"`
	Grayscale     bool    `yaml:"grayscale"` // emit a gray page expanded to three channels
}

// Visualize controls the boundary overlay drawn on the original.
type Visualize struct {
	Thickness   int `yaml:"thickness"`
	PointRadius int `yaml:"point_radius"`
}

// Output controls encoding of both result images.
type Output struct {
	Format  string `yaml:"format"` // jpeg or png
	Quality int    `yaml:"quality"`
}

// Server controls the HTTP adapter.
type Server struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// Default returns the tuned parameters used by the scan service.
func Default() Config {
	return Config{
		Edge: Edge{
			BlurKernel:         5,
			ThresholdBlockSize: 11,
			ThresholdC:         2,
			CannyLow:           50,
			CannyHigh:          150,
			MorphKernel:        3,
			OpenAfterClose:     true,
			DilateIterations:   1,
		},
		Detect: Detect{
			MinAreaFraction: 0.02,
			MaxAreaFraction: 0.99,
			MaxCandidates:   5,
			ApproxEpsilon:   0.02,
			MinAngleDeg:     20,
		},
		Fallback: Fallback{
			HoughThreshold:    100,
			MaxLines:          60,
			AngleToleranceDeg: 20,
			MinLineSeparation: 0.1,
			MinAreaFraction:   0.1,
			UseContourBox:     true,
			MarginFraction:    0.025,
		},
		Rectify: Rectify{
			Border: BorderReplicate,
		},
		Enhance: Enhance{
			ClipLimit:     2.0,
			TileGrid:      8,
			BilateralDiam: 9,
			SigmaColor:    75,
			SigmaSpace:    75,
		},
		Visualize: Visualize{
			Thickness:   3,
			PointRadius: 10,
		},
		Output: Output{
			Format:  "jpeg",
			Quality: 95,
		},
		Server: Server{
			Addr:           ":5000",
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   50 << 20,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by DOCSCAN_CONFIG and applies DOCSCAN_ADDR.
func FromEnv() (Config, error) {
	cfg, err := Load(os.Getenv("DOCSCAN_CONFIG"))
	if err != nil {
		return cfg, err
	}
	cfg.Server.Addr = getEnv("DOCSCAN_ADDR", cfg.Server.Addr)
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Validate reports every out of range field.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	e := c.Edge
	check(e.BlurKernel > 0 && e.BlurKernel%2 == 1, "edge.blur_kernel must be odd and positive, got %d", e.BlurKernel)
	check(e.ThresholdBlockSize > 1 && e.ThresholdBlockSize%2 == 1, "edge.threshold_block_size must be odd and > 1, got %d", e.ThresholdBlockSize)
	check(e.CannyLow > 0 && e.CannyHigh > e.CannyLow, "edge.canny_high (%v) must exceed canny_low (%v)", e.CannyHigh, e.CannyLow)
	check(e.MorphKernel > 0, "edge.morph_kernel must be positive, got %d", e.MorphKernel)
	check(e.DilateIterations >= 0, "edge.dilate_iterations must not be negative")

	d := c.Detect
	check(fraction(d.MinAreaFraction) && fraction(d.MaxAreaFraction) && d.MinAreaFraction < d.MaxAreaFraction,
		"detect area fractions must satisfy 0 <= min < max <= 1, got %v and %v", d.MinAreaFraction, d.MaxAreaFraction)
	check(d.MaxCandidates > 0, "detect.max_candidates must be positive, got %d", d.MaxCandidates)
	check(d.ApproxEpsilon > 0 && d.ApproxEpsilon < 0.5, "detect.approx_epsilon out of range: %v", d.ApproxEpsilon)
	check(d.MinAngleDeg >= 0 && d.MinAngleDeg < 90, "detect.min_angle_deg out of range: %v", d.MinAngleDeg)

	f := c.Fallback
	check(f.HoughThreshold > 0, "fallback.hough_threshold must be positive")
	check(f.MaxLines >= 4, "fallback.max_lines must be at least 4, got %d", f.MaxLines)
	check(f.AngleToleranceDeg > 0 && f.AngleToleranceDeg < 45, "fallback.angle_tolerance_deg must be in (0,45), got %v", f.AngleToleranceDeg)
	check(fraction(f.MinLineSeparation), "fallback.min_line_separation out of range: %v", f.MinLineSeparation)
	check(fraction(f.MinAreaFraction), "fallback.min_area_fraction out of range: %v", f.MinAreaFraction)
	check(f.MarginFraction >= 0 && f.MarginFraction < 0.5, "fallback.margin_fraction must be in [0,0.5), got %v", f.MarginFraction)

	check(c.Rectify.Border == BorderReplicate || c.Rectify.Border == BorderWhite, "rectify.border must be %q or %q, got %q", BorderReplicate, BorderWhite, c.Rectify.Border)
	check(c.Rectify.MaxSide >= 0, "rectify.max_side must not be negative")

	if !c.Enhance.Disabled {
		check(c.Enhance.ClipLimit > 0, "enhance.clip_limit must be positive")
		check(c.Enhance.TileGrid > 0, "enhance.tile_grid must be positive")
		check(c.Enhance.BilateralDiam > 0, "enhance.bilateral_diameter must be positive")
	}

	check(c.Visualize.Thickness > 0, "visualize.thickness must be positive")

	switch strings.ToLower(c.Output.Format) {
	case "jpeg", "jpg", "png":
	default:
		errs = append(errs, fmt.Errorf("output.format must be jpeg or png, got %q", c.Output.Format))
	}
	check(c.Output.Quality >= 1 && c.Output.Quality <= 100, "output.quality must be in [1,100], got %d", c.Output.Quality)

	return errors.Join(errs...)
}

func fraction(v float64) bool {
	return v >= 0 && v <= 1
}
