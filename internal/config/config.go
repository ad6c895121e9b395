// Package config provides configuration types and defaults for quickscale.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/quickscale"
	"github.com/zjrosen/quickscale/internal/scene"
)

// Config holds all configuration options for quickscale.
type Config struct {
	Tag      string         `mapstructure:"tag"`
	CellSize CellSizeConfig `mapstructure:"cell_size"`
	Scale    ScaleConfig    `mapstructure:"scale"`
	Panels   []PanelConfig  `mapstructure:"panels"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Watch    bool           `mapstructure:"watch"` // reload the config file when it changes
}

// CellSizeConfig is the pixel size of one terminal cell. The demo screen
// measures terminal columns and rows in these units.
type CellSizeConfig struct {
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// ScaleConfig holds the scale parameters shared by every panel.
type ScaleConfig struct {
	ReferenceWidth  float64 `mapstructure:"reference_width"`
	ReferenceHeight float64 `mapstructure:"reference_height"`
	Min             float64 `mapstructure:"min"`
	Max             float64 `mapstructure:"max"` // 0 = unbounded
	Factor          float64 `mapstructure:"factor"`
}

// PanelConfig defines one scaled panel.
type PanelConfig struct {
	Name    string   `mapstructure:"name"`
	Width   float64  `mapstructure:"width"`  // fraction of the screen width
	Height  float64  `mapstructure:"height"` // fraction of the screen height
	Lines   []string `mapstructure:"lines"`
	TextMin float64  `mapstructure:"text_min"`
	TextMax float64  `mapstructure:"text_max"`
	Factor  *float64 `mapstructure:"factor"` // nil = scale.factor
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/quickscale/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ReferenceSize returns the reference resolution as a Vector2.
func (s ScaleConfig) ReferenceSize() scene.Vector2 {
	return scene.NewVector2(s.ReferenceWidth, s.ReferenceHeight)
}

// Bounds returns the scale bounds; a zero Max is unbounded.
func (s ScaleConfig) Bounds() scene.NumberRange {
	hi := s.Max
	if hi == 0 {
		hi = math.Inf(1)
	}
	return scene.NewNumberRange(s.Min, hi)
}

// FactorFor returns the panel's factor, falling back to the shared one.
func (s ScaleConfig) FactorFor(p PanelConfig) float64 {
	if p.Factor != nil {
		return *p.Factor
	}
	return s.Factor
}

// Attributes returns the UIScale attributes for panel.
func (c Config) Attributes(panel PanelConfig) map[string]any {
	return map[string]any{
		quickscale.AttrReferenceSize: c.Scale.ReferenceSize(),
		quickscale.AttrScaleBounds:   c.Scale.Bounds(),
		quickscale.AttrFactor:        c.Scale.FactorFor(panel),
	}
}

// TextBounds returns the unscaled text size range for panel's labels.
func (p PanelConfig) TextBounds() scene.NumberRange {
	return scene.NewNumberRange(p.TextMin, p.TextMax)
}

// Panel returns the panel with the given name.
func (c Config) Panel(name string) (PanelConfig, bool) {
	for _, p := range c.Panels {
		if p.Name == name {
			return p, true
		}
	}
	return PanelConfig{}, false
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/quickscale/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "quickscale", "traces", "traces.jsonl")
}

// DefaultPanels returns the panels shown when none are configured.
func DefaultPanels() []PanelConfig {
	return []PanelConfig{
		{
			Name:    "Dashboard",
			Width:   0.6,
			Height:  0.6,
			Lines:   []string{"QuickScale", "Resize the terminal to rescale"},
			TextMin: 14,
			TextMax: 28,
		},
		{
			Name:    "Sidebar",
			Width:   0.35,
			Height:  0.9,
			Lines:   []string{"Inventory", "Settings", "Quit"},
			TextMin: 10,
			TextMax: 18,
		},
	}
}

// Validate checks the whole configuration and returns the first problem found.
func Validate(c Config) error {
	if c.Tag == "" {
		return fmt.Errorf("tag is required")
	}
	if c.CellSize.Width <= 0 || c.CellSize.Height <= 0 {
		return fmt.Errorf("cell_size.width and cell_size.height must be positive, got %vx%v",
			c.CellSize.Width, c.CellSize.Height)
	}
	if err := ValidateScale(c.Scale); err != nil {
		return err
	}
	if err := ValidatePanels(c.Panels); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateScale checks the shared scale parameters.
func ValidateScale(s ScaleConfig) error {
	if s.ReferenceWidth <= 0 || s.ReferenceHeight <= 0 {
		return fmt.Errorf("scale.reference_width and scale.reference_height must be positive, got %vx%v",
			s.ReferenceWidth, s.ReferenceHeight)
	}
	if s.Min < 0 {
		return fmt.Errorf("scale.min must not be negative, got %v", s.Min)
	}
	if s.Max != 0 && s.Max < s.Min {
		return fmt.Errorf("scale.max (%v) must be 0 or at least scale.min (%v)", s.Max, s.Min)
	}
	if s.Factor <= 0 {
		return fmt.Errorf("scale.factor must be positive, got %v", s.Factor)
	}
	return nil
}

// ValidatePanels checks panel definitions. An empty list is valid and
// means DefaultPanels.
func ValidatePanels(panels []PanelConfig) error {
	seen := make(map[string]bool, len(panels))
	for i, p := range panels {
		if p.Name == "" {
			return fmt.Errorf("panel %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("panel %d (%s): duplicate name", i, p.Name)
		}
		seen[p.Name] = true
		if p.Width <= 0 || p.Width > 1 || p.Height <= 0 || p.Height > 1 {
			return fmt.Errorf("panel %d (%s): width and height must be in (0, 1], got %vx%v",
				i, p.Name, p.Width, p.Height)
		}
		if p.TextMin <= 0 || p.TextMax < p.TextMin {
			return fmt.Errorf("panel %d (%s): need 0 < text_min <= text_max, got %v..%v",
				i, p.Name, p.TextMin, p.TextMax)
		}
		if p.Factor != nil && *p.Factor <= 0 {
			return fmt.Errorf("panel %d (%s): factor must be positive, got %v", i, p.Name, *p.Factor)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Path requirements only matter when tracing is on.
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// GetPanels returns the configured panels, or DefaultPanels() if none configured.
func (c Config) GetPanels() []PanelConfig {
	if len(c.Panels) > 0 {
		return c.Panels
	}
	return DefaultPanels()
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Tag:      quickscale.DefaultTag,
		CellSize: CellSizeConfig{Width: 8, Height: 16},
		Scale: ScaleConfig{
			ReferenceWidth:  quickscale.DefaultReferenceSize.X,
			ReferenceHeight: quickscale.DefaultReferenceSize.Y,
			Min:             0,
			Max:             0,
			Factor:          quickscale.DefaultFactor,
		},
		Panels: DefaultPanels(),
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		Watch: true,
	}
}

// DefaultConfigTemplate returns the default configuration as a commented
// YAML document. Decoding it yields Defaults() apart from the traces path.
func DefaultConfigTemplate() string {
	return `# quickscale configuration
#
# Every panel holds a UIScale tagged with "tag". Its scale follows the
# terminal size measured in pixels (columns x cell_size.width, rows x
# cell_size.height) relative to the reference resolution.

tag: QuickScaleElement

cell_size:
  width: 8
  height: 16

scale:
  reference_width: 1280
  reference_height: 720
  # Clamp range for the raw scale; max 0 means unbounded.
  min: 0
  max: 0
  # Multiplier applied after clamping.
  factor: 1

panels:
  - name: Dashboard
    width: 0.6
    height: 0.6
    lines:
      - QuickScale
      - Resize the terminal to rescale
    text_min: 14
    text_max: 28
  - name: Sidebar
    width: 0.35
    height: 0.9
    lines:
      - Inventory
      - Settings
      - Quit
    text_min: 10
    text_max: 18

tracing:
  enabled: false
  # Options: none, file, stdout, otlp
  exporter: file
  # file_path: ~/.config/quickscale/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0

# Reload this file when it changes.
watch: true
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
