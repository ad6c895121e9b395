package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/quickscale/internal/quickscale"
	"github.com/zjrosen/quickscale/internal/scene"
)

func ptr(f float64) *float64 { return &f }

func TestDefaults_AreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestDefaults_MatchScaleDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, quickscale.DefaultTag, cfg.Tag)
	require.Equal(t, quickscale.DefaultReferenceSize, cfg.Scale.ReferenceSize())
	require.Equal(t, quickscale.DefaultScaleBounds, cfg.Scale.Bounds())
	require.Equal(t, quickscale.DefaultFactor, cfg.Scale.Factor)
}

func TestValidate_Tag(t *testing.T) {
	cfg := Defaults()
	cfg.Tag = ""
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "tag is required")
}

func TestValidate_CellSize(t *testing.T) {
	cfg := Defaults()
	cfg.CellSize.Height = 0
	err := Validate(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cell_size")
}

func TestValidateScale(t *testing.T) {
	base := Defaults().Scale
	tests := []struct {
		name   string
		mutate func(*ScaleConfig)
		errMsg string
	}{
		{"zero reference", func(s *ScaleConfig) { s.ReferenceWidth = 0 }, "reference_width"},
		{"negative min", func(s *ScaleConfig) { s.Min = -1 }, "scale.min"},
		{"max below min", func(s *ScaleConfig) { s.Min = 2; s.Max = 1 }, "scale.max"},
		{"zero factor", func(s *ScaleConfig) { s.Factor = 0 }, "scale.factor"},
		{"unbounded max", func(s *ScaleConfig) { s.Min = 0.5; s.Max = 0 }, ""},
		{"bounded", func(s *ScaleConfig) { s.Min = 0.5; s.Max = 2 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			tt.mutate(&s)
			err := ValidateScale(s)
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidatePanels(t *testing.T) {
	good := PanelConfig{Name: "Main", Width: 0.5, Height: 0.5, TextMin: 10, TextMax: 20}
	tests := []struct {
		name   string
		panels []PanelConfig
		errMsg string
	}{
		{"empty uses defaults", nil, ""},
		{"valid", []PanelConfig{good}, ""},
		{"missing name", []PanelConfig{{Width: 0.5, Height: 0.5, TextMin: 1, TextMax: 2}}, "panel 0: name is required"},
		{"duplicate", []PanelConfig{good, good}, "duplicate name"},
		{"width over one", []PanelConfig{{Name: "W", Width: 1.5, Height: 0.5, TextMin: 1, TextMax: 2}}, "width and height"},
		{"text range inverted", []PanelConfig{{Name: "T", Width: 0.5, Height: 0.5, TextMin: 20, TextMax: 10}}, "text_min"},
		{"negative factor", []PanelConfig{{Name: "F", Width: 0.5, Height: 0.5, TextMin: 1, TextMax: 2, Factor: ptr(-1)}}, "factor must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePanels(tt.panels)
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		tracing TracingConfig
		errMsg  string
	}{
		{"disabled defaults", TracingConfig{}, ""},
		{"bad sample rate", TracingConfig{SampleRate: 1.5}, "sample_rate"},
		{"bad exporter", TracingConfig{Exporter: "jaeger"}, "tracing.exporter"},
		{"file without path", TracingConfig{Enabled: true, Exporter: "file"}, "file_path is required"},
		{"otlp without endpoint", TracingConfig{Enabled: true, Exporter: "otlp"}, "otlp_endpoint is required"},
		{"file without path but disabled", TracingConfig{Exporter: "file"}, ""},
		{"stdout", TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 0.5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.tracing)
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestScaleConfig_Bounds(t *testing.T) {
	require.True(t, math.IsInf(ScaleConfig{Min: 0.5}.Bounds().Max, 1))
	require.Equal(t, scene.NewNumberRange(0.5, 2), ScaleConfig{Min: 0.5, Max: 2}.Bounds())
}

func TestConfig_AttributesUsePanelFactor(t *testing.T) {
	cfg := Defaults()
	cfg.Scale.Factor = 1.5

	attrs := cfg.Attributes(PanelConfig{Name: "A"})
	require.Equal(t, 1.5, attrs[quickscale.AttrFactor])
	require.Equal(t, quickscale.DefaultReferenceSize, attrs[quickscale.AttrReferenceSize])

	attrs = cfg.Attributes(PanelConfig{Name: "B", Factor: ptr(3)})
	require.Equal(t, 3.0, attrs[quickscale.AttrFactor])
}

func TestConfig_GetPanelsFallsBackToDefaults(t *testing.T) {
	require.Equal(t, DefaultPanels(), Config{}.GetPanels())

	custom := []PanelConfig{{Name: "Only"}}
	require.Equal(t, custom, Config{Panels: custom}.GetPanels())

	p, ok := Config{Panels: custom}.Panel("Only")
	require.True(t, ok)
	require.Equal(t, "Only", p.Name)
	_, ok = Config{Panels: custom}.Panel("Missing")
	require.False(t, ok)
}

func TestDefaultConfigTemplate_DecodesToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	var loaded Config
	require.NoError(t, v.Unmarshal(&loaded))

	want := Defaults()
	want.Tracing.FilePath = ""
	require.Equal(t, want, loaded)
	require.NoError(t, Validate(loaded))
}

func TestWriteDefaultConfig_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}
