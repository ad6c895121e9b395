package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func writeDefault(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))
	return path
}

func load(t *testing.T, path string) Config {
	t.Helper()
	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	return cfg
}

func TestSavePanelFactor_AddsFactor(t *testing.T) {
	path := writeDefault(t)

	require.NoError(t, SavePanelFactor(path, "Sidebar", 1.5))

	cfg := load(t, path)
	sidebar, ok := cfg.Panel("Sidebar")
	require.True(t, ok)
	require.NotNil(t, sidebar.Factor)
	require.Equal(t, 1.5, *sidebar.Factor)

	dashboard, ok := cfg.Panel("Dashboard")
	require.True(t, ok)
	require.Nil(t, dashboard.Factor, "other panels untouched")
}

func TestSavePanelFactor_ReplacesExistingFactor(t *testing.T) {
	path := writeDefault(t)
	require.NoError(t, SavePanelFactor(path, "Dashboard", 2))
	require.NoError(t, SavePanelFactor(path, "Dashboard", 0.75))

	cfg := load(t, path)
	dashboard, _ := cfg.Panel("Dashboard")
	require.Equal(t, 0.75, *dashboard.Factor)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "factor: 0.75"))
}

func TestSavePanelFactor_PreservesComments(t *testing.T) {
	path := writeDefault(t)
	require.NoError(t, SavePanelFactor(path, "Dashboard", 2))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Multiplier applied after clamping.")
	require.Contains(t, string(data), "# Reload this file when it changes.")
}

func TestSavePanelFactor_UnknownPanel(t *testing.T) {
	path := writeDefault(t)
	err := SavePanelFactor(path, "Nope", 2)
	require.ErrorIs(t, err, ErrPanelNotFound)
}

func TestSavePanelFactor_MissingFile(t *testing.T) {
	err := SavePanelFactor(filepath.Join(t.TempDir(), "missing.yaml"), "Dashboard", 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}

func TestSavePanelFactor_NoPanelsSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tag: Custom\n"), 0o600))

	err := SavePanelFactor(path, "Dashboard", 2)
	require.ErrorIs(t, err, ErrPanelNotFound)
}

func TestSavePanelFactor_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("panels: [\n"), 0o600))

	err := SavePanelFactor(path, "Dashboard", 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing config")
}

func TestDiffLines(t *testing.T) {
	oldText := "tag: A\nwatch: true\nscale:\n  factor: 1\n"
	newText := "tag: A\nwatch: true\nscale:\n  factor: 2\n"

	require.Equal(t, []string{"-   factor: 1", "+   factor: 2"}, DiffLines(oldText, newText))
	require.Empty(t, DiffLines(oldText, oldText))
}
