package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/quickscale/internal/app"
	"github.com/zjrosen/quickscale/internal/config"
	"github.com/zjrosen/quickscale/internal/log"
	"github.com/zjrosen/quickscale/internal/tracing"
)

func init() {
	// Query the terminal background before Bubble Tea owns stdin so the
	// OSC 11 reply does not leak into the input loop.
	_ = lipgloss.HasDarkBackground()
}

// localConfigPath is checked first and is where a default config is written
// when none exists.
const localConfigPath = ".quickscale/config.yaml"

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	tagFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "quickscale",
	Short: "Resolution-independent UI scaling demo",
	Long: `quickscale keeps tagged UI elements sized relative to a reference resolution.

The terminal is treated as a screen of columns x rows cells. Each configured
panel carries a tagged UIScale whose scale follows that screen as the
terminal is resized.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runApp,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .quickscale/config.yaml, then ~/.config/quickscale/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also QUICKSCALE_DEBUG)")
	rootCmd.Flags().StringVarP(&tagFlag, "tag", "t", "",
		"tag marking scaled elements (overrides config)")
}

// setDefaults registers every key so a partial file still decodes fully.
func setDefaults(v *viper.Viper) {
	d := config.Defaults()
	v.SetDefault("tag", d.Tag)
	v.SetDefault("cell_size.width", d.CellSize.Width)
	v.SetDefault("cell_size.height", d.CellSize.Height)
	v.SetDefault("scale.reference_width", d.Scale.ReferenceWidth)
	v.SetDefault("scale.reference_height", d.Scale.ReferenceHeight)
	v.SetDefault("scale.min", d.Scale.Min)
	v.SetDefault("scale.max", d.Scale.Max)
	v.SetDefault("scale.factor", d.Scale.Factor)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("watch", d.Watch)
}

// resolveConfigPath returns the file to load, writing a default config when
// no file exists anywhere. It returns "" when nothing could be found or written.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(localConfigPath); err == nil {
		return localConfigPath
	}
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".config", "quickscale", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	if err := config.WriteDefaultConfig(localConfigPath); err != nil {
		log.ErrorErr(log.CatConfig, "writing default config", err, "path", localConfigPath)
		return ""
	}
	return localConfigPath
}

// loadConfig decodes path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (config.Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg config.Config
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func tracingConfig(c config.TracingConfig) tracing.Config {
	return tracing.Config{
		Enabled:      c.Enabled,
		Exporter:     c.Exporter,
		FilePath:     c.FilePath,
		OTLPEndpoint: c.OTLPEndpoint,
		SampleRate:   c.SampleRate,
	}
}

func initLogging() (func(), error) {
	if os.Getenv("QUICKSCALE_DEBUG") == "" && !debugFlag {
		return func() {}, nil
	}
	logPath := os.Getenv("QUICKSCALE_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.InitWithTeaLog(logPath, "quickscale")
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log.Info(log.CatConfig, "quickscale starting", "version", version, "logPath", logPath)
	return cleanup, nil
}

func runApp(_ *cobra.Command, _ []string) error {
	cleanupLog, err := initLogging()
	if err != nil {
		return err
	}
	defer cleanupLog()
	debug := os.Getenv("QUICKSCALE_DEBUG") != "" || debugFlag

	configPath := resolveConfigPath(cfgFile)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if tagFlag != "" {
		cfg.Tag = tagFlag
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	provider, err := tracing.NewProvider(tracingConfig(cfg.Tracing))
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatTrace, "shutting down tracing", err)
		}
	}()

	zone.NewGlobal()
	model := app.New(app.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Debug:      debug,
		Tracer:     provider.Tracer(),
		Load: func() (config.Config, error) {
			c, err := loadConfig(configPath)
			if err == nil && tagFlag != "" {
				c.Tag = tagFlag
			}
			return c, err
		},
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	final, err := p.Run()

	// The final model owns the current stage after any reload.
	closer := &model
	if fm, ok := final.(app.Model); ok {
		closer = &fm
	}
	if closeErr := closer.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}

	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
