// plate runs a 2D engine in the terminal.
//
// Usage:
//
//	plate run              - Boot the engine and run until Escape or Ctrl-C
//	plate check [level]    - Validate settings and assets without a terminal
//
// Global flags:
//
//	--root <dir>        - Asset root; defaults to the working directory
//	--config <path>     - Settings file (default: settings.toml)
//	--fps-min <rate>    - Lowest simulated frame rate
//	--fps-max <rate>    - Highest frame rate
//	--workers <n>       - Worker goroutines (0 = one per CPU)
//	--log-level <lvl>   - debug, info, warn or error
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/plate/engine/internal/config"
)

var (
	flagRoot     string
	flagConfig   string
	flagFPSMin   int
	flagFPSMax   int
	flagWorkers  int
	flagLogLevel string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "plate",
	Short: "Plate - a scripted 2D engine for the terminal",
	Long: `Plate loads a settings file, a main Lua script and a startup level,
then runs entity behavior, collision and rendering each frame.

Examples:
  plate run
  plate run --root ./demo --fps-max 30
  plate check levels/meadow.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "Asset root directory (default: working directory)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "settings.toml", "Path to the settings file")
	rootCmd.PersistentFlags().IntVar(&flagFPSMin, "fps-min", 0, "Lowest simulated frame rate")
	rootCmd.PersistentFlags().IntVar(&flagFPSMax, "fps-max", 0, "Highest frame rate")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "Worker goroutines (0 = one per CPU)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
}

// loadSettings moves into the asset root, reads the settings file when it
// exists and applies flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	if flagRoot != "" {
		if err := os.Chdir(flagRoot); err != nil {
			return nil, fmt.Errorf("asset root: %w", err)
		}
	}

	cfg, err := config.Load(flagConfig)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		if cfg, err = config.Parse(nil); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("fps-min") {
		cfg.Engine.FPSMin = flagFPSMin
	}
	if flags.Changed("fps-max") {
		cfg.Engine.FPSMax = flagFPSMax
	}
	if flags.Changed("workers") {
		cfg.Engine.Workers = flagWorkers
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return zapCfg.Build()
}
