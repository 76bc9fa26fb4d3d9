package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/injector"
	"github.com/plate/engine/internal/render/term"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine in the terminal",
	Long: `Boot the engine and run the frame loop until Escape, Ctrl-C or a
quit request from the game.

The terminal belongs to the game while it runs, so logs go to the file
named by [Logging] file, or plate.log.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logCfg := cfg.Logging
	if logCfg.File == "" {
		logCfg.File = "plate.log"
	}
	log, err := newLogger(logCfg)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With(zap.String("instance", uuid.NewString()))

	surface, err := term.Open(log.Named("term"), term.Options{
		CellWidth:  cfg.Video.CellWidth,
		CellHeight: cfg.Video.CellHeight,
	})
	if err != nil {
		return err
	}
	defer surface.Close()

	eng, cleanup, err := injector.Build(cfg, log, surface, surface)
	if err != nil {
		return err
	}
	defer cleanup()
	defer eng.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Boot(ctx); err != nil {
		log.Error("boot failed", zap.Error(err))
		return err
	}
	return eng.Run(ctx)
}
