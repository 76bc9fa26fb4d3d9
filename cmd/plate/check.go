package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plate/engine/internal/injector"
	"github.com/plate/engine/internal/render"
)

var checkCmd = &cobra.Command{
	Use:   "check [level]",
	Short: "Validate settings, scripts and a level",
	Long: `Boot the engine against an off-screen surface, run one frame and
report what was loaded. The level argument overrides startup_level.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.Engine.StartupLevel = args[0]
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	rec := render.NewRecorder(cfg.Video.Width, cfg.Video.Height)
	eng, cleanup, err := injector.Build(cfg, log, rec, nil)
	if err != nil {
		return err
	}
	defer cleanup()
	defer eng.Close()

	if err := eng.Boot(cmd.Context()); err != nil {
		return err
	}
	eng.Frame(0)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "controllers  %d\n", len(eng.Inputs().Controllers()))
	if in := eng.Level(); in != nil {
		lvl := in.Level
		fmt.Fprintf(out, "level        %s\n", lvl.Name)
		fmt.Fprintf(out, "layers       %d\n", len(lvl.Layers))
		fmt.Fprintf(out, "objects      %d\n", len(lvl.Objects))
		fmt.Fprintf(out, "spawns       %d\n", len(lvl.Spawns))
	} else {
		fmt.Fprintln(out, "level        none")
	}
	fmt.Fprintf(out, "entities     %d\n", eng.Entities().Len())
	fmt.Fprintf(out, "draw ops     %d\n", len(rec.Ops()))
	return nil
}
