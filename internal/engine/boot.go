package engine

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/plate/engine/internal/core/event"
	"github.com/plate/engine/internal/level"
	"github.com/plate/engine/internal/sandbox"
)

// Boot loads controller types and bindings, runs the main script, hands
// script sections to their handlers and activates the startup level.
// Missing optional files are skipped.
func (e *Engine) Boot(ctx context.Context) error {
	root := sandbox.DirContext{}
	ec := e.cfg.Engine

	if ec.Controllers != "" && e.assets.Exists(root, ec.Controllers) {
		data, _, err := e.assets.ReadFile(root, ec.Controllers)
		if err != nil {
			return err
		}
		if err := e.inputs.LoadTypes(data); err != nil {
			return fmt.Errorf("controller types %s: %w", ec.Controllers, err)
		}
	}
	e.applyInputs()

	if ec.MainScript != "" {
		if err := e.scripts.Load(root, ec.MainScript); err != nil {
			return fmt.Errorf("main script: %w", err)
		}
		dir, err := root.Append(ec.MainScript)
		if err != nil {
			return err
		}
		e.scripts.SetMainDir(dir)
	}

	for _, name := range sortedNames(e.cfg.Scripts) {
		if !e.scripts.HandleConfig(name, e.cfg.Scripts[name]) {
			e.log.Warn("unrecognized config section", zap.String("section", "Script_"+name))
		}
	}
	for _, key := range e.cfg.Unknown {
		e.log.Warn("unrecognized config key", zap.String("key", key))
	}

	if ec.StartupLevel != "" {
		return e.LoadLevel(ctx, ec.StartupLevel)
	}
	return nil
}

// applyInputs binds the [Input_<controller>] sections. A controller that
// does not exist yet is created from the section's "type" entry, or from
// the only controller type when there is just one.
func (e *Engine) applyInputs() {
	for _, name := range sortedNames(e.cfg.Inputs) {
		entries := make(map[string]string, len(e.cfg.Inputs[name]))
		typeName := ""
		for k, v := range e.cfg.Inputs[name] {
			if k == "type" {
				typeName = v
				continue
			}
			entries[k] = v
		}

		c := e.inputs.Controller(name)
		if c == nil {
			if typeName == "" && len(e.inputs.Types()) == 1 {
				typeName = e.inputs.Types()[0].Name
			}
			var err error
			if c, err = e.inputs.Create(typeName, name); err != nil {
				e.log.Warn("controller not created", zap.String("controller", name), zap.Error(err))
				continue
			}
		}
		if err := e.inputs.ApplyBindings(c, entries); err != nil {
			e.log.Warn("bad controller binding", zap.String("controller", name), zap.Error(err))
		}
	}
}

// LoadLevel loads the level at path and activates it.
func (e *Engine) LoadLevel(ctx context.Context, path string) error {
	lvl, err := e.levels.Load(ctx, sandbox.DirContext{}, path)
	if err != nil {
		return err
	}
	e.Activate(lvl)
	return nil
}

// Activate replaces the running level. Every entity is destroyed and the
// level's spawn points are spawned; a spawn that fails is logged and
// skipped.
func (e *Engine) Activate(lvl *level.Level) {
	e.entities.Clear()
	in := level.NewInstance(lvl)
	e.active = in
	e.entities.SetLevel(in)

	ev := event.LevelActivated{Name: lvl.Name}
	for _, sp := range lvl.Spawns {
		if _, err := e.entities.Spawn(sp.Class, sp.Position, sp.Sprite, sp.Animation); err != nil {
			ev.Failures++
			e.log.Warn("spawn point failed",
				zap.String("level", lvl.Name),
				zap.String("class", sp.Class),
				zap.Error(err))
			continue
		}
		ev.Spawned++
	}
	event.Emit(e.bus, ev)
	e.log.Info("level activated",
		zap.String("level", lvl.Name),
		zap.Int("spawned", ev.Spawned),
		zap.Int("failures", ev.Failures))
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
