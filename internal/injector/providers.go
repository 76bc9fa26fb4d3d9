package injector

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/config"
	"github.com/plate/engine/internal/core/event"
	"github.com/plate/engine/internal/core/executor"
	"github.com/plate/engine/internal/entity"
	"github.com/plate/engine/internal/hitbox"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/level"
	"github.com/plate/engine/internal/sandbox"
	"github.com/plate/engine/internal/scripting"
	"github.com/plate/engine/internal/sprite"
)

var ProviderSet = wire.NewSet(
	ProvideAssets,
	ProvideExecutor,
	event.NewBus,
	ProvideColliders,
	ProvideSprites,
	ProvideLevels,
	ProvideInputs,
	ProvideScripts,
	ProvideEntities,
)

// ProvideAssets reads from the working directory; asset_root names the
// asset directory inside it.
func ProvideAssets(log *zap.Logger, cfg *config.Config) *asset.Registry {
	root := strings.Trim(path.Clean("/"+cfg.Engine.AssetRoot), "/")
	return asset.NewRegistry(log.Named("asset"), os.DirFS("."), root)
}

func ProvideExecutor(log *zap.Logger, cfg *config.Config) (*executor.Executor, func()) {
	exec := executor.New(log.Named("executor"), cfg.Engine.Workers)
	return exec, func() { _ = exec.Close() }
}

// ProvideColliders loads the collider type table. Without one, colliders
// have no type and act on nothing.
func ProvideColliders(log *zap.Logger, cfg *config.Config, assets *asset.Registry) (*hitbox.ColliderTable, error) {
	file := cfg.Engine.ColliderTypes
	if file == "" || !assets.Exists(sandbox.DirContext{}, file) {
		log.Debug("no collider types", zap.String("file", file))
		return nil, nil
	}
	data, _, err := assets.ReadFile(sandbox.DirContext{}, file)
	if err != nil {
		return nil, err
	}
	return hitbox.ParseColliderTypes(data)
}

func ProvideSprites(log *zap.Logger, assets *asset.Registry, colliders *hitbox.ColliderTable) *sprite.Loader {
	return sprite.NewLoader(log.Named("sprite"), assets, colliders)
}

func ProvideLevels(log *zap.Logger, assets *asset.Registry, sprites *sprite.Loader) *level.Loader {
	return level.NewLoader(log.Named("level"), assets, sprites)
}

func ProvideInputs(log *zap.Logger, source input.Source) *input.System {
	return input.NewSystem(log.Named("input"), source)
}

// ProvideScripts seeds Random from the settings, or from the clock when the
// seed is 0.
func ProvideScripts(log *zap.Logger, cfg *config.Config, assets *asset.Registry, sprites *sprite.Loader, inputs *input.System) *scripting.Engine {
	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return scripting.NewEngine(log.Named("script"), assets, sprites, inputs, seed)
}

func ProvideEntities(log *zap.Logger, cfg *config.Config, exec *executor.Executor, scripts *scripting.Engine, bus *event.Bus) *entity.System {
	return entity.NewSystem(log.Named("entity"), exec, scripts, bus, cfg.Engine.EntityCapacity)
}
