//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/config"
	"github.com/plate/engine/internal/engine"
	"github.com/plate/engine/internal/input"
	"github.com/plate/engine/internal/render"
)

// Build assembles an engine drawing to surface and reading physical inputs
// from source. source may be nil.
func Build(cfg *config.Config, log *zap.Logger, surface render.Surface, source input.Source) (*engine.Engine, func(), error) {
	wire.Build(ProviderSet, engine.New)
	return nil, nil, nil
}
