package level

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/sandbox"
	"github.com/plate/engine/internal/sprite"
)

const (
	LevelMagic   = "PlatElevel"
	LevelMaxSize = 16 * 1024 * 1024
)

var (
	InvalidLevelHeader      = errs.New(601, "Level description is missing its header")
	InvalidLevelHeaderSizes = errs.New(602, "Level header sizes are not consistent")
	LevelDataTooLarge       = errs.New(603, "Levels are limited to be 16 MB")
	UnsupportedLevelFormat  = errs.New(604, "Binary levels are not supported")
	UnknownSceneAnimation   = errs.New(605, "Scene object refers to an animation its sprite does not have")
)

type vec struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

func (v *vec) or(def geom.Vector2) geom.Vector2 {
	if v == nil {
		return def
	}
	return geom.Vec(v.X, v.Y)
}

type box struct {
	Left   float32 `yaml:"left"`
	Right  float32 `yaml:"right"`
	Top    float32 `yaml:"top"`
	Bottom float32 `yaml:"bottom"`
}

func (b box) geom() geom.AABB {
	return geom.BoxFromPoints(geom.Vec(b.Left, b.Top), geom.Vec(b.Right, b.Bottom))
}

type levelFile struct {
	Name     string `yaml:"name"`
	Boundary box    `yaml:"boundary"`
	Layers   []struct {
		Tileset  string     `yaml:"tileset"`
		Z        int        `yaml:"z"`
		Offset   *vec       `yaml:"offset"`
		Scale    *vec       `yaml:"scale"`
		Parallax *vec       `yaml:"parallax"`
		Solid    bool       `yaml:"solid"`
		Rows     [][]uint16 `yaml:"rows"`
	} `yaml:"layers"`
	Objects []struct {
		Sprite    string  `yaml:"sprite"`
		Animation string  `yaml:"animation"`
		Position  vec     `yaml:"position"`
		Z         int     `yaml:"z"`
		Rotation  float32 `yaml:"rotation"`
		Scale     *vec    `yaml:"scale"`
	} `yaml:"objects"`
	Spawns []struct {
		Class     string `yaml:"class"`
		Sprite    string `yaml:"sprite"`
		Animation string `yaml:"animation"`
		Position  vec    `yaml:"position"`
	} `yaml:"spawns"`
	Areas []struct {
		Name     string `yaml:"name"`
		Box      box    `yaml:"box"`
		Priority int    `yaml:"priority"`
		Color    string `yaml:"color"`
	} `yaml:"areas"`
	EdgeTriggers []struct {
		Name       string  `yaml:"name"`
		Side       string  `yaml:"side"`
		Position   float32 `yaml:"position"`
		Size       float32 `yaml:"size"`
		Strictness float32 `yaml:"strictness"`
	} `yaml:"edge_triggers"`
}

var sides = map[string]Side{"top": SideTop, "bottom": SideBottom, "left": SideLeft, "right": SideRight}

// Loader reads tilesets and levels through the asset registry.
type Loader struct {
	log     *zap.Logger
	assets  *asset.Registry
	sprites *sprite.Loader
}

func NewLoader(log *zap.Logger, assets *asset.Registry, sprites *sprite.Loader) *Loader {
	return &Loader{log: log, assets: assets, sprites: sprites}
}

// LoadTileset returns the tileset at path, reading it on first use. The
// texture name is resolved against the tileset's directory.
func (l *Loader) LoadTileset(ctx sandbox.DirContext, path string) (*Tileset, error) {
	key, err := l.assets.Root().Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if ts, ok := asset.Retrieve[*Tileset](l.assets, key); ok {
		return ts, nil
	}
	data, key, err := l.assets.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	ts, err := DecodeTileset(data)
	if err != nil {
		return nil, fmt.Errorf("tileset %s: %w", key, err)
	}
	if ts.Texture != "" {
		dir, err := ctx.Append(path)
		if err != nil {
			return nil, err
		}
		if ts.Texture, err = l.assets.Root().Resolve(dir, ts.Texture); err != nil {
			return nil, err
		}
	}
	l.assets.Store(key, ts, 0)
	l.log.Debug("tileset loaded", zap.String("path", key), zap.Int("tiles", len(ts.Tiles)))
	return ts, nil
}

// Load reads a level and everything it references. Sprites are loaded
// concurrently.
func (l *Loader) Load(ctx context.Context, dir sandbox.DirContext, path string) (*Level, error) {
	data, key, err := l.assets.ReadFile(dir, path)
	if err != nil {
		return nil, err
	}
	if len(data) > LevelMaxSize {
		return nil, errs.Detailed(LevelDataTooLarge, "%s is %d bytes", key, len(data))
	}
	if bytes.HasPrefix(data, []byte(LevelMagic)) {
		return nil, errs.Detailed(UnsupportedLevelFormat, "%s", key)
	}
	here, err := dir.Append(path)
	if err != nil {
		return nil, err
	}
	lvl, err := l.parse(ctx, data, here)
	if err != nil {
		return nil, fmt.Errorf("level %s: %w", key, err)
	}
	l.log.Info("level loaded",
		zap.String("path", key),
		zap.String("name", lvl.Name),
		zap.Int("layers", len(lvl.Layers)),
		zap.Int("objects", len(lvl.Objects)),
		zap.Int("spawns", len(lvl.Spawns)))
	return lvl, nil
}

func (l *Loader) parse(ctx context.Context, data []byte, dir sandbox.DirContext) (*Level, error) {
	var f levelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Detailed(errs.InvalidJson, "%v", err)
	}
	if f.Name == "" {
		return nil, errs.Detailed(InvalidLevelHeader, "missing name")
	}

	var paths []string
	for _, o := range f.Objects {
		paths = append(paths, o.Sprite)
	}
	for _, s := range f.Spawns {
		if s.Sprite != "" {
			paths = append(paths, s.Sprite)
		}
	}
	sprites, err := l.sprites.Preload(ctx, dir, dedupe(paths))
	if err != nil {
		return nil, err
	}

	lvl := &Level{Name: f.Name, Boundary: f.Boundary.geom()}
	one := geom.Vec(1, 1)
	for i, fl := range f.Layers {
		ts, err := l.LoadTileset(dir, fl.Tileset)
		if err != nil {
			return nil, err
		}
		m := Tilemap{
			Tileset:  ts,
			Height:   len(fl.Rows),
			Z:        fl.Z,
			Offset:   fl.Offset.or(geom.Vector2{}),
			Scale:    fl.Scale.or(one),
			Parallax: fl.Parallax.or(one),
			Solid:    fl.Solid,
		}
		if m.Height > 0 {
			m.Width = len(fl.Rows[0])
		}
		m.Tiles = make([]uint16, 0, m.Width*m.Height)
		for y, row := range fl.Rows {
			if len(row) != m.Width {
				return nil, errs.Detailed(InvalidLevelHeaderSizes, "layer %d row %d has %d tiles, want %d", i, y, len(row), m.Width)
			}
			for x, id := range row {
				if id != Blank && ts.Tile(id) == nil {
					return nil, errs.Detailed(InvalidLevelHeaderSizes, "layer %d tile (%d,%d) id %d exceeds tileset of %d", i, x, y, id, len(ts.Tiles))
				}
			}
			m.Tiles = append(m.Tiles, row...)
		}
		lvl.Layers = append(lvl.Layers, m)
	}

	for _, fo := range f.Objects {
		spr := sprites[fo.Sprite]
		o := SceneObject{
			Sprite:   spr,
			Position: fo.Position.or(geom.Vector2{}),
			Z:        fo.Z,
			Rotation: fo.Rotation,
			Scale:    fo.Scale.or(one),
		}
		if fo.Animation != "" {
			o.Animation = spr.Animation(fo.Animation)
			if o.Animation == nil {
				return nil, errs.Detailed(UnknownSceneAnimation, "%s in %s", fo.Animation, fo.Sprite)
			}
		} else {
			o.Animation = spr.DefaultAnimation()
		}
		o.updateBounds()
		lvl.Objects = append(lvl.Objects, o)
	}
	lvl.index = NewRTree(lvl.Objects)

	for _, fs := range f.Spawns {
		lvl.Spawns = append(lvl.Spawns, SpawnPoint{
			Class:     fs.Class,
			Sprite:    sprites[fs.Sprite],
			Animation: fs.Animation,
			Position:  fs.Position.or(geom.Vector2{}),
		})
	}
	for _, fa := range f.Areas {
		lvl.Areas = append(lvl.Areas, Area{Name: fa.Name, Box: fa.Box.geom(), Priority: fa.Priority, Color: fa.Color})
	}
	for _, fe := range f.EdgeTriggers {
		side, ok := sides[fe.Side]
		if !ok {
			return nil, errs.Detailed(InvalidLevelHeader, "edge trigger %q has side %q", fe.Name, fe.Side)
		}
		lvl.EdgeTriggers = append(lvl.EdgeTriggers, EdgeTrigger{
			Name:       fe.Name,
			Side:       side,
			Position:   fe.Position,
			Size:       fe.Size,
			Strictness: geom.Clamp(fe.Strictness, 0, 1),
		})
	}
	return lvl, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
