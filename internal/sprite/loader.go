package sprite

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/hitbox"
	"github.com/plate/engine/internal/sandbox"
)

var (
	InvalidSpriteIndex = errs.New(230, "Sprite refers to a clip or frame that does not exist")
	EmptyAnimation     = errs.New(231, "Animation has no frames")
	NegativeDelay      = errs.New(232, "Animation frame has a negative delay")
	InvalidDelay       = errs.New(233, "Animation frame delay must be 0 or a finite number of seconds no shorter than 0.0001")
)

type vec struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

func (v vec) geom() geom.Vector2 { return geom.Vec(v.X, v.Y) }

type spriteFile struct {
	Name        string `yaml:"name"`
	Spritesheet string `yaml:"spritesheet"`
	Clips       []struct {
		X float32 `yaml:"x"`
		Y float32 `yaml:"y"`
		W float32 `yaml:"w"`
		H float32 `yaml:"h"`
	} `yaml:"clips"`
	Frames []struct {
		Clip      int `yaml:"clip"`
		Display   vec `yaml:"display"`
		Foot      vec `yaml:"foot"`
		Collision []struct {
			Type   string        `yaml:"type"`
			Solid  bool          `yaml:"solid"`
			CCD    bool          `yaml:"ccd"`
			Hitbox hitbox.Hitbox `yaml:"hitbox"`
		} `yaml:"collision"`
	} `yaml:"frames"`
	Animations []struct {
		Name     string `yaml:"name"`
		Solidity struct {
			Fixed  bool          `yaml:"fixed"`
			Hitbox hitbox.Hitbox `yaml:"hitbox"`
		} `yaml:"solidity"`
		Frames []struct {
			Duration float32 `yaml:"duration"`
			Frame    int     `yaml:"frame"`
		} `yaml:"frames"`
	} `yaml:"animations"`
}

// Loader reads sprite files through the asset registry, which caches them.
type Loader struct {
	log       *zap.Logger
	assets    *asset.Registry
	colliders *hitbox.ColliderTable
}

func NewLoader(log *zap.Logger, assets *asset.Registry, colliders *hitbox.ColliderTable) *Loader {
	return &Loader{log: log, assets: assets, colliders: colliders}
}

// Load returns the sprite at path as seen from ctx, reading it on first use.
func (l *Loader) Load(ctx sandbox.DirContext, path string) (*Sprite, error) {
	key, err := l.assets.Root().Resolve(ctx, path)
	if err != nil {
		return nil, err
	}
	if s, ok := asset.Retrieve[*Sprite](l.assets, key); ok {
		return s, nil
	}

	data, key, err := l.assets.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	dir, err := ctx.Append(path)
	if err != nil {
		return nil, err
	}
	s, err := l.Parse(data, dir)
	if err != nil {
		return nil, fmt.Errorf("sprite %s: %w", key, err)
	}
	l.assets.Store(key, s, 0)
	l.log.Debug("sprite loaded",
		zap.String("path", key),
		zap.Int("frames", len(s.Frames)),
		zap.Int("animations", len(s.Animations)))
	return s, nil
}

// Parse decodes a sprite file. dir is the directory of the file, used to
// resolve the spritesheet path.
func (l *Loader) Parse(data []byte, dir sandbox.DirContext) (*Sprite, error) {
	var f spriteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Detailed(errs.InvalidJson, "%v", err)
	}

	s := &Sprite{Name: f.Name}
	if f.Spritesheet != "" {
		tex, err := l.assets.Root().Resolve(dir, f.Spritesheet)
		if err != nil {
			return nil, err
		}
		s.Texture = tex
	}

	s.Clips = make([]geom.AABB, len(f.Clips))
	for i, c := range f.Clips {
		s.Clips[i] = geom.BoxFromSize(geom.Vec(c.X, c.Y), c.W, c.H)
	}

	s.Frames = make([]Frame, len(f.Frames))
	for i, ff := range f.Frames {
		if ff.Clip < 0 || ff.Clip >= len(s.Clips) {
			return nil, errs.Detailed(InvalidSpriteIndex, "frame %d uses clip %d of %d", i, ff.Clip, len(s.Clips))
		}
		fr := Frame{Clip: s.Clips[ff.Clip], Display: ff.Display.geom(), Foot: ff.Foot.geom()}
		for _, c := range ff.Collision {
			ct := l.colliders.Lookup(c.Type)
			if ct == nil {
				return nil, errs.Detailed(hitbox.UnknownColliderType, "%q in frame %d", c.Type, i)
			}
			fr.Colliders = append(fr.Colliders, hitbox.Collider{Type: ct, Hitbox: c.Hitbox, Solid: c.Solid, CCD: c.CCD})
		}
		s.Frames[i] = fr
	}

	s.Animations = make([]Animation, len(f.Animations))
	for i, fa := range f.Animations {
		if len(fa.Frames) == 0 {
			return nil, errs.Detailed(EmptyAnimation, "%s", fa.Name)
		}
		a := Animation{Name: fa.Name, Frames: make([]FrameTiming, len(fa.Frames))}
		for j, ft := range fa.Frames {
			if ft.Frame < 0 || ft.Frame >= len(s.Frames) {
				return nil, errs.Detailed(InvalidSpriteIndex, "animation %s uses frame %d of %d", fa.Name, ft.Frame, len(s.Frames))
			}
			if ft.Duration < 0 {
				return nil, errs.Detailed(NegativeDelay, "animation %s frame %d", fa.Name, j)
			}
			if !validDelay(ft.Duration) {
				return nil, errs.Detailed(InvalidDelay, "animation %s frame %d: %v", fa.Name, j, ft.Duration)
			}
			a.Frames[j] = FrameTiming{Frame: &s.Frames[ft.Frame], Delay: ft.Duration}
		}
		a.Solidity = Solidity{Fixed: fa.Solidity.Fixed, Hitbox: fa.Solidity.Hitbox}
		a.Solidity.Head, a.Solidity.Foot = a.Solidity.Hitbox.HeadFoot()
		s.Animations[i] = a
	}
	s.index()
	return s, nil
}

// Preload loads every path concurrently and returns the sprites keyed by
// the given path. The first failure cancels the rest.
func (l *Loader) Preload(ctx context.Context, dir sandbox.DirContext, paths []string) (map[string]*Sprite, error) {
	var mu sync.Mutex
	out := make(map[string]*Sprite, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := l.Load(dir, p)
			if err != nil {
				return err
			}
			mu.Lock()
			out[p] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func validDelay(d float32) bool {
	if d == 0 {
		return true
	}
	return d >= MinDelay && !math.IsInf(float64(d), 0)
}
