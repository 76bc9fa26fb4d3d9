package sprite

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/hitbox"
	"github.com/plate/engine/internal/sandbox"
)

const heroJSON = `{
  "name": "hero",
  "spritesheet": "../textures/hero.png",
  "clips": [
    {"x": 0, "y": 0, "w": 16, "h": 32},
    {"x": 16, "y": 0, "w": 16, "h": 32}
  ],
  "frames": [
    {"clip": 0, "display": {"x": -8, "y": -32}, "foot": {"x": 0, "y": 0},
     "collision": [{"type": "hurtbox", "solid": false, "ccd": false,
                    "hitbox": {"type": "box", "left": -6, "right": 6, "top": -30, "bottom": 0}}]},
    {"clip": 1, "display": {"x": -8, "y": -32}, "foot": {"x": 0, "y": 0}}
  ],
  "animations": [
    {"name": "idle", "solidity": {"fixed": true, "hitbox": {"type": "box", "left": -6, "right": 6, "top": -30, "bottom": 0}},
     "frames": [{"duration": 0.1, "frame": 0}, {"duration": 0.1, "frame": 1}]},
    {"name": "dead", "frames": [{"duration": 0, "frame": 1}]}
  ]
}`

const colliderYAML = `
types:
  - name: hurtbox
  - name: damage
    acts_on: [hurtbox]
`

func newLoader(t *testing.T, files fstest.MapFS) (*Loader, *asset.Registry) {
	t.Helper()
	colliders, err := hitbox.ParseColliderTypes([]byte(colliderYAML))
	require.NoError(t, err)
	reg := asset.NewRegistry(zap.NewNop(), files, "assets")
	return NewLoader(zap.NewNop(), reg, colliders), reg
}

func TestLoadSprite(t *testing.T) {
	l, reg := newLoader(t, fstest.MapFS{
		"assets/sprites/hero.json": {Data: []byte(heroJSON)},
	})

	s, err := l.Load(sandbox.DirContext{}, "sprites/hero.json")
	require.NoError(t, err)
	require.Equal(t, "hero", s.Name)
	require.Equal(t, "assets/textures/hero.png", s.Texture)
	require.Len(t, s.Clips, 2)
	require.Equal(t, float32(32), s.Clips[1].Right)

	idle := s.Animation("idle")
	require.NotNil(t, idle)
	require.Same(t, &s.Frames[1], idle.Frames[1].Frame)
	require.True(t, idle.Solidity.Fixed)
	require.Equal(t, hitbox.Box, idle.Solidity.Hitbox.Kind)
	require.Equal(t, float32(-30), idle.Solidity.Head)
	require.Equal(t, float32(0), idle.Solidity.Foot)

	require.Len(t, s.Frames[0].Colliders, 1)
	require.Equal(t, "hurtbox", s.Frames[0].Colliders[0].Type.Name)

	dead := s.Animation("dead")
	require.Equal(t, hitbox.None, dead.Solidity.Hitbox.Kind)
	require.Equal(t, float32(0), dead.Frames[0].Delay)
	require.Same(t, idle, s.DefaultAnimation())
	require.Nil(t, s.Animation("run"))

	again, err := l.Load(sandbox.DirContext{}, "/sprites/hero.json")
	require.NoError(t, err)
	require.Same(t, s, again, "second load hits the registry")
	require.Equal(t, 1, reg.Len())
}

func TestLoadSpriteErrors(t *testing.T) {
	l, _ := newLoader(t, fstest.MapFS{
		"assets/bad.json":      {Data: []byte(`{"frames": [{"clip": 3}]}`)},
		"assets/broken.json":   {Data: []byte(`{"name": [`)},
		"assets/empty.json":    {Data: []byte(`{"animations": [{"name": "x", "frames": []}]}`)},
		"assets/unknown.json":  {Data: []byte(`{"clips": [{"w": 1, "h": 1}], "frames": [{"clip": 0, "collision": [{"type": "ghost"}]}]}`)},
		"assets/negative.json": {Data: []byte(`{"clips": [{"w": 1, "h": 1}], "frames": [{"clip": 0}], "animations": [{"name": "x", "frames": [{"duration": -1, "frame": 0}]}]}`)},
		"assets/tiny.json":     {Data: []byte(`{"clips": [{"w": 1, "h": 1}], "frames": [{"clip": 0}], "animations": [{"name": "x", "frames": [{"duration": 1e-10, "frame": 0}]}]}`)},
		"assets/nan.json":      {Data: []byte(`{"clips": [{"w": 1, "h": 1}], "frames": [{"clip": 0}], "animations": [{"name": "x", "frames": [{"duration": .nan, "frame": 0}]}]}`)},
		"assets/inf.json":      {Data: []byte(`{"clips": [{"w": 1, "h": 1}], "frames": [{"clip": 0}], "animations": [{"name": "x", "frames": [{"duration": .inf, "frame": 0}]}]}`)},
	})

	cases := map[string]error{
		"bad.json":      InvalidSpriteIndex,
		"broken.json":   errs.InvalidJson,
		"empty.json":    EmptyAnimation,
		"unknown.json":  hitbox.UnknownColliderType,
		"negative.json": NegativeDelay,
		"tiny.json":     InvalidDelay,
		"nan.json":      InvalidDelay,
		"inf.json":      InvalidDelay,
		"missing.json":  errs.CannotOpenFile,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Load(sandbox.DirContext{}, name)
			require.ErrorIs(t, err, want)
		})
	}
}

func TestPreload(t *testing.T) {
	l, reg := newLoader(t, fstest.MapFS{
		"assets/sprites/a.json": {Data: []byte(`{"name": "a"}`)},
		"assets/sprites/b.json": {Data: []byte(`{"name": "b"}`)},
		"assets/sprites/c.json": {Data: []byte(`{"name": "c"}`)},
	})
	dir, err := sandbox.DirContext{}.Append("sprites/")
	require.NoError(t, err)

	got, err := l.Preload(context.Background(), dir, []string{"a.json", "b.json", "c.json"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "b", got["b.json"].Name)
	require.Equal(t, 3, reg.Len())

	_, err = l.Preload(context.Background(), dir, []string{"a.json", "zzz.json"})
	require.ErrorIs(t, err, errs.CannotOpenFile)
}
