package level

import (
	"bytes"
	"context"
	"math"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plate/engine/internal/asset"
	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/geom"
	"github.com/plate/engine/internal/hitbox"
	"github.com/plate/engine/internal/sandbox"
	"github.com/plate/engine/internal/sprite"
)

const (
	tileFull uint16 = iota + 1
	tileSlope
	tilePartial
	tileComplex
	tileWater
)

func groundTileset() *Tileset {
	return &Tileset{
		Name:    "ground",
		Texture: "ground.png",
		TileW:   16,
		TileH:   16,
		Tiles: []Tile{
			{Frames: []TileFrame{{X: 0, Y: 0}}, Solidity: TileSolidity{Kind: SolidFull}, Properties: []string{"grass"}},
			{Frames: []TileFrame{{X: 1, Y: 0}}, Solidity: TileSolidity{Kind: SolidSlope, Position: 16, Slope: -1}},
			{Frames: []TileFrame{{X: 2, Y: 0, Flip: 1}}, Solidity: TileSolidity{Kind: SolidPartial, Position: 8}},
			{Frames: []TileFrame{{X: 3, Y: 0}}, Solidity: TileSolidity{Kind: SolidComplex, Hitbox: hitbox.NewCircle(geom.Vec(8, 8), 4)}},
			{Frames: []TileFrame{
				{X: 0, Y: 1, Duration: 0.5},
				{X: 1, Y: 1, Duration: 0.25},
				{X: 2, Y: 1, Duration: 0, Flip: 3},
			}},
		},
	}
}

func encoded(t *testing.T, ts *Tileset) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeTileset(&buf, ts))
	return buf.Bytes()
}

func TestDecodeTileset(t *testing.T) {
	want := groundTileset()
	got, err := DecodeTileset(encoded(t, want))
	require.NoError(t, err)

	require.Equal(t, "ground", got.Name)
	require.Equal(t, uint16(16), got.TileH)
	require.Len(t, got.Tiles, 5)
	require.Nil(t, got.Tile(Blank))
	require.Nil(t, got.Tile(6))
	require.Equal(t, []string{"grass"}, got.Tile(tileFull).Properties)

	slope := got.Tile(tileSlope).Solidity
	require.Equal(t, SolidSlope, slope.Kind)
	require.Equal(t, float32(-1), slope.Slope)
	require.False(t, slope.Above)

	require.Equal(t, hitbox.Circle, got.Tile(tileComplex).Solidity.Hitbox.Kind)
	require.Equal(t, float32(4), got.Tile(tileComplex).Solidity.Hitbox.Circle.Radius)
	require.Equal(t, want.Tiles[4].Frames, got.Tile(tileWater).Frames)
}

func TestDecodeTilesetErrors(t *testing.T) {
	good := encoded(t, groundTileset())

	_, err := DecodeTileset([]byte("PlatElevel...."))
	require.ErrorIs(t, err, InvalidTilesetHeader)

	_, err = DecodeTileset(good[:len(good)-3])
	require.ErrorIs(t, err, errs.IncompleteFileRead)

	_, err = DecodeTileset(make([]byte, TilesetMaxSize+1))
	require.ErrorIs(t, err, TilesetDataTooLarge)

	bad := groundTileset()
	bad.Tiles[0].Solidity.Kind = 'X'
	_, err = DecodeTileset(encoded(t, bad))
	require.ErrorIs(t, err, InvalidTileSolidity)

	for _, d := range []float32{1e-10, float32(math.NaN()), float32(math.Inf(1))} {
		bad := groundTileset()
		bad.Tiles[4].Frames[1].Duration = d
		_, err = DecodeTileset(encoded(t, bad))
		require.ErrorIs(t, err, InvalidTileDuration, "%v", d)
	}
}

const treeJSON = `{
  "name": "tree",
  "clips": [{"x": 0, "y": 0, "w": 16, "h": 32}],
  "frames": [{"clip": 0, "display": {"x": -8, "y": -32}}],
  "animations": [{"name": "idle", "frames": [{"duration": 0, "frame": 0}]}]
}`

const levelYAML = `
name: meadow
boundary: {left: 0, right: 320, top: 0, bottom: 240}
layers:
  - tileset: ../tiles/ground.tileset
    z: 1
    solid: true
    rows:
      - [0, 0, 0, 0]
      - [0, 5, 0, 0]
      - [1, 1, 2, 3]
  - tileset: /tiles/ground.tileset
    z: -1
    parallax: {x: 0.5, y: 1}
    rows:
      - [5, 5]
objects:
  - sprite: ../sprites/tree.json
    position: {x: 100, y: 200}
  - sprite: ../sprites/tree.json
    animation: idle
    position: {x: 300, y: 200}
    scale: {x: 2, y: 2}
spawns:
  - class: Slime
    sprite: ../sprites/tree.json
    animation: idle
    position: {x: 40, y: 16}
areas:
  - {name: field, box: {left: 0, right: 320, top: 0, bottom: 240}, priority: 1}
  - {name: pond, box: {left: 50, right: 80, top: 0, bottom: 40}, priority: 5, color: "#0000ff"}
edge_triggers:
  - {name: west, side: left, position: 0, size: 100, strictness: 0.5}
`

func newLoader(t *testing.T, files fstest.MapFS) *Loader {
	t.Helper()
	reg := asset.NewRegistry(zap.NewNop(), files, "assets")
	return NewLoader(zap.NewNop(), reg, sprite.NewLoader(zap.NewNop(), reg, nil))
}

func loadMeadow(t *testing.T) *Level {
	t.Helper()
	l := newLoader(t, fstest.MapFS{
		"assets/tiles/ground.tileset": {Data: encoded(t, groundTileset())},
		"assets/sprites/tree.json":    {Data: []byte(treeJSON)},
		"assets/levels/meadow.yaml":   {Data: []byte(levelYAML)},
	})
	dir, err := sandbox.DirContext{}.Append("levels/")
	require.NoError(t, err)
	lvl, err := l.Load(context.Background(), dir, "meadow.yaml")
	require.NoError(t, err)
	return lvl
}

func TestLoadLevel(t *testing.T) {
	lvl := loadMeadow(t)

	require.Equal(t, "meadow", lvl.Name)
	require.Equal(t, float32(320), lvl.Boundary.Right)
	require.Len(t, lvl.Layers, 2)
	require.Same(t, lvl.Layers[0].Tileset, lvl.Layers[1].Tileset, "tileset is cached")
	require.Equal(t, "assets/tiles/ground.png", lvl.Layers[0].Tileset.Texture)

	m := &lvl.Layers[0]
	require.Equal(t, 4, m.Width)
	require.Equal(t, 3, m.Height)
	require.Equal(t, tileWater, m.At(1, 1))
	require.Equal(t, Blank, m.At(9, 9))
	require.Equal(t, geom.Vec(1, 1), m.Scale)
	require.Equal(t, []int{0}, lvl.SolidLayers())

	require.Len(t, lvl.Objects, 2)
	require.Equal(t, geom.AABB{Left: 92, Right: 108, Top: 168, Bottom: 200}, lvl.Objects[0].Bounds)
	require.Equal(t, geom.AABB{Left: 284, Right: 316, Top: 136, Bottom: 200}, lvl.Objects[1].Bounds)
	require.Equal(t, "idle", lvl.Objects[0].Animation.Name)

	require.Len(t, lvl.Spawns, 1)
	require.Equal(t, "Slime", lvl.Spawns[0].Class)
	require.Equal(t, "tree", lvl.Spawns[0].Sprite.Name)

	got := lvl.Query(geom.AABB{Left: 0, Right: 120, Top: 0, Bottom: 240})
	require.Len(t, got, 1)
	require.Same(t, &lvl.Objects[0], got[0])
}

func TestLoadLevelErrors(t *testing.T) {
	tiles := encoded(t, groundTileset())
	l := newLoader(t, fstest.MapFS{
		"assets/t.tileset":   {Data: tiles},
		"assets/binary.lvl":  {Data: []byte("PlatElevel\x00\x00")},
		"assets/noname.yaml": {Data: []byte("layers: []")},
		"assets/ragged.yaml": {Data: []byte("name: r\nlayers:\n  - tileset: t.tileset\n    rows: [[1, 1], [1]]")},
		"assets/range.yaml":  {Data: []byte("name: r\nlayers:\n  - tileset: t.tileset\n    rows: [[9]]")},
		"assets/side.yaml":   {Data: []byte("name: r\nedge_triggers: [{side: up}]")},
		"assets/tiles.yaml":  {Data: []byte("name: r\nlayers:\n  - tileset: missing.tileset")},
	})
	cases := map[string]error{
		"binary.lvl":  UnsupportedLevelFormat,
		"noname.yaml": InvalidLevelHeader,
		"ragged.yaml": InvalidLevelHeaderSizes,
		"range.yaml":  InvalidLevelHeaderSizes,
		"side.yaml":   InvalidLevelHeader,
		"tiles.yaml":  errs.CannotOpenFile,
		"none.yaml":   errs.CannotOpenFile,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := l.Load(context.Background(), sandbox.DirContext{}, name)
			require.ErrorIs(t, err, want)
		})
	}
}

func TestAreasAndEdgeTriggers(t *testing.T) {
	lvl := loadMeadow(t)

	areas := lvl.AreasAt(geom.Vec(60, 20))
	require.Len(t, areas, 2)
	assert.Equal(t, "pond", areas[0].Name)
	assert.Equal(t, "field", areas[1].Name)
	require.Len(t, lvl.AreasAt(geom.Vec(200, 200)), 1)
	require.Empty(t, lvl.AreasAt(geom.Vec(-1, 0)))

	hit := lvl.EdgeTriggersHit(geom.AABB{Left: -6, Right: 4, Top: 10, Bottom: 20})
	require.Len(t, hit, 1)
	assert.Equal(t, SideLeft, hit[0].Side)

	assert.Empty(t, lvl.EdgeTriggersHit(geom.AABB{Left: -4, Right: 6, Top: 10, Bottom: 20}), "less than half outside")
	assert.Empty(t, lvl.EdgeTriggersHit(geom.AABB{Left: -10, Right: 0, Top: 150, Bottom: 160}), "outside the trigger span")
	assert.Empty(t, lvl.EdgeTriggersHit(geom.AABB{Left: 300, Right: 330, Top: 10, Bottom: 20}), "wrong side")
}

func TestRTreeMatchesLinearScan(t *testing.T) {
	var objs []SceneObject
	for i := 0; i < 37; i++ {
		x, y := float32(i%7)*20, float32(i/7)*20
		objs = append(objs, SceneObject{Bounds: geom.BoxFromSize(geom.Vec(x, y), 10, 10)})
	}
	tree := NewRTree(objs)
	require.Equal(t, 37, tree.Len())

	queries := []geom.AABB{
		{Left: 0, Right: 5, Top: 0, Bottom: 5},
		{Left: 15, Right: 65, Top: 15, Bottom: 45},
		{Left: -100, Right: 500, Top: -100, Bottom: 500},
		{Left: 11, Right: 19, Top: 11, Bottom: 19},
	}
	for _, q := range queries {
		var want []*SceneObject
		for i := range objs {
			if touching(objs[i].Bounds, q) {
				want = append(want, &objs[i])
			}
		}
		require.ElementsMatch(t, want, tree.Query(q, nil), "%+v", q)
	}
	require.Empty(t, NewRTree(nil).Query(queries[2], nil))
}

func TestTilesIn(t *testing.T) {
	lvl := loadMeadow(t)
	m := &lvl.Layers[0]

	r := m.TilesIn(geom.AABB{Left: 3, Right: 13, Top: 10, Bottom: 20}, geom.Vector2{})
	require.Equal(t, TileRange{Left: 0, Right: 0, Top: 0, Bottom: 1}, r)

	r = m.TilesIn(geom.AABB{Left: -50, Right: 500, Top: -50, Bottom: 500}, geom.Vector2{})
	require.Equal(t, TileRange{Left: 0, Right: 3, Top: 0, Bottom: 2}, r)

	require.True(t, m.TilesIn(geom.AABB{Left: 100, Right: 120, Top: 0, Bottom: 10}, geom.Vector2{}).Empty())

	bg := &lvl.Layers[1]
	require.Equal(t, geom.Vec(50, 0), bg.Origin(geom.Vec(100, 0)))
	r = bg.TilesIn(geom.AABB{Left: 52, Right: 62, Top: 0, Bottom: 4}, geom.Vec(100, 0))
	require.Equal(t, TileRange{Left: 0, Right: 0, Top: 0, Bottom: 0}, r)
}

func TestTileAnimation(t *testing.T) {
	in := NewInstance(loadMeadow(t))

	in.Advance(0.6)
	require.Equal(t, TileAnimState{Frame: 1, Time: 0.1}, roundState(in.AnimState(0, tileWater)))
	in.Advance(0.2)
	f, ok := in.TileFrame(0, tileWater)
	require.True(t, ok)
	require.Equal(t, uint16(2), f.X)
	require.Equal(t, uint8(3), f.Flip)

	in.Advance(10)
	require.Equal(t, 2, in.AnimState(0, tileWater).Frame, "zero duration holds")
	require.Equal(t, 2, in.AnimState(1, tileWater).Frame, "layers animate independently but equally")

	_, ok = in.TileFrame(0, Blank)
	require.False(t, ok)
}

func TestTileAnimationWithTinyDurationsTerminates(t *testing.T) {
	ts := &Tileset{Name: "flicker", TileW: 8, TileH: 8, Tiles: []Tile{
		{Frames: []TileFrame{{X: 0, Duration: 1e-10}, {X: 1, Duration: 1e-10}}},
		{Frames: []TileFrame{{X: 0, Duration: 0.1}, {X: 1, Duration: float32(math.NaN())}}},
		{Frames: []TileFrame{{X: 0, Duration: 0.1}, {X: 1, Duration: 0.2}, {X: 2, Duration: 0.3}}},
	}}
	in := NewInstance(&Level{Name: "flicker", Layers: []Tilemap{{Tileset: ts, Width: 3, Height: 1, Tiles: []uint16{1, 2, 3}}}})

	done := make(chan struct{})
	go func() {
		defer close(done)
		in.Advance(0.016)
		in.Advance(0.5)
		in.Advance(0.5)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("tile animation did not settle")
	}
	assert.Less(t, in.AnimState(0, 1).Frame, 2)
	assert.Equal(t, 1, in.AnimState(0, 2).Frame, "NaN duration holds")

	// 1.016s is one full 0.6s loop plus 0.416s, which lands in the third frame.
	assert.Equal(t, 2, in.AnimState(0, 3).Frame)
	assert.InDelta(t, 0.116, in.AnimState(0, 3).Time, 0.01)
}

func roundState(s TileAnimState) TileAnimState {
	s.Time = float32(int(s.Time*1000+0.5)) / 1000
	return s
}

func body(box geom.AABB, pos geom.Vector2) Body {
	return Body{
		Hitbox:    hitbox.NewBox(box),
		Transform: geom.Translation(pos),
		LastPos:   pos,
		Foot:      pos.Add(geom.Vec(0, box.Bottom)),
		Head:      pos.Add(geom.Vec(0, box.Top)),
	}
}

func TestCollide(t *testing.T) {
	in := NewInstance(loadMeadow(t))
	feet := geom.AABB{Left: -5, Right: 5, Top: -10, Bottom: 0}

	t.Run("full tile pushes up", func(t *testing.T) {
		b := body(feet, geom.Vec(8, 36))
		require.True(t, in.Collide(b).ApproxEqual(geom.Vec(0, -4)))
	})
	t.Run("resting contact", func(t *testing.T) {
		b := body(feet, geom.Vec(8, 32))
		require.True(t, in.Collide(b).IsZero())
	})
	t.Run("partial tile uses its solid half", func(t *testing.T) {
		b := body(feet, geom.Vec(56, 40))
		require.True(t, in.Collide(b).IsZero(), "standing on the divider")
		b = body(feet, geom.Vec(56, 46))
		require.True(t, in.Collide(b).ApproxEqual(geom.Vec(0, -6)))
	})
	t.Run("slope pushes the foot perpendicular", func(t *testing.T) {
		b := body(geom.AABB{Left: -2, Right: 2, Top: -4, Bottom: 0}, geom.Vec(40, 44))
		push := in.Collide(b)
		require.True(t, push.ApproxEqual(geom.Vec(-2, -2)), "%v", push)
	})
	t.Run("none hitbox", func(t *testing.T) {
		b := body(feet, geom.Vec(8, 36))
		b.Hitbox = hitbox.Hitbox{}
		require.True(t, in.Collide(b).IsZero())
	})
	t.Run("outside the map", func(t *testing.T) {
		b := body(feet, geom.Vec(-100, -100))
		require.True(t, in.Collide(b).IsZero())
	})
}
