package level

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/hitbox"
)

const (
	TilesetMagic   = "PlatEtileset"
	TilesetMaxSize = 1024 * 1024

	// Blank is the reserved empty tile id.
	Blank uint16 = 0

	tileFrameSize   = 16
	minTileDuration = 1e-4
)

var (
	InvalidTilesetHeader = errs.New(201, "Tileset does not begin with the string \""+TilesetMagic+"\"")
	TilesetDataTooLarge  = errs.New(202, "Tilesets are limited to be 1 MB (not including texture)")
	InvalidTileSolidity  = errs.New(203, "Unknown tile solidity type")
	InvalidTileDuration  = errs.New(204, "Tile frame duration must be 0 or a finite number of seconds no shorter than 0.0001")
)

// SolidityKind values match the tileset file format.
type SolidityKind uint8

const (
	SolidNone    SolidityKind = 0
	SolidFull    SolidityKind = 'F'
	SolidPartial SolidityKind = 'P'
	SolidSlope   SolidityKind = 'S'
	SolidComplex SolidityKind = 'C'
)

// TileSolidity describes which part of a tile blocks movement, in
// tile-local pixels.
//
// Partial: Position is the y of a horizontal divider, or the x of a vertical
// one; TopLeft selects the solid side. Slope: the divider is
// y = Position + Slope*x; Above marks the region above it as solid.
type TileSolidity struct {
	Kind     SolidityKind
	Position float32
	Vertical bool
	TopLeft  bool
	Slope    float32
	Above    bool
	Hitbox   hitbox.Hitbox
}

// TileFrame is a cell of the tilesheet shown for Duration seconds. Flip
// holds two bits: horizontal and vertical.
type TileFrame struct {
	X, Y     uint16
	Duration float32
	Flip     uint8
}

const (
	FlipHorizontal uint8 = 1 << iota
	FlipVertical
)

type Tile struct {
	Frames     []TileFrame
	Properties []string
	Solidity   TileSolidity
}

// Cycle is the time one loop through the tile's frames takes, or 0 when a
// frame holds forever.
func (t *Tile) Cycle() float32 {
	var total float32
	for _, f := range t.Frames {
		if !(f.Duration > 0) || math.IsInf(float64(f.Duration), 0) {
			return 0
		}
		total += f.Duration
	}
	return total
}

// Tileset tiles are addressed by id starting at 1; id 0 is blank.
type Tileset struct {
	Name    string
	Texture string
	TileW   uint16
	TileH   uint16
	Tiles   []Tile
}

// Tile returns the tile with the given id, or nil for blank and unknown ids.
func (ts *Tileset) Tile(id uint16) *Tile {
	if id == Blank || int(id) > len(ts.Tiles) {
		return nil
	}
	return &ts.Tiles[id-1]
}

type tilesetHeader struct {
	NameLen     uint32
	TexNameLen  uint32
	TileW       uint16
	TileH       uint16
	NTiles      uint32
	TotalFrames uint32
}

// DecodeTileset parses the binary tileset format. The texture name is
// returned as stored; callers resolve it against the file's directory.
func DecodeTileset(data []byte) (*Tileset, error) {
	if len(data) > TilesetMaxSize {
		return nil, errs.Detailed(TilesetDataTooLarge, "%d bytes", len(data))
	}
	if !bytes.HasPrefix(data, []byte(TilesetMagic)) {
		return nil, InvalidTilesetHeader
	}
	r := bytes.NewReader(data[len(TilesetMagic):])

	var h tilesetHeader
	if err := read(r, &h); err != nil {
		return nil, err
	}
	if int64(h.NameLen)+int64(h.TexNameLen) > int64(r.Len()) {
		return nil, errs.Detailed(errs.IncompleteFileRead, "tileset names")
	}
	name := make([]byte, h.NameLen)
	tex := make([]byte, h.TexNameLen)
	if err := read(r, name); err != nil {
		return nil, err
	}
	if err := read(r, tex); err != nil {
		return nil, err
	}

	ts := &Tileset{Name: string(name), Texture: string(tex), TileW: h.TileW, TileH: h.TileH}
	if int64(h.NTiles) > int64(r.Len()) {
		return nil, errs.Detailed(errs.IncompleteFileRead, "%d tiles declared", h.NTiles)
	}
	ts.Tiles = make([]Tile, h.NTiles)
	frames := uint32(0)
	for i := range ts.Tiles {
		t, err := decodeTile(r)
		if err != nil {
			return nil, err
		}
		frames += uint32(len(t.Frames))
		ts.Tiles[i] = t
	}
	if frames != h.TotalFrames {
		return nil, errs.Detailed(InvalidTilesetHeader, "header declares %d frames, found %d", h.TotalFrames, frames)
	}
	return ts, nil
}

func decodeTile(r *bytes.Reader) (Tile, error) {
	var counts [2]uint32
	if err := read(r, &counts); err != nil {
		return Tile{}, err
	}
	nFrames, nProps := counts[0], counts[1]

	var t Tile
	var kind uint8
	if err := read(r, &kind); err != nil {
		return Tile{}, err
	}
	t.Solidity.Kind = SolidityKind(kind)
	switch t.Solidity.Kind {
	case SolidNone, SolidFull:
	case SolidPartial:
		var p struct {
			Position float32
			Vertical bool
			TopLeft  bool
		}
		if err := read(r, &p); err != nil {
			return Tile{}, err
		}
		t.Solidity.Position, t.Solidity.Vertical, t.Solidity.TopLeft = p.Position, p.Vertical, p.TopLeft
	case SolidSlope:
		var s struct {
			Position float32
			Slope    float32
			Above    bool
		}
		if err := read(r, &s); err != nil {
			return Tile{}, err
		}
		t.Solidity.Position, t.Solidity.Slope, t.Solidity.Above = s.Position, s.Slope, s.Above
	case SolidComplex:
		hb, err := hitbox.Decode(r)
		if err != nil {
			return Tile{}, err
		}
		t.Solidity.Hitbox = hb
	default:
		return Tile{}, errs.Detailed(InvalidTileSolidity, "%q", kind)
	}

	if int64(nFrames)*tileFrameSize > int64(r.Len()) {
		return Tile{}, errs.Detailed(errs.IncompleteFileRead, "%d tile frames declared", nFrames)
	}
	t.Frames = make([]TileFrame, nFrames)
	for i := range t.Frames {
		var raw [tileFrameSize]byte
		if err := read(r, &raw); err != nil {
			return Tile{}, err
		}
		t.Frames[i] = TileFrame{
			X:        binary.LittleEndian.Uint16(raw[0:]),
			Y:        binary.LittleEndian.Uint16(raw[2:]),
			Duration: math.Float32frombits(binary.LittleEndian.Uint32(raw[4:])),
			Flip:     raw[8] & 0x03,
		}
		if d := t.Frames[i].Duration; d != 0 && !(d >= minTileDuration && !math.IsInf(float64(d), 0)) {
			return Tile{}, errs.Detailed(InvalidTileDuration, "frame %d: %v", i, d)
		}
	}

	for i := uint32(0); i < nProps; i++ {
		var n uint32
		if err := read(r, &n); err != nil {
			return Tile{}, err
		}
		if int64(n) > int64(r.Len()) {
			return Tile{}, errs.Detailed(errs.IncompleteFileRead, "tile property")
		}
		b := make([]byte, n)
		if err := read(r, b); err != nil {
			return Tile{}, err
		}
		t.Properties = append(t.Properties, string(b))
	}
	return t, nil
}

// EncodeTileset writes the format read by DecodeTileset.
func EncodeTileset(w io.Writer, ts *Tileset) error {
	var buf bytes.Buffer
	buf.WriteString(TilesetMagic)
	total := 0
	for _, t := range ts.Tiles {
		total += len(t.Frames)
	}
	h := tilesetHeader{
		NameLen:     uint32(len(ts.Name)),
		TexNameLen:  uint32(len(ts.Texture)),
		TileW:       ts.TileW,
		TileH:       ts.TileH,
		NTiles:      uint32(len(ts.Tiles)),
		TotalFrames: uint32(total),
	}
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, h)
	buf.WriteString(ts.Name)
	buf.WriteString(ts.Texture)

	for _, t := range ts.Tiles {
		_ = binary.Write(&buf, le, [2]uint32{uint32(len(t.Frames)), uint32(len(t.Properties))})
		buf.WriteByte(byte(t.Solidity.Kind))
		s := t.Solidity
		switch s.Kind {
		case SolidPartial:
			_ = binary.Write(&buf, le, struct {
				P    float32
				V, T bool
			}{s.Position, s.Vertical, s.TopLeft})
		case SolidSlope:
			_ = binary.Write(&buf, le, struct {
				P, S float32
				A    bool
			}{s.Position, s.Slope, s.Above})
		case SolidComplex:
			if err := hitbox.Encode(&buf, s.Hitbox); err != nil {
				return err
			}
		}
		for _, f := range t.Frames {
			var raw [tileFrameSize]byte
			le.PutUint16(raw[0:], f.X)
			le.PutUint16(raw[2:], f.Y)
			le.PutUint32(raw[4:], math.Float32bits(f.Duration))
			raw[8] = f.Flip & 0x03
			buf.Write(raw[:])
		}
		for _, p := range t.Properties {
			_ = binary.Write(&buf, le, uint32(len(p)))
			buf.WriteString(p)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func read(r io.Reader, v any) error {
	err := binary.Read(r, binary.LittleEndian, v)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.Detailed(errs.IncompleteFileRead, "tileset")
	}
	return err
}
