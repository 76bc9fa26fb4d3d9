package hitbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/geom"
)

type point struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

// desc is the text form of a hitbox inside sprite and level files.
type desc struct {
	Type     string  `yaml:"type"`
	Left     float32 `yaml:"left"`
	Right    float32 `yaml:"right"`
	Top      float32 `yaml:"top"`
	Bottom   float32 `yaml:"bottom"`
	X        float32 `yaml:"x"`
	Y        float32 `yaml:"y"`
	Radius   float32 `yaml:"radius"`
	P1       point   `yaml:"p1"`
	P2       point   `yaml:"p2"`
	Points   []point `yaml:"points"`
	Children []desc  `yaml:"children"`
}

func (d desc) build() (Hitbox, error) {
	kind, ok := ParseKind(d.Type)
	if !ok {
		return Hitbox{}, errs.Detailed(InvalidHitboxType, "%q", d.Type)
	}
	switch kind {
	case Box:
		return NewBox(geom.BoxFromPoints(geom.Vec(d.Left, d.Top), geom.Vec(d.Right, d.Bottom))), nil
	case Circle:
		return NewCircle(geom.Vec(d.X, d.Y), d.Radius), nil
	case Line:
		return NewLine(geom.Vec(d.P1.X, d.P1.Y), geom.Vec(d.P2.X, d.P2.Y)), nil
	case OneWay:
		return NewOneWay(geom.Vec(d.P1.X, d.P1.Y), geom.Vec(d.P2.X, d.P2.Y)), nil
	case Polygon:
		verts := make(geom.Polygon, len(d.Points))
		for i, p := range d.Points {
			verts[i] = geom.Vec(p.X, p.Y)
		}
		return NewPolygon(verts)
	case Composite:
		children := make([]Hitbox, 0, len(d.Children))
		for i, c := range d.Children {
			h, err := c.build()
			if err != nil {
				return Hitbox{}, fmt.Errorf("child %d: %w", i, err)
			}
			children = append(children, h)
		}
		return NewComposite(children...), nil
	}
	return Hitbox{}, nil
}

// UnmarshalYAML decodes the text form, e.g.
//
//	{type: box, left: 0, right: 16, top: 0, bottom: 32}
//	{type: circle, x: 8, y: 8, radius: 8}
//	{type: oneway, p1: {x: 0, y: 0}, p2: {x: 16, y: 0}}
//	{type: polygon, points: [{x: 0, y: 0}, {x: 8, y: 0}, {x: 0, y: 8}]}
//	{type: composite, children: [...]}
func (h *Hitbox) UnmarshalYAML(node *yaml.Node) error {
	var d desc
	if err := node.Decode(&d); err != nil {
		return err
	}
	built, err := d.build()
	if err != nil {
		return err
	}
	*h = built
	return nil
}

// Decode reads the binary form: a u8 kind followed by little-endian f32
// fields (box: left right top bottom; circle: x y radius; line: x1 y1 x2 y2),
// with u32 counts ahead of polygon vertices and composite children.
func Decode(r io.Reader) (Hitbox, error) {
	var kind uint8
	if err := read(r, &kind); err != nil {
		return Hitbox{}, err
	}
	switch Kind(kind) {
	case None:
		return Hitbox{}, nil
	case Box:
		var b [4]float32
		if err := read(r, &b); err != nil {
			return Hitbox{}, err
		}
		return NewBox(geom.AABB{Left: b[0], Right: b[1], Top: b[2], Bottom: b[3]}), nil
	case Circle:
		var c [3]float32
		if err := read(r, &c); err != nil {
			return Hitbox{}, err
		}
		return NewCircle(geom.Vec(c[0], c[1]), c[2]), nil
	case Line, OneWay:
		var l [4]float32
		if err := read(r, &l); err != nil {
			return Hitbox{}, err
		}
		return Hitbox{Kind: Kind(kind), Line: geom.Line{P1: geom.Vec(l[0], l[1]), P2: geom.Vec(l[2], l[3])}}, nil
	case Polygon:
		var n uint32
		if err := read(r, &n); err != nil {
			return Hitbox{}, err
		}
		raw := make([]float32, 2*n)
		if err := read(r, raw); err != nil {
			return Hitbox{}, err
		}
		verts := make(geom.Polygon, n)
		for i := range verts {
			verts[i] = geom.Vec(raw[2*i], raw[2*i+1])
		}
		return NewPolygon(verts)
	case Composite:
		var n uint32
		if err := read(r, &n); err != nil {
			return Hitbox{}, err
		}
		children := make([]Hitbox, 0, n)
		for i := uint32(0); i < n; i++ {
			c, err := Decode(r)
			if err != nil {
				return Hitbox{}, err
			}
			children = append(children, c)
		}
		return NewComposite(children...), nil
	}
	return Hitbox{}, errs.Detailed(InvalidHitboxType, "tag %d", kind)
}

// Encode writes the binary form read by Decode.
func Encode(w io.Writer, h Hitbox) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(h.Kind)); err != nil {
		return err
	}
	var payload any
	switch h.Kind {
	case None:
		return nil
	case Box:
		payload = [4]float32{h.Box.Left, h.Box.Right, h.Box.Top, h.Box.Bottom}
	case Circle:
		payload = [3]float32{h.Circle.Center.X, h.Circle.Center.Y, h.Circle.Radius}
	case Line, OneWay:
		payload = [4]float32{h.Line.P1.X, h.Line.P1.Y, h.Line.P2.X, h.Line.P2.Y}
	case Polygon:
		raw := make([]float32, 0, 2*len(h.Vertices))
		for _, v := range h.Vertices {
			raw = append(raw, v.X, v.Y)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(h.Vertices))); err != nil {
			return err
		}
		payload = raw
	case Composite:
		if err := binary.Write(w, binary.LittleEndian, uint32(len(h.Children))); err != nil {
			return err
		}
		for _, c := range h.Children {
			if err := Encode(w, c); err != nil {
				return err
			}
		}
		return nil
	default:
		return errs.Detailed(InvalidHitboxType, "tag %d", h.Kind)
	}
	return binary.Write(w, binary.LittleEndian, payload)
}

func read(r io.Reader, v any) error {
	err := binary.Read(r, binary.LittleEndian, v)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.Detailed(errs.IncompleteFileRead, "hitbox")
	}
	return err
}
