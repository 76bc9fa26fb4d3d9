package hitbox

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"

	"github.com/plate/engine/internal/core/errs"
	"github.com/plate/engine/internal/render"
)

var (
	UnknownColliderType   = errs.New(220, "Collider type is not declared")
	DuplicateColliderType = errs.New(221, "Collider type is declared twice")
	TooManyColliderTypes  = errs.New(222, "Too many collider types")
)

// MaxColliderTypes bounds the interaction matrix.
const MaxColliderTypes = 64

// ColliderType classifies gameplay colliders. Interactions between types
// are directed: a type may act on another without the reverse.
type ColliderType struct {
	Name  string
	ID    int
	Color render.Color

	table *ColliderTable
}

// ActsOn reports whether t acts on o. A nil type acts on nothing.
func (t *ColliderType) ActsOn(o *ColliderType) bool {
	if t == nil || o == nil || t.table == nil || t.table != o.table {
		return false
	}
	return t.table.actsOn[t.ID][o.ID]
}

// Collider is a typed hitbox attached to a sprite frame.
type Collider struct {
	Type   *ColliderType
	Hitbox Hitbox
	Solid  bool
	CCD    bool
}

// ColliderTable holds every collider type and their interaction matrix. It
// is loaded once at startup.
type ColliderTable struct {
	types  []*ColliderType
	byHash map[uint64]*ColliderType
	actsOn [][]bool
}

type colliderTypeFile struct {
	Types []struct {
		Name   string   `yaml:"name"`
		Color  string   `yaml:"color"`
		ActsOn []string `yaml:"acts_on"`
	} `yaml:"types"`
}

// ParseColliderTypes reads a YAML (or JSON) description:
//
//	types:
//	  - name: player
//	    color: "#00ff00"
//	    acts_on: [pickup, trigger]
func ParseColliderTypes(data []byte) (*ColliderTable, error) {
	var f colliderTypeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Detailed(errs.InvalidJson, "collider types: %v", err)
	}
	if len(f.Types) > MaxColliderTypes {
		return nil, errs.Detailed(TooManyColliderTypes, "%d > %d", len(f.Types), MaxColliderTypes)
	}

	tbl := &ColliderTable{byHash: make(map[uint64]*ColliderType, len(f.Types))}
	for i, ft := range f.Types {
		key := xxhash.Sum64String(ft.Name)
		if _, dup := tbl.byHash[key]; dup {
			return nil, errs.Detailed(DuplicateColliderType, "%s", ft.Name)
		}
		color, err := parseColor(ft.Color)
		if err != nil {
			return nil, fmt.Errorf("collider type %s: %w", ft.Name, err)
		}
		ct := &ColliderType{Name: ft.Name, ID: i, Color: color, table: tbl}
		tbl.types = append(tbl.types, ct)
		tbl.byHash[key] = ct
	}

	tbl.actsOn = make([][]bool, len(tbl.types))
	for i := range tbl.actsOn {
		tbl.actsOn[i] = make([]bool, len(tbl.types))
	}
	for i, ft := range f.Types {
		for _, target := range ft.ActsOn {
			o := tbl.Lookup(target)
			if o == nil {
				return nil, errs.Detailed(UnknownColliderType, "%s (acted on by %s)", target, ft.Name)
			}
			tbl.actsOn[i][o.ID] = true
		}
	}
	return tbl, nil
}

// Lookup finds a type by name, or nil.
func (t *ColliderTable) Lookup(name string) *ColliderType {
	if t == nil {
		return nil
	}
	return t.byHash[xxhash.Sum64String(name)]
}

func (t *ColliderTable) Types() []*ColliderType { return t.types }

func (t *ColliderTable) Len() int { return len(t.types) }

func parseColor(s string) (render.Color, error) {
	if s == "" {
		return render.White, nil
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return render.Color{}, fmt.Errorf("bad color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return render.Color{}, fmt.Errorf("bad color %q: %w", s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return render.Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
