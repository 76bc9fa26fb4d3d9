package level

import (
	"slices"

	"github.com/plate/engine/internal/geom"
)

// RTreeBranching is the maximum number of children per node.
const RTreeBranching = 4

type rnode struct {
	bounds   geom.AABB
	children []*rnode
	item     *SceneObject
}

// RTree is a static index over scene objects, bulk-loaded once with
// sort-tile-recursive packing.
type RTree struct {
	root *rnode
	size int
}

func NewRTree(objects []SceneObject) *RTree {
	t := &RTree{size: len(objects)}
	if len(objects) == 0 {
		return t
	}
	level := make([]*rnode, len(objects))
	for i := range objects {
		level[i] = &rnode{bounds: objects[i].Bounds, item: &objects[i]}
	}
	for len(level) > 1 {
		level = pack(level)
	}
	t.root = level[0]
	return t
}

func (t *RTree) Len() int { return t.size }

// pack groups nodes into parents of at most RTreeBranching children: sort
// by x, cut into vertical slices, sort each slice by y, then chunk.
func pack(nodes []*rnode) []*rnode {
	parents := (len(nodes) + RTreeBranching - 1) / RTreeBranching
	strips := isqrtCeil(parents)
	perSlice := strips * RTreeBranching

	sortByCenter(nodes, func(v geom.Vector2) float32 { return v.X })
	var out []*rnode
	for s := 0; s < len(nodes); s += perSlice {
		slice := nodes[s:min(s+perSlice, len(nodes))]
		sortByCenter(slice, func(v geom.Vector2) float32 { return v.Y })
		for i := 0; i < len(slice); i += RTreeBranching {
			group := slice[i:min(i+RTreeBranching, len(slice))]
			p := &rnode{bounds: group[0].bounds, children: append([]*rnode(nil), group...)}
			for _, c := range group[1:] {
				p.bounds = p.bounds.Union(c.bounds)
			}
			out = append(out, p)
		}
	}
	return out
}

func sortByCenter(nodes []*rnode, key func(geom.Vector2) float32) {
	slices.SortStableFunc(nodes, func(a, b *rnode) int {
		ka, kb := key(a.bounds.Center()), key(b.bounds.Center())
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		}
		return 0
	})
}

func isqrtCeil(n int) int {
	r := 1
	for r*r < n {
		r++
	}
	return r
}

// Query appends to dst every object whose bounds touch box.
func (t *RTree) Query(box geom.AABB, dst []*SceneObject) []*SceneObject {
	if t.root == nil {
		return dst
	}
	return t.root.query(box, dst)
}

func (n *rnode) query(box geom.AABB, dst []*SceneObject) []*SceneObject {
	if !touching(n.bounds, box) {
		return dst
	}
	if n.item != nil {
		return append(dst, n.item)
	}
	for _, c := range n.children {
		dst = c.query(box, dst)
	}
	return dst
}

func touching(a, b geom.AABB) bool {
	return a.Left <= b.Right && b.Left <= a.Right && a.Top <= b.Bottom && b.Top <= a.Bottom
}
