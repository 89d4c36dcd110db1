// Package bvh implements a median-split bounding volume hierarchy over
// a mesh's triangles, grounded directly on the original crt bvh crate:
// tagged 32-bit node indices (the top bit marks a leaf), flat split
// and leaf arrays instead of a pointer tree, and a fixed-depth
// traversal stack ordered front-to-back by the ray's sign on the
// node's split axis.
package bvh

import (
	"math"
	"sort"

	"github.com/selenia-project/crt/internal/geom"
	"github.com/selenia-project/crt/internal/region"
	"github.com/selenia-project/crt/internal/scene"
)

// LeafBit tags a node index as referring to Leaves rather than
// Splits.
const LeafBit uint32 = 1 << 31

// stackDepth bounds Intersect's traversal stack. A balanced median
// split over any triangle count this ray tracer is built to handle
// never nests deeper than this; if a split's children would not fit,
// Intersect silently drops them instead of pushing them.
const stackDepth = 64

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max geom.Vec3
}

// EmptyBox returns the identity box for Union: any box unioned with
// it is unchanged.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: geom.Vec3{X: inf, Y: inf, Z: inf},
		Max: geom.Vec3{X: -inf, Y: -inf, Z: -inf},
	}
}

// ExpandPoint returns the smallest box containing b and p.
func (b Box) ExpandPoint(p geom.Vec3) Box {
	return Box{
		Min: geom.Vec3{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)},
		Max: geom.Vec3{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)},
	}
}

// Union returns the smallest box containing both b and o.
func (b Box) Union(o Box) Box {
	return b.ExpandPoint(o.Min).ExpandPoint(o.Max)
}

// Contains reports whether p lies within b (inclusive).
func (b Box) Contains(p geom.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Centroid returns the box's midpoint.
func (b Box) Centroid() geom.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// LargestAxis returns the axis (0=X, 1=Y, 2=Z) along which b is
// widest.
func (b Box) LargestAxis() int {
	ext := b.Max.Sub(b.Min)

	axis, best := 0, ext.X
	if ext.Y > best {
		axis, best = 1, ext.Y
	}
	if ext.Z > best {
		axis = 2
	}

	return axis
}

// Intersect runs the standard slab test, reporting whether the ray
// crosses b within [tMin, tMax].
func (b Box) Intersect(ray geom.Ray, tMin, tMax float64) bool {
	origin, dir := ray.Origin(), ray.Dir()

	for axis := 0; axis < 3; axis++ {
		d := dir.At(axis)
		o := origin.At(axis)
		lo, hi := b.Min.At(axis), b.Max.At(axis)

		if d == 0 {
			if o < lo || o > hi {
				return false
			}
			continue
		}

		invD := 1 / d
		t0 := (lo - o) * invD
		t1 := (hi - o) * invD

		if invD < 0 {
			t0, t1 = t1, t0
		}

		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}

		if tMax < tMin {
			return false
		}
	}

	return true
}

func boxFromTriangle(tr scene.Triangle) Box {
	b := EmptyBox()
	for _, v := range tr.V {
		b = b.ExpandPoint(v)
	}

	return b
}

// Split is an interior node: the union box of its two children plus
// the axis the builder partitioned on, used to pick traversal order.
type Split struct {
	Box   Box
	Axis  uint8
	Left  uint32
	Right uint32
}

// Leaf is a terminal node: a box plus the single face index (into the
// Bvh's Tris array, in the mesh's original face order) it covers. The
// original bvh crate recurses strictly to one face per leaf
// (bvh_recur's faces.len() == 1 base case); this keeps that shape
// rather than bucketing several faces per leaf.
type Leaf struct {
	Box  Box
	Face uint32
}

// Bvh is a complete hierarchy over one mesh's triangles. Tris holds
// the mesh's triangles in their original face order; Leaf.Face indexes
// into it directly.
type Bvh struct {
	Splits []Split
	Leaves []Leaf
	Tris   []scene.Triangle
	Root   uint32
}

// Build constructs a Bvh over every face of mesh, allocating its
// final flat arrays from r. Construction itself works over ordinary
// Go slices (the final node count isn't known until the recursive
// median split bottoms out); once complete, the exact-sized result is
// copied into region-owned arrays in one AllocArray call per array,
// the same count-then-fill discipline internal/sceneparse uses. A
// zero-face mesh produces empty Splits/Leaves, matching the original's
// "no root node at all" empty case; Intersect checks for that directly
// rather than relying on a sentinel root index.
func Build(r *region.Region, mesh *scene.Mesh) (*Bvh, error) {
	n := mesh.NumFaces()

	tris := make([]scene.Triangle, n)
	boxes := make([]Box, n)
	centroids := make([]geom.Vec3, n)

	for i := 0; i < n; i++ {
		tr := mesh.Triangle(i)
		tris[i] = tr

		bb := boxFromTriangle(tr)
		boxes[i] = bb
		centroids[i] = bb.Centroid()
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	b := &builder{boxes: boxes, centroids: centroids, idx: idx}

	var root uint32
	if n > 0 {
		root = b.recur(0, n)
	}

	splits, err := region.AllocArray(r, len(b.splits), func(i int) Split { return b.splits[i] })
	if err != nil {
		return nil, err
	}

	leaves, err := region.AllocArray(r, len(b.leaves), func(i int) Leaf { return b.leaves[i] })
	if err != nil {
		return nil, err
	}

	orderedTris, err := region.AllocArray(r, n, func(i int) scene.Triangle { return tris[i] })
	if err != nil {
		return nil, err
	}

	return &Bvh{Splits: splits, Leaves: leaves, Tris: orderedTris, Root: root}, nil
}

// builder accumulates nodes in plain slices during the recursive
// split; see Build for why this precedes the region-backed result.
type builder struct {
	boxes     []Box
	centroids []geom.Vec3
	idx       []int

	splits []Split
	leaves []Leaf
}

func (b *builder) unionRange(lo, hi int) Box {
	box := EmptyBox()
	for _, i := range b.idx[lo:hi] {
		box = box.Union(b.boxes[i])
	}

	return box
}

func (b *builder) recur(lo, hi int) uint32 {
	if hi-lo == 1 {
		face := uint32(b.idx[lo])
		leafIdx := uint32(len(b.leaves))
		b.leaves = append(b.leaves, Leaf{Box: b.boxes[b.idx[lo]], Face: face})

		return leafIdx | LeafBit
	}

	box := b.unionRange(lo, hi)
	count := hi - lo

	axis := box.LargestAxis()

	sub := b.idx[lo:hi]
	sort.Slice(sub, func(i, j int) bool {
		return b.centroids[sub[i]].At(axis) < b.centroids[sub[j]].At(axis)
	})

	mid := lo + count/2

	splitIdx := uint32(len(b.splits))
	b.splits = append(b.splits, Split{}) // reserved so child indices are stable across the two recursive calls below

	left := b.recur(lo, mid)
	right := b.recur(mid, hi)

	b.splits[splitIdx] = Split{Box: box, Axis: uint8(axis), Left: left, Right: right}

	return splitIdx
}

// TriTest intersects ray against a single triangle, returning the hit
// distance and whether it falls within [tMin, tMax].
type TriTest func(tri scene.Triangle, ray geom.Ray, tMin, tMax float64) (float64, bool)

// Hit is the closest triangle a traversal found, if any.
type Hit struct {
	T      float64
	TriIdx int
}

// Intersect walks the hierarchy front-to-back, calling test on every
// candidate triangle in leaves whose box the ray crosses within
// [tMin, tMax], and returns the closest hit. Traversal prunes any
// subtree whose box doesn't intersect within the current best
// distance, and visits the near child of each split before the far
// one so later boxes can be pruned against an already-tightened tMax.
func (bvh *Bvh) Intersect(ray geom.Ray, tMin, tMax float64, test TriTest) (Hit, bool) {
	if len(bvh.Leaves) == 0 {
		return Hit{}, false
	}

	var stack [stackDepth]uint32

	sp := 0
	stack[sp] = bvh.Root
	sp++

	bestT := tMax
	bestIdx := -1
	found := false

	for sp > 0 {
		sp--
		node := stack[sp]

		if node&LeafBit != 0 {
			leaf := bvh.Leaves[node&^LeafBit]
			if !leaf.Box.Intersect(ray, tMin, bestT) {
				continue
			}

			if t, ok := test(bvh.Tris[leaf.Face], ray, tMin, bestT); ok {
				bestT = t
				bestIdx = int(leaf.Face)
				found = true
			}

			continue
		}

		split := bvh.Splits[node]
		if !split.Box.Intersect(ray, tMin, bestT) {
			continue
		}

		near, far := split.Left, split.Right
		if ray.Dir().At(int(split.Axis)) < 0 {
			near, far = far, near
		}

		if sp+2 > len(stack) {
			continue
		}

		stack[sp] = far
		sp++
		stack[sp] = near
		sp++
	}

	return Hit{T: bestT, TriIdx: bestIdx}, found
}
