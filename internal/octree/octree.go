// Package octree implements the Barnes-Hut spatial tree.
//
// A [Tree] is built from scratch for every force evaluation: the cube
// enclosing all positions is split into octants until a node holds at most
// the leaf capacity, then node masses and centres of mass are aggregated
// bottom-up in one pass. Traversal ([Tree.ForceOn]) only reads the tree and
// may run concurrently for different particles once Build has returned.
//
// Rebuilding every step is deliberate; there is no incremental update.
package octree

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/physerr"
)

// maxDepth bounds subdivision when some particles coincide while others do
// not. A node at this depth becomes a leaf regardless of its population.
const maxDepth = 64

const noChild = -1

// Kernel returns the force exerted on a body of mass mi at pi by a mass mj at pj.
type Kernel func(pi, pj r3.Vec, mi, mj float64) r3.Vec

// Node is a cubical region of the tree.
type Node struct {
	Center       r3.Vec
	HalfSize     float64
	Mass         float64
	CenterOfMass r3.Vec

	start, end int
	children   [8]int32
	leaf       bool
}

func (n Node) IsLeaf() bool { return n.leaf }

// holds reports whether p lies in the node's cube, boundary included.
func (n Node) holds(p r3.Vec) bool {
	return math.Abs(p.X-n.Center.X) <= n.HalfSize &&
		math.Abs(p.Y-n.Center.Y) <= n.HalfSize &&
		math.Abs(p.Z-n.Center.Z) <= n.HalfSize
}

// Count is the number of particles in the node's region.
func (n Node) Count() int { return n.end - n.start }

type Tree struct {
	nodes        []Node
	index        []int
	scratch      []int
	leafCapacity int
	depth        int
}

// Build constructs the tree for the given positions and masses. leafCapacity
// below 1 is treated as 1. It returns ErrDegenerateGeometry when every
// position coincides and the particles cannot fit a single leaf, and
// ErrNumericInstability for non-finite positions.
func Build(pos []r3.Vec, mass []float64, leafCapacity int) (*Tree, error) {
	if leafCapacity < 1 {
		leafCapacity = 1
	}
	n := len(pos)
	t := &Tree{
		nodes:        make([]Node, 0, 2*n+1),
		index:        make([]int, n),
		scratch:      make([]int, n),
		leafCapacity: leafCapacity,
	}
	if n == 0 {
		return t, nil
	}
	for i := range t.index {
		t.index[i] = i
	}

	lo, hi := pos[0], pos[0]
	for _, p := range pos {
		if math.IsNaN(p.X+p.Y+p.Z) || math.IsInf(p.X+p.Y+p.Z, 0) {
			return nil, physerr.Wrapf(physerr.ErrNumericInstability, "non-finite position %v", p)
		}
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	extent := math.Max(hi.X-lo.X, math.Max(hi.Y-lo.Y, hi.Z-lo.Z))
	if extent == 0 && n > leafCapacity {
		return nil, physerr.Wrapf(physerr.ErrDegenerateGeometry, "%d particles share position %v", n, lo)
	}

	center := r3.Scale(0.5, r3.Add(lo, hi))
	t.build(pos, center, extent/2, 0, n, 0)
	t.scratch = nil
	t.aggregate(pos, mass)
	return t, nil
}

func (t *Tree) build(pos []r3.Vec, center r3.Vec, half float64, start, end, depth int) int32 {
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, Node{
		Center:   center,
		HalfSize: half,
		start:    start,
		end:      end,
		children: [8]int32{noChild, noChild, noChild, noChild, noChild, noChild, noChild, noChild},
	})
	if depth > t.depth {
		t.depth = depth
	}
	if end-start <= t.leafCapacity || depth >= maxDepth {
		t.nodes[id].leaf = true
		return id
	}

	// counting sort of the node's particles by octant
	var counts [8]int
	for _, p := range t.index[start:end] {
		counts[octantOf(center, pos[p])]++
	}
	var offsets, cursor [8]int
	off := start
	for o := range counts {
		offsets[o] = off
		cursor[o] = off
		off += counts[o]
	}
	for _, p := range t.index[start:end] {
		o := octantOf(center, pos[p])
		t.scratch[cursor[o]] = p
		cursor[o]++
	}
	copy(t.index[start:end], t.scratch[start:end])

	for o := 0; o < 8; o++ {
		if counts[o] == 0 {
			continue
		}
		child := t.build(pos, childCenter(center, half, o), half/2, offsets[o], offsets[o]+counts[o], depth+1)
		t.nodes[id].children[o] = child
	}
	return id
}

// Nodes are appended parent-first, so a reverse sweep sees every child
// before its parent.
func (t *Tree) aggregate(pos []r3.Vec, mass []float64) {
	for id := len(t.nodes) - 1; id >= 0; id-- {
		nd := &t.nodes[id]
		var m float64
		var weighted r3.Vec
		if nd.leaf {
			for _, p := range t.index[nd.start:nd.end] {
				m += mass[p]
				weighted = r3.Add(weighted, r3.Scale(mass[p], pos[p]))
			}
		} else {
			for _, c := range nd.children {
				if c == noChild {
					continue
				}
				child := &t.nodes[c]
				m += child.Mass
				weighted = r3.Add(weighted, r3.Scale(child.Mass, child.CenterOfMass))
			}
		}
		nd.Mass = m
		if m > 0 {
			nd.CenterOfMass = r3.Scale(1/m, weighted)
		} else {
			nd.CenterOfMass = r3.Vec{}
		}
	}
}

// ForceOn sums kernel contributions on particle i. A leaf contributes its
// members pairwise, excluding i. An internal node whose size-to-distance
// ratio s/d is below theta contributes as a point mass at its centre of
// mass; otherwise its children are visited. A node whose region holds i is
// always opened, so i never feels its own mass whatever theta is.
func (t *Tree) ForceOn(i int, pos []r3.Vec, mass []float64, theta float64, kernel Kernel) r3.Vec {
	var f r3.Vec
	if len(t.nodes) == 0 {
		return f
	}
	pi, mi := pos[i], mass[i]

	var stack [8*maxDepth + 8]int32
	sp := 1
	for sp > 0 {
		sp--
		nd := &t.nodes[stack[sp]]
		if nd.Mass == 0 {
			continue
		}
		if nd.leaf {
			for _, j := range t.index[nd.start:nd.end] {
				if j == i {
					continue
				}
				f = r3.Add(f, kernel(pi, pos[j], mi, mass[j]))
			}
			continue
		}
		d := r3.Norm(r3.Sub(nd.CenterOfMass, pi))
		if d > 0 && 2*nd.HalfSize/d < theta && !nd.holds(pi) {
			f = r3.Add(f, kernel(pi, nd.CenterOfMass, mi, nd.Mass))
			continue
		}
		for _, c := range nd.children {
			if c != noChild {
				stack[sp] = c
				sp++
			}
		}
	}
	return f
}

// Len is the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Depth is the depth of the deepest node; a single-leaf tree has depth 0.
func (t *Tree) Depth() int { return t.depth }

// Root returns the root node. It is the zero Node for an empty tree.
func (t *Tree) Root() Node {
	if len(t.nodes) == 0 {
		return Node{}
	}
	return t.nodes[0]
}

// Nodes returns every node, parents before children.
func (t *Tree) Nodes() []Node { return t.nodes }

// Children returns the populated children of n.
func (t *Tree) Children(n Node) []Node {
	var out []Node
	for _, c := range n.children {
		if c != noChild {
			out = append(out, t.nodes[c])
		}
	}
	return out
}

// Members returns the particle indices inside n's region.
func (t *Tree) Members(n Node) []int { return t.index[n.start:n.end] }

// octant bit layout: bit 0 is X, bit 1 is Y, bit 2 is Z; a set bit means
// the coordinate is at or above the centre.
func octantOf(center, p r3.Vec) int {
	o := 0
	if p.X >= center.X {
		o |= 1
	}
	if p.Y >= center.Y {
		o |= 2
	}
	if p.Z >= center.Z {
		o |= 4
	}
	return o
}

func childCenter(center r3.Vec, half float64, o int) r3.Vec {
	q := half / 2
	c := center
	if o&1 != 0 {
		c.X += q
	} else {
		c.X -= q
	}
	if o&2 != 0 {
		c.Y += q
	} else {
		c.Y -= q
	}
	if o&4 != 0 {
		c.Z += q
	} else {
		c.Z -= q
	}
	return c
}
