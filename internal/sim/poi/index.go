// Package poi indexes point-of-interest cells (portal tiles) by column for
// square radius queries.
package poi

import (
	"sort"
	"sync"

	"github.com/asim/quadtree"

	"cornerlink/internal/sim/linking"
)

type column struct{ x, z int }

// cells maps every indexed Y in one column to its poi kind.
type cells map[int]string

// Index is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	tree    *quadtree.QuadTree
	columns map[column]*quadtree.Point

	// overflow holds columns the tree refused (a full leaf at max depth).
	overflow map[column]*quadtree.Point
	bound    int
	count    int
}

// New covers the square [-boundaryR, boundaryR] on X and Z.
func New(boundaryR int) *Index {
	half := float64(boundaryR) + 1
	aabb := quadtree.NewAABB(
		quadtree.NewPoint(0, 0, nil),
		quadtree.NewPoint(half, half, nil))
	return &Index{
		tree:     quadtree.New(aabb, 0, nil),
		columns:  map[column]*quadtree.Point{},
		overflow: map[column]*quadtree.Point{},
		bound:    boundaryR,
	}
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.count
}

// Add records kind at p. It returns false when p lies outside the index.
func (ix *Index) Add(p linking.Pos, kind string) bool {
	if absInt(p.X) > ix.bound || absInt(p.Z) > ix.bound {
		return false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	col := column{x: p.X, z: p.Z}
	pt, ok := ix.columns[col]
	if !ok {
		pt = quadtree.NewPoint(float64(p.X), float64(p.Z), cells{})
		if !ix.tree.Insert(pt) {
			ix.overflow[col] = pt
		}
		ix.columns[col] = pt
	}
	cs := pt.Data().(cells)
	if _, exists := cs[p.Y]; !exists {
		ix.count++
	}
	cs[p.Y] = kind
	return true
}

func (ix *Index) Remove(p linking.Pos) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	col := column{x: p.X, z: p.Z}
	pt, ok := ix.columns[col]
	if !ok {
		return
	}
	cs := pt.Data().(cells)
	if _, exists := cs[p.Y]; !exists {
		return
	}
	delete(cs, p.Y)
	ix.count--
	if len(cs) == 0 {
		if _, over := ix.overflow[col]; over {
			delete(ix.overflow, col)
		} else {
			ix.tree.Remove(pt)
		}
		delete(ix.columns, col)
	}
}

// Kind returns the poi kind recorded at p.
func (ix *Index) Kind(p linking.Pos) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	pt, ok := ix.columns[column{x: p.X, z: p.Z}]
	if !ok {
		return "", false
	}
	k, ok := pt.Data().(cells)[p.Y]
	return k, ok
}

// QueryInRadius returns every cell within the square of half-size radius
// around center whose kind matches, ordered by X, Z, then Y.
func (ix *Index) QueryInRadius(center linking.Pos, radius int, match func(kind string) bool) []linking.Pos {
	if radius < 0 {
		return nil
	}
	half := float64(radius) + 0.5
	area := quadtree.NewAABB(
		quadtree.NewPoint(float64(center.X), float64(center.Z), nil),
		quadtree.NewPoint(half, half, nil))

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	points := ix.tree.Search(area)
	for _, pt := range ix.overflow {
		points = append(points, pt)
	}
	var out []linking.Pos
	for _, pt := range points {
		x, z := pt.Coordinates()
		p := linking.Pos{X: int(x), Z: int(z)}
		if absInt(p.X-center.X) > radius || absInt(p.Z-center.Z) > radius {
			continue
		}
		for y, kind := range pt.Data().(cells) {
			if match == nil || match(kind) {
				out = append(out, linking.Pos{X: p.X, Y: y, Z: p.Z})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].Y < out[j].Y
	})
	return out
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
