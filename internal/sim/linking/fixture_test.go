package linking

import (
	"math"
	"sort"
)

var (
	gold    = BlockState{Block: "GOLD_BLOCK"}
	diamond = BlockState{Block: "DIAMOND_BLOCK"}

	obsidian = BlockState{Block: "OBSIDIAN"}

	testMarkers = MarkerFunc(func(s BlockState) bool {
		return s == gold || s == diamond
	})
)

// fakeWorld is a map-backed Dimension with a square boundary.
type fakeWorld struct {
	kind    string
	scale   float64
	bound   int
	blocks  map[Pos]BlockState
	anchors []Pos
	queries int
}

func newFakeWorld(kind string, scale float64) *fakeWorld {
	return &fakeWorld{kind: kind, scale: scale, bound: 1000, blocks: map[Pos]BlockState{}}
}

func (w *fakeWorld) Kind() string             { return w.kind }
func (w *fakeWorld) CoordinateScale() float64 { return w.scale }

func (w *fakeWorld) BlockState(p Pos) BlockState { return w.blocks[p] }

func (w *fakeWorld) IsWithin(p Pos) bool {
	return p.X >= -w.bound && p.X <= w.bound && p.Z >= -w.bound && p.Z <= w.bound
}

func (w *fakeWorld) Clamp(x, y, z float64) Pos {
	b := float64(w.bound)
	x = math.Max(-b, math.Min(b, x))
	z = math.Max(-b, math.Min(b, z))
	return Pos{X: int(math.Floor(x)), Y: int(math.Floor(y)), Z: int(math.Floor(z))}
}

func (w *fakeWorld) QueryInRadius(center Pos, radius int, match func(kind string) bool) []Pos {
	w.queries++
	if !match("NETHER_PORTAL") {
		return nil
	}
	var out []Pos
	for _, p := range w.anchors {
		if abs(p.X-center.X) <= radius && abs(p.Z-center.Z) <= radius {
			out = append(out, p)
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

// portal builds an obsidian frame around a width x height interior whose
// lowest cell on the negative side is min, then places corner markers.
func (w *fakeWorld) portal(min Pos, axis Axis, width, height int, corners Signature) Rect {
	dx, dz := axis.step()
	interior := BlockState{Block: "NETHER_PORTAL", Axis: axis}
	for row := -1; row <= height; row++ {
		for col := -1; col <= width; col++ {
			p := min.Add(col*dx, row, col*dz)
			if row == -1 || row == height || col == -1 || col == width {
				w.blocks[p] = obsidian
				continue
			}
			w.blocks[p] = interior
			w.anchors = append(w.anchors, p)
		}
	}
	r := Rect{Min: min, Width: width, Height: height}
	for i, p := range CornerPosts(r, axis) {
		if !corners[i].IsZero() {
			w.blocks[p] = corners[i]
		}
	}
	return r
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type stubBaseline struct {
	rect    Rect
	axis    Axis
	ok      bool
	calls   int
	targets []Pos
}

func (s *stubBaseline) Find(dest Dimension, target Pos, toLinkingWorld bool) (Rect, Axis, bool) {
	s.calls++
	s.targets = append(s.targets, target)
	return s.rect, s.axis, s.ok
}
