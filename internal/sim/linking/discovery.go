package linking

type anchor struct {
	pos  Pos
	axis Axis
}

// discover queries the index around target and keeps anchors that are in
// bounds and sit on a state with a horizontal axis.
func discover(dest Dimension, target Pos, radius int, kind string) []anchor {
	positions := dest.QueryInRadius(target, radius, func(k string) bool { return k == kind })
	out := make([]anchor, 0, len(positions))
	for _, p := range positions {
		if !dest.IsWithin(p) {
			continue
		}
		st := dest.BlockState(p)
		if !st.HasAxis() {
			continue
		}
		out = append(out, anchor{pos: p, axis: st.Axis})
	}
	return out
}

// frameCache remembers located frames for one resolve call. Every tile of
// a portal is an anchor, so without it each tile rescans the same frame.
type frameCache struct {
	world BlockLookup
	span  int
	rects map[Pos]Rect
	sigs  map[Rect]Signature
}

func newFrameCache(world BlockLookup, span int) *frameCache {
	return &frameCache{
		world: world,
		span:  span,
		rects: map[Pos]Rect{},
		sigs:  map[Rect]Signature{},
	}
}

func (c *frameCache) locate(p Pos, axis Axis) Rect {
	if r, ok := c.rects[p]; ok {
		return r
	}
	r := Locate(c.world, p, axis, c.span)
	c.rects[p] = r
	material := c.world.BlockState(p)
	if !c.sealed(r, axis, material) {
		return r
	}
	// A sealed rectangle is what Locate returns from any of its cells.
	dx, dz := axis.step()
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			c.rects[r.Min.Add(col*dx, row, col*dz)] = r
		}
	}
	return r
}

// sealed reports whether r is uniformly material and no cell on its outer
// ring (corners excluded) is material.
func (c *frameCache) sealed(r Rect, axis Axis, material BlockState) bool {
	dx, dz := axis.step()
	at := func(col, row int) Pos { return r.Min.Add(col*dx, row, col*dz) }
	for col := 0; col < r.Width; col++ {
		if c.world.BlockState(at(col, -1)) == material || c.world.BlockState(at(col, r.Height)) == material {
			return false
		}
		for row := 0; row < r.Height; row++ {
			if c.world.BlockState(at(col, row)) != material {
				return false
			}
		}
	}
	for row := 0; row < r.Height; row++ {
		if c.world.BlockState(at(-1, row)) == material || c.world.BlockState(at(r.Width, row)) == material {
			return false
		}
	}
	return true
}

func (c *frameCache) signature(r Rect, axis Axis, markers MarkerSet) Signature {
	if s, ok := c.sigs[r]; ok {
		return s
	}
	s := Extract(c.world, r, axis, markers)
	c.sigs[r] = s
	return s
}

// NearestPolicy is the plain destination rule: the anchor closest to the
// target, lower Y breaking ties, expanded to its full frame.
type NearestPolicy struct {
	AnchorKind              string
	Span                    int
	SearchRadius            int
	SearchRadiusIntoLinking int
}

func (p NearestPolicy) Find(dest Dimension, target Pos, toLinkingWorld bool) (Rect, Axis, bool) {
	radius := p.SearchRadius
	if toLinkingWorld {
		radius = p.SearchRadiusIntoLinking
	}
	anchors := discover(dest, target, radius, p.AnchorKind)
	if len(anchors) == 0 {
		return Rect{}, AxisNone, false
	}
	best := anchors[0]
	bestDist := best.pos.DistSqr(target)
	for _, a := range anchors[1:] {
		d := a.pos.DistSqr(target)
		if d < bestDist || (d == bestDist && a.pos.Y < best.pos.Y) {
			best, bestDist = a, d
		}
	}
	return Locate(dest, best.pos, best.axis, p.Span), best.axis, true
}
