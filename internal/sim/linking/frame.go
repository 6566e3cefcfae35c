package linking

// Locate finds the frame around origin: the largest rectangle containing
// origin of cells equal to the state at origin, in the vertical plane
// through origin along axis.
// At most span cells are scanned in each direction from origin, both along
// axis and along Y. Callers must check that origin holds frame material.
func Locate(world BlockLookup, origin Pos, axis Axis, span int) Rect {
	if span <= 0 {
		span = DefaultSpan
	}
	material := world.BlockState(origin)
	dx, dz := axis.step()
	at := func(col, row int) Pos { return origin.Add(col*dx, row, col*dz) }
	same := func(col, row int) bool { return world.BlockState(at(col, row)) == material }

	left := reach(span, func(i int) bool { return same(-i, 0) })
	right := reach(span, func(i int) bool { return same(i, 0) })

	// Every column interval [lows[c], highs[c]] contains row 0 and lies
	// inside the interval of its neighbour nearer the origin column, so any
	// rectangle that skips the origin column can be widened into it.
	cols := left + 1 + right
	lows := make([]int, cols)
	highs := make([]int, cols)
	scan := func(c, inner int) {
		col := c - left
		lows[c] = -reach(span, func(i int) bool { return same(col, -i) })
		highs[c] = reach(span, func(i int) bool { return same(col, i) })
		if inner >= 0 {
			lows[c] = max(lows[c], lows[inner])
			highs[c] = min(highs[c], highs[inner])
		}
	}
	scan(left, -1)
	for c := left - 1; c >= 0; c-- {
		scan(c, c+1)
	}
	for c := left + 1; c < cols; c++ {
		scan(c, c-1)
	}

	best := Rect{Min: origin, Width: 1, Height: 1}
	bestArea := 1
	heights := make([]int, cols)
	for row := -span; row <= 0; row++ {
		for c := range heights {
			if row >= lows[c] && row <= highs[c] {
				heights[c] = highs[c] - row + 1
			} else {
				heights[c] = 0
			}
		}
		start, width, height := largestInHistogram(heights)
		if width*height > bestArea {
			bestArea = width * height
			best = Rect{Min: at(start-left, row), Width: width, Height: height}
		}
	}
	return best
}

// reach counts consecutive steps 1..span for which ok holds.
func reach(span int, ok func(i int) bool) int {
	n := 0
	for n < span && ok(n+1) {
		n++
	}
	return n
}

// largestInHistogram returns the largest-area run of bars; ties keep the
// first run found.
func largestInHistogram(h []int) (start, width, height int) {
	type bar struct{ start, height int }
	stack := make([]bar, 0, len(h))
	best := 0
	for i := 0; i <= len(h); i++ {
		cur := 0
		if i < len(h) {
			cur = h[i]
		}
		s := i
		for len(stack) > 0 && stack[len(stack)-1].height >= cur {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if area := top.height * (i - top.start); area > best {
				best = area
				start, width, height = top.start, i-top.start, top.height
			}
			s = top.start
		}
		stack = append(stack, bar{start: s, height: cur})
	}
	return start, width, height
}
