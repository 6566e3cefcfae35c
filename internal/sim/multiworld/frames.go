package multiworld

import (
	"fmt"

	"cornerlink/internal/sim/linking"
)

// BuildFrame fills a width x height portal interior whose lowest cell on the
// negative side is min, rings it with frameBlock and puts the corner block
// ids ("" keeps frameBlock) on the four corner posts in slot order.
func (rt *Runtime) BuildFrame(min linking.Pos, axis linking.Axis, width, height int, frameBlock string, corners [4]string) (linking.Rect, error) {
	if axis != linking.AxisX && axis != linking.AxisZ {
		return linking.Rect{}, fmt.Errorf("frame axis must be x or z")
	}
	if width < 1 || height < 1 {
		return linking.Rect{}, fmt.Errorf("frame interior must be at least 1x1, got %dx%d", width, height)
	}
	dx, dz := 1, 0
	if axis == linking.AxisZ {
		dx, dz = 0, 1
	}
	for row := -1; row <= height; row++ {
		for col := -1; col <= width; col++ {
			p := min.Add(col*dx, row, col*dz)
			var err error
			if row == -1 || row == height || col == -1 || col == width {
				err = rt.Place(p, frameBlock, linking.AxisNone)
			} else {
				err = rt.Place(p, portalBlock, axis)
			}
			if err != nil {
				return linking.Rect{}, err
			}
		}
	}
	r := linking.Rect{Min: min, Width: width, Height: height}
	for i, p := range linking.CornerPosts(r, axis) {
		if corners[i] == "" {
			continue
		}
		if err := rt.Place(p, corners[i], linking.AxisNone); err != nil {
			return linking.Rect{}, err
		}
	}
	return r, nil
}

const portalBlock = "NETHER_PORTAL"
