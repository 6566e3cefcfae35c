// Package linking chooses the destination portal frame for a trip, preferring
// frames whose corner markers match the entrance frame.
package linking

import "fmt"

// DefaultSpan is the frame scan cap in each direction from the origin.
const DefaultSpan = 21

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (p Pos) Add(dx, dy, dz int) Pos {
	return Pos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// DistSqr is the squared 3D distance between two cells.
func (p Pos) DistSqr(o Pos) int64 {
	dx := int64(p.X - o.X)
	dy := int64(p.Y - o.Y)
	dz := int64(p.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

func (p Pos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Axis is the horizontal direction a frame's plane runs along.
type Axis uint8

const (
	AxisNone Axis = iota
	AxisX
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisZ:
		return "z"
	default:
		return ""
	}
}

func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "z", "Z":
		return AxisZ, nil
	case "":
		return AxisNone, nil
	}
	return AxisNone, fmt.Errorf("unknown axis %q", s)
}

func (a Axis) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Other returns the perpendicular horizontal axis.
func (a Axis) Other() Axis {
	if a == AxisX {
		return AxisZ
	}
	return AxisX
}

// step returns the unit offset along a.
func (a Axis) step() (dx, dz int) {
	if a == AxisZ {
		return 0, 1
	}
	return 1, 0
}

// BlockState identifies the contents of one cell. The zero value doubles as
// the "unloaded" sentinel returned for cells the host has no data for.
type BlockState struct {
	Block string `json:"block"`
	Axis  Axis   `json:"axis,omitempty"`
}

func (s BlockState) IsZero() bool { return s == BlockState{} }

// HasAxis reports whether the state carries a horizontal-axis property.
func (s BlockState) HasAxis() bool { return s.Axis == AxisX || s.Axis == AxisZ }

func (s BlockState) String() string {
	if s.Axis == AxisNone {
		return s.Block
	}
	return s.Block + "[axis=" + s.Axis.String() + "]"
}

// Rect is a located frame: Width cells along the frame axis, Height cells up.
type Rect struct {
	Min    Pos `json:"min"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether p is inside r when r lies on axis.
func (r Rect) Contains(p Pos, axis Axis) bool {
	if p.Y < r.Min.Y || p.Y >= r.Min.Y+r.Height {
		return false
	}
	if axis == AxisZ {
		return p.X == r.Min.X && p.Z >= r.Min.Z && p.Z < r.Min.Z+r.Width
	}
	return p.Z == r.Min.Z && p.X >= r.Min.X && p.X < r.Min.X+r.Width
}

// BlockLookup is a side-effect-free point query into a world.
type BlockLookup interface {
	BlockState(p Pos) BlockState
}

// MarkerSet decides which states count as linking markers.
type MarkerSet interface {
	IsLinkingMarker(s BlockState) bool
}

// MarkerFunc adapts a plain function to MarkerSet.
type MarkerFunc func(s BlockState) bool

func (f MarkerFunc) IsLinkingMarker(s BlockState) bool { return f(s) }

// SpatialIndex returns anchor positions whose kind matches, inside the
// square of half-size radius around center (any Y).
type SpatialIndex interface {
	QueryInRadius(center Pos, radius int, match func(kind string) bool) []Pos
}

type WorldBounds interface {
	IsWithin(p Pos) bool
	Clamp(x, y, z float64) Pos
}

// Dimension is everything the linker needs to know about one world.
type Dimension interface {
	BlockLookup
	WorldBounds
	SpatialIndex
	Kind() string
	CoordinateScale() float64
}

// Entity is the travelling entity at the moment it uses a portal.
type Entity struct {
	ID       string
	World    Dimension
	Pos      Vec3
	Portal   Pos
	Velocity Vec3
	Yaw      float64
	Pitch    float64
	Width    float64
	Height   float64
}

// TeleportTarget is the exit handed back to the host. Axis and Offset
// describe the entrance; FrameAxis is the axis of the destination frame.
type TeleportTarget struct {
	Rect      Rect    `json:"rect"`
	FrameAxis Axis    `json:"frame_axis"`
	Axis      Axis    `json:"axis"`
	Offset    Vec3    `json:"offset"`
	Velocity  Vec3    `json:"velocity"`
	Yaw       float64 `json:"yaw"`
	Pitch     float64 `json:"pitch"`
}
