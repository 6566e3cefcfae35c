package linking

import "strings"

// Corner slots, ordered by geometric role.
const (
	LowerNear = iota
	LowerFar
	UpperNear
	UpperFar
)

// Signature holds the markers read at the four posts diagonally outside a
// frame's corners. A zero BlockState is an absent slot.
type Signature [4]BlockState

// Empty reports whether no slot carries a marker.
func (s Signature) Empty() bool {
	for _, m := range s {
		if !m.IsZero() {
			return false
		}
	}
	return true
}

func (s Signature) Strings() []string {
	out := make([]string, len(s))
	for i, m := range s {
		out[i] = m.String()
	}
	return out
}

func (s Signature) String() string {
	parts := s.Strings()
	for i, p := range parts {
		if p == "" {
			parts[i] = "-"
		}
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// CornerPosts returns the four post positions for r on axis, in slot order.
func CornerPosts(r Rect, axis Axis) [4]Pos {
	w, h := r.Width, r.Height
	if axis == AxisZ {
		return [4]Pos{
			r.Min.Add(0, -1, -1),
			r.Min.Add(0, -1, w),
			r.Min.Add(0, h, -1),
			r.Min.Add(0, h, w),
		}
	}
	return [4]Pos{
		r.Min.Add(-1, -1, 0),
		r.Min.Add(w, -1, 0),
		r.Min.Add(-1, h, 0),
		r.Min.Add(w, h, 0),
	}
}

// Extract reads the corner posts of r. Anything that is not a linking marker,
// unloaded cells included, leaves its slot absent.
func Extract(world BlockLookup, r Rect, axis Axis, markers MarkerSet) Signature {
	var sig Signature
	for i, p := range CornerPosts(r, axis) {
		st := world.BlockState(p)
		if st.IsZero() || markers == nil || !markers.IsLinkingMarker(st) {
			continue
		}
		sig[i] = st
	}
	return sig
}

// SignatureAt locates the frame containing pos and extracts its signature.
// A cell without a horizontal axis has no frame and yields an empty signature.
func SignatureAt(world BlockLookup, pos Pos, markers MarkerSet, span int) Signature {
	st := world.BlockState(pos)
	if !st.HasAxis() {
		return Signature{}
	}
	return Extract(world, Locate(world, pos, st.Axis, span), st.Axis, markers)
}
