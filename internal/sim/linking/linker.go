package linking

import (
	"log"
	"math"
)

type Config struct {
	// LinkingWorldKind is the world kind that makes a trip eligible.
	LinkingWorldKind string
	// AnchorKind is the poi kind of portal tiles in the spatial index.
	AnchorKind string

	Span                    int
	SearchRadius            int
	SearchRadiusIntoLinking int
}

func DefaultConfig() Config {
	return Config{
		LinkingWorldKind:        "NETHER",
		AnchorKind:              "NETHER_PORTAL",
		Span:                    DefaultSpan,
		SearchRadius:            128,
		SearchRadiusIntoLinking: 16,
	}
}

// BaselinePolicy picks a destination frame when signature linking does not apply.
type BaselinePolicy interface {
	Find(dest Dimension, target Pos, toLinkingWorld bool) (Rect, Axis, bool)
}

type Mode string

const (
	ModeBaseline       Mode = "baseline"
	ModeLinked         Mode = "linked"
	ModeLinkedFallback Mode = "linked_fallback"
)

// Decision describes how one portal trip was resolved.
type Decision struct {
	Mode       Mode
	Signature  Signature
	Target     Pos
	Candidates int
	Found      bool
	Result     TeleportTarget
}

type Linker struct {
	cfg      Config
	markers  MarkerSet
	baseline BaselinePolicy
	logger   *log.Logger
}

// New returns a linker. A nil baseline uses NearestPolicy with the same config.
func New(cfg Config, markers MarkerSet, baseline BaselinePolicy, logger *log.Logger) *Linker {
	def := DefaultConfig()
	if cfg.Span <= 0 {
		cfg.Span = def.Span
	}
	if cfg.SearchRadius <= 0 {
		cfg.SearchRadius = def.SearchRadius
	}
	if cfg.SearchRadiusIntoLinking <= 0 {
		cfg.SearchRadiusIntoLinking = def.SearchRadiusIntoLinking
	}
	if cfg.AnchorKind == "" {
		cfg.AnchorKind = def.AnchorKind
	}
	if cfg.LinkingWorldKind == "" {
		cfg.LinkingWorldKind = def.LinkingWorldKind
	}
	if baseline == nil {
		baseline = NearestPolicy{
			AnchorKind:              cfg.AnchorKind,
			Span:                    cfg.Span,
			SearchRadius:            cfg.SearchRadius,
			SearchRadiusIntoLinking: cfg.SearchRadiusIntoLinking,
		}
	}
	return &Linker{cfg: cfg, markers: markers, baseline: baseline, logger: logger}
}

func (l *Linker) Config() Config { return l.cfg }

// ShouldHandle reports whether a trip between the two worlds is routed here.
func (l *Linker) ShouldHandle(from, to Dimension) bool {
	if from == nil || to == nil {
		return false
	}
	return from.Kind() == l.cfg.LinkingWorldKind || to.Kind() == l.cfg.LinkingWorldKind
}

// Decide resolves the exit for e travelling into dest.
func (l *Linker) Decide(e Entity, dest Dimension) (TeleportTarget, bool) {
	d := l.Resolve(e, dest)
	return d.Result, d.Found
}

// Resolve is Decide with the full decision trace.
func (l *Linker) Resolve(e Entity, dest Dimension) Decision {
	toLinking := dest.Kind() == l.cfg.LinkingWorldKind
	target := Project(e, dest)

	d := Decision{Mode: ModeBaseline, Target: target}
	if e.World != nil {
		d.Signature = SignatureAt(e.World, e.Portal, l.markers, l.cfg.Span)
	}

	var (
		rect Rect
		axis Axis
		ok   bool
	)
	if !d.Signature.Empty() {
		d.Mode = ModeLinked
		rect, axis, d.Candidates, ok = l.findLinked(dest, target, toLinking, d.Signature)
		if !ok {
			d.Mode = ModeLinkedFallback
			if l.logger != nil {
				l.logger.Printf("linking: %s from %s: no candidates near %s, using baseline", e.ID, d.Signature, target)
			}
		}
	}
	if !ok {
		rect, axis, ok = l.baseline.Find(dest, target, toLinking)
	}
	if !ok {
		return d
	}
	d.Found = true
	d.Result = l.exit(e, rect)
	d.Result.FrameAxis = axis
	return d
}

// ResolveBaseline resolves the trip with the baseline policy only.
func (l *Linker) ResolveBaseline(e Entity, dest Dimension) Decision {
	d := Decision{Mode: ModeBaseline, Target: Project(e, dest)}
	rect, axis, ok := l.baseline.Find(dest, d.Target, dest.Kind() == l.cfg.LinkingWorldKind)
	if !ok {
		return d
	}
	d.Found = true
	d.Result = l.exit(e, rect)
	d.Result.FrameAxis = axis
	return d
}

// Project maps the entity position into dest by the ratio of the two
// coordinate scales, clamped to dest's border.
func Project(e Entity, dest Dimension) Pos {
	scale := 1.0
	if e.World != nil && dest.CoordinateScale() > 0 {
		scale = e.World.CoordinateScale() / dest.CoordinateScale()
	}
	return dest.Clamp(e.Pos.X*scale, e.Pos.Y, e.Pos.Z*scale)
}

func (l *Linker) radius(toLinking bool) int {
	if toLinking {
		return l.cfg.SearchRadiusIntoLinking
	}
	return l.cfg.SearchRadius
}

func (l *Linker) findLinked(dest Dimension, target Pos, toLinking bool, source Signature) (Rect, Axis, int, bool) {
	anchors := discover(dest, target, l.radius(toLinking), l.cfg.AnchorKind)
	if len(anchors) == 0 {
		return Rect{}, AxisNone, 0, false
	}
	frames := newFrameCache(dest, l.cfg.Span)
	candidates := make([]Candidate, 0, len(anchors))
	for _, a := range anchors {
		r := frames.locate(a.pos, a.axis)
		candidates = append(candidates, Candidate{
			Pos:       a.pos,
			Axis:      a.axis,
			Signature: frames.signature(r, a.axis, l.markers),
		})
	}
	best, _ := Rank(source, target, candidates)
	return frames.locate(best.Pos, best.Axis), best.Axis, len(candidates), true
}

// exit builds the target from the entity's position inside its entrance frame.
func (l *Linker) exit(e Entity, rect Rect) TeleportTarget {
	t := TeleportTarget{
		Rect:     rect,
		Axis:     AxisX,
		Offset:   Vec3{X: 0.5},
		Velocity: e.Velocity,
		Yaw:      e.Yaw,
		Pitch:    e.Pitch,
	}
	if e.World == nil {
		return t
	}
	st := e.World.BlockState(e.Portal)
	if !st.HasAxis() {
		return t
	}
	t.Axis = st.Axis
	t.Offset = RelativePosition(Locate(e.World, e.Portal, st.Axis, l.cfg.Span), st.Axis, e.Pos, e.Width, e.Height)
	return t
}

// RelativePosition expresses pos inside r as fractions across the usable
// width and height, plus the signed offset from the plane on the other axis.
func RelativePosition(r Rect, axis Axis, pos Vec3, width, height float64) Vec3 {
	var out Vec3
	along, across := component(pos, axis), component(pos, axis.Other())
	minAlong := float64(coord(r.Min, axis))
	minAcross := float64(coord(r.Min, axis.Other()))

	if w := float64(r.Width) - width; w > 0 {
		out.X = clamp01((along - (minAlong + width/2)) / w)
	} else {
		out.X = 0.5
	}
	if h := float64(r.Height) - height; h > 0 {
		out.Y = clamp01((pos.Y - float64(r.Min.Y)) / h)
	}
	out.Z = across - (minAcross + 0.5)
	return out
}

func component(v Vec3, a Axis) float64 {
	if a == AxisZ {
		return v.Z
	}
	return v.X
}

func coord(p Pos, a Axis) int {
	if a == AxisZ {
		return p.Z
	}
	return p.X
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
