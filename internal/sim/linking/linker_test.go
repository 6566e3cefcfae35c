package linking

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func overworldEntity(w *fakeWorld, portal Pos) Entity {
	return Entity{
		ID:       "A1",
		World:    w,
		Pos:      Vec3{X: float64(portal.X) + 0.5, Y: float64(portal.Y), Z: float64(portal.Z) + 0.5},
		Portal:   portal,
		Velocity: Vec3{X: 0.1, Z: -0.2},
		Yaw:      90,
		Pitch:    10,
		Width:    0.6,
		Height:   1.8,
	}
}

func TestShouldHandle(t *testing.T) {
	l := New(DefaultConfig(), testMarkers, nil, nil)
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	end := newFakeWorld("END", 1)

	if !l.ShouldHandle(over, nether) || !l.ShouldHandle(nether, over) {
		t.Fatalf("trips touching the nether must be handled")
	}
	if l.ShouldHandle(over, end) {
		t.Fatalf("overworld->end must not be handled")
	}
	if l.ShouldHandle(nil, nether) {
		t.Fatalf("nil source world must not be handled")
	}
}

func TestResolve_PrefersMatchingFrame(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	sig := Signature{LowerNear: gold, UpperFar: gold}
	over.portal(Pos{X: 80, Y: 64, Z: 40}, AxisX, 2, 3, sig)

	nether.portal(Pos{X: 12, Y: 64, Z: 5}, AxisX, 2, 3, Signature{})
	want := nether.portal(Pos{X: 10, Y: 64, Z: -8}, AxisZ, 2, 3, sig)

	var buf bytes.Buffer
	l := New(DefaultConfig(), testMarkers, nil, log.New(&buf, "", 0))
	d := l.Resolve(overworldEntity(over, Pos{X: 80, Y: 64, Z: 40}), nether)

	if !d.Found || d.Mode != ModeLinked {
		t.Fatalf("found=%v mode=%s", d.Found, d.Mode)
	}
	if d.Target != (Pos{X: 10, Y: 64, Z: 5}) {
		t.Fatalf("projected target %s", d.Target)
	}
	if d.Candidates != 12 {
		t.Fatalf("candidates=%d want 12 portal tiles", d.Candidates)
	}
	if diff := cmp.Diff(want, d.Result.Rect); diff != "" {
		t.Fatalf("rect (-want +got):\n%s", diff)
	}
	if d.Result.FrameAxis != AxisZ || d.Result.Axis != AxisX {
		t.Fatalf("axes: frame=%s entrance=%s", d.Result.FrameAxis, d.Result.Axis)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log output: %s", buf.String())
	}

	// Without the signature the nearest frame wins.
	rect, axis, ok := NearestPolicy{AnchorKind: "NETHER_PORTAL", SearchRadiusIntoLinking: 16}.Find(nether, d.Target, true)
	if !ok || axis != AxisX || rect.Min != (Pos{X: 12, Y: 64, Z: 5}) {
		t.Fatalf("nearest policy: ok=%v axis=%s rect=%+v", ok, axis, rect)
	}
}

func TestResolve_EmptySignatureSkipsIndex(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	over.portal(Pos{X: 80, Y: 64, Z: 40}, AxisX, 2, 3, Signature{})
	nether.portal(Pos{X: 12, Y: 64, Z: 5}, AxisX, 2, 3, Signature{})
	nether.portal(Pos{X: 10, Y: 64, Z: -8}, AxisZ, 2, 3, Signature{})

	stub := &stubBaseline{rect: Rect{Min: Pos{X: 1, Y: 2, Z: 3}, Width: 2, Height: 3}, axis: AxisZ, ok: true}
	l := New(DefaultConfig(), testMarkers, stub, nil)
	d := l.Resolve(overworldEntity(over, Pos{X: 80, Y: 64, Z: 40}), nether)

	if nether.queries != 0 {
		t.Fatalf("spatial index queried %d times for an empty signature", nether.queries)
	}
	if stub.calls != 1 || d.Mode != ModeBaseline {
		t.Fatalf("baseline calls=%d mode=%s", stub.calls, d.Mode)
	}
	if !d.Found || d.Result.Rect != stub.rect || d.Result.FrameAxis != AxisZ {
		t.Fatalf("result %+v does not come from the baseline", d.Result)
	}
	if stub.targets[0] != (Pos{X: 10, Y: 64, Z: 5}) {
		t.Fatalf("baseline target %s", stub.targets[0])
	}
}

func TestResolve_NoCandidatesFallsBack(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	over.portal(Pos{X: 80, Y: 64, Z: 40}, AxisX, 2, 3, Signature{LowerNear: diamond})

	var buf bytes.Buffer
	stub := &stubBaseline{rect: Rect{Min: Pos{X: 4, Y: 64, Z: 4}, Width: 2, Height: 3}, axis: AxisX, ok: true}
	l := New(DefaultConfig(), testMarkers, stub, log.New(&buf, "", 0))
	d := l.Resolve(overworldEntity(over, Pos{X: 80, Y: 64, Z: 40}), nether)

	if nether.queries != 1 {
		t.Fatalf("queries=%d want 1", nether.queries)
	}
	if d.Mode != ModeLinkedFallback || stub.calls != 1 || !d.Found {
		t.Fatalf("mode=%s calls=%d found=%v", d.Mode, stub.calls, d.Found)
	}
	if !strings.Contains(buf.String(), "no candidates") {
		t.Fatalf("expected fallback log line, got %q", buf.String())
	}
}

func TestResolve_CandidatesOutOfBoundsOrWithoutAxisAreIgnored(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	nether.bound = 20
	over.portal(Pos{X: 80, Y: 64, Z: 40}, AxisX, 2, 3, Signature{LowerNear: diamond})
	nether.portal(Pos{X: 21, Y: 64, Z: 5}, AxisX, 2, 3, Signature{LowerNear: diamond})
	// A stale anchor whose block has been replaced.
	nether.anchors = append(nether.anchors, Pos{X: 9, Y: 64, Z: 5})
	nether.blocks[Pos{X: 9, Y: 64, Z: 5}] = obsidian

	stub := &stubBaseline{}
	l := New(DefaultConfig(), testMarkers, stub, nil)
	target, ok := l.Decide(overworldEntity(over, Pos{X: 80, Y: 64, Z: 40}), nether)
	if ok {
		t.Fatalf("expected no target, got %+v", target)
	}
	if stub.calls != 1 {
		t.Fatalf("baseline calls=%d want 1", stub.calls)
	}
}

func TestDecide_BaselineEmptyIsNoTarget(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	over.portal(Pos{X: 0, Y: 64, Z: 0}, AxisX, 2, 3, Signature{})

	l := New(DefaultConfig(), testMarkers, nil, nil)
	if target, ok := l.Decide(overworldEntity(over, Pos{X: 0, Y: 64, Z: 0}), nether); ok {
		t.Fatalf("expected no target, got %+v", target)
	}
}

func TestDecide_FromNetherUsesWideRadius(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	sig := Signature{UpperNear: gold}
	nether.portal(Pos{X: 10, Y: 64, Z: 10}, AxisX, 2, 3, sig)
	// Roughly 100 cells from the projected target: beyond 16, inside 128.
	want := over.portal(Pos{X: 180, Y: 70, Z: 80}, AxisX, 3, 3, sig)

	l := New(DefaultConfig(), testMarkers, nil, nil)
	e := Entity{ID: "A2", World: nether, Pos: Vec3{X: 10.5, Y: 64, Z: 10.5}, Portal: Pos{X: 10, Y: 64, Z: 10}, Width: 0.6, Height: 1.8}
	target, ok := l.Decide(e, over)
	if !ok {
		t.Fatalf("expected a target")
	}
	if diff := cmp.Diff(want, target.Rect); diff != "" {
		t.Fatalf("rect (-want +got):\n%s", diff)
	}
}

func TestDecide_ExitOffsetAndPassThrough(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	over.portal(Pos{X: 10, Y: 64, Z: 5}, AxisX, 2, 3, Signature{LowerNear: gold})
	nether.portal(Pos{X: 1, Y: 64, Z: 0}, AxisX, 2, 3, Signature{LowerNear: gold})

	e := overworldEntity(over, Pos{X: 10, Y: 64, Z: 5})
	e.Pos = Vec3{X: 11.0, Y: 64.6, Z: 5.7}
	l := New(DefaultConfig(), testMarkers, nil, nil)
	target, ok := l.Decide(e, nether)
	if !ok {
		t.Fatalf("expected a target")
	}
	want := TeleportTarget{
		Rect:      Rect{Min: Pos{X: 1, Y: 64, Z: 0}, Width: 2, Height: 3},
		FrameAxis: AxisX,
		Axis:      AxisX,
		Offset:    Vec3{X: 0.5, Y: 0.5, Z: 0.2},
		Velocity:  e.Velocity,
		Yaw:       e.Yaw,
		Pitch:     e.Pitch,
	}
	if diff := cmp.Diff(want, target, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("target (-want +got):\n%s", diff)
	}
}

func TestDecide_EntranceWithoutAxisUsesBottomCenter(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	nether.portal(Pos{X: 1, Y: 64, Z: 0}, AxisX, 2, 3, Signature{})

	e := overworldEntity(over, Pos{X: 8, Y: 64, Z: 0})
	l := New(DefaultConfig(), testMarkers, nil, nil)
	target, ok := l.Decide(e, nether)
	if !ok {
		t.Fatalf("expected the baseline target")
	}
	if target.Axis != AxisX || target.Offset != (Vec3{X: 0.5}) {
		t.Fatalf("axis=%s offset=%+v", target.Axis, target.Offset)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	sig := Signature{LowerNear: gold, LowerFar: diamond}
	over.portal(Pos{X: 80, Y: 64, Z: 40}, AxisX, 2, 3, sig)
	nether.portal(Pos{X: 4, Y: 64, Z: 5}, AxisX, 2, 3, Signature{LowerNear: gold})
	nether.portal(Pos{X: 16, Y: 64, Z: 5}, AxisX, 2, 3, Signature{LowerNear: gold})

	l := New(DefaultConfig(), testMarkers, nil, nil)
	e := overworldEntity(over, Pos{X: 80, Y: 64, Z: 40})
	first := l.Resolve(e, nether)
	for i := 0; i < 3; i++ {
		if diff := cmp.Diff(first, l.Resolve(e, nether)); diff != "" {
			t.Fatalf("resolve %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestResolveBaseline_IgnoresSignature(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	end := newFakeWorld("END", 1)
	over.portal(Pos{X: 3, Y: 64, Z: 3}, AxisX, 2, 3, Signature{LowerNear: gold})

	stub := &stubBaseline{rect: Rect{Min: Pos{X: 2, Y: 64, Z: 2}, Width: 2, Height: 3}, axis: AxisX, ok: true}
	l := New(DefaultConfig(), testMarkers, stub, nil)
	d := l.ResolveBaseline(overworldEntity(over, Pos{X: 3, Y: 64, Z: 3}), end)
	if d.Mode != ModeBaseline || !d.Signature.Empty() || end.queries != 0 {
		t.Fatalf("mode=%s signature=%s queries=%d", d.Mode, d.Signature, end.queries)
	}
	if !d.Found || d.Result.Rect != stub.rect || d.Target != (Pos{X: 3, Y: 64, Z: 3}) {
		t.Fatalf("decision %+v", d)
	}
}

func TestProject_ScalesAndClamps(t *testing.T) {
	over := newFakeWorld("OVERWORLD", 1)
	nether := newFakeWorld("NETHER", 8)
	nether.bound = 20
	e := Entity{World: over, Pos: Vec3{X: -17.5, Y: 70.2, Z: 400}}
	if got := Project(e, nether); got != (Pos{X: -3, Y: 70, Z: 20}) {
		t.Fatalf("projected %s", got)
	}
	e = Entity{World: nether, Pos: Vec3{X: 1.25, Y: 64, Z: -2}}
	if got := Project(e, over); got != (Pos{X: 10, Y: 64, Z: -16}) {
		t.Fatalf("projected %s", got)
	}
}
