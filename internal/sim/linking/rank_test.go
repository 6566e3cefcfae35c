package linking

import "testing"

func TestScore_SelfMatchIsOne(t *testing.T) {
	for _, s := range []Signature{
		{LowerNear: gold},
		{gold, diamond, gold, diamond},
		{UpperFar: diamond, LowerFar: gold},
	} {
		if got := Score(s, s); got != 1 {
			t.Fatalf("Score(%s,%s)=%v want 1", s, s, got)
		}
	}
}

func TestScore_SlotFraction(t *testing.T) {
	a := Signature{LowerNear: gold}
	if got := Score(a, Signature{}); got != 0.75 {
		t.Fatalf("one-sided absent slot must not match: got %v", got)
	}
	if got := Score(a, Signature{LowerNear: diamond}); got != 0.75 {
		t.Fatalf("different markers: got %v", got)
	}
	if got := Score(Signature{gold, gold, gold, gold}, Signature{diamond, diamond, diamond, diamond}); got != 0 {
		t.Fatalf("disjoint: got %v", got)
	}
}

func TestRankingDistance_Monotonic(t *testing.T) {
	a := Signature{gold, diamond, gold, diamond}
	b := Signature{UpperFar: diamond}         // differs in 3 slots
	c := Signature{gold, diamond, gold, gold} // differs in 1 slot
	if RankingDistance(a, b) < RankingDistance(a, c) {
		t.Fatalf("distance(a,b)=%v < distance(a,c)=%v", RankingDistance(a, b), RankingDistance(a, c))
	}
	if RankingDistance(a, a) != 0 {
		t.Fatalf("self distance=%v", RankingDistance(a, a))
	}
}

func TestRank_SignatureBeatsDistance(t *testing.T) {
	src := Signature{LowerNear: gold, UpperFar: gold}
	target := Pos{X: 0, Y: 64, Z: 0}
	far := Candidate{Pos: Pos{X: 100, Y: 64, Z: 100}, Axis: AxisX, Signature: src}
	near := Candidate{Pos: Pos{X: 1, Y: 64, Z: 0}, Axis: AxisX}

	got, ok := Rank(src, target, []Candidate{near, far})
	if !ok {
		t.Fatalf("expected a candidate")
	}
	if got.Pos != far.Pos {
		t.Fatalf("picked %s, want the matching candidate at %s", got.Pos, far.Pos)
	}
}

func TestRank_TieBreaks(t *testing.T) {
	src := Signature{LowerNear: gold}
	target := Pos{X: 0, Y: 64, Z: 0}

	closer := Candidate{Pos: Pos{X: 2, Y: 64, Z: 0}}
	farther := Candidate{Pos: Pos{X: 3, Y: 64, Z: 0}}
	got, _ := Rank(src, target, []Candidate{farther, closer})
	if got.Pos != closer.Pos {
		t.Fatalf("equal signatures: picked %s want %s", got.Pos, closer.Pos)
	}

	// Both at squared distance 25; the lower one wins.
	high := Candidate{Pos: Pos{X: 0, Y: 67, Z: 4}}
	low := Candidate{Pos: Pos{X: 0, Y: 61, Z: -4}}
	got, _ = Rank(src, target, []Candidate{high, low})
	if got.Pos != low.Pos {
		t.Fatalf("equal distance: picked %s want %s", got.Pos, low.Pos)
	}
}

func TestRank_StableOnFullTie(t *testing.T) {
	src := Signature{LowerNear: gold}
	target := Pos{}
	first := Candidate{Pos: Pos{X: 1}, Axis: AxisX}
	second := Candidate{Pos: Pos{X: 1}, Axis: AxisZ}

	for i := 0; i < 5; i++ {
		got, _ := Rank(src, target, []Candidate{first, second})
		if got != first {
			t.Fatalf("call %d: picked %+v want first candidate", i, got)
		}
	}
}

func TestRank_Empty(t *testing.T) {
	if _, ok := Rank(Signature{LowerNear: gold}, Pos{}, nil); ok {
		t.Fatalf("expected no candidate")
	}
}
