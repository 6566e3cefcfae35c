package linking

import "sort"

type Candidate struct {
	Pos       Pos
	Axis      Axis
	Signature Signature
}

type rankedEntry struct {
	candidate Candidate
	distance  float64
	distSqr   int64
}

// Rank orders candidates by signature distance to source, then squared
// distance to target, then Y, and returns the first. Equal entries keep
// their input order.
func Rank(source Signature, target Pos, candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	entries := make([]rankedEntry, len(candidates))
	for i, c := range candidates {
		entries[i] = rankedEntry{
			candidate: c,
			distance:  RankingDistance(source, c.Signature),
			distSqr:   c.Pos.DistSqr(target),
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if a.distSqr != b.distSqr {
			return a.distSqr < b.distSqr
		}
		return a.candidate.Pos.Y < b.candidate.Pos.Y
	})
	return entries[0].candidate, true
}
