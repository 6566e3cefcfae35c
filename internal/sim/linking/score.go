package linking

// Score is the fraction of slots on which a and b agree. Two absent slots
// agree; a slot absent on one side only does not.
func Score(a, b Signature) float64 {
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// RankingDistance is 1 - Score; lower is a better match.
func RankingDistance(a, b Signature) float64 {
	return 1 - Score(a, b)
}
