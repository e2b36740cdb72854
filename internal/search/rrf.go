package search

// rrfK damps the influence of exact rank position for lower-ranked items.
// The value 60 is the standard smoothing constant for reciprocal rank fusion.
const rrfK = 60

// fuseRRF combines ranked id lists with reciprocal rank fusion: each
// candidate's fused score is the sum of 1/(k+rank) over every list it appears
// in, with 1-based ranks. Candidates appearing in only one list receive a
// single term. This blends rankers whose score scales are not comparable
// without any normalization.
func fuseRRF(lists ...[]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for i, id := range list {
			scores[id] += 1.0 / float64(rrfK+i+1)
		}
	}
	return scores
}
