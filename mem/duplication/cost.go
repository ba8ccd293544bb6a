package duplication

import "github.com/shuttlelab/shuttle/mem/banking"

// Weights of the duplicate cost heuristic. The absolute scale is arbitrary.
// Only the ordering of candidates matters to the search that consumes the
// cost.
const (
	bankWeight   = 1.0
	bufferWeight = 0.5
	muxWeight    = 0.25
)

// duplicateCost scores one candidate duplicate by the physical resources it
// occupies: its banks, the extra buffer copies of each bank, and the width
// of every mux slot in front of the ports.
func duplicateCost(
	m banking.Memory,
	depth int,
	readWidths, writeWidths []int,
) float64 {
	banks := float64(m.TotalBanks())

	cost := banks * bankWeight
	cost += float64(depth-1) * banks * bufferWeight

	for _, w := range readWidths {
		cost += float64(w) * muxWeight
	}

	for _, w := range writeWidths {
		cost += float64(w) * muxWeight
	}

	return cost
}
