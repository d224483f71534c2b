package opt

import (
	"lastmile/internal/geo"
	"lastmile/internal/model"
)

// maxTwoOptPasses bounds the improvement loop of twoOpt.
const maxTwoOptPasses = 50

// twoOpt seeds a tour with nearestNeighbor and then applies 2-opt moves to
// the closed hub -> orders -> hub tour until no move shortens it.
func twoOpt(hub model.Hub, orders []model.Order) ([]int, int) {
	seed, evals := nearestNeighbor(hub, orders)
	if len(seed) < 3 {
		return seed, evals
	}

	// tour[0] and tour[n+1] are the hub, encoded as -1.
	tour := make([]int, 0, len(seed)+2)
	tour = append(tour, -1)
	tour = append(tour, seed...)
	tour = append(tour, -1)
	loc := func(i int) geo.Coordinate {
		if i < 0 {
			return hub.Location
		}
		return orders[i].Location
	}
	dist := func(a, b int) float64 {
		evals++
		return geo.DistanceKm(loc(a), loc(b))
	}

	n := len(seed)
	for pass := 0; pass < maxTwoOptPasses; pass++ {
		improved := false
		for i := 1; i < n; i++ {
			for k := i + 1; k <= n; k++ {
				before := dist(tour[i-1], tour[i]) + dist(tour[k], tour[k+1])
				after := dist(tour[i-1], tour[k]) + dist(tour[i], tour[k+1])
				if after+1e-9 < before {
					reverse(tour[i : k+1])
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return tour[1 : n+1], evals
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
