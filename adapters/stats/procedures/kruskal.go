package procedures

import (
	"fmt"

	domainstats "labstats/domain/stats"
)

// KruskalWallis runs the rank-based one-way comparison across samples.
// H is corrected for ties and referred to χ² with k-1 degrees of freedom.
func KruskalWallis(samples [][]float64) (*domainstats.KruskalResult, error) {
	k := len(samples)
	if k < 2 {
		return nil, fmt.Errorf("need at least two groups")
	}
	for i, s := range samples {
		if len(s) == 0 {
			return nil, fmt.Errorf("group %d is empty", i)
		}
	}

	means, ranking, n := meanRanks(samples)
	nf := float64(n)

	var h float64
	for g, s := range samples {
		ni := float64(len(s))
		h += ni * means[g] * means[g]
	}
	h = 12/(nf*(nf+1))*h - 3*(nf+1)

	correction := 1 - ranking.TieSum()/(nf*nf*nf-nf)
	if correction == 0 {
		return nil, fmt.Errorf("all numbers are identical in kruskal")
	}
	h /= correction

	df := k - 1
	return &domainstats.KruskalResult{
		H:  h,
		DF: df,
		P:  ChiSquarePValue(h, float64(df)),
	}, nil
}
