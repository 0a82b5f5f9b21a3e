package procedures

import (
	"fmt"
	"math"

	domainstats "labstats/domain/stats"
)

// Dunn runs Dunn's pairwise rank test on pooled mid-ranks and adjusts every
// two-sided p-value with Bonferroni (multiplied by the number of pairs, capped at 1).
func Dunn(labels []string, samples [][]float64) (*domainstats.DunnMatrix, error) {
	k := len(samples)
	if k != len(labels) {
		return nil, fmt.Errorf("got %d labels for %d groups", len(labels), k)
	}
	if k < 2 {
		return nil, fmt.Errorf("need at least two groups")
	}

	means, ranking, n := meanRanks(samples)
	nf := float64(n)

	tieTerm := 0.0
	if n > 1 {
		tieTerm = ranking.TieSum() / (12 * (nf - 1))
	}
	base := nf*(nf+1)/12 - tieTerm

	pairs := float64(k * (k - 1) / 2)
	p := make([][]float64, k)
	for i := range p {
		p[i] = make([]float64, k)
		p[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			ni, nj := float64(len(samples[i])), float64(len(samples[j]))
			if ni == 0 || nj == 0 {
				return nil, fmt.Errorf("group %q or %q is empty", labels[i], labels[j])
			}
			se := math.Sqrt(base * (1/ni + 1/nj))
			if se == 0 || math.IsNaN(se) {
				return nil, fmt.Errorf("rank variance is zero")
			}
			z := math.Abs(means[i]-means[j]) / se
			adj := math.Min(1, NormalTwoSidedPValue(z)*pairs)
			p[i][j] = adj
			p[j][i] = adj
		}
	}

	return &domainstats.DunnMatrix{
		Groups: append([]string(nil), labels...),
		P:      p,
	}, nil
}
