package procedures

import (
	"gonum.org/v1/gonum/floats"
)

// Ranking is the pooled mid-rank assignment of a set of observations
type Ranking struct {
	// Ranks holds the mid-rank of each input position (1-based)
	Ranks []float64
	// TieSizes lists the size of every tie block larger than one
	TieSizes []int
}

// MidRanks ranks values ascending, giving tied values the average of their positions
func MidRanks(values []float64) Ranking {
	n := len(values)
	sorted := make([]float64, n)
	copy(sorted, values)
	inds := make([]int, n)
	floats.Argsort(sorted, inds)

	ranks := make([]float64, n)
	var ties []int
	for i := 0; i < n; {
		j := i + 1
		for j < n && sorted[j] == sorted[i] {
			j++
		}
		// positions i..j-1 share ranks i+1..j
		mid := float64(i+1+j) / 2
		for p := i; p < j; p++ {
			ranks[inds[p]] = mid
		}
		if size := j - i; size > 1 {
			ties = append(ties, size)
		}
		i = j
	}
	return Ranking{Ranks: ranks, TieSizes: ties}
}

// TieSum returns Σ(t³ - t) over tie blocks
func (r Ranking) TieSum() float64 {
	var sum float64
	for _, t := range r.TieSizes {
		tf := float64(t)
		sum += tf*tf*tf - tf
	}
	return sum
}

// pooled flattens samples and remembers the group index of every value
func pooled(samples [][]float64) ([]float64, []int) {
	var values []float64
	var owner []int
	for g, s := range samples {
		values = append(values, s...)
		for range s {
			owner = append(owner, g)
		}
	}
	return values, owner
}

// meanRanks ranks the pooled samples and returns each group's mean rank
func meanRanks(samples [][]float64) ([]float64, Ranking, int) {
	values, owner := pooled(samples)
	ranking := MidRanks(values)
	sums := make([]float64, len(samples))
	for i, r := range ranking.Ranks {
		sums[owner[i]] += r
	}
	means := make([]float64, len(samples))
	for g, s := range samples {
		if len(s) > 0 {
			means[g] = sums[g] / float64(len(s))
		}
	}
	return means, ranking, len(values)
}
