package procedures

import (
	"fmt"
	"math"

	domainstats "labstats/domain/stats"

	"github.com/montanaflynn/stats"
)

// TukeyHSD compares every pair of groups with Tukey's honestly significant
// difference at family-wise error rate alpha. mse and dfResidual come from the
// one-way model fit; labels are expected in factor-level order.
func TukeyHSD(labels []string, samples [][]float64, mse, dfResidual, alpha float64) (*domainstats.TukeyHSD, error) {
	k := len(samples)
	if k != len(labels) {
		return nil, fmt.Errorf("got %d labels for %d groups", len(labels), k)
	}
	if k < 2 {
		return nil, fmt.Errorf("need at least two groups")
	}
	if !(mse > 0) || math.IsInf(mse, 0) {
		return nil, fmt.Errorf("mean squared error must be positive, got %v", mse)
	}
	if dfResidual <= 0 {
		return nil, fmt.Errorf("no residual degrees of freedom")
	}

	means := make([]float64, k)
	for i, s := range samples {
		if len(s) == 0 {
			return nil, fmt.Errorf("group %q is empty", labels[i])
		}
		means[i], _ = stats.Mean(s)
	}

	dist := NewStudentizedRange(k, dfResidual)
	qCrit := dist.Quantile(1 - alpha)

	comparisons := make([]domainstats.TukeyComparison, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			ni, nj := float64(len(samples[i])), float64(len(samples[j]))
			se := math.Sqrt(mse / 2 * (1/ni + 1/nj))
			diff := means[j] - means[i]
			q := math.Abs(diff) / se
			pAdj := dist.Survival(q)
			comparisons = append(comparisons, domainstats.TukeyComparison{
				Group1:   labels[i],
				Group2:   labels[j],
				MeanDiff: diff,
				PAdj:     pAdj,
				Lower:    diff - qCrit*se,
				Upper:    diff + qCrit*se,
				Reject:   q > qCrit,
			})
		}
	}

	return &domainstats.TukeyHSD{
		Alpha:       alpha,
		QCrit:       qCrit,
		DF:          dfResidual,
		Comparisons: comparisons,
	}, nil
}
