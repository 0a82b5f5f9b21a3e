package procedures

import (
	"fmt"
	"math"

	domainstats "labstats/domain/stats"

	"github.com/montanaflynn/stats"
)

// WelchTTest compares two group means without assuming equal variances.
// The statistic is (mean1 - mean2) / sqrt(var1/n1 + var2/n2) with
// Welch–Satterthwaite degrees of freedom.
func WelchTTest(group1, group2 []float64) (*domainstats.WelchResult, error) {
	n1 := float64(len(group1))
	n2 := float64(len(group2))
	if n1 < 2 || n2 < 2 {
		return nil, fmt.Errorf("each group needs at least 2 observations (got %d and %d)", len(group1), len(group2))
	}

	mean1, _ := stats.Mean(group1)
	mean2, _ := stats.Mean(group2)
	var1, _ := stats.SampleVariance(group1)
	var2, _ := stats.SampleVariance(group2)

	se1 := var1 / n1
	se2 := var2 / n2
	se := math.Sqrt(se1 + se2)
	if se == 0 {
		return nil, fmt.Errorf("both groups have zero variance")
	}

	tStat := (mean1 - mean2) / se
	df := (se1 + se2) * (se1 + se2) / (se1*se1/(n1-1) + se2*se2/(n2-1))

	return &domainstats.WelchResult{
		T:  tStat,
		DF: df,
		P:  TTestPValue(tStat, df),
	}, nil
}
