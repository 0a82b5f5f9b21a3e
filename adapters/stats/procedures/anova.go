package procedures

import (
	"fmt"
	"math"

	domainstats "labstats/domain/stats"

	"gonum.org/v1/gonum/mat"
)

// AnovaFit is a fitted one-way linear model with its ANOVA table
type AnovaFit struct {
	Table      domainstats.AnovaTable
	Levels     []string
	MSE        float64
	DFResidual float64
}

// OneWayANOVA fits value ~ factor with treatment coding (first level as
// reference) and reports type-II sums of squares for the factor. The factor
// row of the table is labeled term.
func OneWayANOVA(term string, levels []string, samples [][]float64) (*AnovaFit, error) {
	k := len(samples)
	if k != len(levels) {
		return nil, fmt.Errorf("got %d levels for %d groups", len(levels), k)
	}
	if k < 2 {
		return nil, fmt.Errorf("need at least two groups")
	}

	n := 0
	for i, s := range samples {
		if len(s) == 0 {
			return nil, fmt.Errorf("group %q is empty", levels[i])
		}
		n += len(s)
	}
	dfResidual := n - k
	if dfResidual <= 0 {
		return nil, fmt.Errorf("no residual degrees of freedom (%d observations, %d groups)", n, k)
	}

	y := mat.NewVecDense(n, nil)
	full := mat.NewDense(n, k, nil)
	reduced := mat.NewDense(n, 1, nil)
	row := 0
	for g, s := range samples {
		for _, v := range s {
			y.SetVec(row, v)
			full.Set(row, 0, 1)
			if g > 0 {
				full.Set(row, g, 1)
			}
			reduced.Set(row, 0, 1)
			row++
		}
	}

	rssFull, err := residualSumOfSquares(full, y)
	if err != nil {
		return nil, fmt.Errorf("singular design: %w", err)
	}
	rssReduced, err := residualSumOfSquares(reduced, y)
	if err != nil {
		return nil, fmt.Errorf("singular design: %w", err)
	}
	if rssReduced == 0 || rssFull <= 1e-12*rssReduced {
		return nil, fmt.Errorf("residual variance is zero")
	}

	ssFactor := rssReduced - rssFull
	if ssFactor < 0 {
		ssFactor = 0
	}
	dfFactor := float64(k - 1)
	dfr := float64(dfResidual)
	mse := rssFull / dfr
	f := (ssFactor / dfFactor) / mse

	table := domainstats.AnovaTable{Rows: []domainstats.AnovaRow{
		{Term: term, SumSq: ssFactor, DF: dfFactor, F: f, PValue: FTestPValue(f, dfFactor, dfr)},
		{Term: domainstats.ResidualTerm, SumSq: rssFull, DF: dfr, F: math.NaN(), PValue: math.NaN()},
	}}

	return &AnovaFit{
		Table:      table,
		Levels:     append([]string(nil), levels...),
		MSE:        mse,
		DFResidual: dfr,
	}, nil
}

// residualSumOfSquares fits y = Xβ by least squares and returns ||y - Xβ||²
func residualSumOfSquares(x *mat.Dense, y *mat.VecDense) (float64, error) {
	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return 0, err
	}
	var fitted, resid mat.VecDense
	fitted.MulVec(x, &beta)
	resid.SubVec(y, &fitted)
	return mat.Dot(&resid, &resid), nil
}
