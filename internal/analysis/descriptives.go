package analysis

import (
	"math"

	"labstats/domain/dataset"
	domainstats "labstats/domain/stats"

	"github.com/montanaflynn/stats"
)

// Describe summarizes every group of the cleaned table, ordered by label.
// The interval is the normal approximation mean ± NormalCI95·sem.
func Describe(c *dataset.Cleaned) []domainstats.Descriptive {
	samples := c.Samples()
	out := make([]domainstats.Descriptive, 0, len(c.Groups))
	for _, g := range c.SortedGroups() {
		out = append(out, describeGroup(g, samples[g]))
	}
	return out
}

func describeGroup(label string, values []float64) domainstats.Descriptive {
	n := len(values)
	mean, err := stats.Mean(values)
	if err != nil {
		mean = math.NaN()
	}
	// n-1 denominator; a single observation yields NaN
	std := math.NaN()
	if n > 1 {
		std, _ = stats.StandardDeviationSample(values)
	}
	sem := std / math.Sqrt(math.Max(float64(n), 1))
	half := domainstats.NormalCI95 * sem

	return domainstats.Descriptive{
		Group:  label,
		Mean:   domainstats.Float(mean),
		StdDev: domainstats.Float(std),
		N:      n,
		SEM:    domainstats.Float(sem),
		CILow:  domainstats.Float(mean - half),
		CIHigh: domainstats.Float(mean + half),
	}
}
