package analysis

import (
	"fmt"

	"labstats/adapters/stats/procedures"
	"labstats/domain/dataset"
	domainstats "labstats/domain/stats"
)

// PostHoc attaches the pairwise follow-up to a multi-group omnibus result
type PostHoc struct {
	Alpha float64
}

// NewPostHoc creates a follow-up analyzer with family-wise error rate alpha
func NewPostHoc(alpha float64) *PostHoc {
	return &PostHoc{Alpha: alpha}
}

// Tukey attaches Tukey HSD to an ANOVA result. samples must follow fit.Levels;
// the error variance and its df come from the fitted model.
func (p *PostHoc) Tukey(res *domainstats.AnovaResult, fit *procedures.AnovaFit, samples [][]float64) error {
	hsd, err := procedures.TukeyHSD(fit.Levels, samples, fit.MSE, fit.DFResidual, p.Alpha)
	if err != nil {
		return fmt.Errorf("tukey hsd: %w", err)
	}
	res.Tukey = hsd
	return nil
}

// Dunn attaches Dunn/Bonferroni to a Kruskal–Wallis result, pairing groups in label order
func (p *PostHoc) Dunn(res *domainstats.KruskalResult, c *dataset.Cleaned) error {
	levels := c.SortedGroups()
	samples := make([][]float64, len(levels))
	for i, g := range levels {
		samples[i] = c.Values(g)
	}
	dunn, err := procedures.Dunn(levels, samples)
	if err != nil {
		return fmt.Errorf("dunn: %w", err)
	}
	res.Dunn = dunn
	return nil
}
