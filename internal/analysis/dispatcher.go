package analysis

import (
	"fmt"

	"labstats/adapters/stats/procedures"
	"labstats/domain/dataset"
	domainstats "labstats/domain/stats"
	"labstats/internal/analysis/formula"
	apperrors "labstats/internal/errors"
)

// Failure messages reported to clients
const (
	msgNoUpload      = "No CSV uploaded."
	msgMissingParams = "Missing group/value/test parameters."
	msgTTestGroups   = "t-test requires exactly 2 groups."
	msgAnovaGroups   = "One-way ANOVA requires ≥3 groups."
	msgKruskalGroups = "Kruskal–Wallis requires ≥3 groups."
	msgUnknownTest   = "Unknown test. Use: ttest | anova | kruskal."
)

// Dispatcher checks that a test applies to the observed groups and runs it
type Dispatcher struct {
	posthoc *PostHoc
}

// NewDispatcher creates a dispatcher that attaches follow-ups with posthoc
func NewDispatcher(posthoc *PostHoc) *Dispatcher {
	if posthoc == nil {
		posthoc = NewPostHoc(domainstats.FWER)
	}
	return &Dispatcher{posthoc: posthoc}
}

// Dispatch runs the requested test. Failures inside the numeric procedures,
// panics included, come back as AnalysisException.
func (d *Dispatcher) Dispatch(kind domainstats.TestKind, c *dataset.Cleaned) (result domainstats.TestResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = apperrors.AnalysisException(fmt.Errorf("%v", r))
		}
	}()

	groups := append([]string{}, c.Groups...)

	switch kind {
	case domainstats.TestTwoSample:
		if len(groups) != 2 {
			return nil, apperrors.Applicability(msgTTestGroups, groups)
		}
		res, err := procedures.WelchTTest(c.Values(groups[0]), c.Values(groups[1]))
		if err != nil {
			return nil, apperrors.AnalysisException(err)
		}
		return res, nil

	case domainstats.TestOmnibusParametric:
		if len(groups) < 3 {
			return nil, apperrors.Applicability(msgAnovaGroups, groups)
		}
		res, fit, samples, err := d.anova(c)
		if err != nil {
			return nil, apperrors.AnalysisException(err)
		}
		if err := d.posthoc.Tukey(res, fit, samples); err != nil {
			return nil, apperrors.AnalysisException(err)
		}
		return res, nil

	case domainstats.TestOmnibusNonparametric:
		if len(groups) < 3 {
			return nil, apperrors.Applicability(msgKruskalGroups, groups)
		}
		samples := make([][]float64, len(groups))
		for i, g := range groups {
			samples[i] = c.Values(g)
		}
		res, err := procedures.KruskalWallis(samples)
		if err != nil {
			return nil, apperrors.AnalysisException(err)
		}
		if err := d.posthoc.Dunn(res, c); err != nil {
			return nil, apperrors.AnalysisException(err)
		}
		return res, nil

	default:
		return nil, apperrors.UnknownTest(msgUnknownTest)
	}
}

// anova fits the one-way model over the label-sorted levels and returns the
// fit with the samples in the same order
func (d *Dispatcher) anova(c *dataset.Cleaned) (*domainstats.AnovaResult, *procedures.AnovaFit, [][]float64, error) {
	model := formula.NewOneWay(c.ValueColumn, c.GroupColumn)
	levels := c.SortedGroups()
	samples := make([][]float64, len(levels))
	for i, g := range levels {
		samples[i] = c.Values(g)
	}

	fit, err := procedures.OneWayANOVA(model.Term(), levels, samples)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", model, err)
	}
	return &domainstats.AnovaResult{
		Table:   fit.Table,
		Formula: model.String(),
	}, fit, samples, nil
}
