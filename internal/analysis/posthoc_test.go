package analysis

import (
	"testing"

	"labstats/adapters/stats/procedures"
	"labstats/domain/dataset"
	domainstats "labstats/domain/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostHocTukeyUsesFittedModel(t *testing.T) {
	levels := []string{"A", "B", "C"}
	samples := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	fit, err := procedures.OneWayANOVA("C(Q('g'))", levels, samples)
	require.NoError(t, err)

	res := &domainstats.AnovaResult{Table: fit.Table}
	require.NoError(t, NewPostHoc(domainstats.FWER).Tukey(res, fit, samples))
	require.NotNil(t, res.Tukey)

	assert.Equal(t, fit.DFResidual, res.Tukey.DF)
	require.Len(t, res.Tukey.Comparisons, 3)
	first := res.Tukey.Comparisons[0]
	assert.Equal(t, "A", first.Group1)
	assert.Equal(t, "B", first.Group2)
	assert.InDelta(t, 2.0, first.MeanDiff, 1e-12)

	want, err := procedures.TukeyHSD(levels, samples, fit.MSE, fit.DFResidual, domainstats.FWER)
	require.NoError(t, err)
	assert.Equal(t, want.Comparisons, res.Tukey.Comparisons)
}

func TestPostHocTukeyRejectsMisalignedSamples(t *testing.T) {
	samples := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	fit, err := procedures.OneWayANOVA("C(Q('g'))", []string{"A", "B", "C"}, samples)
	require.NoError(t, err)

	res := &domainstats.AnovaResult{Table: fit.Table}
	err = NewPostHoc(domainstats.FWER).Tukey(res, fit, samples[:2])
	assert.Error(t, err)
	assert.Nil(t, res.Tukey)
}

func TestPostHocDunnPairsInLabelOrder(t *testing.T) {
	obs := []dataset.Observation{
		{Group: "10", Value: 7}, {Group: "10", Value: 8}, {Group: "10", Value: 9},
		{Group: "2", Value: 1}, {Group: "2", Value: 2}, {Group: "2", Value: 3},
		{Group: "9", Value: 4}, {Group: "9", Value: 5}, {Group: "9", Value: 6},
	}
	c := dataset.NewCleaned("g", "v", obs)
	res := &domainstats.KruskalResult{}

	require.NoError(t, NewPostHoc(domainstats.FWER).Dunn(res, c))
	require.NotNil(t, res.Dunn)
	assert.Equal(t, []string{"2", "9", "10"}, res.Dunn.Groups)
}
