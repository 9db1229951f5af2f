package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_SampleVarianceAndNormalization(t *testing.T) {
	features := []string{"a", "b"}
	matrix := [][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}}

	g := Compute(features, matrix)
	require.Len(t, g.Variances, 2)

	// sample variance of 1..4 is 5/3
	assert.InDelta(t, 5.0/3.0, g.Variances[0], 1e-12)
	assert.Equal(t, 0.0, g.Variances[1], "constant feature has exactly zero variance")

	a := g.Summaries[0]
	assert.InDelta(t, 2.5, a.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), a.Std, 1e-12)
	assert.Equal(t, 1.0, a.Min)
	assert.Equal(t, 4.0, a.Max)
	assert.InDelta(t, 0.5, a.NormMean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0)/3, a.NormStd, 1e-12)
	assert.True(t, a.IsNumeric)
	assert.True(t, a.IsGlobal)

	b := g.Summaries[1]
	assert.Equal(t, 5.0, b.Mean)
	assert.Zero(t, b.NormMean)
	assert.Zero(t, b.NormStd)
}

func TestCompute_VariancesNonNegative(t *testing.T) {
	matrix := [][]float64{{0.1, -3}, {0.1, 7}, {0.1, 2.5}}
	g := Compute([]string{"c", "d"}, matrix)
	for j, v := range g.Variances {
		assert.GreaterOrEqual(t, v, 0.0, "feature %d", j)
	}
	assert.Equal(t, 0.0, g.Variances[0])
}

func TestCompute_SingleRow(t *testing.T) {
	g := Compute([]string{"x"}, [][]float64{{3}})
	assert.Equal(t, 0.0, g.Variances[0])
	assert.Equal(t, 3.0, g.Summaries[0].Mean)
}

func TestMapKeysByFeature(t *testing.T) {
	g := Compute([]string{"x", "y"}, [][]float64{{1, 2}, {3, 4}})
	m := g.Map()
	require.Contains(t, m, "x")
	require.Contains(t, m, "y")
	assert.Equal(t, 2.0, m["x"].Mean)
}

func TestSelection(t *testing.T) {
	features := []string{"x", "k"}
	matrix := [][]float64{{0, 1}, {10, 1}, {4, 1}, {6, 1}}
	g := Compute(features, matrix)

	sel := Selection(g, matrix, []int{2, 3})
	require.Len(t, sel, 2)

	x := sel["x"]
	assert.InDelta(t, 5, x.Mean, 1e-12)
	assert.InDelta(t, 1, x.Std, 1e-12, "population std over {4,6}")
	assert.InDelta(t, 5, x.GlobalMean, 1e-12)
	assert.InDelta(t, 0.5, x.NormMean, 1e-12)
	assert.InDelta(t, 0, x.MeanDelta, 1e-12)
	assert.False(t, x.IsGlobal)

	// constant feature: range falls back to 1
	k := sel["k"]
	assert.Equal(t, 0.0, k.NormMean)
	assert.Equal(t, 0.0, k.Std)

	assert.Empty(t, Selection(g, matrix, nil))
}
