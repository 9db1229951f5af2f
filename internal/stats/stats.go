// Package stats computes whole-dataset and selection statistics per numeric feature.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds global statistics for one feature. Std is the sample
// standard deviation; NormMean and NormStd are min-max normalized and 0 when
// the feature is constant.
type Summary struct {
	Mean      float64 `json:"mean" yaml:"mean"`
	Std       float64 `json:"std" yaml:"std"`
	Min       float64 `json:"min" yaml:"min"`
	Max       float64 `json:"max" yaml:"max"`
	NormMean  float64 `json:"normMean" yaml:"norm_mean"`
	NormStd   float64 `json:"normStd" yaml:"norm_std"`
	IsNumeric bool    `json:"isNumeric" yaml:"-"`
	IsGlobal  bool    `json:"isGlobal" yaml:"-"`
}

// Global is computed once per dataset and shared read-only.
type Global struct {
	Features  []string
	Summaries []Summary
	// Variances is the per-feature sample variance (Bessel's correction).
	Variances []float64
}

// Compute summarizes every column of matrix. Columns are aligned with features.
func Compute(features []string, matrix [][]float64) *Global {
	g := &Global{
		Features:  features,
		Summaries: make([]Summary, len(features)),
		Variances: make([]float64, len(features)),
	}
	col := make([]float64, len(matrix))
	for j := range features {
		for i, row := range matrix {
			col[i] = row[j]
		}
		s, variance := summarize(col)
		g.Summaries[j] = s
		g.Variances[j] = variance
	}
	return g
}

func summarize(col []float64) (Summary, float64) {
	s := Summary{IsNumeric: true, IsGlobal: true}
	if len(col) == 0 {
		return s, 0
	}
	s.Min, s.Max = floats.Min(col), floats.Max(col)
	var variance float64
	switch {
	case s.Min == s.Max:
		// constant columns have exactly zero spread
		s.Mean = s.Min
	case len(col) < 2:
		s.Mean = col[0]
	default:
		s.Mean, variance = stat.MeanVariance(col, nil)
		if variance < 0 {
			variance = 0
		}
	}
	s.Std = math.Sqrt(variance)
	if span := s.Max - s.Min; span > 0 {
		s.NormMean = (s.Mean - s.Min) / span
		s.NormStd = s.Std / span
	}
	return s, variance
}

// Map keys the summaries by feature name.
func (g *Global) Map() map[string]Summary {
	out := make(map[string]Summary, len(g.Features))
	for j, name := range g.Features {
		out[name] = g.Summaries[j]
	}
	return out
}

// Local holds statistics of one feature over a selection of rows, relative
// to the global statistics.
type Local struct {
	Mean       float64 `json:"mean" yaml:"mean"`
	Std        float64 `json:"std" yaml:"std"`
	GlobalMean float64 `json:"globalMean" yaml:"global_mean"`
	NormMean   float64 `json:"normMean" yaml:"norm_mean"`
	MeanDelta  float64 `json:"meanDelta" yaml:"mean_delta"`
	IsGlobal   bool    `json:"isGlobal" yaml:"-"`
}

// Selection computes population mean and std of every feature over the given
// rows. An empty selection yields an empty map.
func Selection(g *Global, matrix [][]float64, rows []int) map[string]Local {
	out := make(map[string]Local, len(g.Features))
	if len(rows) == 0 {
		return out
	}
	vals := make([]float64, len(rows))
	for j, name := range g.Features {
		for k, i := range rows {
			vals[k] = matrix[i][j]
		}
		mean, variance := stat.PopMeanVariance(vals, nil)
		if floats.Min(vals) == floats.Max(vals) {
			mean, variance = vals[0], 0
		}
		gs := g.Summaries[j]
		span := gs.Max - gs.Min
		if span == 0 {
			span = 1
		}
		out[name] = Local{
			Mean:       mean,
			Std:        math.Sqrt(math.Max(variance, 0)),
			GlobalMean: gs.Mean,
			NormMean:   (mean - gs.Min) / span,
			MeanDelta:  mean - gs.Mean,
		}
	}
	return out
}
