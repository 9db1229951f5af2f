// Package ranking turns local and global feature variances into per-row
// importance scores and a stable descending feature order.
package ranking

import (
	"fmt"
	"sort"
)

// Epsilon replaces zero denominators. It is the float64 machine epsilon.
const Epsilon = 2.220446049250313e-16

// Result holds N×n scores and the N×n feature order (indices into the
// feature list, most informative first).
type Result struct {
	Scores [][]float64
	Order  [][]int
}

// Rank normalizes each row of local by global and by the row sum.
// Ties in the order keep the original feature order.
func Rank(local [][]float64, global []float64) (*Result, error) {
	n := len(global)
	gv := make([]float64, n)
	for d, v := range global {
		if v == 0 {
			v = Epsilon
		}
		gv[d] = v
	}

	res := &Result{
		Scores: make([][]float64, len(local)),
		Order:  make([][]int, len(local)),
	}
	for i, row := range local {
		if len(row) != n {
			return nil, fmt.Errorf("row %d: %d local variances for %d features", i, len(row), n)
		}
		scores := make([]float64, n)
		var sum float64
		for d, lv := range row {
			scores[d] = lv / gv[d]
			sum += scores[d]
		}
		if sum == 0 {
			sum = Epsilon
		}
		for d := range scores {
			scores[d] /= sum
		}
		order := make([]int, n)
		for d := range order {
			order[d] = d
		}
		sort.SliceStable(order, func(a, b int) bool {
			return scores[order[a]] > scores[order[b]]
		})
		res.Scores[i] = scores
		res.Order[i] = order
	}
	return res, nil
}

// Row is the externally visible ranking of one dataset row.
type Row struct {
	ID       string    `json:"id" yaml:"id"`
	Features []string  `json:"features" yaml:"features"`
	Scores   []float64 `json:"scores" yaml:"scores"`
}

// Rows pairs each row identifier with its features and scores in rank order.
func (r *Result) Rows(ids, features []string) []Row {
	out := make([]Row, len(r.Order))
	for i, order := range r.Order {
		row := Row{
			Features: make([]string, len(order)),
			Scores:   make([]float64, len(order)),
		}
		if i < len(ids) {
			row.ID = ids[i]
		}
		for k, d := range order {
			row.Features[k] = features[d]
			row.Scores[k] = r.Scores[i][d]
		}
		out[i] = row
	}
	return out
}
