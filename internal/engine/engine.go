// Package engine computes per-row feature variance over projection
// neighborhoods.
package engine

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
)

// Options tunes how LocalVariance runs. The zero value uses the grid
// strategy and one worker per CPU.
type Options struct {
	Strategy Strategy
	Workers  int
}

// chunk is the number of rows a worker takes at a time.
const chunk = 64

// LocalVariance returns an N×n matrix whose row i holds, for each feature,
// the population variance of that feature over every row within radius of
// point i in the projection (i included). A radius that is not positive
// yields all-zero rows.
func LocalVariance(ctx context.Context, matrix [][]float64, points []projection.Point, radius float64, opt Options) ([][]float64, error) {
	if len(matrix) != len(points) {
		return nil, fmt.Errorf("local variance: %d rows but %d projected points", len(matrix), len(points))
	}
	n := 0
	if len(matrix) > 0 {
		n = len(matrix[0])
	}
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		if len(row) != n {
			return nil, fmt.Errorf("local variance: row %d has %d features, want %d", i, len(row), n)
		}
		out[i] = make([]float64, n)
	}
	if !(radius > 0) || len(matrix) == 0 || n == 0 {
		return out, nil
	}

	strategy := opt.Strategy
	if strategy == nil {
		strategy = Grid{}
	}
	idx := strategy.Index(points, radius)

	workers := opt.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(matrix); lo += chunk {
		hi := min(lo+chunk, len(matrix))
		g.Go(func() error {
			var nb []int
			vals := make([]float64, 0, 16)
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				nb = idx.Neighbors(i, nb[:0])
				if len(nb) == 0 {
					continue
				}
				for d := 0; d < n; d++ {
					vals = vals[:0]
					for _, j := range nb {
						vals = append(vals, matrix[j][d])
					}
					_, v := stat.PopMeanVariance(vals, nil)
					if v < 0 {
						v = 0
					}
					out[i][d] = v
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
