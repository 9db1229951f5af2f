package projection

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PCA projects onto the first two principal components, computed with a
// thin SVD of the (already centered) input. Each component's sign is fixed
// so its largest-magnitude loading is positive, which makes the output
// deterministic across runs.
type PCA struct{}

func (PCA) Name() string { return "pca" }

func (PCA) Project(ctx context.Context, matrix [][]float64) ([]Point, error) {
	rows := len(matrix)
	if rows == 0 {
		return []Point{}, nil
	}
	cols := len(matrix[0])
	pts := make([]Point, rows)
	if cols == 0 {
		return pts, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := make([]float64, 0, rows*cols)
	for _, r := range matrix {
		data = append(data, r...)
	}
	x := mat.NewDense(rows, cols, data)

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, errors.New("svd did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	_, k := v.Dims()
	k = min(k, 2)

	var scores mat.Dense
	scores.Mul(x, v.Slice(0, cols, 0, k))
	for c := 0; c < k; c++ {
		if flipSign(v.ColView(c)) {
			for i := 0; i < rows; i++ {
				scores.Set(i, c, -scores.At(i, c))
			}
		}
	}
	for i := range pts {
		pts[i].X = scores.At(i, 0)
		if k > 1 {
			pts[i].Y = scores.At(i, 1)
		}
	}
	return pts, nil
}

// flipSign reports whether the component's largest-magnitude coordinate
// is negative. The first coordinate wins ties.
func flipSign(comp mat.Vector) bool {
	best, at := -1.0, 0
	for i := 0; i < comp.Len(); i++ {
		if a := math.Abs(comp.AtVec(i)); a > best {
			best, at = a, i
		}
	}
	return comp.AtVec(at) < 0
}
