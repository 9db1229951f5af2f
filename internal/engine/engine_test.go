package engine

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
)

func pointsOf(matrix [][]float64) []projection.Point {
	pts := make([]projection.Point, len(matrix))
	for i, r := range matrix {
		pts[i] = projection.Point{X: r[0], Y: r[1]}
	}
	return pts
}

func TestLocalVariance_IsolatedPointsAreZero(t *testing.T) {
	matrix := [][]float64{{0, 0}, {0, 10}, {10, 0}, {10, 10}}
	for _, s := range []Strategy{BruteForce{}, Grid{}} {
		lv, err := LocalVariance(context.Background(), matrix, pointsOf(matrix), 1, Options{Strategy: s})
		require.NoError(t, err, s.Name())
		require.Len(t, lv, 4)
		for i, row := range lv {
			assert.Equal(t, []float64{0, 0}, row, "%s row %d", s.Name(), i)
		}
	}
}

func TestLocalVariance_NonPositiveRadius(t *testing.T) {
	matrix := [][]float64{{1, 2}, {1.01, 2.5}, {3, 4}}
	pts := []projection.Point{{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0}}
	for _, r := range []float64{0, -1, math.NaN()} {
		lv, err := LocalVariance(context.Background(), matrix, pts, r, Options{})
		require.NoError(t, err)
		for _, row := range lv {
			assert.Equal(t, []float64{0, 0}, row)
		}
	}
}

func TestLocalVariance_PopulationVarianceOverNeighborhood(t *testing.T) {
	matrix := [][]float64{{0, 5}, {2, 5}, {100, 5}}
	pts := []projection.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0}, {X: 50, Y: 50}}

	lv, err := LocalVariance(context.Background(), matrix, pts, 1, Options{Strategy: BruteForce{}})
	require.NoError(t, err)
	// rows 0 and 1 see each other: population variance of {0,2} is 1
	assert.InDelta(t, 1, lv[0][0], 1e-12)
	assert.InDelta(t, 1, lv[1][0], 1e-12)
	assert.Equal(t, 0.0, lv[0][1])
	assert.Equal(t, []float64{0, 0}, lv[2])
}

func TestLocalVariance_RadiusIsStrict(t *testing.T) {
	matrix := [][]float64{{0}, {4}}
	pts := []projection.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}
	for _, s := range []Strategy{BruteForce{}, Grid{}} {
		lv, err := LocalVariance(context.Background(), matrix, pts, 1, Options{Strategy: s})
		require.NoError(t, err)
		assert.Equal(t, 0.0, lv[0][0], s.Name())
		assert.Equal(t, 0.0, lv[1][0], s.Name())
	}
}

func TestLocalVariance_LengthMismatch(t *testing.T) {
	_, err := LocalVariance(context.Background(), [][]float64{{1}}, nil, 1, Options{})
	assert.Error(t, err)
}

func TestNeighbors_IncludeSelf(t *testing.T) {
	pts := []projection.Point{{X: 0, Y: 0}, {X: 3, Y: 3}, {X: 0.2, Y: 0.1}}
	for _, s := range []Strategy{BruteForce{}, Grid{}} {
		idx := s.Index(pts, 0.5)
		for i := range pts {
			assert.Contains(t, idx.Neighbors(i, nil), i, "%s point %d", s.Name(), i)
		}
		assert.Equal(t, []int{0, 2}, idx.Neighbors(0, nil), s.Name())
	}
}

func TestGridMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const rows, feats = 400, 5
	matrix := make([][]float64, rows)
	pts := make([]projection.Point, rows)
	for i := range matrix {
		matrix[i] = make([]float64, feats)
		for d := range matrix[i] {
			matrix[i][d] = rng.NormFloat64() * float64(d+1)
		}
		pts[i] = projection.Point{X: rng.NormFloat64(), Y: rng.NormFloat64()}
	}
	// a few points on exact cell boundaries
	pts[0] = projection.Point{X: 0.3, Y: 0.3}
	pts[1] = projection.Point{X: 0.6, Y: 0.3}
	pts[2] = projection.Point{X: -0.3, Y: 0.9}

	for _, r := range []float64{0.05, 0.1, 0.3, 1, 10} {
		brute, err := LocalVariance(context.Background(), matrix, pts, r, Options{Strategy: BruteForce{}, Workers: 1})
		require.NoError(t, err)
		grid, err := LocalVariance(context.Background(), matrix, pts, r, Options{Strategy: Grid{}, Workers: 4})
		require.NoError(t, err)
		assert.Equal(t, brute, grid, "radius %v", r)
	}
}

func TestLocalVariance_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	matrix := [][]float64{{1}, {2}}
	_, err := LocalVariance(ctx, matrix, []projection.Point{{}, {}}, 1, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStrategyByName(t *testing.T) {
	s, err := StrategyByName("")
	require.NoError(t, err)
	assert.Equal(t, "grid", s.Name())
	s, err = StrategyByName("brute")
	require.NoError(t, err)
	assert.Equal(t, "brute", s.Name())
	_, err = StrategyByName("kd")
	assert.Error(t, err)
}
