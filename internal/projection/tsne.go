package projection

import (
	"context"
	"math"
	"math/rand"
	"time"
)

const (
	exaggeration    = 12.0
	maxExaggerated  = 250
	minGain         = 0.01
	perplexityTol   = 1e-5
	perplexitySteps = 50
	minProbability  = 1e-12
	initScale       = 1e-4
)

// TSNE is an exact (O(N²) per iteration) t-SNE.
type TSNE struct {
	perplexity    float64
	iterations    int
	learningRate  float64
	deterministic bool
	seed          int64
}

// NewTSNE applies defaults for unset fields.
func NewTSNE(c Config) *TSNE {
	t := &TSNE{
		perplexity:    c.Perplexity,
		iterations:    c.Iterations,
		learningRate:  c.LearningRate,
		deterministic: c.Deterministic,
		seed:          c.Seed,
	}
	if t.perplexity <= 0 {
		t.perplexity = 30
	}
	if t.iterations <= 0 {
		t.iterations = 250
	}
	return t
}

func (*TSNE) Name() string { return "tsne" }

func (t *TSNE) Project(ctx context.Context, matrix [][]float64) ([]Point, error) {
	n := len(matrix)
	pts := make([]Point, n)
	if n < 2 {
		return pts, nil
	}

	seed := t.seed
	if !t.deterministic {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	p := affinities(sqDistances(matrix), t.perplexityFor(n))

	lr := t.learningRate
	if lr <= 0 {
		lr = math.Max(float64(n)/exaggeration/4, 50)
	}
	exaggerated := min(t.iterations/4, maxExaggerated)

	y := make([]float64, 2*n)
	for i := range y {
		y[i] = rng.NormFloat64() * initScale
	}
	update := make([]float64, 2*n)
	gains := make([]float64, 2*n)
	for i := range gains {
		gains[i] = 1
	}
	grad := make([]float64, 2*n)
	num := make([]float64, n*n)

	for it := 0; it < t.iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		exag, momentum := 1.0, 0.8
		if it < exaggerated {
			exag, momentum = exaggeration, 0.5
		}

		var sumQ float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := y[2*i]-y[2*j], y[2*i+1]-y[2*j+1]
				q := 1 / (1 + dx*dx + dy*dy)
				num[i*n+j], num[j*n+i] = q, q
				sumQ += 2 * q
			}
		}
		if sumQ == 0 {
			sumQ = minProbability
		}
		for i := 0; i < n; i++ {
			var gx, gy float64
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				w := num[i*n+j]
				m := (exag*p[i*n+j] - w/sumQ) * w
				gx += m * (y[2*i] - y[2*j])
				gy += m * (y[2*i+1] - y[2*j+1])
			}
			grad[2*i], grad[2*i+1] = 4*gx, 4*gy
		}

		for k := range y {
			if (grad[k] > 0) != (update[k] > 0) {
				gains[k] += 0.2
			} else {
				gains[k] *= 0.8
			}
			if gains[k] < minGain {
				gains[k] = minGain
			}
			update[k] = momentum*update[k] - lr*gains[k]*grad[k]
			y[k] += update[k]
		}
		recenter(y)
	}

	for i := range pts {
		pts[i] = Point{X: y[2*i], Y: y[2*i+1]}
	}
	return pts, nil
}

// perplexityFor keeps the perplexity attainable for small inputs.
func (t *TSNE) perplexityFor(n int) float64 {
	p := t.perplexity
	if limit := float64(n-1) / 3; p > limit {
		p = limit
	}
	if p < 1 {
		p = 1
	}
	return p
}

func sqDistances(matrix [][]float64) []float64 {
	n := len(matrix)
	d := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var s float64
			for k, v := range matrix[i] {
				diff := v - matrix[j][k]
				s += diff * diff
			}
			d[i*n+j], d[j*n+i] = s, s
		}
	}
	return d
}

// affinities returns the symmetric joint probabilities P. Each row's
// Gaussian bandwidth is binary-searched to match the target perplexity.
func affinities(dist []float64, perplexity float64) []float64 {
	n := int(math.Sqrt(float64(len(dist))))
	target := math.Log(perplexity)
	cond := make([]float64, n*n)
	row := make([]float64, n)

	for i := 0; i < n; i++ {
		beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
		for step := 0; step < perplexitySteps; step++ {
			var sum, wsum float64
			for j := 0; j < n; j++ {
				if j == i {
					row[j] = 0
					continue
				}
				row[j] = math.Exp(-dist[i*n+j] * beta)
				sum += row[j]
				wsum += dist[i*n+j] * row[j]
			}
			if sum == 0 {
				sum = minProbability
			}
			entropy := math.Log(sum) + beta*wsum/sum
			diff := entropy - target
			if math.Abs(diff) < perplexityTol {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				if math.IsInf(lo, -1) {
					beta /= 2
				} else {
					beta = (beta + lo) / 2
				}
			}
		}
		var sum float64
		for j := 0; j < n; j++ {
			sum += row[j]
		}
		if sum == 0 {
			sum = minProbability
		}
		for j := 0; j < n; j++ {
			cond[i*n+j] = row[j] / sum
		}
	}

	p := make([]float64, n*n)
	denom := 2 * float64(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			p[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])/denom, minProbability)
		}
	}
	return p
}

func recenter(y []float64) {
	n := len(y) / 2
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += y[2*i]
		my += y[2*i+1]
	}
	mx /= float64(n)
	my /= float64(n)
	for i := 0; i < n; i++ {
		y[2*i] -= mx
		y[2*i+1] -= my
	}
}
