// Package projection maps a numeric matrix to one 2-D point per row.
package projection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrUnsupportedMethod is returned for a method name with no registered projector.
var ErrUnsupportedMethod = errors.New("unsupported projection method")

// Projector turns a standardized N×n matrix into N points in row order.
type Projector interface {
	Name() string
	Project(ctx context.Context, matrix [][]float64) ([]Point, error)
}

// Config carries the knobs shared by all projectors.
type Config struct {
	// t-SNE
	Perplexity    float64
	Iterations    int
	LearningRate  float64 // 0 means auto
	Deterministic bool
	Seed          int64

	// Remote oracle; empty OracleURL keeps projection local.
	OracleURL   string
	HTTPTimeout time.Duration
	RetryMax    int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		Perplexity:    30,
		Iterations:    250,
		Deterministic: true,
		Seed:          42,
		HTTPTimeout:   60 * time.Second,
		RetryMax:      3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      4 * time.Second,
	}
}

// Factory builds a Projector from the generic config.
type Factory func(Config) Projector

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds or replaces a method.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Methods lists registered method names.
func Methods() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New returns the projector for method. When cfg.OracleURL is set, a known
// method is delegated to the remote oracle instead.
func New(method string, cfg Config) (Projector, error) {
	mu.RLock()
	f, ok := registry[method]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	if cfg.OracleURL != "" {
		return NewRemote(method, cfg), nil
	}
	return f(cfg), nil
}

func init() {
	Register("pca", func(Config) Projector { return PCA{} })
	Register("tsne", func(c Config) Projector { return NewTSNE(c) })
}

// Standardize returns a copy of matrix with every column shifted to zero
// mean and scaled to unit population variance. Zero-variance columns become 0.
func Standardize(matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		out[i] = make([]float64, len(row))
	}
	if len(matrix) == 0 {
		return out
	}
	col := make([]float64, len(matrix))
	for d := range matrix[0] {
		for i, row := range matrix {
			col[i] = row[d]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		sd := math.Sqrt(variance)
		if !(sd > 0) {
			continue
		}
		for i := range matrix {
			out[i][d] = (col[i] - mean) / sd
		}
	}
	return out
}

// Run standardizes matrix, projects it and checks that exactly one point
// came back per row.
func Run(ctx context.Context, p Projector, matrix [][]float64) ([]Point, error) {
	pts, err := p.Project(ctx, Standardize(matrix))
	if err != nil {
		return nil, fmt.Errorf("%s projection: %w", p.Name(), err)
	}
	if len(pts) != len(matrix) {
		return nil, fmt.Errorf("%s projection: got %d points for %d rows", p.Name(), len(pts), len(matrix))
	}
	return pts, nil
}
