package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/fingerprint-cli/internal/dataset"
	"github.com/KaramelBytes/fingerprint-cli/internal/engine"
	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
	"github.com/KaramelBytes/fingerprint-cli/internal/ranking"
)

type fakeLoader struct {
	tables map[string]*dataset.Table
	calls  atomic.Int32
	delay  time.Duration
	fail   atomic.Int32 // remaining failures
}

func (f *fakeLoader) Load(name string) (*dataset.Dataset, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail.Load() > 0 {
		f.fail.Add(-1)
		return nil, &dataset.ParseError{Name: name, Err: errors.New("truncated")}
	}
	t, ok := f.tables[name]
	if !ok {
		return nil, dataset.ErrNotFound
	}
	return dataset.Build(name, t)
}

// identity projects the first two standardized features as-is.
type identity struct{ calls atomic.Int32 }

func (*identity) Name() string { return "identity" }

func (p *identity) Project(_ context.Context, m [][]float64) ([]projection.Point, error) {
	p.calls.Add(1)
	out := make([]projection.Point, len(m))
	for i, r := range m {
		out[i] = projection.Point{X: r[0], Y: r[1]}
	}
	return out, nil
}

func grid() *dataset.Table {
	return &dataset.Table{
		Header: []string{"id", "a", "b", "label"},
		Rows: [][]string{
			{"p0", "0", "0", "x"},
			{"p1", "0", "10", "y"},
			{"p2", "10", "0", "x"},
			{"p3", "10", "10", "y"},
		},
	}
}

func newTestPipeline(l Loader, proj *identity) *Pipeline {
	return New(Options{
		Loader: l,
		Projectors: func(method string) (projection.Projector, error) {
			if method != "identity" {
				return nil, projection.ErrUnsupportedMethod
			}
			return proj, nil
		},
		Engine: engine.Options{Strategy: engine.BruteForce{}},
	})
}

func TestRanking_IsolatedPointsTie(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"grid.csv": grid()}}
	p := newTestPipeline(l, &identity{})

	// standardized coordinates are ±1, so radius 1 isolates every point
	rows, err := p.Ranking(context.Background(), "grid.csv", "identity", 1)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, []string{"a", "b"}, r.Features, "row %d", i)
		assert.Equal(t, r.Scores[0], r.Scores[1])
	}
	assert.Equal(t, "p2", rows[2].ID)
}

func TestRanking_CachesEveryStage(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"grid.csv": grid()}}
	proj := &identity{}
	p := newTestPipeline(l, proj)
	ctx := context.Background()

	a, err := p.Ranking(ctx, "grid.csv", "identity", 5)
	require.NoError(t, err)
	b, err := p.Ranking(ctx, "grid.csv", "identity", 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = p.Ranking(ctx, "grid.csv", "identity", 0.5)
	require.NoError(t, err)

	assert.Equal(t, int32(1), l.calls.Load())
	assert.Equal(t, int32(1), proj.calls.Load())
	// dataset, stats, projection, two rankings
	assert.Equal(t, 5, p.Cache().Len())
}

func TestProjection_ConcurrentCallsComputeOnce(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"grid.csv": grid()}, delay: 20 * time.Millisecond}
	proj := &identity{}
	p := newTestPipeline(l, proj)

	var wg sync.WaitGroup
	results := make([][]projection.Point, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pts, err := p.Projection(context.Background(), "grid.csv", "identity")
			if err == nil {
				results[i] = pts
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), l.calls.Load())
	assert.Equal(t, int32(1), proj.calls.Load())
	for i := range results {
		assert.Equal(t, results[0], results[i])
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"grid.csv": grid()}}
	l.fail.Store(1)
	p := newTestPipeline(l, &identity{})
	ctx := context.Background()

	_, err := p.Stats(ctx, "grid.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrParse))
	assert.Equal(t, 0, p.Cache().Len())

	g, err := p.Stats(ctx, "grid.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Features)
	assert.Equal(t, int32(2), l.calls.Load())
}

func TestErrorsPropagate(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{
		"grid.csv":  grid(),
		"names.csv": {Header: []string{"name"}, Rows: [][]string{{"ann"}, {"bob"}}},
	}}
	p := newTestPipeline(l, &identity{})
	ctx := context.Background()

	_, err := p.Ranking(ctx, "../secret.csv", "identity", 1)
	assert.ErrorIs(t, err, dataset.ErrInvalidIdentifier)
	assert.Equal(t, int32(0), l.calls.Load())

	_, err = p.Ranking(ctx, "missing.csv", "identity", 1)
	assert.ErrorIs(t, err, dataset.ErrNotFound)

	_, err = p.Ranking(ctx, "names.csv", "identity", 1)
	assert.ErrorIs(t, err, ErrNoNumericData)

	_, err = p.Ranking(ctx, "grid.csv", "umap", 1)
	assert.ErrorIs(t, err, projection.ErrUnsupportedMethod)

	_, err = p.Fingerprint(ctx, "grid.csv", []string{"p9"})
	assert.ErrorIs(t, err, ErrUnknownRow)
}

func TestRanking_InvalidRadius(t *testing.T) {
	p := newTestPipeline(&fakeLoader{}, &identity{})
	for _, r := range []float64{math.NaN(), math.Inf(1)} {
		_, err := p.Ranking(context.Background(), "grid.csv", "identity", r)
		assert.ErrorIs(t, err, ErrInvalidRadius)
	}
}

func TestPreseededCache(t *testing.T) {
	ds, err := dataset.Build("grid.csv", grid())
	require.NoError(t, err)
	cache := NewCache()
	cache.Set(Key{Kind: KindDataset, Dataset: "grid.csv"}, ds)

	l := &fakeLoader{}
	p := New(Options{Loader: l, Cache: cache})
	got, err := p.Dataset(context.Background(), "grid.csv")
	require.NoError(t, err)
	assert.Same(t, ds, got)
	assert.Equal(t, int32(0), l.calls.Load())
}

func TestCancelledCallerLeavesComputationRunning(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"grid.csv": grid()}, delay: 50 * time.Millisecond}
	p := newTestPipeline(l, &identity{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Dataset(ctx, "grid.csv")
	assert.ErrorIs(t, err, context.Canceled)

	require.Eventually(t, func() bool { return p.Cache().Len() == 1 }, time.Second, 5*time.Millisecond)
	_, err = p.Dataset(context.Background(), "grid.csv")
	require.NoError(t, err)
	assert.Equal(t, int32(1), l.calls.Load())
}

func TestFingerprint(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"grid.csv": grid()}}
	p := newTestPipeline(l, &identity{})

	fp, err := p.Fingerprint(context.Background(), "grid.csv", []string{"p2", "p3"})
	require.NoError(t, err)
	require.Contains(t, fp, "a")
	assert.InDelta(t, 10, fp["a"].Mean, 1e-12)
	assert.InDelta(t, 5, fp["a"].GlobalMean, 1e-12)
	assert.InDelta(t, 5, fp["a"].MeanDelta, 1e-12)
	assert.False(t, fp["a"].IsGlobal)
}

func TestKeyString(t *testing.T) {
	k := Key{Kind: KindRanking, Dataset: "d.csv", Method: "pca", Radius: 0.1}
	assert.Equal(t, `ranking:"d.csv":"pca":0.1`, k.String())
	assert.Equal(t, `stats:"d.csv"`, Key{Kind: KindStats, Dataset: "d.csv", Method: "ignored"}.String())
}

type countingObserver struct {
	mu     sync.Mutex
	misses map[string]int
}

func (o *countingObserver) CacheHit(string) {}

func (o *countingObserver) CacheMiss(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.misses == nil {
		o.misses = map[string]int{}
	}
	o.misses[stage]++
}

func (o *countingObserver) StageDone(string, time.Duration, error) {}
func (o *countingObserver) Request(string, int)                    {}

func TestRanking_ConcurrentCallsComputeOncePerKey(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"grid.csv": grid()}, delay: 20 * time.Millisecond}
	proj := &identity{}
	obs := &countingObserver{}
	p := New(Options{
		Loader: l,
		Projectors: func(string) (projection.Projector, error) {
			return proj, nil
		},
		Engine:   engine.Options{Strategy: engine.BruteForce{}},
		Observer: obs,
	})

	radii := []float64{1, 5}
	var wg sync.WaitGroup
	results := make([][]ranking.Row, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rows, err := p.Ranking(context.Background(), "grid.csv", "identity", radii[i%2])
			if err == nil {
				results[i] = rows
			}
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NotNil(t, results[i], "call %d", i)
		assert.Equal(t, results[i%2], results[i])
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, 2, obs.misses[string(KindRanking)])
	assert.Equal(t, 1, obs.misses[string(KindProjection)])
	assert.Equal(t, 1, obs.misses[string(KindStats)])
	assert.Equal(t, int32(1), l.calls.Load())
	assert.Equal(t, int32(1), proj.calls.Load())
}

func TestStats_OverflowingVarianceIsAnError(t *testing.T) {
	l := &fakeLoader{tables: map[string]*dataset.Table{"big.csv": {
		Header: []string{"x", "y"},
		Rows:   [][]string{{"1e200", "1"}, {"-1e200", "2"}, {"3e200", "5"}},
	}}}
	p := newTestPipeline(l, &identity{})
	ctx := context.Background()

	_, err := p.Stats(ctx, "big.csv")
	assert.ErrorIs(t, err, ErrNonFinite)

	_, err = p.Ranking(ctx, "big.csv", "identity", 100)
	assert.ErrorIs(t, err, ErrNonFinite)

	_, ok := p.Cache().Get(Key{Kind: KindStats, Dataset: "big.csv"})
	assert.False(t, ok)
}
