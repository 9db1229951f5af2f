// Package pipeline coordinates dataset loading, projection, statistics and
// ranking. Every stage result is computed at most once per key and cached.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/KaramelBytes/fingerprint-cli/internal/dataset"
	"github.com/KaramelBytes/fingerprint-cli/internal/engine"
	"github.com/KaramelBytes/fingerprint-cli/internal/logging"
	"github.com/KaramelBytes/fingerprint-cli/internal/metrics"
	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
	"github.com/KaramelBytes/fingerprint-cli/internal/ranking"
	"github.com/KaramelBytes/fingerprint-cli/internal/stats"
)

// Loader reads a dataset by identifier. *dataset.Store implements it.
type Loader interface {
	Load(name string) (*dataset.Dataset, error)
}

// ProjectorFunc resolves a method name to a projector.
type ProjectorFunc func(method string) (projection.Projector, error)

// Options wires a Pipeline. Loader is required; everything else has a default.
type Options struct {
	Loader     Loader
	Cache      *Cache
	Projectors ProjectorFunc
	Engine     engine.Options
	Logger     *slog.Logger
	Observer   metrics.Observer
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	loader     Loader
	cache      *Cache
	projectors ProjectorFunc
	engine     engine.Options
	log        *slog.Logger
	obs        metrics.Observer
	group      singleflight.Group
}

func New(opt Options) *Pipeline {
	p := &Pipeline{
		loader:     opt.Loader,
		cache:      opt.Cache,
		projectors: opt.Projectors,
		engine:     opt.Engine,
		log:        opt.Logger,
		obs:        opt.Observer,
	}
	if p.cache == nil {
		p.cache = NewCache()
	}
	if p.projectors == nil {
		cfg := projection.DefaultConfig()
		p.projectors = func(method string) (projection.Projector, error) {
			return projection.New(method, cfg)
		}
	}
	if p.log == nil {
		p.log = logging.Discard()
	}
	if p.obs == nil {
		p.obs = metrics.Noop{}
	}
	return p
}

// Cache exposes the underlying cache.
func (p *Pipeline) Cache() *Cache { return p.cache }

// memo returns the cached value for key, or computes it once. Concurrent
// callers for the same key share one computation. A caller whose ctx ends
// returns ctx.Err() while the computation finishes and fills the cache.
func memo[T any](ctx context.Context, p *Pipeline, key Key, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	stage := string(key.Kind)
	if v, ok := p.cache.Get(key); ok {
		p.obs.CacheHit(stage)
		return v.(T), nil
	}
	ch := p.group.DoChan(key.String(), func() (any, error) {
		// a flight that finished between our Get and DoChan already cached it
		if v, ok := p.cache.Get(key); ok {
			p.obs.CacheHit(stage)
			return v, nil
		}
		p.obs.CacheMiss(stage)
		start := time.Now()
		v, err := compute(context.WithoutCancel(ctx))
		elapsed := time.Since(start)
		p.obs.StageDone(stage, elapsed, err)
		attrs := []any{"stage", stage, "dataset", key.Dataset, "duration", elapsed}
		if key.Method != "" {
			attrs = append(attrs, "method", key.Method)
		}
		if key.Kind == KindRanking {
			attrs = append(attrs, "radius", key.Radius)
		}
		if err != nil {
			p.log.Warn("stage failed", append(attrs, "error", err)...)
			return nil, err
		}
		p.log.Debug("stage computed", attrs...)
		return p.cache.Set(key, v), nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		return r.Val.(T), nil
	}
}

// Dataset loads and caches the named dataset.
func (p *Pipeline) Dataset(ctx context.Context, name string) (*dataset.Dataset, error) {
	if err := dataset.ValidateIdentifier(name); err != nil {
		return nil, err
	}
	return memo(ctx, p, Key{Kind: KindDataset, Dataset: name}, func(context.Context) (*dataset.Dataset, error) {
		ds, err := p.loader.Load(name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		return ds, nil
	})
}

// Stats returns the global statistics of every numeric feature.
func (p *Pipeline) Stats(ctx context.Context, name string) (*stats.Global, error) {
	ds, err := p.Dataset(ctx, name)
	if err != nil {
		return nil, err
	}
	return memo(ctx, p, Key{Kind: KindStats, Dataset: name}, func(context.Context) (*stats.Global, error) {
		g := stats.Compute(ds.Features, ds.Matrix)
		for j, s := range g.Summaries {
			if !finite(s.Mean, s.Std, s.NormMean, s.NormStd, g.Variances[j]) {
				return nil, fmt.Errorf("%s: feature %q: %w", name, g.Features[j], ErrNonFinite)
			}
		}
		return g, nil
	})
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p *Pipeline) numeric(ctx context.Context, name string) (*dataset.Dataset, error) {
	ds, err := p.Dataset(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ds.HasNumeric() {
		return nil, fmt.Errorf("%s: %w", name, ErrNoNumericData)
	}
	return ds, nil
}

// Projection returns one point per dataset row for method.
func (p *Pipeline) Projection(ctx context.Context, name, method string) ([]projection.Point, error) {
	proj, err := p.projectors(method)
	if err != nil {
		return nil, err
	}
	ds, err := p.numeric(ctx, name)
	if err != nil {
		return nil, err
	}
	return memo(ctx, p, Key{Kind: KindProjection, Dataset: name, Method: method}, func(ctx context.Context) ([]projection.Point, error) {
		return projection.Run(ctx, proj, ds.Matrix)
	})
}

// Ranking returns, for every row, the features ordered by local importance.
func (p *Pipeline) Ranking(ctx context.Context, name, method string, radius float64) ([]ranking.Row, error) {
	if math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, radius)
	}
	key := Key{Kind: KindRanking, Dataset: name, Method: method, Radius: radius}
	if v, ok := p.cache.Get(key); ok {
		p.obs.CacheHit(string(KindRanking))
		return v.([]ranking.Row), nil
	}
	ds, err := p.numeric(ctx, name)
	if err != nil {
		return nil, err
	}
	pts, err := p.Projection(ctx, name, method)
	if err != nil {
		return nil, err
	}
	global, err := p.Stats(ctx, name)
	if err != nil {
		return nil, err
	}
	return memo(ctx, p, key, func(ctx context.Context) ([]ranking.Row, error) {
		local, err := engine.LocalVariance(ctx, ds.Matrix, pts, radius, p.engine)
		if err != nil {
			return nil, err
		}
		for i, row := range local {
			if !finite(row...) {
				return nil, fmt.Errorf("%s: local variance of row %d: %w", name, i, ErrNonFinite)
			}
		}
		res, err := ranking.Rank(local, global.Variances)
		if err != nil {
			return nil, err
		}
		for i, row := range res.Scores {
			if !finite(row...) {
				return nil, fmt.Errorf("%s: scores of row %d: %w", name, i, ErrNonFinite)
			}
		}
		return res.Rows(ds.IDs, ds.Features), nil
	})
}

// Fingerprint summarizes the selected rows against the whole dataset.
// Selections are not cached.
func (p *Pipeline) Fingerprint(ctx context.Context, name string, ids []string) (map[string]stats.Local, error) {
	ds, err := p.Dataset(ctx, name)
	if err != nil {
		return nil, err
	}
	rows := make([]int, 0, len(ids))
	for _, id := range ids {
		i, ok := ds.RowIndex(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRow, id)
		}
		rows = append(rows, i)
	}
	global, err := p.Stats(ctx, name)
	if err != nil {
		return nil, err
	}
	return stats.Selection(global, ds.Matrix, rows), nil
}
