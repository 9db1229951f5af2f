package pipeline

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

// Kind names one of the memoized stages.
type Kind string

const (
	KindDataset    Kind = "dataset"
	KindStats      Kind = "stats"
	KindProjection Kind = "projection"
	KindRanking    Kind = "ranking"
)

// Key identifies a cached artifact. Fields a stage does not depend on are
// left empty: stats keys carry only Dataset, projection keys add Method,
// ranking keys add Radius.
type Key struct {
	Kind    Kind
	Dataset string
	Method  string
	Radius  float64
}

func (k Key) String() string {
	switch k.Kind {
	case KindDataset, KindStats:
		return fmt.Sprintf("%s:%q", k.Kind, k.Dataset)
	case KindProjection:
		return fmt.Sprintf("%s:%q:%q", k.Kind, k.Dataset, k.Method)
	default:
		return fmt.Sprintf("%s:%q:%q:%s", k.Kind, k.Dataset, k.Method, strconv.FormatFloat(k.Radius, 'g', -1, 64))
	}
}

// Cache holds completed stage results for the life of the process.
// Entries are never evicted or replaced.
type Cache struct {
	m sync.Map
	n atomic.Int64
}

func NewCache() *Cache { return &Cache{} }

// Get returns the artifact stored under k.
func (c *Cache) Get(k Key) (any, bool) {
	return c.m.Load(k)
}

// Set stores v under k unless an entry already exists, and returns the
// value that ends up cached.
func (c *Cache) Set(k Key, v any) any {
	actual, loaded := c.m.LoadOrStore(k, v)
	if !loaded {
		c.n.Add(1)
	}
	return actual
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int { return int(c.n.Load()) }
