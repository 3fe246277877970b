// Package visibility memoizes line-of-sight queries on a quantized spatial key.
//
// Entries accumulate hits between sweeps. Once more than Capacity entries have
// been inserted since the last sweep, the whole table is ranked by hits and cut
// back to Capacity.
package visibility

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/OCAP2/awacs/pkg/core"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// DefaultCapacity is used when Config.Capacity is not positive.
const DefaultCapacity = 50_000

// Oracle answers line-of-sight queries. It may be slow and it may fail.
type Oracle interface {
	LineOfSight(a, b core.Position3D) (bool, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(a, b core.Position3D) (bool, error)

// LineOfSight calls f(a, b).
func (f OracleFunc) LineOfSight(a, b core.Position3D) (bool, error) {
	return f(a, b)
}

// Config holds cache settings.
type Config struct {
	Capacity int `json:"capacity" mapstructure:"capacity"`
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries        int
	Hits           uint64
	Misses         uint64
	Evicted        uint64
	Sweeps         uint64
	OracleFailures uint64
}

type entry struct {
	key     Key
	visible bool
	hits    uint32
}

// Cache wraps an Oracle with a self-evicting memo table. It is not safe for
// concurrent use; the owner serializes access.
type Cache struct {
	oracle   Oracle
	capacity int

	entries               []entry
	index                 map[Key]int
	insertedSinceEviction int

	stats Stats

	hitCounter     metric.Int64Counter
	missCounter    metric.Int64Counter
	evictCounter   metric.Int64Counter
	failureCounter metric.Int64Counter
}

// New creates a cache in front of oracle. A nil meter disables metrics.
func New(oracle Oracle, cfg Config, m metric.Meter) (*Cache, error) {
	if oracle == nil {
		return nil, fmt.Errorf("visibility: nil oracle")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if m == nil {
		m = noop.Meter{}
	}

	c := &Cache{
		oracle:   oracle,
		capacity: cfg.Capacity,
		index:    make(map[Key]int),
	}

	var err error
	if c.hitCounter, err = m.Int64Counter("visibility.cache.hits",
		metric.WithDescription("Line-of-sight queries answered from cache")); err != nil {
		return nil, fmt.Errorf("creating hit counter: %w", err)
	}
	if c.missCounter, err = m.Int64Counter("visibility.cache.misses",
		metric.WithDescription("Line-of-sight queries sent to the oracle")); err != nil {
		return nil, fmt.Errorf("creating miss counter: %w", err)
	}
	if c.evictCounter, err = m.Int64Counter("visibility.cache.evictions",
		metric.WithDescription("Entries dropped by eviction sweeps")); err != nil {
		return nil, fmt.Errorf("creating eviction counter: %w", err)
	}
	if c.failureCounter, err = m.Int64Counter("visibility.cache.oracle_failures",
		metric.WithDescription("Oracle calls that returned an error")); err != nil {
		return nil, fmt.Errorf("creating failure counter: %w", err)
	}

	return c, nil
}

// IsVisible reports whether b can be seen from a. distanceHint is the
// caller's straight-line distance between the points and sets the key's
// quantization step. Oracle errors are returned and never cached.
func (c *Cache) IsVisible(distanceHint float64, a, b core.Position3D) (bool, error) {
	ctx := context.Background()
	key := KeyFor(distanceHint, a, b)

	if i, ok := c.index[key]; ok {
		e := &c.entries[i]
		if e.hits < math.MaxUint32 {
			e.hits++
		}
		c.stats.Hits++
		c.hitCounter.Add(ctx, 1)
		return e.visible, nil
	}

	c.stats.Misses++
	c.missCounter.Add(ctx, 1)

	visible, err := c.oracle.LineOfSight(a, b)
	if err != nil {
		c.stats.OracleFailures++
		c.failureCounter.Add(ctx, 1)
		return false, fmt.Errorf("line of sight: %w", err)
	}

	c.index[key] = len(c.entries)
	c.entries = append(c.entries, entry{key: key, visible: visible, hits: 1})
	c.insertedSinceEviction++

	if c.insertedSinceEviction > c.capacity {
		c.evict()
	}

	return visible, nil
}

// evict keeps the capacity most-hit entries. Equal hit counts keep their
// storage order.
func (c *Cache) evict() {
	slices.SortStableFunc(c.entries, func(x, y entry) int {
		switch {
		case x.hits > y.hits:
			return -1
		case x.hits < y.hits:
			return 1
		}
		return 0
	})

	dropped := 0
	if len(c.entries) > c.capacity {
		dropped = len(c.entries) - c.capacity
		clear(c.entries[c.capacity:])
		c.entries = c.entries[:c.capacity]
	}

	clear(c.index)
	for i, e := range c.entries {
		c.index[e.key] = i
	}

	c.insertedSinceEviction = 0
	c.stats.Sweeps++
	c.stats.Evicted += uint64(dropped)
	c.evictCounter.Add(context.Background(), int64(dropped))
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// Reset drops every entry and zeroes the counters.
func (c *Cache) Reset() {
	c.entries = nil
	clear(c.index)
	c.insertedSinceEviction = 0
	c.stats = Stats{}
}
