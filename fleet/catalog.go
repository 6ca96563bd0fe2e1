package fleet

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-fleet-collect/internal/cache"
)

const (
	kindCrew      = "crew"
	kindVehicles  = "vehicles"
	kindDashboard = "dashboard"
)

// Lister fetches raw list bodies from the API of record.
type Lister interface {
	ListCrew(ctx context.Context, companyID int64) ([]byte, error)
	ListVehicles(ctx context.Context, companyID int64) ([]byte, error)
	Dashboard(ctx context.Context, companyID int64) ([]byte, error)
}

// Catalog is a read-through cache of one session's list queries, keyed by
// company. Concurrent misses for the same key share one upstream call.
type Catalog struct {
	source     Lister
	cache      *cache.TTLCache[string, any]
	group      singleflight.Group
	generation atomic.Uint64
	logger     zerolog.Logger
}

type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	logger    zerolog.Logger
	cacheOpts []cache.Option
	sweep     time.Duration
}

func WithLogger(l zerolog.Logger) CatalogOption {
	return func(o *catalogOptions) {
		o.logger = l
	}
}

// WithNowFunc overrides the clock used for cache expiry.
func WithNowFunc(now func() time.Time) CatalogOption {
	return func(o *catalogOptions) {
		o.cacheOpts = append(o.cacheOpts, cache.WithNowFunc(now))
	}
}

func NewCatalog(source Lister, ttl time.Duration, opts ...CatalogOption) *Catalog {
	o := catalogOptions{logger: log.Logger, sweep: time.Minute}
	for _, opt := range opts {
		opt(&o)
	}
	return &Catalog{
		source: source,
		cache:  cache.New[string, any](ttl, o.sweep, o.cacheOpts...),
		logger: o.logger.With().Str("component", "fleet").Logger(),
	}
}

func (c *Catalog) Crew(ctx context.Context, companyID int64) ([]Crew, error) {
	return load(ctx, c, companyID, kindCrew, c.source.ListCrew, DecodeList[Crew])
}

func (c *Catalog) Vehicles(ctx context.Context, companyID int64) ([]Vehicle, error) {
	return load(ctx, c, companyID, kindVehicles, c.source.ListVehicles, DecodeList[Vehicle])
}

func (c *Catalog) Dashboard(ctx context.Context, companyID int64) (DashboardStats, error) {
	return load(ctx, c, companyID, kindDashboard, c.source.Dashboard, DecodeObject[DashboardStats])
}

// InvalidateAssignments drops every cached query so the next read reflects a
// completed assignment change. Assignments carry no company, so every
// company read through this catalog is dropped. Fetches already in flight
// neither repopulate the cache nor serve later readers.
func (c *Catalog) InvalidateAssignments() {
	c.generation.Add(1)
	removed := c.cache.Len()
	c.cache.Clear()
	c.logger.Debug().Int("removed", removed).Msg("assignment caches invalidated")
}

// Close stops the cache sweep.
func (c *Catalog) Close() {
	c.cache.Close()
}

func load[T any](ctx context.Context, c *Catalog, companyID int64, kind string,
	fetch func(context.Context, int64) ([]byte, error), decode func([]byte) (T, error),
) (T, error) {
	key := companyPrefix(companyID) + kind
	if v, ok := c.cache.Get(key); ok {
		if hit, ok := v.(T); ok {
			return hit, nil
		}
	}

	gen := c.generation.Load()
	flight := key + "@" + strconv.FormatUint(gen, 10)
	// The fetch outlives any single caller; each caller stops waiting on its own ctx.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flight, func() (any, error) {
		body, err := fetch(fetchCtx, companyID)
		if err != nil {
			return nil, err
		}
		out, err := decode(body)
		if err != nil {
			return nil, err
		}
		if c.generation.Load() == gen {
			c.cache.Set(key, out)
		}
		return out, nil
	})

	var zero T
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func companyPrefix(companyID int64) string {
	return strconv.FormatInt(companyID, 10) + ":"
}
