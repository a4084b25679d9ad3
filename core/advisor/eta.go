package advisor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kilianp07/parkadvisor/core/model"
)

// etaCycle memoises absolute arrival times (simulation seconds) for the
// buildings evaluated during one decision. Failed estimates are not cached.
type etaCycle struct {
	a   *Advisor
	q   model.VehicleQuery
	now instant

	mu    sync.Mutex
	cache map[model.TargetLabel]float64
	group singleflight.Group
}

func (a *Advisor) newCycle(q model.VehicleQuery, now instant) *etaCycle {
	return &etaCycle{a: a, q: q, now: now, cache: make(map[model.TargetLabel]float64)}
}

func (c *etaCycle) cached(label model.TargetLabel) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache[label]
	return v, ok
}

func (c *etaCycle) fallback() float64 {
	return c.now.sim + c.a.p.TConstSec + c.a.p.TErrSec
}

// eta returns the estimated arrival time at label.
func (c *etaCycle) eta(ctx context.Context, label model.TargetLabel) float64 {
	if v, ok := c.cached(label); ok {
		etaLookups.WithLabelValues("hit").Inc()
		return v
	}
	if !c.q.Located {
		etaLookups.WithLabelValues("fallback").Inc()
		return c.fallback()
	}
	v, err, _ := c.group.Do(string(label), func() (any, error) {
		if v, ok := c.cached(label); ok {
			return v, nil
		}
		l := lookup(ctx, c.a, "travel_time", func(ctx context.Context) (float64, error) {
			return c.a.provider.TravelTimeEstimate(ctx, label, c.q.Position)
		})
		if !l.OK() {
			return nil, l.Err
		}
		v := c.now.sim + l.Value + c.a.p.TConstSec
		c.mu.Lock()
		c.cache[label] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		etaLookups.WithLabelValues("fallback").Inc()
		return c.fallback()
	}
	etaLookups.WithLabelValues("miss").Inc()
	return v.(float64)
}

// arrivalToW is the time of week of the estimated arrival at label.
func (c *etaCycle) arrivalToW(ctx context.Context, label model.TargetLabel) float64 {
	return c.a.clock.TimeOfWeekFromSim(c.eta(ctx, label))
}

// prefetch warms the cache for labels with bounded concurrency.
func (c *etaCycle) prefetch(ctx context.Context, labels []model.TargetLabel) {
	var g errgroup.Group
	g.SetLimit(c.a.p.Concurrency)
	for _, l := range labels {
		g.Go(func() error {
			c.eta(ctx, l)
			return nil
		})
	}
	_ = g.Wait()
}
