// Package resilient wraps a spatial provider with a circuit breaker and
// bounded retries. Calls rejected by an open breaker fail fast so the
// advisor falls back without waiting on a dead database.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/kilianp07/parkadvisor/core/logger"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
)

var (
	// ErrCircuitOpen is returned when the breaker rejects a call.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

var (
	_ spatial.Provider       = (*Provider)(nil)
	_ spatial.HistoryCleaner = (*Provider)(nil)
)

// Config tunes retries and the breaker.
type Config struct {
	Name            string        `json:"name"`
	MaxRetries      uint64        `json:"max_retries"`
	InitialInterval time.Duration `json:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval"`
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `json:"open_timeout"`
	// MinRequests and FailureRatio decide when the breaker trips.
	MinRequests  uint32  `json:"min_requests"`
	FailureRatio float64 `json:"failure_ratio"`
}

// SetDefaults fills zero fields.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = "spatial"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 50 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 500 * time.Millisecond
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.5
	}
}

// Provider decorates another spatial.Provider.
type Provider struct {
	next spatial.Provider
	cfg  Config
	cb   *gobreaker.CircuitBreaker[struct{}]
	log  logger.Logger
}

// New wraps next. A nil logger discards state changes.
func New(next spatial.Provider, cfg Config, log logger.Logger) *Provider {
	cfg.SetDefaults()
	log = logger.OrNop(log)
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		// Caller cancellations say nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit %s: %s -> %s", name, from, to)
		},
	}
	return &Provider{
		next: next,
		cfg:  cfg,
		cb:   gobreaker.NewCircuitBreaker[struct{}](settings),
		log:  log,
	}
}

// State reports the breaker state.
func (p *Provider) State() gobreaker.State { return p.cb.State() }

func (p *Provider) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.InitialInterval
	bo.MaxInterval = p.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, p.cfg.MaxRetries), ctx)
}

func do[T any](ctx context.Context, p *Provider, fn func(context.Context) (T, error)) (T, error) {
	var out T
	op := func() error {
		_, err := p.cb.Execute(func() (struct{}, error) {
			v, err := fn(ctx)
			if err == nil {
				out = v
			}
			return struct{}{}, err
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	if err := backoff.Retry(op, p.backOff(ctx)); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (p *Provider) NearbyBuildings(ctx context.Context, pos model.Position, radius float64) ([]spatial.NearbyBuilding, error) {
	return do(ctx, p, func(ctx context.Context) ([]spatial.NearbyBuilding, error) {
		return p.next.NearbyBuildings(ctx, pos, radius)
	})
}

func (p *Provider) TravelTimeEstimate(ctx context.Context, label model.TargetLabel, pos model.Position) (float64, error) {
	return do(ctx, p, func(ctx context.Context) (float64, error) {
		return p.next.TravelTimeEstimate(ctx, label, pos)
	})
}

func (p *Provider) WalkingTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel) (float64, error) {
	return do(ctx, p, func(ctx context.Context) (float64, error) {
		return p.next.WalkingTimeEstimate(ctx, parkingID, label)
	})
}

func (p *Provider) DrivingTimeEstimate(ctx context.Context, parkingID string, pos model.Position) (float64, error) {
	return do(ctx, p, func(ctx context.Context) (float64, error) {
		return p.next.DrivingTimeEstimate(ctx, parkingID, pos)
	})
}

func (p *Provider) TotalTimeEstimate(ctx context.Context, parkingID string, label model.TargetLabel, pos model.Position) (float64, error) {
	return do(ctx, p, func(ctx context.Context) (float64, error) {
		return p.next.TotalTimeEstimate(ctx, parkingID, label, pos)
	})
}

func (p *Provider) HistoryForUser(ctx context.Context, userID int) ([]spatial.Visit, error) {
	return do(ctx, p, func(ctx context.Context) ([]spatial.Visit, error) {
		return p.next.HistoryForUser(ctx, userID)
	})
}

func (p *Provider) RecurringPatterns(ctx context.Context, q spatial.PatternQuery) ([]spatial.Pattern, error) {
	return do(ctx, p, func(ctx context.Context) ([]spatial.Pattern, error) {
		return p.next.RecurringPatterns(ctx, q)
	})
}

func (p *Provider) NearestParkingAreas(ctx context.Context, label model.TargetLabel, count int) ([]string, error) {
	return do(ctx, p, func(ctx context.Context) ([]string, error) {
		return p.next.NearestParkingAreas(ctx, label, count)
	})
}

// RecordVisit is retried; the wrapped provider ignores duplicates.
func (p *Provider) RecordVisit(ctx context.Context, rec spatial.VisitRecord) error {
	_, err := do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.next.RecordVisit(ctx, rec)
	})
	return err
}

// ClearHistory forwards to the wrapped provider when it supports it.
func (p *Provider) ClearHistory(ctx context.Context) error {
	hc, ok := p.next.(spatial.HistoryCleaner)
	if !ok {
		return errors.New("wrapped provider cannot clear history")
	}
	_, err := do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, hc.ClearHistory(ctx)
	})
	return err
}
