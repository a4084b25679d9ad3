// Package app assembles the advisor service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/parkadvisor/api"
	"github.com/kilianp07/parkadvisor/app/guidance"
	"github.com/kilianp07/parkadvisor/config"
	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/calendar"
	"github.com/kilianp07/parkadvisor/core/decisionlog"
	"github.com/kilianp07/parkadvisor/core/events"
	coremetrics "github.com/kilianp07/parkadvisor/core/metrics"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/spatial"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/core/weights"
	"github.com/kilianp07/parkadvisor/infra/logger"
	"github.com/kilianp07/parkadvisor/infra/metrics"
	"github.com/kilianp07/parkadvisor/infra/mqtt"
	"github.com/kilianp07/parkadvisor/infra/provider/memory"
	"github.com/kilianp07/parkadvisor/infra/provider/postgres"
	"github.com/kilianp07/parkadvisor/infra/provider/resilient"
	"github.com/kilianp07/parkadvisor/infra/sumo"
	"github.com/kilianp07/parkadvisor/internal/eventbus"
)

// Service orchestrates the advisor, the guidance loop and their sinks.
type Service struct {
	Advisor  *advisor.Advisor
	Guide    *guidance.Guide
	Clock    *timectl.Clock
	Provider spatial.Provider
	Users    sumo.Users
	Store    decisionlog.Store
	Sink     coremetrics.DecisionSink

	cfg  *config.Config
	bus  *eventbus.TypedBus[events.Decision]
	feed *mqtt.Feed
	pool *pgxpool.Pool
	log  logger.Logger

	cancel   context.CancelFunc
	recorder <-chan struct{}
}

// New creates the MQTT-driven service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	feed, err := mqtt.NewFeed(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("mqtt feed: %w", err)
	}
	svc, err := build(ctx, cfg, func(areas []model.ParkingArea) liveFeed {
		feed.TrackParkings(areas)
		return feed
	})
	if err != nil {
		feed.Disconnect()
		return nil, err
	}
	svc.feed = feed
	return svc, nil
}

// NewOffline creates a service driven by an in-process feed with every
// parking area empty. The feed is returned so callers can place vehicles.
func NewOffline(ctx context.Context, cfg *config.Config) (*Service, *simfeed.Static, error) {
	var static *simfeed.Static
	svc, err := build(ctx, cfg, func(areas []model.ParkingArea) liveFeed {
		static = simfeed.NewStatic(areas)
		return static
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, static, nil
}

type liveFeed interface {
	simfeed.Feed
	simfeed.StopReserver
}

func build(ctx context.Context, cfg *config.Config, newFeed func([]model.ParkingArea) liveFeed) (svc *Service, err error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	log := logger.New("service")
	s := &Service{cfg: cfg, log: log, bus: eventbus.NewTyped[events.Decision]()}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	parkings, err := sumo.LoadParkingAreas(cfg.Data.Parkings)
	if err != nil {
		return nil, fmt.Errorf("parking areas: %w", err)
	}
	table, err := weights.Load(cfg.Data.Weights)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	book := calendar.NewBook(nil)
	if cfg.Data.Users != "" {
		s.Users, err = sumo.LoadUsers(cfg.Data.Users)
		if err != nil {
			return nil, fmt.Errorf("users: %w", err)
		}
		book = s.Users.Book()
	}
	feed := newFeed(parkings)
	if s.Provider, err = s.buildProvider(ctx, parkings); err != nil {
		return nil, err
	}
	if s.Clock, err = cfg.Clock.Build(); err != nil {
		return nil, err
	}
	if !cfg.Clock.Continue {
		if err := saveCheckpoint(s.Clock, cfg.Clock.Checkpoint); err != nil {
			log.Warnf("save checkpoint: %v", err)
		}
	}

	s.Advisor, err = advisor.New(cfg.Advisor, advisor.Deps{
		Provider:    s.Provider,
		Feed:        feed,
		Clock:       s.Clock,
		Weights:     table,
		Calendars:   book,
		Parkings:    parkings,
		Environment: cfg.Environment.Resolve(log),
		Logger:      logger.New("advisor"),
	})
	if err != nil {
		return nil, err
	}
	if s.Store, err = decisionlog.NewStore(cfg.DecisionLog); err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}
	if s.Sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.Guide = guidance.New(s.Advisor, feed, s.Clock, s.bus, logger.New("guidance"), cfg.Guidance)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	metrics.StartEventCollector(runCtx, s.bus, s.Sink)
	s.recorder = decisionlog.StartRecorder(runCtx, s.bus, s.Store, logger.New("decisionlog"))

	log.Infow("advisor ready", map[string]any{
		"parkings":  len(parkings),
		"calendars": book.Users(),
		"provider":  cfg.Provider.Type,
		"start":     s.Clock.StartTime(),
	})
	return s, nil
}

func (s *Service) buildProvider(ctx context.Context, parkings []model.ParkingArea) (spatial.Provider, error) {
	var p spatial.Provider
	switch s.cfg.Provider.Type {
	case "postgres":
		pool, err := postgres.Connect(ctx, s.cfg.Provider.Postgres)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		p = pg
	default:
		buildings, err := sumo.LoadBuildings(s.cfg.Data.Buildings)
		if err != nil {
			return nil, fmt.Errorf("buildings: %w", err)
		}
		p = memory.New(s.cfg.Provider.Memory, buildings, parkings)
	}
	if s.cfg.Provider.Resilient {
		p = resilient.New(p, s.cfg.Provider.Resilience, logger.New("resilience"))
	}
	return p, nil
}

func saveCheckpoint(c *timectl.Clock, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return c.Save(path)
}

// Ready reports whether the service can take decisions.
func (s *Service) Ready() error {
	if s.feed != nil && !s.feed.Connected() {
		return errors.New("simulator feed disconnected")
	}
	return nil
}

// Replay runs the given steps in order and returns one report per step.
func (s *Service) Replay(ctx context.Context, steps []simfeed.Step) ([]events.Step, error) {
	reports := make([]events.Step, 0, len(steps))
	for _, st := range steps {
		rep, _, err := s.Guide.Step(ctx, st)
		if err != nil {
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Run serves the HTTP API and guides the departures announced by the
// simulator feed until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s.feed == nil {
		return errors.New("no live simulator feed")
	}
	go func() {
		router := api.NewRouter(api.RouterConfig{Store: s.Store, Token: s.cfg.API.Token, Ready: s.Ready})
		if err := metrics.Serve(ctx, s.cfg.API.Addr, router); err != nil {
			s.log.Errorf("api server: %v", err)
		}
	}()
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" && addr != s.cfg.API.Addr {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	steps := s.feed.Steps()
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-steps:
			if _, _, err := s.Guide.Step(ctx, st); err != nil && ctx.Err() == nil {
				s.log.Errorf("step %.0f: %v", st.SimTime, err)
			}
		}
	}
}

// Close flushes pending decisions and releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	if s.recorder != nil {
		<-s.recorder
	}
	if n := s.bus.Dropped(); n > 0 {
		s.log.Warnf("metrics collector missed %d decisions", n)
	}
	if s.cancel != nil {
		s.cancel()
	}
	var errs []error
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.feed != nil {
		s.feed.Disconnect()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return errors.Join(errs...)
}
