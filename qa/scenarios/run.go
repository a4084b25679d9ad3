package scenarios

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/parkadvisor/app/guidance"
	"github.com/kilianp07/parkadvisor/core/advisor"
	"github.com/kilianp07/parkadvisor/core/events"
	"github.com/kilianp07/parkadvisor/core/logger"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/core/weights"
	"github.com/kilianp07/parkadvisor/infra/provider/memory"
	"github.com/kilianp07/parkadvisor/internal/eventbus"
)

// Result collects what happened while replaying a scenario.
type Result struct {
	Steps     []events.Step
	Decisions []events.Decision
}

// Totals sums the per-step reports.
func (r *Result) Totals() events.Step {
	var t events.Step
	for _, s := range r.Steps {
		t.Guided += s.Guided
		t.Reserved += s.Reserved
		t.Failed += s.Failed
	}
	return t
}

// Check compares the result against the expectations of the scenario.
func (r *Result) Check(exp Expected) error {
	var errs []error
	t := r.Totals()
	if t.Guided != exp.Guided {
		errs = append(errs, fmt.Errorf("guided: expected %d, got %d", exp.Guided, t.Guided))
	}
	if t.Reserved != exp.Reserved {
		errs = append(errs, fmt.Errorf("reserved: expected %d, got %d", exp.Reserved, t.Reserved))
	}
	if t.Failed != exp.Failed {
		errs = append(errs, fmt.Errorf("failed: expected %d, got %d", exp.Failed, t.Failed))
	}
	got := make(map[string]string, len(r.Decisions))
	for _, d := range r.Decisions {
		got[d.VehicleID] = d.Reserved
	}
	for vehicle, area := range exp.Reservations {
		if got[vehicle] != area {
			errs = append(errs, fmt.Errorf("%s: expected %q, got %q", vehicle, area, got[vehicle]))
		}
	}
	return errors.Join(errs...)
}

// Run replays every step of the scenario against a memory provider and an
// in-process feed.
func Run(ctx context.Context, sc *Scenario, log logger.Logger) (*Result, error) {
	log = logger.OrNop(log)
	areas := sc.Areas()
	table, err := weights.NewTable(sc.Weights.Factors)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	book, err := sc.Book()
	if err != nil {
		return nil, err
	}
	clock, err := timectl.FromWeekDayTime(sc.Start.Week, sc.Start.Day, sc.Start.Time)
	if err != nil {
		return nil, err
	}
	feed := sc.Feed()
	a, err := advisor.New(advisor.DefaultParams(), advisor.Deps{
		Provider:  memory.New(memory.Config{}, sc.Buildings, areas),
		Feed:      feed,
		Clock:     clock,
		Weights:   table,
		Calendars: book,
		Parkings:  areas,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	bus := eventbus.NewTyped[events.Decision]()
	defer bus.Close()
	guide := guidance.New(a, feed, clock, bus, log, guidance.Config{Concurrency: 1})

	res := &Result{}
	for _, st := range sc.Steps {
		rep, decisions, err := guide.Step(ctx, st)
		if err != nil {
			return res, fmt.Errorf("step %.0f: %w", st.SimTime, err)
		}
		res.Steps = append(res.Steps, rep)
		res.Decisions = append(res.Decisions, decisions...)
	}
	return res, nil
}
