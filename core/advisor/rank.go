package advisor

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
)

// CostRecord details how a candidate parking area was scored.
type CostRecord struct {
	ParkingID          string  `json:"parking_id"`
	TimeTotal          float64 `json:"time_total"`
	TimeWalking        float64 `json:"time_walking"`
	DrivingTime        float64 `json:"driving_time"`
	FreeSpots          int     `json:"free_spots"`
	SuccessProbability float64 `json:"success_probability"`
	TotalCost          float64 `json:"total_cost"`
}

// Ranking is the ordered short list of parking areas for a destination.
type Ranking struct {
	Target model.TargetLabel
	Areas  []model.ParkingArea
	// Costs holds every evaluated candidate, cheapest first.
	Costs         []CostRecord
	Blend         Blend
	VisitRecorded bool
}

// IDs returns the identifiers of the proposed areas in order.
func (r Ranking) IDs() []string {
	out := make([]string, len(r.Areas))
	for i, pa := range r.Areas {
		out[i] = pa.ID
	}
	return out
}

// PickParkingAreas records the visit to target and returns up to
// NPropositions parking areas by increasing cost. The only error returned
// is the context's.
func (a *Advisor) PickParkingAreas(ctx context.Context, q model.VehicleQuery, target model.TargetLabel, s *Suggestion) (Ranking, error) {
	defer observeStage("rank", time.Now())
	if err := ctx.Err(); err != nil {
		return Ranking{}, err
	}
	cyc, sets := a.cycleFor(ctx, q, s)
	r := Ranking{Target: target}

	r.VisitRecorded = a.recordVisit(ctx, cyc, target)
	candidates := a.candidates(ctx, target)
	r.Blend = a.blend(ctx, cyc, sets, target)

	records := make([]CostRecord, len(candidates))
	var g errgroup.Group
	g.SetLimit(a.p.Concurrency)
	for i, pa := range candidates {
		g.Go(func() error {
			records[i] = a.score(ctx, cyc.q, target, pa, r.Blend.Weights)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Ranking{}, err
	}

	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return records[order[i]].TotalCost < records[order[j]].TotalCost })

	r.Costs = make([]CostRecord, len(order))
	for k, i := range order {
		r.Costs[k] = records[i]
		if k < a.p.NPropositions {
			r.Areas = append(r.Areas, candidates[i])
		}
	}
	a.log.Debugw("parking areas ranked", map[string]any{
		"vehicle_id": q.VehicleID,
		"target":     string(target),
		"candidates": len(candidates),
		"proposed":   r.IDs(),
	})
	return r, nil
}

func (a *Advisor) recordVisit(ctx context.Context, cyc *etaCycle, target model.TargetLabel) bool {
	rec := spatial.VisitRecord{
		UserID:       cyc.q.UserID,
		Label:        target,
		TimeOfWeek:   cyc.arrivalToW(ctx, target),
		AbsoluteTime: cyc.now.global,
	}
	l := lookup(ctx, a, "record_visit", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.provider.RecordVisit(ctx, rec)
	})
	return l.OK()
}

// candidates fetches the areas nearest to target, dropping duplicates and
// areas missing from the static parking list.
func (a *Advisor) candidates(ctx context.Context, target model.TargetLabel) []model.ParkingArea {
	l := lookup(ctx, a, "nearest_parking_areas", func(ctx context.Context) ([]string, error) {
		return a.provider.NearestParkingAreas(ctx, target, a.p.CandidateCount)
	})
	ids := l.Value
	if len(ids) > a.p.CandidateCount {
		ids = ids[:a.p.CandidateCount]
	}
	out := make([]model.ParkingArea, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		pa, ok := a.parkingByID[id]
		if !ok {
			a.log.Warnf("candidate parking area %s is not in the static list, skipped", id)
			continue
		}
		out = append(out, pa)
	}
	return out
}

func (a *Advisor) score(ctx context.Context, q model.VehicleQuery, target model.TargetLabel, pa model.ParkingArea, w model.WeightTriple) CostRecord {
	rec := CostRecord{ParkingID: pa.ID}

	var g errgroup.Group
	g.Go(func() error {
		if !q.Located {
			rec.TimeTotal = a.p.MaxTimeTotal
			return nil
		}
		rec.TimeTotal = lookup(ctx, a, "total_time", func(ctx context.Context) (float64, error) {
			return a.provider.TotalTimeEstimate(ctx, pa.ID, target, q.Position)
		}).Or(a.p.MaxTimeTotal)
		return nil
	})
	g.Go(func() error {
		rec.TimeWalking = lookup(ctx, a, "walking_time", func(ctx context.Context) (float64, error) {
			return a.provider.WalkingTimeEstimate(ctx, pa.ID, target)
		}).Or(a.p.MaxTimeWalking)
		return nil
	})
	g.Go(func() error {
		if !q.Located {
			rec.DrivingTime = a.p.MaxTimeDriving
			return nil
		}
		rec.DrivingTime = lookup(ctx, a, "driving_time", func(ctx context.Context) (float64, error) {
			return a.provider.DrivingTimeEstimate(ctx, pa.ID, q.Position)
		}).Or(a.p.MaxTimeDriving)
		return nil
	})
	g.Go(func() error {
		occ := lookup(ctx, a, "parking_occupancy", func(ctx context.Context) (int, error) {
			return a.feed.ParkingOccupancy(ctx, pa.ID)
		}).Or(pa.Capacity)
		rec.FreeSpots = max(pa.Capacity-occ, 0)
		return nil
	})
	_ = g.Wait()

	rec.SuccessProbability = (a.freeSpotProbability(rec.FreeSpots) + a.drivingProbability(rec.DrivingTime)) / 2
	rec.TotalCost = w.Time*unitRatio(rec.TimeTotal, a.p.MaxTimeTotal) +
		w.Walking*unitRatio(rec.TimeWalking, a.p.MaxTimeWalking) +
		w.Success*(1-rec.SuccessProbability)
	if math.IsNaN(rec.TotalCost) || math.IsInf(rec.TotalCost, 0) {
		rec.TotalCost = w.Time + w.Walking + w.Success
	}
	return rec
}

// freeSpotProbability is 0 for a full area and approaches 1 as free
// spots increase.
func (a *Advisor) freeSpotProbability(free int) float64 {
	p := a.p.CoefFreeSpace * (1/(1+math.Exp(-float64(free)/5)) - 0.5)
	return clamp01(p)
}

// drivingProbability decreases with the driving time to the area.
func (a *Advisor) drivingProbability(t float64) float64 {
	return clamp01(2 / (1 + math.Exp(t/(4*a.p.MaxTimeDriving))))
}

func unitRatio(v, limit float64) float64 {
	return clamp01(v / limit)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
