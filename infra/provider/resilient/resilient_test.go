package resilient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/spatial"
)

type flaky struct {
	spatial.Provider
	failures int32
	calls    atomic.Int32
	err      error
}

func (f *flaky) TravelTimeEstimate(ctx context.Context, _ model.TargetLabel, _ model.Position) (float64, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return 0, f.err
	}
	return 42, nil
}

func (f *flaky) RecordVisit(context.Context, spatial.VisitRecord) error {
	f.calls.Add(1)
	return nil
}

func fastConfig() Config {
	return Config{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		OpenTimeout:     time.Hour,
		MinRequests:     3,
		FailureRatio:    0.5,
	}
}

func TestRetriesTransientFailure(t *testing.T) {
	f := &flaky{failures: 2, err: errors.New("timeout")}
	p := New(f, fastConfig(), nil)
	v, err := p.TravelTimeEstimate(context.Background(), "A", model.Position{})
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("down")
	f := &flaky{failures: 100, err: boom}
	cfg := fastConfig()
	cfg.MinRequests = 100
	p := New(f, cfg, nil)
	_, err := p.TravelTimeEstimate(context.Background(), "A", model.Position{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestBreakerOpensAndFailsFast(t *testing.T) {
	f := &flaky{failures: 100, err: errors.New("down")}
	p := New(f, fastConfig(), nil)
	_, err := p.TravelTimeEstimate(context.Background(), "A", model.Position{})
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, p.State())

	before := f.calls.Load()
	_, err = p.TravelTimeEstimate(context.Background(), "A", model.Position{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, before, f.calls.Load())
}

func TestCanceledContextDoesNotTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &flaky{failures: 100, err: context.Canceled}
	p := New(f, fastConfig(), nil)
	for range 5 {
		_, err := p.TravelTimeEstimate(ctx, "A", model.Position{})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestRecordVisitAndClearHistory(t *testing.T) {
	f := &flaky{}
	p := New(f, fastConfig(), nil)
	require.NoError(t, p.RecordVisit(context.Background(), spatial.VisitRecord{UserID: 1, Label: "A"}))
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Error(t, p.ClearHistory(context.Background()))
}
