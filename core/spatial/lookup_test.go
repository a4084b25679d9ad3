package spatial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCallSuccess(t *testing.T) {
	l := Call(context.Background(), time.Second, func(context.Context) (float64, error) { return 42, nil })
	assert.True(t, l.OK())
	assert.Equal(t, 42.0, l.Or(1))
}

func TestCallFailure(t *testing.T) {
	boom := errors.New("boom")
	l := Call(context.Background(), time.Second, func(context.Context) (float64, error) { return 0, boom })
	assert.Equal(t, LookupFailed, l.Kind)
	assert.ErrorIs(t, l.Err, boom)
	assert.Equal(t, 7.0, l.Or(7))
}

func TestCallTimeoutIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	start := time.Now()
	l := Call(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.Equal(t, LookupTimedOut, l.Kind)
	assert.Equal(t, 5, l.Or(5))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCallCanceledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	l := Call(ctx, time.Second, func(context.Context) (int, error) { called = true; return 1, nil })
	assert.Equal(t, LookupCanceled, l.Kind)
	assert.False(t, called)
}

func TestLookupKindString(t *testing.T) {
	assert.Equal(t, "timeout", LookupTimedOut.String())
	assert.Equal(t, "ok", LookupOK.String())
}
