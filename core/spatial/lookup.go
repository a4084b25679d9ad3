package spatial

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LookupKind tells how an external call ended.
type LookupKind int

const (
	LookupOK LookupKind = iota
	LookupFailed
	LookupTimedOut
	LookupCanceled
)

func (k LookupKind) String() string {
	switch k {
	case LookupOK:
		return "ok"
	case LookupFailed:
		return "failed"
	case LookupTimedOut:
		return "timeout"
	case LookupCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Lookup is the outcome of one external call. Value is only meaningful
// when Kind is LookupOK.
type Lookup[T any] struct {
	Value T
	Kind  LookupKind
	Err   error
}

// OK reports whether the call succeeded.
func (l Lookup[T]) OK() bool { return l.Kind == LookupOK }

// Or returns the value on success and fallback otherwise.
func (l Lookup[T]) Or(fallback T) T {
	if l.Kind == LookupOK {
		return l.Value
	}
	return fallback
}

// Call runs fn bounded by timeout. The deadline is enforced even if fn
// ignores its context: the result of a late call is discarded.
func Call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) Lookup[T] {
	if err := ctx.Err(); err != nil {
		return Lookup[T]{Kind: LookupCanceled, Err: err}
	}
	cctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(cctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Lookup[T]{Kind: classify(ctx, r.err), Err: r.err}
		}
		return Lookup[T]{Value: r.v, Kind: LookupOK}
	case <-cctx.Done():
		return Lookup[T]{Kind: classify(ctx, cctx.Err()), Err: cctx.Err()}
	}
}

func classify(parent context.Context, err error) LookupKind {
	if parent.Err() != nil {
		return LookupCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return LookupTimedOut
	}
	return LookupFailed
}
