package decisionlog

import (
	"context"

	"github.com/kilianp07/parkadvisor/core/events"
	"github.com/kilianp07/parkadvisor/core/logger"
	"github.com/kilianp07/parkadvisor/internal/eventbus"
)

// StartRecorder appends every decision published on bus to store until
// ctx is canceled or the bus is closed. Publishers wait for the recorder
// when it falls behind, so no decision is lost. The returned channel is
// closed once the recorder has stopped.
func StartRecorder(ctx context.Context, bus *eventbus.TypedBus[events.Decision], store Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	log = logger.OrNop(log)
	sub := bus.SubscribeWait(256)
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-sub:
				if !ok {
					return
				}
				if err := store.Append(context.WithoutCancel(ctx), FromDecision(d)); err != nil {
					log.Errorf("append decision %s: %v", d.ID, err)
				}
			}
		}
	}()
	return done
}
