package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// countdown is the per-room scheduler handle: idle until startCountdown,
// running while the ticker goroutine lives, ended once stop is called. It is
// started at most once (the poll state's TimerStarted flag guards the
// trigger) and stop is idempotent, so natural expiry and room destruction
// can both release it without coordinating.
type countdown struct {
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func startCountdown(parent context.Context, clock clockwork.Clock, interval time.Duration, inbox chan<- Msg) *countdown {
	ctx, cancel := context.WithCancel(parent)
	c := &countdown{cancel: cancel}

	ticker := clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				// Ticks serialize through the room inbox with every other
				// mutation, so they can pile up but never overlap.
				select {
				case inbox <- tick{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return c
}

func (c *countdown) stop() {
	c.stopOnce.Do(c.cancel)
}
