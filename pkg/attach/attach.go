// Package attach implements the attach-confirmation wait: a bounded polling
// state machine over the debug listener's "is a client connected" flag.
//
// The Poller is tick-driven so a host application can feed it from its own
// timer facility; Wait wraps it in a ticker loop for the standalone harness,
// which has no host event loop to borrow.
package attach

import (
	"context"
	"time"

	"github.com/polyforge/debugbridge/pkg/observability"
)

// ConnectionState exposes the connection flag owned by the debug listener.
// Observers only ever read it.
type ConnectionState interface {
	ClientConnected() bool
}

// Status is the poller's state. Waiting is the only non-terminal state.
type Status int

const (
	// Waiting means the client has not attached and the limit is not reached.
	Waiting Status = iota

	// Attached means the connection flag was observed true. Terminal.
	Attached

	// TimedOut means the tick limit was exceeded first. Terminal.
	TimedOut
)

// String returns the status name for logs and messages.
func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Attached:
		return "attached"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the wait.
func (s Status) Terminal() bool {
	return s == Attached || s == TimedOut
}

// Poller is the bounded-retry state machine. Each Tick does O(1) work:
// increment the counter, check the limit, observe the flag. Once a terminal
// status is reached further Ticks return it without re-observing anything.
type Poller struct {
	state  ConnectionState
	limit  int
	ticks  int
	status Status
}

// NewPoller returns a poller that times out once the tick counter exceeds
// limit.
func NewPoller(state ConnectionState, limit int) *Poller {
	return &Poller{state: state, limit: limit}
}

// Tick advances the poller by one timer callback and returns the resulting
// status.
func (p *Poller) Tick() Status {
	if p.status.Terminal() {
		return p.status
	}
	p.ticks++
	if p.ticks > p.limit {
		p.status = TimedOut
	} else if p.state.ClientConnected() {
		p.status = Attached
	}
	return p.status
}

// Ticks returns how many times Tick has run.
func (p *Poller) Ticks() int {
	return p.ticks
}

// Status returns the current status without advancing the poller.
func (p *Poller) Status() Status {
	return p.status
}

// DefaultInterval matches the host timer cadence the original add-on used.
const DefaultInterval = 100 * time.Millisecond

// progressCadence is how many ticks pass between progress callbacks.
const progressCadence = 60

// WaitOptions configures Wait.
type WaitOptions struct {
	// Interval between ticks. Defaults to DefaultInterval.
	Interval time.Duration

	// Timeout for the whole wait. The tick limit is derived from it so a
	// second of timeout means a second of waiting regardless of Interval.
	Timeout time.Duration

	// OnWaiting, when set, is called with the tick count on the first tick
	// and every 60th tick after, for "still waiting" progress messages.
	OnWaiting func(ticks int)
}

// Wait polls state until the client attaches, the timeout elapses, or ctx is
// cancelled. Cancellation releases the ticker and returns Waiting with
// ctx.Err(); neither terminal status is emitted for a cancelled wait.
func Wait(ctx context.Context, state ConnectionState, opts WaitOptions) (Status, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	limit := int(opts.Timeout / interval)
	if limit < 1 {
		limit = 1
	}

	poller := NewPoller(state, limit)
	start := time.Now()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Waiting, ctx.Err()
		case <-ticker.C:
			status := poller.Tick()
			if status.Terminal() {
				observability.Debug().OnAttachResult(ctx, status == Attached, time.Since(start))
				return status, nil
			}
			if opts.OnWaiting != nil && (poller.Ticks() == 1 || poller.Ticks()%progressCadence == 0) {
				opts.OnWaiting(poller.Ticks())
			}
		}
	}
}
