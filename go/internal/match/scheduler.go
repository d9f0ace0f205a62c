package match

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// Scheduler issues cancellable one-shot deadlines.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Handle
}

// Handle is a pending callback returned by Scheduler.Schedule.
// Cancel is idempotent and safe to call after the callback has fired.
type Handle interface {
	Cancel()
}

// ClockScheduler implements Scheduler on top of a clockwork clock.
type ClockScheduler struct {
	clock Clock
}

// NewClockScheduler creates a scheduler backed by clock
func NewClockScheduler(clock Clock) *ClockScheduler {
	return &ClockScheduler{clock: clock}
}

const (
	handlePending int32 = iota
	handleFired
	handleCancelled
)

type timerHandle struct {
	state atomic.Int32
	timer clockwork.Timer
}

// Schedule runs fn once after d unless the returned handle is cancelled first.
func (s *ClockScheduler) Schedule(d time.Duration, fn func()) Handle {
	h := &timerHandle{}
	h.timer = s.clock.AfterFunc(d, func() {
		// A cancel that lost the race with Stop must still win over the callback
		if !h.state.CompareAndSwap(handlePending, handleFired) {
			return
		}
		fn()
	})
	return h
}

func (h *timerHandle) Cancel() {
	if !h.state.CompareAndSwap(handlePending, handleCancelled) {
		return
	}
	h.timer.Stop()
}
