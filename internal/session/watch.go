package session

import (
	"context"
	"time"
)

// Scheduler runs f once after d. The post-launch watchers are driven
// through it so they never run on the caller's goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules with time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

type watchState int

const (
	watchPending watchState = iota
	watchAttempting
	watchSucceeded
	watchExhausted
	watchCancelled
)

func (s watchState) String() string {
	switch s {
	case watchPending:
		return "pending"
	case watchAttempting:
		return "attempting"
	case watchSucceeded:
		return "succeeded"
	case watchExhausted:
		return "exhausted"
	case watchCancelled:
		return "cancelled"
	}
	return "unknown"
}

// watcher is a bounded-retry probe: pending, then attempt(1..max), ending in
// succeeded, exhausted or cancelled. Cancellation is the session context;
// it is checked before every attempt so a killed session's watcher stops at
// its next scheduled step.
type watcher struct {
	name     string
	max      int
	interval time.Duration

	// probe makes one attempt and reports whether the condition was met.
	probe func(ctx context.Context) bool
	// done is called once with the terminal state.
	done func(state watchState, attempts int)

	state    watchState
	attempts int
}

// start schedules the first attempt after delay.
func (w *watcher) start(ctx context.Context, sched Scheduler, delay time.Duration) {
	w.state = watchPending
	sched.AfterFunc(delay, func() { w.step(ctx, sched) })
}

func (w *watcher) step(ctx context.Context, sched Scheduler) {
	if ctx.Err() != nil {
		w.finish(watchCancelled)
		return
	}
	w.state = watchAttempting
	w.attempts++
	if w.probe(ctx) {
		w.finish(watchSucceeded)
		return
	}
	if w.attempts >= w.max {
		w.finish(watchExhausted)
		return
	}
	sched.AfterFunc(w.interval, func() { w.step(ctx, sched) })
}

func (w *watcher) finish(state watchState) {
	w.state = state
	if w.done != nil {
		w.done(state, w.attempts)
	}
}
