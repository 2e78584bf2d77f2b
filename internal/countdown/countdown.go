// Package countdown derives the two engagement countdowns (authorization
// expiry and reassignment availability) from task timestamps. A one-second
// ticker runs only while a relevant status is active so an idle screen
// schedules no timer at all.
package countdown

import (
	"sync"
	"time"

	"github.com/quickhand-app/quickhand/internal/format"
	"github.com/quickhand-app/quickhand/internal/status"
)

// ReassignSLA is the dwell time after helper acceptance before the requester
// may release the task to another helper.
const ReassignSLA = 420 * time.Second

// Inputs are the task fields the engine derives countdowns from.
type Inputs struct {
	Status               status.Canonical
	HelperAcceptedAt     *time.Time
	PendingAuthExpiresAt *time.Time
}

// State is one computed snapshot of both countdowns. Empty strings mean the
// countdown does not apply to the current status.
type State struct {
	// Reassign is MM:SS until the reassignment SLA elapses, "" if inactive.
	Reassign string
	// ReassignReady is true once the SLA countdown has reached zero.
	ReassignReady bool
	// Auth is MM:SS until the authorization window closes, "" if inactive.
	Auth string
	// AuthExpired is true once the window closed while still PENDING_AUTH.
	AuthExpired bool
}

// Compute derives the countdown state at a given instant. Pure.
func Compute(in Inputs, now time.Time) State {
	var st State
	if in.Status == status.Assigned && in.HelperAcceptedAt != nil {
		availableAt := in.HelperAcceptedAt.Add(ReassignSLA)
		remaining := availableAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		st.Reassign = format.Countdown(remaining)
		st.ReassignReady = remaining == 0
	}
	if in.Status == status.PendingAuth && in.PendingAuthExpiresAt != nil {
		remaining := in.PendingAuthExpiresAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		st.Auth = format.Countdown(remaining)
		st.AuthExpired = remaining == 0
	}
	return st
}

// active reports whether the inputs warrant a running ticker.
func active(in Inputs) bool {
	return (in.Status == status.Assigned && in.HelperAcceptedAt != nil) ||
		(in.Status == status.PendingAuth && in.PendingAuthExpiresAt != nil)
}

// Engine owns the ticking clock. It recomputes on every input change and once
// per interval while a countdown is live, delivering each State to notify.
// The notify callback runs on the engine goroutine (or the caller's goroutine
// for immediate recomputes) and must not block.
type Engine struct {
	clock    Clock
	interval time.Duration
	notify   func(State)

	mu     sync.Mutex
	inputs Inputs
	stop   chan struct{}
	done   chan struct{}
}

// NewEngine creates an engine. A zero interval defaults to one second.
func NewEngine(clock Clock, interval time.Duration, notify func(State)) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{clock: clock, interval: interval, notify: notify}
}

// SetInputs replaces the engine inputs, recomputes immediately, and starts or
// stops the ticker as needed.
func (e *Engine) SetInputs(in Inputs) {
	e.mu.Lock()
	e.inputs = in
	shouldRun := active(in)
	running := e.stop != nil
	var stop chan struct{}
	if shouldRun && !running {
		e.stop = make(chan struct{})
		e.done = make(chan struct{})
		go e.run(e.stop, e.done)
	} else if !shouldRun && running {
		stop = e.stop
		e.stop = nil
	}
	e.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	e.notify(Compute(in, e.clock.Now()))
}

// Stop halts any running ticker. Safe to call repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	stop := e.stop
	done := e.done
	e.stop = nil
	e.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}

func (e *Engine) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			in := e.inputs
			e.mu.Unlock()
			e.notify(Compute(in, e.clock.Now()))
		}
	}
}
