package countdown

import (
	"sync"
	"testing"
	"time"

	"github.com/quickhand-app/quickhand/internal/status"
)

func ts(t time.Time) *time.Time { return &t }

func TestCompute_ReassignCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// accepted 450s ago: SLA (420s) elapsed, reassign permitted
	st := Compute(Inputs{
		Status:           status.Assigned,
		HelperAcceptedAt: ts(now.Add(-450 * time.Second)),
	}, now)
	if st.Reassign != "00:00" || !st.ReassignReady {
		t.Fatalf("expected elapsed SLA, got %+v", st)
	}

	// accepted 60s ago: 360s remain
	st = Compute(Inputs{
		Status:           status.Assigned,
		HelperAcceptedAt: ts(now.Add(-60 * time.Second)),
	}, now)
	if st.Reassign != "06:00" || st.ReassignReady {
		t.Fatalf("expected 06:00 remaining, got %+v", st)
	}

	// no timestamp: no countdown
	st = Compute(Inputs{Status: status.Assigned}, now)
	if st.Reassign != "" {
		t.Fatalf("expected no reassign countdown, got %+v", st)
	}

	// wrong status: no countdown even with timestamp
	st = Compute(Inputs{Status: status.Open, HelperAcceptedAt: ts(now)}, now)
	if st.Reassign != "" {
		t.Fatalf("expected no countdown for OPEN, got %+v", st)
	}
}

func TestCompute_AuthCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	st := Compute(Inputs{
		Status:               status.PendingAuth,
		PendingAuthExpiresAt: ts(now.Add(90 * time.Second)),
	}, now)
	if st.Auth != "01:30" || st.AuthExpired {
		t.Fatalf("expected 01:30 remaining, got %+v", st)
	}

	// already past the window
	st = Compute(Inputs{
		Status:               status.PendingAuth,
		PendingAuthExpiresAt: ts(now.Add(-1 * time.Second)),
	}, now)
	if st.Auth != "00:00" || !st.AuthExpired {
		t.Fatalf("expected expired auth window, got %+v", st)
	}

	// partial seconds round up, never a premature 00:00
	st = Compute(Inputs{
		Status:               status.PendingAuth,
		PendingAuthExpiresAt: ts(now.Add(400 * time.Millisecond)),
	}, now)
	if st.Auth != "00:01" || st.AuthExpired {
		t.Fatalf("expected ceiling to 00:01, got %+v", st)
	}

	// auth countdown only applies in PENDING_AUTH
	st = Compute(Inputs{Status: status.Assigned, PendingAuthExpiresAt: ts(now)}, now)
	if st.Auth != "" || st.AuthExpired {
		t.Fatalf("expected no auth countdown outside PENDING_AUTH, got %+v", st)
	}
}

func TestEngine_TickerOnlyWhileRelevant(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	var mu sync.Mutex
	var states []State
	e := NewEngine(clock, 5*time.Millisecond, func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	defer e.Stop()

	// OPEN with no timestamps: one immediate recompute, no ticking
	e.SetInputs(Inputs{Status: status.Open})
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	n := len(states)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one recompute while idle, got %d", n)
	}

	// PENDING_AUTH with a live window: the ticker must fire
	expires := clock.Now().Add(2 * time.Minute)
	e.SetInputs(Inputs{
		Status:               status.PendingAuth,
		PendingAuthExpiresAt: &expires,
	})
	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	ticked := len(states)
	mu.Unlock()
	if ticked <= n+1 {
		t.Fatalf("expected ticker recomputes, got %d total", ticked)
	}

	// back to a terminal status: ticker stops
	e.SetInputs(Inputs{Status: status.Cancelled})
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	settled := len(states)
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	after := len(states)
	mu.Unlock()
	if after != settled {
		t.Fatalf("ticker kept running after stop: %d -> %d", settled, after)
	}
}

func TestEngine_ObservesClockAdvance(t *testing.T) {
	clock := NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	expires := clock.Now().Add(1 * time.Second)

	var mu sync.Mutex
	var last State
	e := NewEngine(clock, 5*time.Millisecond, func(s State) {
		mu.Lock()
		last = s
		mu.Unlock()
	})
	defer e.Stop()

	e.SetInputs(Inputs{Status: status.PendingAuth, PendingAuthExpiresAt: &expires})
	clock.Advance(2 * time.Second)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	got := last
	mu.Unlock()
	if !got.AuthExpired || got.Auth != "00:00" {
		t.Fatalf("expected expiry after clock advance, got %+v", got)
	}
}
