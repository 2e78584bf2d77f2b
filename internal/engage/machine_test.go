package engage

import (
	"errors"
	"testing"
	"time"

	"github.com/quickhand-app/quickhand/internal/api"
)

func openTask() api.Task {
	return api.Task{ID: "t1", Status: api.StatusOpen, RequesterID: "req"}
}

func pendingTask() api.Task {
	expires := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)
	return api.Task{
		ID: "t1", Status: api.StatusPendingAuth, RequesterID: "req",
		PendingHelperID: "helper", PendingAuthExpiresAt: &expires,
	}
}

func assignedTask() api.Task {
	accepted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return api.Task{
		ID: "t1", Status: api.StatusAssigned, RequesterID: "req",
		HelperID: "helper", HelperAcceptedAt: &accepted,
	}
}

func TestApply_Accepted(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)
	got, err := Apply(openTask(), Accepted{PendingHelperID: "helper", ExpiresAt: expires})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != api.StatusPendingAuth || got.PendingHelperID != "helper" || got.HelperID != "" {
		t.Fatalf("accept invariant violated: %+v", got)
	}
	if got.PendingAuthExpiresAt == nil || !got.PendingAuthExpiresAt.Equal(expires) {
		t.Fatalf("expected auth expiry anchor, got %+v", got.PendingAuthExpiresAt)
	}

	// PENDING and DRAFT are still the open bucket
	raw := openTask()
	raw.Status = api.StatusPending
	if _, err := Apply(raw, Accepted{PendingHelperID: "helper", ExpiresAt: expires}); err != nil {
		t.Fatalf("accept from PENDING: %v", err)
	}

	for _, from := range []api.Task{pendingTask(), assignedTask()} {
		if _, err := Apply(from, Accepted{PendingHelperID: "x", ExpiresAt: expires}); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("expected illegal accept from %s", from.Status)
		}
	}
}

func TestApply_Authorized(t *testing.T) {
	got, err := Apply(pendingTask(), Authorized{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != api.StatusAssigned || got.HelperID != "helper" || got.PendingHelperID != "" {
		t.Fatalf("authorize invariant violated: %+v", got)
	}
	if got.PendingAuthExpiresAt != nil {
		t.Fatalf("auth expiry must clear on authorize")
	}
	if got.HelperAcceptedAt == nil {
		t.Fatalf("authorize must anchor the reassignment SLA")
	}

	// server patch fields win over the optimistic defaults
	other := "helper2"
	assigned := api.StatusAssigned
	accepted := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	got, err = Apply(pendingTask(), Authorized{Patch: &api.TaskPatch{
		Status: &assigned, HelperID: &other, HelperAcceptedAt: &accepted,
	}})
	if err != nil {
		t.Fatalf("apply with patch: %v", err)
	}
	if got.HelperID != "helper2" || !got.HelperAcceptedAt.Equal(accepted) {
		t.Fatalf("patch not merged: %+v", got)
	}

	if _, err := Apply(openTask(), Authorized{}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal authorize from OPEN")
	}
}

func TestApply_Rejected(t *testing.T) {
	// nil patch: deterministic fallback
	got, err := Apply(pendingTask(), Rejected{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != api.StatusOpen || got.PendingHelperID != "" || got.PendingAuthExpiresAt != nil {
		t.Fatalf("reject fallback violated: %+v", got)
	}

	// server patch is merged first
	open := api.StatusOpen
	got, err = Apply(pendingTask(), Rejected{Patch: &api.TaskPatch{Status: &open}})
	if err != nil {
		t.Fatalf("apply with patch: %v", err)
	}
	if got.Status != api.StatusOpen || got.PendingHelperID != "" {
		t.Fatalf("reject patch violated: %+v", got)
	}

	if _, err := Apply(assignedTask(), Rejected{}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal reject from ASSIGNED")
	}
}

func TestApply_ReleaseAndReassign(t *testing.T) {
	got, err := Apply(assignedTask(), Released{})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got.Status != api.StatusOpen || got.HelperID != "" || got.HelperAcceptedAt != nil || got.ReleasedCount != 1 {
		t.Fatalf("release effect violated: %+v", got)
	}

	got, err = Apply(assignedTask(), Reassigned{})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if got.Status != api.StatusOpen || got.ReassignedCount != 1 {
		t.Fatalf("reassign effect violated: %+v", got)
	}

	// reached the cap: permanently disabled
	capped := assignedTask()
	capped.ReassignedCount = MaxReassignments
	if _, err := Apply(capped, Reassigned{}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected reassign disabled at cap")
	}

	if _, err := Apply(openTask(), Released{}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal release from OPEN")
	}
}

func TestApply_CancelledAndCompleted(t *testing.T) {
	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	for _, from := range []api.Task{openTask(), pendingTask(), assignedTask()} {
		got, err := Apply(from, Cancelled{At: at})
		if err != nil {
			t.Fatalf("cancel from %s: %v", from.Status, err)
		}
		if got.Status != api.StatusCancelled || got.CancelledAt == nil || got.PendingAuthExpiresAt != nil {
			t.Fatalf("cancel effect violated: %+v", got)
		}
	}

	got, err := Apply(assignedTask(), Completed{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != api.StatusCompleted {
		t.Fatalf("complete effect violated: %+v", got)
	}
	if _, err := Apply(openTask(), Completed{}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected illegal complete from OPEN")
	}
}

func TestApply_TerminalStatesAreFrozen(t *testing.T) {
	cancelled := openTask()
	cancelled.Status = api.StatusCancelled
	completed := assignedTask()
	completed.Status = api.StatusCompleted

	events := []Event{
		Accepted{PendingHelperID: "x", ExpiresAt: time.Now()},
		Authorized{}, Rejected{}, Released{}, Reassigned{},
		Cancelled{At: time.Now()}, Completed{},
		OfferChanged{},
	}
	for _, ev := range events {
		if _, err := Apply(cancelled, ev); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("cancelled task accepted %T", ev)
		}
	}
	for _, ev := range events {
		if _, err := Apply(completed, ev); !errors.Is(err, ErrIllegalTransition) {
			t.Fatalf("completed task accepted %T", ev)
		}
	}
	// the only thing a completed task admits is rating
	if _, err := Apply(completed, Rated{ByRequester: true, Rating: 4.5}); err != nil {
		t.Fatalf("rating a completed task: %v", err)
	}
	if _, err := Apply(cancelled, Rated{ByRequester: true, Rating: 4.5}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("cancelled task accepted a rating")
	}
}

func TestApply_RatingWriteOnce(t *testing.T) {
	completed := assignedTask()
	completed.Status = api.StatusCompleted

	got, err := Apply(completed, Rated{ByRequester: true, Rating: 5})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if got.RatingByRequester == nil || *got.RatingByRequester != 5 {
		t.Fatalf("rating not recorded: %+v", got)
	}
	if _, err := Apply(got, Rated{ByRequester: true, Rating: 3}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("second requester rating accepted")
	}
	// the other party may still rate
	got, err = Apply(got, Rated{ByRequester: false, Rating: 4})
	if err != nil {
		t.Fatalf("helper rate: %v", err)
	}
	if got.RatingByHelper == nil || *got.RatingByHelper != 4 {
		t.Fatalf("helper rating not recorded: %+v", got)
	}
}

func TestApply_OfferChanged(t *testing.T) {
	amount := 1500.0
	got, err := Apply(openTask(), OfferChanged{Amount: &amount, Currency: "INR"})
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if got.OfferAmount == nil || *got.OfferAmount != 1500 || got.OfferCurrency != "INR" {
		t.Fatalf("offer effect violated: %+v", got)
	}

	// clearing
	got, err = Apply(got, OfferChanged{Amount: nil})
	if err != nil {
		t.Fatalf("clear offer: %v", err)
	}
	if got.OfferAmount != nil {
		t.Fatalf("offer not cleared: %+v", got)
	}

	// not with a helper attached, not outside OPEN
	withHelper := openTask()
	withHelper.HelperID = "helper"
	if _, err := Apply(withHelper, OfferChanged{Amount: &amount}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("offer allowed with helper set")
	}
	if _, err := Apply(assignedTask(), OfferChanged{Amount: &amount}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("offer allowed on ASSIGNED")
	}
}
