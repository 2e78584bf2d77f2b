package status

import (
	"testing"

	"github.com/quickhand-app/quickhand/internal/api"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  api.TaskStatus
		want Canonical
	}{
		{api.StatusOpen, Open},
		{api.StatusPending, Open},
		{api.StatusDraft, Open},
		{api.StatusPendingAuth, PendingAuth},
		{api.StatusAssigned, Assigned},
		{api.StatusCompleted, Completed},
		{api.StatusCancelled, Cancelled},
		{api.StatusCanceledUS, Cancelled},
		{api.TaskStatus("SOMETHING_NEW"), Open},
		{api.TaskStatus(""), Open},
	}
	for _, c := range cases {
		if got := Normalize(c.raw); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raws := []api.TaskStatus{
		api.StatusDraft, api.StatusOpen, api.StatusPending, api.StatusPendingAuth,
		api.StatusAssigned, api.StatusCompleted, api.StatusCancelled, api.StatusCanceledUS,
		api.TaskStatus("garbage"),
	}
	for _, raw := range raws {
		once := Normalize(raw)
		twice := Normalize(api.TaskStatus(once))
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q vs %q", raw, once, twice)
		}
	}
}

func TestNormalizeListBucket(t *testing.T) {
	// The list screens bucket every unassigned status under PENDING, unlike
	// Normalize which keeps OPEN. Both mappings must stay total and idempotent.
	cases := []struct {
		raw  api.TaskStatus
		want ListBucket
	}{
		{api.StatusOpen, BucketPending},
		{api.StatusPending, BucketPending},
		{api.StatusDraft, BucketPending},
		{api.TaskStatus("???"), BucketPending},
		{api.StatusPendingAuth, BucketPendingAuth},
		{api.StatusAssigned, BucketAssigned},
		{api.StatusCompleted, BucketCompleted},
		{api.StatusCanceledUS, BucketCancelled},
	}
	for _, c := range cases {
		if got := NormalizeListBucket(c.raw); got != c.want {
			t.Fatalf("NormalizeListBucket(%q) = %q, want %q", c.raw, got, c.want)
		}
		if again := NormalizeListBucket(api.TaskStatus(c.want)); again != c.want {
			t.Fatalf("NormalizeListBucket not idempotent for %q", c.raw)
		}
	}
}

func TestRoleGuards(t *testing.T) {
	task := &api.Task{ID: "t1", RequesterID: "u1", HelperID: "u2"}

	if !IsRequester(task, "u1") {
		t.Fatalf("expected u1 to be requester")
	}
	if IsRequester(task, "u2") || IsRequester(task, "") || IsRequester(nil, "u1") {
		t.Fatalf("requester guard too permissive")
	}
	if !IsHelper(task, "u2") {
		t.Fatalf("expected u2 to be helper")
	}
	if IsHelper(task, "u1") {
		t.Fatalf("helper guard too permissive")
	}

	// absent helper id must never match the empty user
	open := &api.Task{ID: "t2", RequesterID: "u1"}
	if IsHelper(open, "") || IsPendingHelper(open, "") {
		t.Fatalf("empty ids must not match")
	}

	pending := &api.Task{ID: "t3", RequesterID: "u1", PendingHelperID: "u3", Status: api.StatusPendingAuth}
	if !IsPendingHelper(pending, "u3") {
		t.Fatalf("expected u3 to be pending helper")
	}
	if IsPendingHelper(pending, "u2") {
		t.Fatalf("pending helper guard too permissive")
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(Open) || IsTerminal(PendingAuth) || IsTerminal(Assigned) {
		t.Fatalf("non-terminal status reported terminal")
	}
	if !IsTerminal(Completed) || !IsTerminal(Cancelled) {
		t.Fatalf("terminal status not reported terminal")
	}
}
