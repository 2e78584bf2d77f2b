// Package status normalizes the raw server status vocabulary and derives the
// caller's relationship to a task. Everything here is pure.
package status

import "github.com/quickhand-app/quickhand/internal/api"

// Canonical is the five-state client vocabulary every lifecycle decision is
// made against.
type Canonical string

const (
	Open        Canonical = "OPEN"
	PendingAuth Canonical = "PENDING_AUTH"
	Assigned    Canonical = "ASSIGNED"
	Completed   Canonical = "COMPLETED"
	Cancelled   Canonical = "CANCELLED"
)

// Normalize maps a raw server status to the canonical vocabulary. DRAFT and
// PENDING collapse into OPEN, the US spelling of CANCELED is folded in, and
// anything unrecognized lands in the open bucket. Total and idempotent.
func Normalize(raw api.TaskStatus) Canonical {
	switch raw {
	case api.StatusPendingAuth:
		return PendingAuth
	case api.StatusAssigned:
		return Assigned
	case api.StatusCompleted:
		return Completed
	case api.StatusCancelled, api.StatusCanceledUS:
		return Cancelled
	default:
		// OPEN, PENDING, DRAFT, unknown
		return Open
	}
}

// ListBucket is the coarser grouping used by the list screens, which file
// every unassigned task under a single "pending" bucket.
type ListBucket string

const (
	BucketPending     ListBucket = "PENDING"
	BucketPendingAuth ListBucket = "PENDING_AUTH"
	BucketAssigned    ListBucket = "ASSIGNED"
	BucketCompleted   ListBucket = "COMPLETED"
	BucketCancelled   ListBucket = "CANCELLED"
)

// NormalizeListBucket maps a raw status to its list bucket. This is a second,
// deliberately separate normalization: the list screens historically mapped
// raw OPEN to a UI "PENDING" bucket while the detail screen keeps OPEN as
// OPEN. Lifecycle code must use Normalize; only list grouping uses this.
func NormalizeListBucket(raw api.TaskStatus) ListBucket {
	switch raw {
	case api.StatusPendingAuth:
		return BucketPendingAuth
	case api.StatusAssigned:
		return BucketAssigned
	case api.StatusCompleted:
		return BucketCompleted
	case api.StatusCancelled, api.StatusCanceledUS:
		return BucketCancelled
	default:
		return BucketPending
	}
}

// IsTerminal reports whether a canonical status admits no further transitions.
func IsTerminal(c Canonical) bool {
	return c == Completed || c == Cancelled
}

// IsRequester reports whether userID created the task.
func IsRequester(t *api.Task, userID string) bool {
	if t == nil || userID == "" {
		return false
	}
	return t.RequesterID == userID
}

// IsHelper reports whether userID is the authorized helper.
func IsHelper(t *api.Task, userID string) bool {
	if t == nil || userID == "" {
		return false
	}
	return t.HelperID != "" && t.HelperID == userID
}

// IsPendingHelper reports whether userID has claimed the task but has not yet
// been authorized.
func IsPendingHelper(t *api.Task, userID string) bool {
	if t == nil || userID == "" {
		return false
	}
	return t.PendingHelperID != "" && t.PendingHelperID == userID
}
