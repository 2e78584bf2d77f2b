package engage

import (
	"errors"
	"time"

	"github.com/quickhand-app/quickhand/internal/api"
	"github.com/quickhand-app/quickhand/internal/status"
)

const (
	// AuthWindow is the time the requester has to approve or reject a
	// claiming helper.
	AuthWindow = 120 * time.Second
	// MaxReassignments permanently disables reassignment once reached.
	MaxReassignments = 2
)

// ErrIllegalTransition is returned by Apply for any event the current status
// does not admit. The task is never mutated on error.
var ErrIllegalTransition = errors.New("illegal transition")

// Event is a confirmed lifecycle transition. Events are applied to the local
// snapshot only after the server acknowledged the corresponding action (or,
// for Accepted, as the optimistic half of a confirm-by-refetch pair).
type Event interface{ isEvent() }

// Accepted: a helper claimed an open task.
type Accepted struct {
	PendingHelperID string
	ExpiresAt       time.Time
}

// Authorized: the requester approved the pending helper. Patch carries the
// server's returned fields, if any.
type Authorized struct{ Patch *api.TaskPatch }

// Rejected: the requester declined the pending helper. With a nil Patch the
// deterministic fallback (back to OPEN, claim cleared) is applied.
type Rejected struct{ Patch *api.TaskPatch }

// Released: the helper gave the task back.
type Released struct{}

// Reassigned: the requester put the task back in the pool after the SLA.
type Reassigned struct{}

// Cancelled: the requester withdrew the task.
type Cancelled struct{ At time.Time }

// Completed: the requester confirmed the work is done.
type Completed struct{}

// Rated: one party submitted their rating.
type Rated struct {
	ByRequester bool
	Rating      float64
}

// OfferChanged: the requester updated (or cleared) the offer on an open task.
type OfferChanged struct {
	Amount   *float64
	Currency string
}

func (Accepted) isEvent()     {}
func (Authorized) isEvent()   {}
func (Rejected) isEvent()     {}
func (Released) isEvent()     {}
func (Reassigned) isEvent()   {}
func (Cancelled) isEvent()    {}
func (Completed) isEvent()    {}
func (Rated) isEvent()        {}
func (OfferChanged) isEvent() {}

// Apply is the lifecycle reducer: it returns the task after the event, or
// ErrIllegalTransition without touching it. All transition legality lives
// here; the controller and the UI never mutate snapshot fields directly.
//
//	OPEN -> PENDING_AUTH -> ASSIGNED -> COMPLETED
//	CANCELLED reachable from OPEN, PENDING_AUTH (reject), ASSIGNED
//	ASSIGNED -> OPEN via release or count-limited reassignment
func Apply(t api.Task, ev Event) (api.Task, error) {
	cur := status.Normalize(t.Status)

	switch e := ev.(type) {
	case Accepted:
		if cur != status.Open {
			return t, ErrIllegalTransition
		}
		expires := e.ExpiresAt
		t.Status = api.StatusPendingAuth
		t.PendingHelperID = e.PendingHelperID
		t.HelperID = ""
		t.PendingAuthExpiresAt = &expires
		return t, nil

	case Authorized:
		if cur != status.PendingAuth {
			return t, ErrIllegalTransition
		}
		pending := t.PendingHelperID
		if e.Patch != nil {
			t.Apply(*e.Patch)
		}
		t.Status = api.StatusAssigned
		if t.HelperID == "" {
			t.HelperID = pending
		}
		t.PendingHelperID = ""
		t.PendingAuthExpiresAt = nil
		if t.HelperAcceptedAt == nil {
			now := time.Now().UTC()
			t.HelperAcceptedAt = &now
		}
		return t, nil

	case Rejected:
		if cur != status.PendingAuth {
			return t, ErrIllegalTransition
		}
		if e.Patch != nil {
			t.Apply(*e.Patch)
		} else {
			t.Status = api.StatusOpen
		}
		t.PendingHelperID = ""
		t.PendingAuthExpiresAt = nil
		return t, nil

	case Released:
		if cur != status.Assigned {
			return t, ErrIllegalTransition
		}
		t.Status = api.StatusOpen
		t.HelperID = ""
		t.HelperAcceptedAt = nil
		t.ReleasedCount++
		return t, nil

	case Reassigned:
		if cur != status.Assigned || t.ReassignedCount >= MaxReassignments {
			return t, ErrIllegalTransition
		}
		t.Status = api.StatusOpen
		t.HelperID = ""
		t.HelperAcceptedAt = nil
		t.ReassignedCount++
		return t, nil

	case Cancelled:
		if cur != status.Open && cur != status.PendingAuth && cur != status.Assigned {
			return t, ErrIllegalTransition
		}
		at := e.At
		t.Status = api.StatusCancelled
		t.CancelledAt = &at
		t.PendingAuthExpiresAt = nil
		return t, nil

	case Completed:
		if cur != status.Assigned {
			return t, ErrIllegalTransition
		}
		t.Status = api.StatusCompleted
		return t, nil

	case Rated:
		if cur != status.Completed {
			return t, ErrIllegalTransition
		}
		rating := e.Rating
		if e.ByRequester {
			if t.RatingByRequester != nil {
				return t, ErrIllegalTransition
			}
			t.RatingByRequester = &rating
		} else {
			if t.RatingByHelper != nil {
				return t, ErrIllegalTransition
			}
			t.RatingByHelper = &rating
		}
		return t, nil

	case OfferChanged:
		if cur != status.Open || t.HelperID != "" {
			return t, ErrIllegalTransition
		}
		t.OfferAmount = e.Amount
		if e.Currency != "" {
			t.OfferCurrency = e.Currency
		}
		return t, nil

	default:
		return t, ErrIllegalTransition
	}
}
