package engage

import (
	"github.com/quickhand-app/quickhand/internal/api"
	"github.com/quickhand-app/quickhand/internal/countdown"
	"github.com/quickhand-app/quickhand/internal/reason"
	"github.com/quickhand-app/quickhand/internal/status"
)

// Role is the caller's relationship to the current task.
type Role string

const (
	RoleRequester     Role = "requester"
	RoleHelper        Role = "helper"
	RolePendingHelper Role = "pending_helper"
	RoleObserver      Role = "observer"
)

// Notice is a non-blocking, context-specific message for the UI layer.
type Notice string

const (
	NoticeNone            Notice = ""
	NoticeTaskNotFound    Notice = "task_not_found"
	NoticeAlreadyAssigned Notice = "already_assigned"
	NoticeAlreadyApproved Notice = "already_approved"
	NoticeAuthExpired     Notice = "auth_expired_searching"
	NoticeNotAllowed      Notice = "not_allowed"
	NoticeOnlyRequester   Notice = "only_requester_can_complete"
	NoticeActionFailed    Notice = "action_failed"
	NoticeReassignFailed  Notice = "reassign_failed"
	NoticeRatingFailed    Notice = "rating_failed"
	NoticeReasonRequired  Notice = "reason_required"
	NoticeOfferInvalid    Notice = "offer_invalid"
	NoticeOfferSaveFailed Notice = "offer_save_failed"
)

// Outcome classifies an action attempt from the caller's perspective.
type Outcome string

const (
	// OutcomeOK: the server confirmed the action and the snapshot advanced.
	OutcomeOK Outcome = "ok"
	// OutcomeBusy: another mutating action is still in flight; nothing was sent.
	OutcomeBusy Outcome = "busy"
	// OutcomeBlocked: a local guard rejected the action; nothing was sent.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeConflict: the server disagreed and the snapshot was re-fetched.
	OutcomeConflict Outcome = "conflict"
	// OutcomeFailed: transport or server failure; the snapshot is unchanged.
	OutcomeFailed Outcome = "failed"
)

// ActionResult is what every mutating controller action returns.
type ActionResult struct {
	Outcome Outcome
	Notice  Notice
}

// ReasonSheet is the shared modal state for cancel/release/reject capture.
type ReasonSheet struct {
	Visible bool
	Action  reason.Action
	Code    string
	Text    string
}

// Busy mirrors the per-action loading flags that serialize user actions.
type Busy struct {
	Action      bool
	Refreshing  bool
	OfferSaving bool
	Reveal      bool
	Rating      bool
}

// Actions reports which actions the current user may take right now. The UI
// hides controls accordingly, but the controller re-checks every guard on
// invocation regardless.
type Actions struct {
	Accept    bool
	Authorize bool
	Reject    bool
	Complete  bool
	Cancel    bool
	Release   bool
	Reassign  bool
	Rate      bool
	EditOffer bool
}

// Snapshot is the read-only projection handed to the rendering layer.
type Snapshot struct {
	Task     api.Task
	Found    bool
	NotFound bool

	Role      Role
	Status    status.Canonical
	Countdown countdown.State
	Actions   Actions

	Notice  Notice
	Sheet   ReasonSheet
	Phone   string
	Payment *api.PaymentRequest
	Nearby  []api.Task
	Busy    Busy
}
