package api

import (
	"errors"
	"time"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.quickhand.app"

// TaskStatus is the raw server status vocabulary. The server speaks a wider
// set than the five canonical client states; see internal/status for the
// normalizations applied before any lifecycle decision.
type TaskStatus string

const (
	StatusDraft       TaskStatus = "DRAFT"
	StatusOpen        TaskStatus = "OPEN"
	StatusPending     TaskStatus = "PENDING"
	StatusPendingAuth TaskStatus = "PENDING_AUTH"
	StatusAssigned    TaskStatus = "ASSIGNED"
	StatusCompleted   TaskStatus = "COMPLETED"
	StatusCancelled   TaskStatus = "CANCELLED"
	// StatusCanceledUS appears in older server responses.
	StatusCanceledUS TaskStatus = "CANCELED"
)

// Task is the authoritative-as-known view of one task. Identity fields use
// "" for absent; nullable timestamps and numbers use pointers.
type Task struct {
	ID              string     `json:"id"`
	Status          TaskStatus `json:"status"`
	Title           string     `json:"title"`
	RequesterID     string     `json:"requester_id"`
	HelperID        string     `json:"helper_id,omitempty"`
	PendingHelperID string     `json:"pending_helper_id,omitempty"`

	HelperAcceptedAt     *time.Time `json:"helper_accepted_at,omitempty"`
	PendingAuthExpiresAt *time.Time `json:"pending_auth_expires_at,omitempty"`

	ReassignedCount int `json:"reassigned_count"`
	ReleasedCount   int `json:"released_count"`

	OfferAmount   *float64 `json:"offer_amount,omitempty"`
	OfferCurrency string   `json:"offer_currency,omitempty"`

	RatingByRequester *float64 `json:"rating_by_requester,omitempty"`
	RatingByHelper    *float64 `json:"rating_by_helper,omitempty"`

	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lng            *float64 `json:"lng,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// TaskPatch is a partial task update as returned by mutating endpoints.
// nil pointer => "no change"; empty string for identity fields => clear.
type TaskPatch struct {
	Status          *TaskStatus `json:"status,omitempty"`
	HelperID        *string     `json:"helper_id,omitempty"`
	PendingHelperID *string     `json:"pending_helper_id,omitempty"`

	HelperAcceptedAt     *time.Time `json:"helper_accepted_at,omitempty"`
	PendingAuthExpiresAt *time.Time `json:"pending_auth_expires_at,omitempty"`

	ReassignedCount *int `json:"reassigned_count,omitempty"`
	ReleasedCount   *int `json:"released_count,omitempty"`

	OfferAmount   *float64 `json:"offer_amount,omitempty"`
	OfferCurrency *string  `json:"offer_currency,omitempty"`

	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Apply merges a patch onto a task. Identity fields follow the
// empty-string-clears convention.
func (t *Task) Apply(p TaskPatch) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.HelperID != nil {
		t.HelperID = *p.HelperID
	}
	if p.PendingHelperID != nil {
		t.PendingHelperID = *p.PendingHelperID
	}
	if p.HelperAcceptedAt != nil {
		t.HelperAcceptedAt = p.HelperAcceptedAt
	}
	if p.PendingAuthExpiresAt != nil {
		t.PendingAuthExpiresAt = p.PendingAuthExpiresAt
	}
	if p.ReassignedCount != nil {
		t.ReassignedCount = *p.ReassignedCount
	}
	if p.ReleasedCount != nil {
		t.ReleasedCount = *p.ReleasedCount
	}
	if p.OfferAmount != nil {
		t.OfferAmount = p.OfferAmount
	}
	if p.OfferCurrency != nil {
		t.OfferCurrency = *p.OfferCurrency
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
}

// Reason carries a recovery-action reason code and optional free text.
type Reason struct {
	Code string `json:"reason_code"`
	Text string `json:"reason_text,omitempty"`
}

// AcceptRequest is the body for POST /v1/tasks/{id}/accept.
type AcceptRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AcceptResult reports the outcome of an accept call. Already is set when the
// server answered ALREADY_ASSIGNED instead of claiming the task.
type AcceptResult struct {
	Already bool  `json:"already_assigned"`
	Task    *Task `json:"task,omitempty"`
}

// RateRequest is the body for POST /v1/tasks/{id}/rating.
type RateRequest struct {
	Rating   float64 `json:"rating"`
	Feedback string  `json:"feedback,omitempty"`
}

// OfferRequest is the body for PUT /v1/tasks/{id}/offer. A nil amount clears
// the offer.
type OfferRequest struct {
	OfferAmount   *float64 `json:"offer_amount"`
	OfferCurrency string   `json:"offer_currency,omitempty"`
}

// OfferResult is the server's confirmation of an offer update.
type OfferResult struct {
	OfferAmount            *float64  `json:"offer_amount"`
	OfferCurrency          string    `json:"offer_currency"`
	OfferUpdatedAt         time.Time `json:"offer_updated_at"`
	NotificationSuppressed bool      `json:"notification_suppressed"`
}

// PhoneResult is the response of POST /v1/tasks/{id}/reveal-phone.
type PhoneResult struct {
	PhoneNumber string `json:"phone_number"`
}

// PaymentRequest is an active payment request attached to a task.
type PaymentRequest struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Typed errors returned by the API client. The controller branches on these
// instead of inspecting transport details.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrOnlyRequester = errors.New("only the requester may complete")
)
