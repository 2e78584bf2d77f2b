// Package engage owns the task engagement lifecycle on the client: one
// controller per open task screen, holding the snapshot, deriving roles and
// countdowns, exposing the action surface, and reconciling optimistic local
// transitions against authoritative server responses.
package engage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quickhand-app/quickhand/internal/api"
	"github.com/quickhand-app/quickhand/internal/countdown"
	"github.com/quickhand-app/quickhand/internal/format"
	"github.com/quickhand-app/quickhand/internal/liststore"
	"github.com/quickhand-app/quickhand/internal/reason"
	"github.com/quickhand-app/quickhand/internal/status"
)

// Client is the slice of the remote task API the controller consumes.
// internal/apiclient provides the production implementation.
type Client interface {
	FetchTask(ctx context.Context, id string) (*api.Task, error)
	Accept(ctx context.Context, id string, lat, lng float64) (*api.AcceptResult, error)
	Authorize(ctx context.Context, id string) (*api.TaskPatch, error)
	Reject(ctx context.Context, id string, reason api.Reason) (*api.TaskPatch, error)
	Cancel(ctx context.Context, id string, reason api.Reason) error
	Release(ctx context.Context, id string, reason api.Reason) error
	Reassign(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	Rate(ctx context.Context, id string, rating float64, feedback string) error
	UpdateOffer(ctx context.Context, id string, amount *float64, currency string) (*api.OfferResult, error)
	RevealPhone(ctx context.Context, id string) (string, error)
	ActivePaymentRequest(ctx context.Context, id string) (*api.PaymentRequest, error)
	ListNearby(ctx context.Context, lat, lng float64) ([]api.Task, error)
}

// Options configures a controller.
type Options struct {
	Client Client
	// Store is the shared list store. Optional; when set it seeds the initial
	// snapshot and receives a one-way upsert after every confirmed mutation.
	Store  *liststore.Store
	Clock  countdown.Clock
	UserID string
	Locale string
	// Lat/Lng are the device coordinates, used for accept and for the nearby
	// refetch after an authorization window expires.
	Lat, Lng *float64
	// TickInterval overrides the 1s countdown tick, for tests.
	TickInterval time.Duration
}

type busyFlag int

const (
	busyAction busyFlag = iota
	busyRefresh
	busyOffer
	busyReveal
	busyRating
)

var errBusy = errors.New("action in flight")

// Controller tracks one task through the engagement lifecycle.
type Controller struct {
	opts   Options
	tracer trace.Tracer
	engine *countdown.Engine

	mu        sync.Mutex
	taskID    string
	task      api.Task
	found     bool
	notFound  bool
	notice    Notice
	sheet     ReasonSheet
	busy      map[busyFlag]bool
	authLatch bool
	phone     string
	payment   *api.PaymentRequest
	nearby    []api.Task
	cd        countdown.State
	closed    bool
}

// New creates a controller. Call Start before anything else.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = countdown.RealClock{}
	}
	c := &Controller{
		opts:   opts,
		tracer: otel.Tracer("quickhand/engage"),
		busy:   map[busyFlag]bool{},
	}
	c.engine = countdown.NewEngine(opts.Clock, opts.TickInterval, c.onTick)
	return c
}

// Start loads the initial snapshot, seeding from the shared store when it has
// a copy and fetching otherwise. A missing task is not an error: the
// controller settles into the terminal not-found display state.
func (c *Controller) Start(ctx context.Context, taskID string) error {
	c.mu.Lock()
	c.taskID = taskID
	c.mu.Unlock()

	if c.opts.Store != nil {
		if t, err := c.opts.Store.Get(taskID); err == nil {
			c.setTask(t)
			return nil
		}
	}
	return c.Refresh(ctx)
}

// Close tears the controller down: the countdown ticker stops and any
// in-flight action results are ignored rather than written to state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.engine.Stop()
}

// Snapshot returns the read-only projection for the UI layer.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Task:      c.task,
		Found:     c.found,
		NotFound:  c.notFound,
		Role:      c.roleLocked(),
		Status:    status.Normalize(c.task.Status),
		Countdown: c.cd,
		Actions:   c.actionsLocked(),
		Notice:    c.notice,
		Sheet:     c.sheet,
		Phone:     c.phone,
		Payment:   c.payment,
		Nearby:    c.nearby,
		Busy: Busy{
			Action:      c.busy[busyAction],
			Refreshing:  c.busy[busyRefresh],
			OfferSaving: c.busy[busyOffer],
			Reveal:      c.busy[busyReveal],
			Rating:      c.busy[busyRating],
		},
	}
}

// ClearNotice dismisses the current notice.
func (c *Controller) ClearNotice() {
	c.mu.Lock()
	c.notice = NoticeNone
	c.mu.Unlock()
}

// Refresh re-fetches the task and replaces the snapshot with the server's
// authoritative view.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.begin(busyRefresh); err != nil {
		return err
	}
	defer c.end(busyRefresh)

	c.mu.Lock()
	id := c.taskID
	c.mu.Unlock()

	t, err := c.opts.Client.FetchTask(ctx, id)
	if errors.Is(err, api.ErrNotFound) {
		c.mu.Lock()
		if !c.closed {
			c.notFound = true
			c.found = false
			c.notice = NoticeTaskNotFound
		}
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}
	c.setTask(*t)
	return nil
}

// Accept claims an open task for the current user.
func (c *Controller) Accept(ctx context.Context) ActionResult {
	snap := c.Snapshot()
	if !snap.Actions.Accept {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	if err := c.begin(busyAction); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyAction)

	ctx, span := c.span(ctx, "engage.accept")
	defer span.End()

	var lat, lng float64
	if c.opts.Lat != nil {
		lat = *c.opts.Lat
	}
	if c.opts.Lng != nil {
		lng = *c.opts.Lng
	}
	res, err := c.opts.Client.Accept(ctx, snap.Task.ID, lat, lng)
	if err != nil {
		return c.fail(span, err, NoticeActionFailed)
	}
	if res.Already {
		span.AddEvent("task.already_assigned")
		c.setNotice(NoticeAlreadyAssigned)
		_ = c.refetch(ctx)
		return ActionResult{Outcome: OutcomeConflict, Notice: NoticeAlreadyAssigned}
	}

	expires := c.opts.Clock.Now().Add(AuthWindow)
	_ = c.applyEvent(Accepted{PendingHelperID: c.opts.UserID, ExpiresAt: expires})
	span.AddEvent("task.claimed")
	// confirm against the server; the optimistic pending state stands either way
	_ = c.refetch(ctx)
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// Authorize approves the pending helper. A 409 is resolved by refetching and
// reporting what actually happened, never by guessing.
func (c *Controller) Authorize(ctx context.Context) ActionResult {
	snap := c.Snapshot()
	if !snap.Actions.Authorize {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	if err := c.begin(busyAction); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyAction)

	ctx, span := c.span(ctx, "engage.authorize")
	defer span.End()

	patch, err := c.opts.Client.Authorize(ctx, snap.Task.ID)
	if errors.Is(err, api.ErrConflict) {
		span.AddEvent("task.authorize_conflict")
		_ = c.refetch(ctx)
		after := c.Snapshot()
		var n Notice
		switch after.Status {
		case status.Assigned:
			n = NoticeAlreadyApproved
		case status.Open:
			n = NoticeAuthExpired
		default:
			n = NoticeNotAllowed
		}
		c.setNotice(n)
		return ActionResult{Outcome: OutcomeConflict, Notice: n}
	}
	if err != nil {
		return c.fail(span, err, NoticeActionFailed)
	}

	_ = c.applyEvent(Authorized{Patch: patch})
	span.AddEvent("task.authorized")
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// Complete marks the task done. Only the requester may complete; the server's
// refusal is surfaced distinctly from a generic failure.
func (c *Controller) Complete(ctx context.Context) ActionResult {
	snap := c.Snapshot()
	if !snap.Actions.Complete {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	if err := c.begin(busyAction); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyAction)

	ctx, span := c.span(ctx, "engage.complete")
	defer span.End()

	err := c.opts.Client.Complete(ctx, snap.Task.ID)
	if errors.Is(err, api.ErrOnlyRequester) || errors.Is(err, api.ErrConflict) {
		span.AddEvent("task.complete_refused")
		c.setNotice(NoticeOnlyRequester)
		return ActionResult{Outcome: OutcomeConflict, Notice: NoticeOnlyRequester}
	}
	if err != nil {
		return c.fail(span, err, NoticeActionFailed)
	}

	_ = c.applyEvent(Completed{})
	span.AddEvent("task.completed")
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// Reassign returns the task to the pool once the SLA countdown has elapsed.
// Disabled permanently after MaxReassignments.
func (c *Controller) Reassign(ctx context.Context) ActionResult {
	snap := c.Snapshot()
	if !snap.Actions.Reassign {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	if err := c.begin(busyAction); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyAction)

	ctx, span := c.span(ctx, "engage.reassign")
	defer span.End()

	if err := c.opts.Client.Reassign(ctx, snap.Task.ID); err != nil {
		return c.fail(span, err, NoticeReassignFailed)
	}
	_ = c.applyEvent(Reassigned{})
	span.AddEvent("task.reassigned")
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// Rate submits the caller's rating. Write-once: a non-nil local rating field
// blocks resubmission before any network call.
func (c *Controller) Rate(ctx context.Context, rating float64, feedback string) ActionResult {
	snap := c.Snapshot()
	if !snap.Actions.Rate {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	if err := c.begin(busyRating); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyRating)

	ctx, span := c.span(ctx, "engage.rate")
	defer span.End()

	if err := c.opts.Client.Rate(ctx, snap.Task.ID, rating, feedback); err != nil {
		return c.fail(span, err, NoticeRatingFailed)
	}
	_ = c.applyEvent(Rated{ByRequester: snap.Role == RoleRequester, Rating: rating})
	span.AddEvent("task.rated")
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// SaveOffer parses, validates, and submits an offer change. Invalid input
// never reaches the network.
func (c *Controller) SaveOffer(ctx context.Context, input string) ActionResult {
	snap := c.Snapshot()
	if !snap.Actions.EditOffer {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	amount, err := format.ParseOfferInput(input)
	if err != nil {
		c.setNotice(NoticeOfferInvalid)
		return ActionResult{Outcome: OutcomeBlocked, Notice: NoticeOfferInvalid}
	}
	if err := c.begin(busyOffer); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyOffer)

	ctx, span := c.span(ctx, "engage.offer")
	defer span.End()

	currency := snap.Task.OfferCurrency
	res, err := c.opts.Client.UpdateOffer(ctx, snap.Task.ID, amount, currency)
	if err != nil {
		return c.fail(span, err, NoticeOfferSaveFailed)
	}
	_ = c.applyEvent(OfferChanged{Amount: res.OfferAmount, Currency: res.OfferCurrency})
	span.AddEvent("task.offer_updated")
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// OpenReasonSheet opens the shared reason modal for one of the recovery
// actions, provided the action is currently available.
func (c *Controller) OpenReasonSheet(action reason.Action) ActionResult {
	snap := c.Snapshot()
	allowed := false
	switch action {
	case reason.ActionCancel:
		allowed = snap.Actions.Cancel
	case reason.ActionRelease:
		allowed = snap.Actions.Release
	case reason.ActionReject:
		allowed = snap.Actions.Reject
	}
	if !allowed {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	c.mu.Lock()
	c.sheet = ReasonSheet{Visible: true, Action: action}
	c.mu.Unlock()
	return ActionResult{Outcome: OutcomeOK}
}

// SetReason records the chosen code and free text on the open sheet.
func (c *Controller) SetReason(code, text string) {
	c.mu.Lock()
	if c.sheet.Visible {
		c.sheet.Code = code
		c.sheet.Text = text
	}
	c.mu.Unlock()
}

// CloseReasonSheet dismisses the sheet without acting.
func (c *Controller) CloseReasonSheet() {
	c.mu.Lock()
	c.sheet = ReasonSheet{}
	c.mu.Unlock()
}

// ConfirmReason validates the sheet and performs the pending recovery action.
// OTHER requires non-empty free text; nothing is sent until validation holds.
func (c *Controller) ConfirmReason(ctx context.Context) ActionResult {
	c.mu.Lock()
	sheet := c.sheet
	c.mu.Unlock()
	if !sheet.Visible {
		return ActionResult{Outcome: OutcomeBlocked}
	}
	if err := reason.Validate(sheet.Action, sheet.Code, sheet.Text); err != nil {
		c.setNotice(NoticeReasonRequired)
		return ActionResult{Outcome: OutcomeBlocked, Notice: NoticeReasonRequired}
	}
	if err := c.begin(busyAction); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyAction)

	ctx, span := c.span(ctx, "engage."+string(sheet.Action))
	defer span.End()

	c.mu.Lock()
	id := c.taskID
	c.mu.Unlock()
	r := api.Reason{Code: sheet.Code, Text: sheet.Text}

	var err error
	var ev Event
	switch sheet.Action {
	case reason.ActionReject:
		var patch *api.TaskPatch
		patch, err = c.opts.Client.Reject(ctx, id, r)
		ev = Rejected{Patch: patch}
	case reason.ActionCancel:
		err = c.opts.Client.Cancel(ctx, id, r)
		ev = Cancelled{At: c.opts.Clock.Now()}
	case reason.ActionRelease:
		err = c.opts.Client.Release(ctx, id, r)
		ev = Released{}
	default:
		return ActionResult{Outcome: OutcomeBlocked}
	}
	if err != nil {
		return c.fail(span, err, NoticeActionFailed)
	}

	_ = c.applyEvent(ev)
	c.CloseReasonSheet()
	span.AddEvent("task." + string(sheet.Action) + ".confirmed")
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// RevealPhone fetches the counterparty's phone number. The projection keeps
// the raw number; masking for display is format.MaskPhone's job.
func (c *Controller) RevealPhone(ctx context.Context) ActionResult {
	if err := c.begin(busyReveal); err != nil {
		return ActionResult{Outcome: OutcomeBusy}
	}
	defer c.end(busyReveal)

	ctx, span := c.span(ctx, "engage.reveal_phone")
	defer span.End()

	c.mu.Lock()
	id := c.taskID
	c.mu.Unlock()

	phone, err := c.opts.Client.RevealPhone(ctx, id)
	if err != nil {
		return c.fail(span, err, NoticeActionFailed)
	}
	c.mu.Lock()
	if !c.closed {
		c.phone = phone
	}
	c.mu.Unlock()
	span.SetStatus(codes.Ok, "")
	return ActionResult{Outcome: OutcomeOK}
}

// LoadPayment loads the task's active payment request, if any. Absence is not
// an error.
func (c *Controller) LoadPayment(ctx context.Context) error {
	c.mu.Lock()
	id := c.taskID
	c.mu.Unlock()

	p, err := c.opts.Client.ActivePaymentRequest(ctx, id)
	if errors.Is(err, api.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	if !c.closed {
		c.payment = p
	}
	c.mu.Unlock()
	return nil
}

// --- internals ---

func (c *Controller) begin(f busyFlag) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.busy[f] {
		return errBusy
	}
	// mutating actions share one serialization domain with refresh
	if f == busyAction && c.busy[busyRefresh] {
		return errBusy
	}
	c.busy[f] = true
	return nil
}

func (c *Controller) end(f busyFlag) {
	c.mu.Lock()
	c.busy[f] = false
	c.mu.Unlock()
}

func (c *Controller) setNotice(n Notice) {
	c.mu.Lock()
	if !c.closed {
		c.notice = n
	}
	c.mu.Unlock()
}

func (c *Controller) fail(span trace.Span, err error, n Notice) ActionResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.setNotice(n)
	return ActionResult{Outcome: OutcomeFailed, Notice: n}
}

func (c *Controller) span(ctx context.Context, name string) (context.Context, trace.Span) {
	c.mu.Lock()
	id := c.taskID
	c.mu.Unlock()
	return c.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("task.id", id),
		attribute.String("user.id", c.opts.UserID),
	))
}

// setTask replaces the snapshot with an authoritative server view and fans
// the change out to the countdown engine and the shared store.
func (c *Controller) setTask(t api.Task) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.task = t
	c.found = true
	c.notFound = false
	if status.Normalize(t.Status) != status.PendingAuth {
		// fresh snapshot left the auth window; re-arm the one-shot recovery
		c.authLatch = false
	}
	c.mu.Unlock()
	c.fanOut(t)
}

// applyEvent runs the reducer and, on success, fans the new snapshot out.
// Illegal transitions leave state untouched.
func (c *Controller) applyEvent(ev Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errBusy
	}
	next, err := Apply(c.task, ev)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.task = next
	if status.Normalize(next.Status) != status.PendingAuth {
		c.authLatch = false
	}
	c.mu.Unlock()
	c.fanOut(next)
	return nil
}

// fanOut must be called without holding mu: the engine recompute notifies
// onTick synchronously.
func (c *Controller) fanOut(t api.Task) {
	if c.opts.Store != nil {
		c.opts.Store.Upsert(t)
	}
	c.engine.SetInputs(countdown.Inputs{
		Status:               status.Normalize(t.Status),
		HelperAcceptedAt:     t.HelperAcceptedAt,
		PendingAuthExpiresAt: t.PendingAuthExpiresAt,
	})
}

// refetch replaces the snapshot from the server, ignoring not-found (handled
// by Refresh's dedicated path) but propagating other errors to the caller.
func (c *Controller) refetch(ctx context.Context) error {
	c.mu.Lock()
	id := c.taskID
	c.mu.Unlock()
	t, err := c.opts.Client.FetchTask(ctx, id)
	if err != nil {
		return err
	}
	c.setTask(*t)
	return nil
}

// onTick receives every countdown recompute. Expiry recovery is one-shot per
// expiry event: the latch stays set while the countdown sits at zero and
// re-arms only when a fresh snapshot leaves PENDING_AUTH.
func (c *Controller) onTick(st countdown.State) {
	c.mu.Lock()
	c.cd = st
	fire := st.AuthExpired && !c.authLatch && !c.closed &&
		status.Normalize(c.task.Status) == status.PendingAuth
	if fire {
		c.authLatch = true
	}
	c.mu.Unlock()
	if fire {
		go c.recoverExpiry()
	}
}

// recoverExpiry reconciles an expired authorization window against the
// server before surfacing anything: the local clock is only a hint. Refetch
// failures are silent; the next manual refresh recovers.
func (c *Controller) recoverExpiry() {
	ctx, span := c.span(context.Background(), "engage.auth_expired")
	defer span.End()
	span.AddEvent("auth_window.expired")

	c.setNotice(NoticeAuthExpired)
	if err := c.refetch(ctx); err != nil {
		span.RecordError(err)
		return
	}
	if c.opts.Lat != nil && c.opts.Lng != nil {
		nearby, err := c.opts.Client.ListNearby(ctx, *c.opts.Lat, *c.opts.Lng)
		if err != nil {
			span.RecordError(err)
			return
		}
		c.mu.Lock()
		if !c.closed {
			c.nearby = nearby
		}
		c.mu.Unlock()
	}
	span.SetStatus(codes.Ok, "")
}

func (c *Controller) roleLocked() Role {
	t := c.task
	switch {
	case status.IsRequester(&t, c.opts.UserID):
		return RoleRequester
	case status.IsHelper(&t, c.opts.UserID):
		return RoleHelper
	case status.IsPendingHelper(&t, c.opts.UserID):
		return RolePendingHelper
	default:
		return RoleObserver
	}
}

func (c *Controller) actionsLocked() Actions {
	if !c.found {
		return Actions{}
	}
	t := c.task
	st := status.Normalize(t.Status)
	role := c.roleLocked()
	requester := role == RoleRequester
	helper := role == RoleHelper

	return Actions{
		Accept:    st == status.Open && !requester && c.opts.UserID != "",
		Authorize: st == status.PendingAuth && requester,
		Reject:    st == status.PendingAuth && requester,
		Complete:  st == status.Assigned && requester,
		Cancel:    requester && (st == status.Open || st == status.PendingAuth || st == status.Assigned),
		Release:   st == status.Assigned && helper,
		Reassign: st == status.Assigned && requester &&
			c.cd.ReassignReady && t.ReassignedCount < MaxReassignments,
		Rate: st == status.Completed &&
			((requester && t.RatingByRequester == nil) || (helper && t.RatingByHelper == nil)),
		EditOffer: st == status.Open && requester && t.HelperID == "",
	}
}
