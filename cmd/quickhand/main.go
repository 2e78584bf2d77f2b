package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quickhand-app/quickhand/internal/api"
	"github.com/quickhand-app/quickhand/internal/apiclient"
	"github.com/quickhand-app/quickhand/internal/config"
	"github.com/quickhand-app/quickhand/internal/countdown"
	"github.com/quickhand-app/quickhand/internal/engage"
	"github.com/quickhand-app/quickhand/internal/format"
	"github.com/quickhand-app/quickhand/internal/liststore"
	"github.com/quickhand-app/quickhand/internal/paths"
	"github.com/quickhand-app/quickhand/internal/prefs"
	"github.com/quickhand-app/quickhand/internal/reason"
	"github.com/quickhand-app/quickhand/internal/status"
	"github.com/quickhand-app/quickhand/internal/telemetry"
	"github.com/quickhand-app/quickhand/internal/version"
)

// app carries the wired dependencies of every subcommand so tests can run
// commands against an httptest server and an in-memory prefs db.
type app struct {
	client *apiclient.Client
	prefs  *prefs.Store
	locale string
	userID string
	out    io.Writer
	errw   io.Writer
}

func main() {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		fatal(err)
	}
	res := config.Load(home)
	if res.ParseError != nil {
		_, _ = fmt.Fprintf(os.Stderr, "warning: %s: %v (using defaults)\n", res.Path, res.ParseError)
	}
	cfg := res.Config

	baseURL := cfg.API.BaseURL
	if v := os.Getenv("QUICKHAND_API_URL"); v != "" {
		baseURL = v
	}
	locale := cfg.Locale
	if v := os.Getenv("QUICKHAND_LOCALE"); v != "" {
		locale = v
	}

	db, err := prefs.Open(paths.DBPath(home))
	if err != nil {
		fatal(err)
	}
	defer db.Close()
	store := prefs.New(db)
	if err := store.Init(); err != nil {
		fatal(err)
	}

	token := os.Getenv("QUICKHAND_TOKEN")
	userID := os.Getenv("QUICKHAND_USER")
	if token == "" || userID == "" {
		if sess, err := store.LoadSession(); err == nil {
			if token == "" {
				token = sess.AuthToken
			}
			if userID == "" {
				userID = sess.UserID
			}
			if sess.Locale != "" && os.Getenv("QUICKHAND_LOCALE") == "" && cfg.Locale == "en" {
				locale = sess.Locale
			}
		}
	}

	shutdown := telemetry.Noop
	if cfg.Telemetry.Enabled {
		shutdown, err = telemetry.Init(context.Background(), telemetry.Config{
			ServiceName:    "quickhand",
			ServiceVersion: version.Version,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
		})
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "warning: telemetry init: %v\n", err)
			shutdown = telemetry.Noop
		}
	}

	a := app{
		client: apiclient.New(baseURL, token, time.Duration(cfg.API.TimeoutMS)*time.Millisecond),
		prefs:  store,
		locale: locale,
		userID: userID,
		out:    os.Stdout,
		errw:   os.Stderr,
	}
	code := run(a, os.Args[1:])

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	_ = shutdown(ctx)
	cancel()
	os.Exit(code)
}

func run(a app, args []string) int {
	if len(args) < 1 {
		usage(a.errw)
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "show":
		return a.show(rest)
	case "watch":
		return a.watch(rest)
	case "nearby":
		return a.nearby(rest)
	case "accept":
		return a.accept(rest)
	case "authorize":
		return a.authorize(rest)
	case "reject":
		return a.withReason(reason.ActionReject, rest)
	case "cancel":
		return a.withReason(reason.ActionCancel, rest)
	case "release":
		return a.withReason(reason.ActionRelease, rest)
	case "reassign":
		return a.reassign(rest)
	case "complete":
		return a.complete(rest)
	case "rate":
		return a.rate(rest)
	case "offer":
		return a.offer(rest)
	case "reveal":
		return a.reveal(rest)
	case "payment":
		return a.payment(rest)
	case "login":
		return a.login(rest)
	case "logout":
		return a.logout(rest)
	case "whoami":
		return a.whoami(rest)
	case "version":
		_, _ = fmt.Fprintf(a.out, "quickhand %s (%s)\n", version.Version, version.Commit)
		return 0
	default:
		usage(a.errw)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage:")
	_, _ = fmt.Fprintln(w, "  quickhand show <task-id> [--json]")
	_, _ = fmt.Fprintln(w, "  quickhand watch <task-id>")
	_, _ = fmt.Fprintln(w, "  quickhand nearby --lat <f> --lng <f> [--json]")
	_, _ = fmt.Fprintln(w, "  quickhand accept <task-id> [--lat <f> --lng <f>]")
	_, _ = fmt.Fprintln(w, "  quickhand authorize <task-id>")
	_, _ = fmt.Fprintln(w, "  quickhand reject|cancel|release <task-id> --code <code> [--text <text>]")
	_, _ = fmt.Fprintln(w, "  quickhand reassign <task-id>")
	_, _ = fmt.Fprintln(w, "  quickhand complete <task-id>")
	_, _ = fmt.Fprintln(w, "  quickhand rate <task-id> --rating <1..5> [--feedback <text>]")
	_, _ = fmt.Fprintln(w, "  quickhand offer <task-id> --amount <n>")
	_, _ = fmt.Fprintln(w, "  quickhand reveal <task-id> [--full]")
	_, _ = fmt.Fprintln(w, "  quickhand payment <task-id>")
	_, _ = fmt.Fprintln(w, "  quickhand login --user <id> --token <token>")
	_, _ = fmt.Fprintln(w, "  quickhand logout | whoami | version")
}

// taskArg pops a validated task id off args, printing usage on failure.
func (a app) taskArg(args []string) (string, []string, bool) {
	if len(args) < 1 {
		usage(a.errw)
		return "", nil, false
	}
	id := args[0]
	if err := paths.ValidateTaskID(id); err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return "", nil, false
	}
	return id, args[1:], true
}

func (a app) ctx() context.Context { return context.Background() }

func (a app) show(args []string) int {
	id, rest, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(a.errw)
	asJSON := fs.Bool("json", false, "emit raw JSON")
	if fs.Parse(rest) != nil {
		return 2
	}

	t, err := a.client.FetchTask(a.ctx(), id)
	if errors.Is(err, api.ErrNotFound) {
		_, _ = fmt.Fprintln(a.errw, "task not found")
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	if *asJSON {
		return a.printJSON(t)
	}
	a.printTask(*t)
	return 0
}

func (a app) printTask(t api.Task) {
	st := status.Normalize(t.Status)
	_, _ = fmt.Fprintf(a.out, "%s  %s  [%s]\n", t.ID, t.Title, st)
	if t.OfferAmount != nil {
		_, _ = fmt.Fprintf(a.out, "  offer: %s\n", format.Money(*t.OfferAmount, t.OfferCurrency))
	}
	if t.DistanceMeters != nil {
		_, _ = fmt.Fprintf(a.out, "  distance: %s\n", format.Distance(*t.DistanceMeters))
	}
	cd := countdown.Compute(countdown.Inputs{
		Status:               st,
		HelperAcceptedAt:     t.HelperAcceptedAt,
		PendingAuthExpiresAt: t.PendingAuthExpiresAt,
	}, time.Now())
	if cd.Auth != "" {
		_, _ = fmt.Fprintf(a.out, "  authorization window: %s\n", cd.Auth)
	}
	if cd.Reassign != "" {
		if cd.ReassignReady {
			_, _ = fmt.Fprintf(a.out, "  reassignment: available\n")
		} else {
			_, _ = fmt.Fprintf(a.out, "  reassignment in: %s\n", cd.Reassign)
		}
	}
	if t.HelperID != "" {
		_, _ = fmt.Fprintf(a.out, "  helper: %s\n", t.HelperID)
	}
	if t.PendingHelperID != "" {
		_, _ = fmt.Fprintf(a.out, "  pending helper: %s\n", t.PendingHelperID)
	}
}

// watch runs a live engagement view: one controller, redrawn once a second
// until the task reaches a terminal status or the user interrupts.
func (a app) watch(args []string) int {
	id, _, ok := a.taskArg(args)
	if !ok {
		return 2
	}

	store := liststore.New()
	ctrl := engage.New(engage.Options{
		Client: a.client,
		Store:  store,
		UserID: a.userID,
		Locale: a.locale,
	})
	defer ctrl.Close()
	if err := ctrl.Start(a.ctx(), id); err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		snap := ctrl.Snapshot()
		if snap.NotFound {
			_, _ = fmt.Fprintln(a.errw, "task not found")
			return 1
		}
		line := fmt.Sprintf("[%s] role=%s", snap.Status, snap.Role)
		if snap.Countdown.Auth != "" {
			line += " auth=" + snap.Countdown.Auth
		}
		if snap.Countdown.Reassign != "" {
			line += " reassign=" + snap.Countdown.Reassign
		}
		if snap.Notice != engage.NoticeNone {
			line += " notice=" + string(snap.Notice)
			ctrl.ClearNotice()
		}
		_, _ = fmt.Fprintln(a.out, line)
		if status.IsTerminal(snap.Status) {
			return 0
		}
		select {
		case <-sig:
			return 0
		case <-ticker.C:
		}
	}
}

func (a app) nearby(args []string) int {
	fs := flag.NewFlagSet("nearby", flag.ContinueOnError)
	fs.SetOutput(a.errw)
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	asJSON := fs.Bool("json", false, "emit raw JSON")
	if fs.Parse(args) != nil {
		return 2
	}

	tasks, err := a.client.ListNearby(a.ctx(), *lat, *lng)
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	if *asJSON {
		return a.printJSON(tasks)
	}
	store := liststore.New()
	for _, t := range tasks {
		store.Upsert(t)
	}
	grouped := store.Grouped()
	for _, bucket := range []status.ListBucket{
		status.BucketPending, status.BucketPendingAuth, status.BucketAssigned,
		status.BucketCompleted, status.BucketCancelled,
	} {
		group := grouped[bucket]
		if len(group) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(a.out, "%s:\n", bucket)
		for _, t := range group {
			a.printTask(t)
		}
	}
	return 0
}

func (a app) accept(args []string) int {
	id, rest, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	fs := flag.NewFlagSet("accept", flag.ContinueOnError)
	fs.SetOutput(a.errw)
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	if fs.Parse(rest) != nil {
		return 2
	}

	res, err := a.client.Accept(a.ctx(), id, *lat, *lng)
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	if res.Already {
		_, _ = fmt.Fprintln(a.errw, "task was already assigned to someone else")
		return 1
	}
	_, _ = fmt.Fprintln(a.out, "claim sent; waiting for the requester to authorize")
	return 0
}

func (a app) authorize(args []string) int {
	id, _, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	_, err := a.client.Authorize(a.ctx(), id)
	if errors.Is(err, api.ErrConflict) {
		_, _ = fmt.Fprintln(a.errw, "authorization no longer possible; the claim expired or was resolved elsewhere")
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(a.out, "helper authorized")
	return 0
}

// withReason handles the three recovery commands that share the reason
// contract: a catalog code, free text mandatory for OTHER.
func (a app) withReason(action reason.Action, args []string) int {
	id, rest, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	fs := flag.NewFlagSet(string(action), flag.ContinueOnError)
	fs.SetOutput(a.errw)
	code := fs.String("code", "", "reason code")
	text := fs.String("text", "", "free text (required for OTHER)")
	if fs.Parse(rest) != nil {
		return 2
	}

	if err := reason.Validate(action, *code, *text); err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		if opts, oerr := reason.Options(action, a.locale); oerr == nil {
			_, _ = fmt.Fprintf(a.errw, "valid codes for %s:\n", action)
			for _, o := range opts {
				_, _ = fmt.Fprintf(a.errw, "  %s  %s\n", o.Code, o.Label)
			}
		}
		return 2
	}

	r := api.Reason{Code: *code, Text: *text}
	var err error
	switch action {
	case reason.ActionReject:
		_, err = a.client.Reject(a.ctx(), id, r)
	case reason.ActionCancel:
		err = a.client.Cancel(a.ctx(), id, r)
	case reason.ActionRelease:
		err = a.client.Release(a.ctx(), id, r)
	}
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintf(a.out, "%s done\n", action)
	return 0
}

func (a app) reassign(args []string) int {
	id, _, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	if err := a.client.Reassign(a.ctx(), id); err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(a.out, "task returned to the pool")
	return 0
}

func (a app) complete(args []string) int {
	id, _, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	err := a.client.Complete(a.ctx(), id)
	if errors.Is(err, api.ErrOnlyRequester) {
		_, _ = fmt.Fprintln(a.errw, "only the requester can mark this task complete")
		return 1
	}
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(a.out, "task completed")
	return 0
}

func (a app) rate(args []string) int {
	id, rest, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	fs := flag.NewFlagSet("rate", flag.ContinueOnError)
	fs.SetOutput(a.errw)
	rating := fs.Float64("rating", 0, "rating, 1 to 5")
	feedback := fs.String("feedback", "", "optional feedback")
	if fs.Parse(rest) != nil {
		return 2
	}
	if *rating < 1 || *rating > 5 {
		_, _ = fmt.Fprintln(a.errw, "rating must be between 1 and 5")
		return 2
	}
	if err := a.client.Rate(a.ctx(), id, *rating, *feedback); err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(a.out, "rating submitted")
	return 0
}

func (a app) offer(args []string) int {
	id, rest, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	fs := flag.NewFlagSet("offer", flag.ContinueOnError)
	fs.SetOutput(a.errw)
	amount := fs.String("amount", "", "offer amount; empty clears the offer")
	currency := fs.String("currency", "", "currency code")
	if fs.Parse(rest) != nil {
		return 2
	}

	parsed, err := format.ParseOfferInput(*amount)
	if err != nil {
		_, _ = fmt.Fprintf(a.errw, "invalid amount %q: must be a number between 0 and %d\n", *amount, format.MaxOfferAmount)
		return 2
	}
	res, err := a.client.UpdateOffer(a.ctx(), id, parsed, *currency)
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	if res.OfferAmount == nil {
		_, _ = fmt.Fprintln(a.out, "offer cleared")
	} else {
		_, _ = fmt.Fprintf(a.out, "offer set to %s\n", format.Money(*res.OfferAmount, res.OfferCurrency))
	}
	return 0
}

func (a app) reveal(args []string) int {
	id, rest, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	fs := flag.NewFlagSet("reveal", flag.ContinueOnError)
	fs.SetOutput(a.errw)
	full := fs.Bool("full", false, "print the unmasked number")
	if fs.Parse(rest) != nil {
		return 2
	}

	phone, err := a.client.RevealPhone(a.ctx(), id)
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	if *full {
		_, _ = fmt.Fprintln(a.out, phone)
	} else {
		_, _ = fmt.Fprintln(a.out, format.MaskPhone(phone))
	}
	return 0
}

func (a app) payment(args []string) int {
	id, _, ok := a.taskArg(args)
	if !ok {
		return 2
	}
	p, err := a.client.ActivePaymentRequest(a.ctx(), id)
	if errors.Is(err, api.ErrNotFound) {
		_, _ = fmt.Fprintln(a.out, "no active payment request")
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	return a.printJSON(p)
}

func (a app) login(args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.errw)
	user := fs.String("user", "", "user id")
	token := fs.String("token", "", "auth token")
	locale := fs.String("locale", "", "preferred locale")
	if fs.Parse(args) != nil {
		return 2
	}
	if *user == "" || *token == "" {
		fs.Usage()
		return 2
	}
	if a.prefs == nil {
		_, _ = fmt.Fprintln(a.errw, "prefs store unavailable")
		return 1
	}
	if err := a.prefs.SaveSession(prefs.Session{UserID: *user, AuthToken: *token, Locale: *locale}); err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintf(a.out, "logged in as %s\n", *user)
	return 0
}

func (a app) logout(args []string) int {
	if len(args) != 0 {
		usage(a.errw)
		return 2
	}
	if a.prefs == nil {
		_, _ = fmt.Fprintln(a.errw, "prefs store unavailable")
		return 1
	}
	if err := a.prefs.ClearSession(); err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(a.out, "logged out")
	return 0
}

func (a app) whoami(args []string) int {
	if len(args) != 0 {
		usage(a.errw)
		return 2
	}
	if a.userID == "" {
		_, _ = fmt.Fprintln(a.errw, "not logged in")
		return 1
	}
	_, _ = fmt.Fprintln(a.out, a.userID)
	return 0
}

func (a app) printJSON(v any) int {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintln(a.errw, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(a.out, string(b))
	return 0
}

func fatal(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
