// Package apiclient is the HTTP client for the remote Quickhand task API.
// It maps transport-level failures to the typed errors in internal/api so the
// engagement controller never inspects status codes itself. No retries: the
// controller's recovery actions are manual by design.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quickhand-app/quickhand/internal/api"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. A zero timeout defaults to 30 seconds.
func New(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = api.DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// httpError carries the status and body of a non-2xx response.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		rd = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &httpError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("api: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func taskPath(id string, suffix string) string {
	return "/v1/tasks/" + url.PathEscape(id) + suffix
}

// FetchTask returns the current snapshot, or api.ErrNotFound.
func (c *Client) FetchTask(ctx context.Context, id string) (*api.Task, error) {
	var t api.Task
	err := c.do(ctx, http.MethodGet, taskPath(id, ""), nil, &t)
	if he, ok := asHTTPError(err); ok && he.status == http.StatusNotFound {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type acceptResponse struct {
	Result string    `json:"result"`
	Task   *api.Task `json:"task,omitempty"`
}

// Accept claims an open task on behalf of the caller.
func (c *Client) Accept(ctx context.Context, id string, lat, lng float64) (*api.AcceptResult, error) {
	var resp acceptResponse
	err := c.do(ctx, http.MethodPost, taskPath(id, "/accept"), api.AcceptRequest{Lat: lat, Lng: lng}, &resp)
	if he, ok := asHTTPError(err); ok && he.status == http.StatusNotFound {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &api.AcceptResult{Already: resp.Result == "ALREADY_ASSIGNED", Task: resp.Task}, nil
}

// Authorize approves the pending helper. Returns api.ErrConflict on 409 so
// the controller can resolve it by refetching.
func (c *Client) Authorize(ctx context.Context, id string) (*api.TaskPatch, error) {
	var p api.TaskPatch
	err := c.do(ctx, http.MethodPost, taskPath(id, "/authorize"), nil, &p)
	if he, ok := asHTTPError(err); ok {
		if he.status == http.StatusConflict {
			return nil, api.ErrConflict
		}
		if he.status == http.StatusNotFound {
			return nil, api.ErrNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Reject declines the pending helper. The server may return a partial task;
// absence of a body yields a nil patch.
func (c *Client) Reject(ctx context.Context, id string, reason api.Reason) (*api.TaskPatch, error) {
	var p api.TaskPatch
	err := c.do(ctx, http.MethodPost, taskPath(id, "/reject"), reason, &p)
	if err != nil {
		return nil, err
	}
	if p == (api.TaskPatch{}) {
		return nil, nil
	}
	return &p, nil
}

func (c *Client) Cancel(ctx context.Context, id string, reason api.Reason) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/cancel"), reason, nil)
}

func (c *Client) Release(ctx context.Context, id string, reason api.Reason) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/release"), reason, nil)
}

func (c *Client) Reassign(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/reassign"), nil, nil)
}

// Complete marks the task done. 403, and 409 whose body names the requester
// rule, map to api.ErrOnlyRequester; any other 409 maps to api.ErrConflict.
func (c *Client) Complete(ctx context.Context, id string) error {
	err := c.do(ctx, http.MethodPost, taskPath(id, "/complete"), nil, nil)
	if he, ok := asHTTPError(err); ok {
		switch {
		case he.status == http.StatusForbidden:
			return api.ErrOnlyRequester
		case he.status == http.StatusConflict && strings.Contains(strings.ToLower(he.body), "only requester"):
			return api.ErrOnlyRequester
		case he.status == http.StatusConflict:
			return api.ErrConflict
		}
	}
	return err
}

func (c *Client) Rate(ctx context.Context, id string, rating float64, feedback string) error {
	return c.do(ctx, http.MethodPost, taskPath(id, "/rating"), api.RateRequest{Rating: rating, Feedback: feedback}, nil)
}

func (c *Client) UpdateOffer(ctx context.Context, id string, amount *float64, currency string) (*api.OfferResult, error) {
	var res api.OfferResult
	err := c.do(ctx, http.MethodPut, taskPath(id, "/offer"), api.OfferRequest{OfferAmount: amount, OfferCurrency: currency}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) RevealPhone(ctx context.Context, id string) (string, error) {
	var res api.PhoneResult
	if err := c.do(ctx, http.MethodPost, taskPath(id, "/reveal-phone"), nil, &res); err != nil {
		return "", err
	}
	return res.PhoneNumber, nil
}

// ActivePaymentRequest returns the task's active payment request, or
// api.ErrNotFound when none exists.
func (c *Client) ActivePaymentRequest(ctx context.Context, id string) (*api.PaymentRequest, error) {
	var res api.PaymentRequest
	err := c.do(ctx, http.MethodGet, taskPath(id, "/payment-request"), nil, &res)
	if he, ok := asHTTPError(err); ok && he.status == http.StatusNotFound {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListNearby returns open tasks around a coordinate, newest first.
func (c *Client) ListNearby(ctx context.Context, lat, lng float64) ([]api.Task, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	var tasks []api.Task
	if err := c.do(ctx, http.MethodGet, "/v1/tasks/nearby?"+q.Encode(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func asHTTPError(err error) (*httpError, bool) {
	if err == nil {
		return nil, false
	}
	he, ok := err.(*httpError)
	return he, ok
}
