// Fleetlink - Multi-Vendor Vehicle Telemetry Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetlink

package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fleetlink/internal/fleeterr"
	"github.com/tomtom215/fleetlink/internal/logging"
	"github.com/tomtom215/fleetlink/internal/metrics"
)

// maxResponseBytes caps how much of a vendor response is read.
const maxResponseBytes = 32 << 20

// StatusError is a non-2xx vendor response. It is not retried.
type StatusError struct {
	Provider string
	Op       string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider %s: %s returned status %d: %s", e.Provider, e.Op, e.Status, e.Body)
}

// serverError marks a 5xx response so the breaker counts it and the request is retried.
type serverError struct {
	status int
	body   string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("vendor returned status %d: %s", e.status, e.body)
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
	form   url.Values
}

type response struct {
	status int
	body   []byte
}

// authorizer adds credentials to an outgoing request.
type authorizer func(r *http.Request)

// transport performs vendor HTTP calls for one provider.
type transport struct {
	provider    string
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*response]
	maxRetries  int
	backoffStep time.Duration
}

func newTransport(providerID, baseURL string, opts Options) *transport {
	t := &transport{
		provider:    providerID,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		client:      opts.HTTPClient,
		breaker:     newBreaker(providerID, opts.BreakerTimeout),
		maxRetries:  opts.MaxRetries,
		backoffStep: opts.BackoffStep,
	}
	if opts.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return t
}

// do sends req, retrying transport failures with linear backoff.
//
// Returns the response for 2xx, *fleeterr.AuthenticationError for 401/403,
// *StatusError for any other non-2xx and *fleeterr.TransportError once
// retries are exhausted or the breaker is open.
func (t *transport) do(ctx context.Context, req request, auth authorizer) (*response, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * t.backoffStep
			metrics.VendorRetries.WithLabelValues(t.provider).Inc()
			logging.Ctx(t.logContext(ctx)).Warn().
				Err(lastErr).
				Str("operation", req.op).
				Int("attempt", attempt+1).
				Dur("delay", wait).
				Msg("Retrying vendor request")

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		attempts++
		resp, err := t.breaker.Execute(func() (*response, error) {
			return t.roundTrip(ctx, req, auth)
		})
		if err == nil {
			return t.classify(req, resp)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &fleeterr.TransportError{Provider: t.provider, Op: req.op, Attempts: attempts, Err: err}
		}
		lastErr = err
	}

	return nil, &fleeterr.TransportError{Provider: t.provider, Op: req.op, Attempts: attempts, Err: lastErr}
}

// logContext tags ctx with the provider unless the caller already did.
func (t *transport) logContext(ctx context.Context) context.Context {
	if logging.ProviderIDFromContext(ctx) != "" {
		return ctx
	}
	return logging.ContextWithProviderID(ctx, t.provider)
}

func (t *transport) roundTrip(ctx context.Context, req request, auth authorizer) (*response, error) {
	target := t.baseURL + req.path
	if len(req.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", req.op, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if auth != nil {
		auth(httpReq)
	}

	start := time.Now()
	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		metrics.RecordVendorRequest(t.provider, req.op, 0, time.Since(start))
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	metrics.RecordVendorRequest(t.provider, req.op, httpResp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", req.op, err)
	}

	if httpResp.StatusCode >= 500 {
		return nil, &serverError{status: httpResp.StatusCode, body: truncate(string(data), 256)}
	}
	return &response{status: httpResp.StatusCode, body: data}, nil
}

func (t *transport) classify(req request, resp *response) (*response, error) {
	if resp.status >= 200 && resp.status < 300 {
		return resp, nil
	}
	statusErr := &StatusError{Provider: t.provider, Op: req.op, Status: resp.status, Body: truncate(string(resp.body), 256)}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return nil, &fleeterr.AuthenticationError{Provider: t.provider, Err: statusErr}
	}
	return nil, statusErr
}

// getJSON issues a GET and decodes the body into out.
func (t *transport) getJSON(ctx context.Context, op, path string, query url.Values, auth authorizer, out interface{}) error {
	resp, err := t.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query}, auth)
	if err != nil {
		return err
	}
	return decodeBody(op, resp, out)
}

// sendJSON issues a request with a JSON body and decodes the response into out when non-nil.
func (t *transport) sendJSON(ctx context.Context, op, method, path string, body interface{}, auth authorizer, out interface{}) error {
	resp, err := t.do(ctx, request{op: op, method: method, path: path, body: body}, auth)
	if err != nil {
		return err
	}
	return decodeBody(op, resp, out)
}

func decodeBody(op string, resp *response, out interface{}) error {
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// hasStatus reports whether err is a vendor response with the given status.
func hasStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

func isNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
