// Package httpx classifies HTTP failures of remote backends into domain errors
// and carries the JSON request helper shared by the REST adapters.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// StatusError is a response outside the 2xx range.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string

	// RetryAfter is the server-requested delay, zero when none was sent.
	RetryAfter time.Duration

	kinds []error
}

// NewStatusError classifies status. notFound is the sentinel a 404 maps to,
// or nil when a 404 is not meaningful for the caller.
func NewStatusError(service string, status int, body []byte, notFound error) *StatusError {
	e := &StatusError{
		Service:    service,
		StatusCode: status,
		Body:       truncate(strings.TrimSpace(string(body))),
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.kinds = []error{domain.ErrAuthInvalid}
	case status == http.StatusNotFound && notFound != nil:
		e.kinds = []error{notFound}
	case status == http.StatusTooManyRequests:
		e.kinds = []error{domain.ErrRateLimited, domain.ErrTransient}
	case status == http.StatusRequestTimeout || status >= 500:
		e.kinds = []error{domain.ErrTransient}
	}
	return e
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Service, e.StatusCode, e.Body)
}

// Unwrap exposes the domain sentinels the status maps to.
func (e *StatusError) Unwrap() []error {
	return e.kinds
}

// HTTPStatusCode returns the response status.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Transport wraps a failure to reach service. Everything except caller
// cancellation is worth retrying.
func Transport(service string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", service, err)
	}
	return fmt.Errorf("%s: %w: %w", service, domain.ErrTransient, err)
}

// Check returns nil for a 2xx response and a *StatusError otherwise.
// The body of a failed response is consumed.
func Check(service string, resp *http.Response, notFound error) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody*4))
	e := NewStatusError(service, resp.StatusCode, body, notFound)
	e.RetryAfter = RetryAfter(resp, 0, 0)
	return e
}

// RetryAfterOf returns the server-requested delay carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var e *StatusError
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// RetryAfter reads the Retry-After header in seconds, falling back when it
// is absent and capping at max.
func RetryAfter(resp *http.Response, fallback, max time.Duration) time.Duration {
	d := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				d = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

// Request describes one JSON call.
type Request struct {
	Service string
	Method  string
	URL     string
	Headers map[string]string
	Body    any

	// NotFound is the sentinel a 404 maps to.
	NotFound error
}

// DoJSON sends r and decodes a successful response into out, which may be nil.
func DoJSON(ctx context.Context, client *http.Client, r Request, out any) error {
	var body io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", r.Service, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", r.Service, err)
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Transport(r.Service, err)
	}
	defer resp.Body.Close()

	if err := Check(r.Service, resp, r.NotFound); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", r.Service, err)
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "..."
}
