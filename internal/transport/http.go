package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

// maxResponseBody caps how much of a camera response is buffered.
const maxResponseBody = 4 << 20

// Request is one fully specified camera call.
type Request struct {
	Method string
	URL    string
	Body   []byte

	// Idempotent marks requests that are safe to repeat after an ambiguous
	// failure. The shutter button is the canonical non-idempotent request.
	Idempotent bool
}

// Op returns the request label used in errors and logs.
func (r Request) Op() string {
	return r.Method + " " + r.URL
}

// Response is a successful camera reply.
type Response struct {
	Status int
	Body   []byte
}

// HTTP performs single camera requests and classifies their failures.
// It never retries; see package retry.
//
// Thread Safety:
//   - Do is safe for concurrent use.
type HTTP struct {
	client *http.Client
}

// NewHTTP creates an HTTP transport. connectTimeout bounds the TCP dial;
// the overall per-attempt deadline comes from the context passed to Do.
func NewHTTP(connectTimeout time.Duration) *HTTP {
	dialer := &net.Dialer{Timeout: connectTimeout}
	return &HTTP{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:         dialer.DialContext,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// NewHTTPWithClient wraps an existing client. Used by tests.
func NewHTTPWithClient(client *http.Client) *HTTP {
	return &HTTP{client: client}
}

// Do issues exactly one request.
//
// Outcomes:
//   - 2xx: success
//   - 408, 429, 5xx: Retryable (the camera answered and did not act)
//   - other 4xx/3xx: Fatal
//   - dial failure, refused connection, DNS failure: Retryable
//   - timeout or reset before the request was fully written: Retryable
//   - timeout or reset after the request was written: Retryable when
//     Idempotent, Fatal (ErrAmbiguous) otherwise
func (h *HTTP) Do(ctx context.Context, req Request) (*Response, error) {
	op := req.Op()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	var wrote atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				wrote.Store(true)
			}
		},
	}

	httpReq, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), req.Method, req.URL, body)
	if err != nil {
		return nil, Fatal(op, fmt.Errorf("%w: %w", ErrMalformedRequest, err))
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(op, err, wrote.Load(), req.Idempotent)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		// The status line arrived, so the camera has seen the request.
		if req.Idempotent {
			return nil, Retryable(op, fmt.Errorf("reading response: %w", err))
		}
		return nil, Fatal(op, fmt.Errorf("%w: reading response: %w", ErrAmbiguous, err))
	}

	if outcome := classifyStatus(resp.StatusCode); outcome != OutcomeOK {
		return nil, &Error{
			Outcome: outcome,
			Op:      op,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%w: %s", ErrStatus, statusDetail(data)),
		}
	}

	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// classifyStatus maps an HTTP status code to an outcome.
func classifyStatus(code int) Outcome {
	switch {
	case code >= 200 && code < 300:
		return OutcomeOK
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return OutcomeRetryable
	case code >= 500:
		return OutcomeRetryable
	default:
		return OutcomeFatal
	}
}

// classifyError maps a client error (no response received) to an outcome.
func classifyError(op string, err error, wrote, idempotent bool) *Error {
	if errors.Is(err, context.Canceled) {
		return Fatal(op, err)
	}

	if !isNetworkError(err) {
		return Fatal(op, fmt.Errorf("%w: %w", ErrMalformedRequest, err))
	}

	if wrote && !idempotent {
		return Fatal(op, fmt.Errorf("%w: %w", ErrAmbiguous, err))
	}
	return Retryable(op, err)
}

// isNetworkError reports whether err came from the network rather than from
// the request itself.
func isNetworkError(err error) bool {
	// *url.Error satisfies net.Error for every client failure, including
	// bad schemes, so classify its cause instead.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return true
	}
	var dnserr *net.DNSError
	if errors.As(err, &dnserr) {
		return true
	}

	message := strings.ToLower(err.Error())
	return strings.Contains(message, "connection refused") ||
		strings.Contains(message, "connection reset") ||
		strings.Contains(message, "broken pipe") ||
		strings.Contains(message, "timeout")
}

// statusDetail extracts a short message from a camera error body.
func statusDetail(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty body"
	}
	const maxDetail = 200
	if len(s) > maxDetail {
		s = s[:maxDetail] + "..."
	}
	return s
}
