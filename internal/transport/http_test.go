package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTP_Do_StatusClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantOutcome Outcome
	}{
		{name: "ok", status: http.StatusOK, wantOutcome: OutcomeOK},
		{name: "accepted", status: http.StatusAccepted, wantOutcome: OutcomeOK},
		{name: "service unavailable", status: http.StatusServiceUnavailable, wantOutcome: OutcomeRetryable},
		{name: "internal error", status: http.StatusInternalServerError, wantOutcome: OutcomeRetryable},
		{name: "too many requests", status: http.StatusTooManyRequests, wantOutcome: OutcomeRetryable},
		{name: "request timeout", status: http.StatusRequestTimeout, wantOutcome: OutcomeRetryable},
		{name: "bad request", status: http.StatusBadRequest, wantOutcome: OutcomeFatal},
		{name: "not found", status: http.StatusNotFound, wantOutcome: OutcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"detail"}`))
			}))
			defer srv.Close()

			resp, err := NewHTTP(time.Second).Do(context.Background(), Request{
				Method:     http.MethodGet,
				URL:        srv.URL + "/ccapi",
				Idempotent: true,
			})

			if got := OutcomeOf(err); got != tt.wantOutcome {
				t.Fatalf("OutcomeOf(err) = %v, want %v (err = %v)", got, tt.wantOutcome, err)
			}
			if tt.wantOutcome == OutcomeOK {
				if resp == nil || resp.Status != tt.status {
					t.Fatalf("resp = %+v, want status %d", resp, tt.status)
				}
				return
			}

			var te *Error
			if !errors.As(err, &te) {
				t.Fatalf("err = %T, want *Error", err)
			}
			if te.Status != tt.status {
				t.Errorf("Error.Status = %d, want %d", te.Status, tt.status)
			}
			if !errors.Is(err, ErrStatus) {
				t.Errorf("errors.Is(err, ErrStatus) = false")
			}
		})
	}
}

func TestHTTP_Do_SendsJSONBody(t *testing.T) {
	var gotBody, gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewHTTP(time.Second).Do(context.Background(), Request{
		Method: http.MethodPut,
		URL:    srv.URL + "/ccapi/ver100/shooting/settings/av",
		Body:   []byte(`{"value":"f4.0"}`),
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotBody != `{"value":"f4.0"}` {
		t.Errorf("body = %q", gotBody)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
}

func TestHTTP_Do_ConnectionRefusedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	for _, idempotent := range []bool{true, false} {
		_, err := NewHTTP(time.Second).Do(context.Background(), Request{
			Method:     http.MethodPost,
			URL:        url + "/ccapi/ver100/shooting/control/shutterbutton",
			Body:       []byte(`{"af":false}`),
			Idempotent: idempotent,
		})
		if !IsRetryable(err) {
			t.Errorf("idempotent=%v: err = %v, want retryable", idempotent, err)
		}
	}
}

func TestHTTP_Do_TimeoutAfterWrite(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	tests := []struct {
		name        string
		idempotent  bool
		wantOutcome Outcome
	}{
		{name: "idempotent request is retried", idempotent: true, wantOutcome: OutcomeRetryable},
		{name: "shutter is never retried", idempotent: false, wantOutcome: OutcomeFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := NewHTTP(time.Second).Do(ctx, Request{
				Method:     http.MethodPost,
				URL:        srv.URL + "/ccapi/ver100/shooting/control/shutterbutton",
				Body:       []byte(`{"af":true}`),
				Idempotent: tt.idempotent,
			})
			if got := OutcomeOf(err); got != tt.wantOutcome {
				t.Fatalf("OutcomeOf(err) = %v, want %v (err = %v)", got, tt.wantOutcome, err)
			}
			if !tt.idempotent && !errors.Is(err, ErrAmbiguous) {
				t.Errorf("errors.Is(err, ErrAmbiguous) = false, err = %v", err)
			}
		})
	}
}

func TestHTTP_Do_MalformedRequestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "unparseable url", url: "http://[::1"},
		{name: "unsupported scheme", url: "ftp://camera.local/ccapi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHTTP(time.Second).Do(context.Background(), Request{
				Method:     http.MethodGet,
				URL:        tt.url,
				Idempotent: true,
			})
			if OutcomeOf(err) != OutcomeFatal {
				t.Fatalf("err = %v, want fatal", err)
			}
			if !errors.Is(err, ErrMalformedRequest) {
				t.Errorf("errors.Is(err, ErrMalformedRequest) = false, err = %v", err)
			}
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{name: "nil", err: nil, want: OutcomeOK},
		{name: "retryable", err: Retryable("op", errors.New("x")), want: OutcomeRetryable},
		{name: "fatal", err: Fatal("op", errors.New("x")), want: OutcomeFatal},
		{name: "unclassified", err: errors.New("x"), want: OutcomeFatal},
		{name: "wrapped retryable", err: errors.Join(errors.New("ctx"), Retryable("op", io.EOF)), want: OutcomeRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutcomeOf(tt.err); got != tt.want {
				t.Errorf("OutcomeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
