package domain

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := map[int]FailureClass{
		http.StatusTooManyRequests:     FailureRateLimit,
		http.StatusUnauthorized:        FailureInvalidCredential,
		http.StatusForbidden:           FailureInvalidCredential,
		http.StatusBadRequest:          FailureOther,
		http.StatusInternalServerError: FailureOther,
		http.StatusServiceUnavailable:  FailureOther,
	}
	for status, want := range cases {
		if got := ClassifyStatus(status); got != want {
			t.Fatalf("status %d: expected %v, got %v", status, want, got)
		}
	}
}

func TestCredential_Redacted(t *testing.T) {
	if got := Credential("AIzaSyABCDEF1234").Redacted(); got != "****1234" {
		t.Fatalf("expected ****1234, got %q", got)
	}
	if got := Credential("abc").Redacted(); got != "****" {
		t.Fatalf("expected ****, got %q", got)
	}
}

type errStats struct{ err error }

func (s errStats) Record(context.Context, StatsEvent) error { return s.err }

func TestMultiStats_ReturnsFirstError(t *testing.T) {
	first := errors.New("first")
	m := MultiStats{nil, errStats{}, errStats{err: first}, errStats{err: errors.New("second")}}
	if err := m.Record(context.Background(), StatsEvent{}); !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
}

func TestTimeoutError_Unwraps(t *testing.T) {
	err := &TimeoutError{Op: OpClassify, Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected TimeoutError to unwrap to DeadlineExceeded")
	}
}
