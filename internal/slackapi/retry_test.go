package slackapi

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

func testRetrier(waits *[]time.Duration) *Retrier {
	r := NewRetrier(zerolog.Nop())
	r.rand = func() float64 { return 0.5 } // jitter factor 1.0
	r.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return r
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		reason    string
		hint      time.Duration
	}{
		{"rate limited", &slack.RateLimitedError{RetryAfter: 7 * time.Second}, true, ReasonRateLimited, 7 * time.Second},
		{"5xx", slack.StatusCodeError{Code: 503, Status: "503 Service Unavailable"}, true, ReasonServerError, 0},
		{"4xx", slack.StatusCodeError{Code: 404, Status: "404 Not Found"}, false, ReasonServerError, 0},
		{"internal_error", slack.SlackErrorResponse{Err: "internal_error"}, true, ReasonSlackError, 0},
		{"plain timeout code", errors.New("service_unavailable"), true, ReasonSlackError, 0},
		{"invalid_auth", errors.New("invalid_auth"), false, ReasonSlackError, 0},
		{"channel_not_found", slack.SlackErrorResponse{Err: "channel_not_found"}, false, ReasonSlackError, 0},
		{"network", &url.Error{Op: "Post", URL: "https://slack.com/api", Err: errors.New("connection reset")}, true, ReasonNetwork, 0},
		{"canceled", context.Canceled, false, "", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reason, ok, hint := Classify(tc.err)
			if ok != tc.retryable || reason != tc.reason || hint != tc.hint {
				t.Fatalf("Classify(%v) = %q, %v, %v", tc.err, reason, ok, hint)
			}
		})
	}
}

func TestRetrier_BacksOffThenSucceeds(t *testing.T) {
	var waits []time.Duration
	r := testRetrier(&waits)
	calls := 0
	err := r.Do(context.Background(), "chat.postMessage", func(context.Context) error {
		calls++
		if calls < 3 {
			return slack.SlackErrorResponse{Err: "internal_error"}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Do = %v after %d calls", err, calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(waits) != len(want) || waits[0] != want[0] || waits[1] != want[1] {
		t.Fatalf("waits = %v; want %v", waits, want)
	}
}

func TestRetrier_GivesUpAfterMaxRetries(t *testing.T) {
	var waits []time.Duration
	r := testRetrier(&waits)
	calls := 0
	boom := slack.StatusCodeError{Code: 502, Status: "502 Bad Gateway"}
	err := r.Do(context.Background(), "chat.postMessage", func(context.Context) error {
		calls++
		return boom
	})
	if !errors.As(err, new(slack.StatusCodeError)) || calls != 4 {
		t.Fatalf("expected 1 call + 3 retries ending in the original error; calls=%d err=%v", calls, err)
	}
	if len(waits) != 3 || waits[2] != 4*time.Second {
		t.Fatalf("waits = %v", waits)
	}
}

func TestRetrier_PermanentErrorIsNotRetried(t *testing.T) {
	var waits []time.Duration
	r := testRetrier(&waits)
	calls := 0
	err := r.Do(context.Background(), "chat.postMessage", func(context.Context) error {
		calls++
		return errors.New("channel_not_found")
	})
	if err == nil || calls != 1 || len(waits) != 0 {
		t.Fatalf("permanent error retried: calls=%d waits=%v err=%v", calls, waits, err)
	}
}

func TestRetrier_RateLimitHonorsRetryAfterCappedAtMax(t *testing.T) {
	var waits []time.Duration
	r := testRetrier(&waits)
	calls := 0
	_ = r.Do(context.Background(), "users.info", func(context.Context) error {
		calls++
		switch calls {
		case 1:
			return &slack.RateLimitedError{RetryAfter: 5 * time.Second}
		case 2:
			return &slack.RateLimitedError{RetryAfter: 2 * time.Minute}
		}
		return nil
	})
	if len(waits) != 2 || waits[0] != 5*time.Second || waits[1] != 30*time.Second {
		t.Fatalf("waits = %v", waits)
	}
}

func TestRetrier_JitterStaysInRange(t *testing.T) {
	r := NewRetrier(zerolog.Nop())
	var got time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error { got = d; return nil }
	for i := 0; i < 50; i++ {
		n := 0
		_ = r.Do(context.Background(), "chat.update", func(context.Context) error {
			n++
			if n == 1 {
				return errors.New("timeout")
			}
			return nil
		})
		if got < 500*time.Millisecond || got >= 1500*time.Millisecond {
			t.Fatalf("first wait %v outside [0.5s, 1.5s)", got)
		}
	}
}

func TestRetrier_StopsWhenContextCanceled(t *testing.T) {
	r := NewRetrier(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Do(ctx, "chat.postMessage", func(context.Context) error {
		return errors.New("internal_error")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}
