package slackapi

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// Retry reasons used in logs and the retries counter.
const (
	ReasonRateLimited = "rate_limited"
	ReasonServerError = "server_error"
	ReasonSlackError  = "slack_error"
	ReasonNetwork     = "network"
)

// Slack error codes worth retrying. Everything else (invalid_auth,
// channel_not_found, not_in_channel, ...) is permanent.
var retryableCodes = map[string]struct{}{
	"internal_error":      {},
	"service_unavailable": {},
	"timeout":             {},
	"request_timeout":     {},
	"fatal_error":         {},
	"ratelimited":         {},
}

// Retrier re-runs Slack calls that fail transiently, with exponential
// backoff and jitter. A RateLimitedError's Retry-After wins over the
// computed delay but is still capped at Max.
type Retrier struct {
	MaxRetries int
	Base       time.Duration
	Max        time.Duration
	Factor     float64
	Jitter     bool

	Logger zerolog.Logger

	// test seams
	sleep func(ctx context.Context, d time.Duration) error
	rand  func() float64
}

// NewRetrier returns a Retrier with the production policy: 3 retries,
// 1s base doubling up to 30s, jitter in [0.5, 1.5).
func NewRetrier(lg zerolog.Logger) *Retrier {
	return &Retrier{
		MaxRetries: 3,
		Base:       time.Second,
		Max:        30 * time.Second,
		Factor:     2,
		Jitter:     true,
		Logger:     lg,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, fails permanently, or the retry budget is
// spent. The last error is returned unchanged.
func (r *Retrier) Do(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	rnd := r.rand
	if rnd == nil {
		rnd = rand.Float64
	}
	b := &backoff.Backoff{Min: r.Base, Max: r.Max, Factor: r.Factor}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			apiCalls.WithLabelValues(method, "ok").Inc()
			return nil
		}
		reason, retryable, hint := Classify(err)
		if !retryable || ctx.Err() != nil {
			apiCalls.WithLabelValues(method, "error").Inc()
			return err
		}
		if attempt >= r.MaxRetries {
			apiCalls.WithLabelValues(method, "exhausted").Inc()
			r.Logger.Error().Err(err).Str("method", method).Int("attempts", attempt+1).Msg("slack call failed after retries")
			return err
		}

		var wait time.Duration
		if hint > 0 {
			wait = min(hint, r.Max)
		} else {
			wait = b.ForAttempt(float64(attempt))
			if r.Jitter {
				wait = time.Duration(float64(wait) * (0.5 + rnd()))
			}
		}
		apiRetries.WithLabelValues(method, reason).Inc()
		r.Logger.Warn().Err(err).
			Str("method", method).
			Str("reason", reason).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("retrying slack call")

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Classify decides whether err is transient. hint is the server-requested
// delay for rate limits, zero otherwise.
func Classify(err error) (reason string, retryable bool, hint time.Duration) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", false, 0
	}

	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return ReasonRateLimited, true, rl.RetryAfter
	}

	var sce slack.StatusCodeError
	if errors.As(err, &sce) {
		return ReasonServerError, sce.Code >= 500 || sce.Code == 429, 0
	}

	var ser slack.SlackErrorResponse
	if errors.As(err, &ser) {
		_, ok := retryableCodes[ser.Err]
		return ReasonSlackError, ok, 0
	}

	var ne net.Error
	var ue *url.Error
	if errors.As(err, &ne) || errors.As(err, &ue) {
		return ReasonNetwork, true, 0
	}

	// slack-go surfaces most API errors as plain errors carrying the code.
	if _, ok := retryableCodes[strings.TrimSpace(err.Error())]; ok {
		return ReasonSlackError, true, 0
	}
	return ReasonSlackError, false, 0
}
