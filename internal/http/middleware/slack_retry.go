package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Slack redelivery headers.
const (
	HeaderSlackRetryNum    = "X-Slack-Retry-Num"
	HeaderSlackRetryReason = "X-Slack-Retry-Reason"
	HeaderSlackNoRetry     = "X-Slack-No-Retry"
)

const (
	ctxKeySlackRetry = "slack.retry" // int: attempt number of a redelivery
)

// SlackRetryOptions configures SlackRetryGuard.
type SlackRetryOptions struct {
	// AckReasons lists retry reasons answered with 200 without running the
	// handler. Defaults to http_timeout: the first delivery is still being
	// processed, so a second run would only duplicate its work.
	AckReasons []string
}

// SlackRetryAttempt returns the redelivery attempt stored by SlackRetryGuard,
// or 0 for a first delivery.
func SlackRetryAttempt(c *gin.Context) int {
	v, ok := c.Get(ctxKeySlackRetry)
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}

// SlackRetryGuard inspects Slack's redelivery headers. Retries whose reason
// is in AckReasons are acknowledged immediately with X-Slack-No-Retry so
// Slack stops redelivering; any other retry is processed and its attempt
// number is exposed through SlackRetryAttempt. A malformed retry number is
// treated as a first delivery.
func SlackRetryGuard(opts SlackRetryOptions) gin.HandlerFunc {
	reasons := opts.AckReasons
	if len(reasons) == 0 {
		reasons = []string{"http_timeout"}
	}
	ack := make(map[string]struct{}, len(reasons))
	for _, r := range reasons {
		ack[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}

	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderSlackRetryNum)
		if raw == "" {
			c.Next()
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.Next()
			return
		}
		c.Set(ctxKeySlackRetry, n)

		reason := strings.ToLower(c.GetHeader(HeaderSlackRetryReason))
		if _, ok := ack[reason]; ok {
			LoggerFrom(c).Info().
				Int("attempt", n).
				Str("reason", reason).
				Msg("slack retry acknowledged")
			c.Header(HeaderSlackNoRetry, "1")
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
