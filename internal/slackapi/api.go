// Package slackapi wraps the Slack Web API calls the service makes. Every
// call goes through a Retrier so transient failures and rate limits are
// absorbed in one place, and handlers depend on the narrow API interface
// rather than *slack.Client so tests can substitute a fake.
package slackapi

import (
	"context"

	"github.com/slack-go/slack"
)

// API is the subset of *slack.Client used by the service.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessageContext(ctx context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	PostEphemeralContext(ctx context.Context, channelID, userID string, options ...slack.MsgOption) (string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	OpenViewContext(ctx context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
}

// Factory builds an API client for a bot token.
type Factory func(token string) API

// NewFactory returns a Factory producing real clients. apiURL overrides the
// Slack endpoint (tests, proxies); empty keeps the default.
func NewFactory(apiURL string) Factory {
	return func(token string) API {
		var opts []slack.Option
		if apiURL != "" {
			opts = append(opts, slack.OptionAPIURL(apiURL))
		}
		return slack.New(token, opts...)
	}
}
