package slackapi

import (
	"context"

	"github.com/slack-go/slack"
)

// Messenger sends messages for one workspace through its bot token, with
// every call wrapped by the Retrier.
type Messenger struct {
	api   API
	retry *Retrier
}

// NewMessenger binds an API client to a retry policy.
func NewMessenger(api API, retry *Retrier) *Messenger {
	return &Messenger{api: api, retry: retry}
}

func msgOptions(text string, blocks []slack.Block) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	return opts
}

// Post sends a message to channel (a user id opens the DM) and returns the
// resolved channel id and the message timestamp.
func (m *Messenger) Post(ctx context.Context, channel, text string, blocks []slack.Block) (string, string, error) {
	var ch, ts string
	err := m.retry.Do(ctx, "chat.postMessage", func(ctx context.Context) error {
		var err error
		ch, ts, err = m.api.PostMessageContext(ctx, channel, msgOptions(text, blocks)...)
		return err
	})
	return ch, ts, err
}

// Reply posts text in the thread of threadTS.
func (m *Messenger) Reply(ctx context.Context, channel, threadTS, text string) (string, error) {
	var ts string
	err := m.retry.Do(ctx, "chat.postMessage", func(ctx context.Context) error {
		var err error
		_, ts, err = m.api.PostMessageContext(ctx, channel,
			slack.MsgOptionText(text, false), slack.MsgOptionTS(threadTS))
		return err
	})
	return ts, err
}

// Update replaces the content of an existing message.
func (m *Messenger) Update(ctx context.Context, channel, ts, text string, blocks []slack.Block) error {
	return m.retry.Do(ctx, "chat.update", func(ctx context.Context) error {
		_, _, _, err := m.api.UpdateMessageContext(ctx, channel, ts, msgOptions(text, blocks)...)
		return err
	})
}

// Ephemeral shows text to user only, in channel.
func (m *Messenger) Ephemeral(ctx context.Context, channel, user, text string) error {
	return m.retry.Do(ctx, "chat.postEphemeral", func(ctx context.Context) error {
		_, err := m.api.PostEphemeralContext(ctx, channel, user, slack.MsgOptionText(text, false))
		return err
	})
}

// OpenView opens a modal for the interaction identified by triggerID.
// Trigger ids expire after a few seconds, so this is not retried.
func (m *Messenger) OpenView(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	_, err := m.api.OpenViewContext(ctx, triggerID, view)
	if err != nil {
		apiCalls.WithLabelValues("views.open", "error").Inc()
		return err
	}
	apiCalls.WithLabelValues("views.open", "ok").Inc()
	return nil
}

// UserInfo looks up a Slack user.
func (m *Messenger) UserInfo(ctx context.Context, user string) (*slack.User, error) {
	var u *slack.User
	err := m.retry.Do(ctx, "users.info", func(ctx context.Context) error {
		var err error
		u, err = m.api.GetUserInfoContext(ctx, user)
		return err
	})
	return u, err
}
