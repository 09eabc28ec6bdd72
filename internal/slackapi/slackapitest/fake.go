// Package slackapitest provides an in-memory slackapi.API for tests.
package slackapitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

// Call is one recorded API call. Text and Blocks are decoded from the
// message options the way the real client would send them.
type Call struct {
	Method    string
	Channel   string
	User      string
	TS        string
	ThreadTS  string
	Text      string
	Blocks    string
	TriggerID string
	View      slack.ModalViewRequest
}

// Fake records calls and returns scripted results. Errors queued in
// Errors[method] are returned first, one per call.
type Fake struct {
	mu     sync.Mutex
	Calls  []Call
	Errors map[string][]error
	Users  map[string]*slack.User
	seq    int
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{Errors: map[string][]error{}, Users: map[string]*slack.User{}}
}

// Fail queues err for the next call of method.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[method] = append(f.Errors[method], err)
}

// ByMethod returns the recorded calls of method.
func (f *Fake) ByMethod(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) next(method string, c Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q := f.Errors[method]; len(q) > 0 {
		f.Errors[method] = q[1:]
		return "", q[0]
	}
	f.seq++
	c.Method = method
	if c.TS == "" {
		c.TS = fmt.Sprintf("1700000000.%06d", f.seq)
	}
	f.Calls = append(f.Calls, c)
	return c.TS, nil
}

func decode(channel string, options []slack.MsgOption) Call {
	_, vals, _ := slack.UnsafeApplyMsgOptions("xoxb-test", channel, "https://slack.test/api/", options...)
	return Call{
		Channel:  channel,
		Text:     vals.Get("text"),
		Blocks:   vals.Get("blocks"),
		ThreadTS: vals.Get("thread_ts"),
	}
}

// PostMessageContext implements slackapi.API. A user id channel resolves to
// a "D" channel the way Slack opens a DM.
func (f *Fake) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	c := decode(channelID, options)
	ts, err := f.next("chat.postMessage", c)
	if err != nil {
		return "", "", err
	}
	ch := channelID
	if len(ch) > 0 && ch[0] == 'U' {
		ch = "D" + ch[1:]
	}
	return ch, ts, nil
}

// UpdateMessageContext implements slackapi.API.
func (f *Fake) UpdateMessageContext(_ context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	c := decode(channelID, options)
	c.TS = timestamp
	if _, err := f.next("chat.update", c); err != nil {
		return "", "", "", err
	}
	return channelID, timestamp, c.Text, nil
}

// PostEphemeralContext implements slackapi.API.
func (f *Fake) PostEphemeralContext(_ context.Context, channelID, userID string, options ...slack.MsgOption) (string, error) {
	c := decode(channelID, options)
	c.User = userID
	return f.next("chat.postEphemeral", c)
}

// GetUserInfoContext implements slackapi.API.
func (f *Fake) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	if _, err := f.next("users.info", Call{User: user}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[user]; ok {
		return u, nil
	}
	return &slack.User{ID: user, Name: user, TZ: "America/New_York",
		Profile: slack.UserProfile{DisplayName: "user-" + user, RealName: "User " + user}}, nil
}

// OpenViewContext implements slackapi.API.
func (f *Fake) OpenViewContext(_ context.Context, triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	if _, err := f.next("views.open", Call{TriggerID: triggerID, View: view}); err != nil {
		return nil, err
	}
	return &slack.ViewResponse{}, nil
}
