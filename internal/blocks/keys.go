// Package blocks builds the Slack Block Kit payloads the app sends: the
// daily standup and weekly feedback prompts, their confirmations, the
// vibe-channel summary, and the admin modals and command replies.
//
// Block and action ids are part of the interaction contract: the handlers
// read submitted values back by the ids defined here.
package blocks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TestClientID marks prompts sent by /vibe-test*; their answers are never
// stored.
const TestClientID int64 = -1

// Action ids.
const (
	ActionSubmitStandup      = "submit_standup"
	ActionSkipStandup        = "skip_standup"
	ActionSubmitFeedback     = "submit_feedback"
	ActionFeelingSelect      = "feeling_rating_select"
	ActionSatisfactionSelect = "satisfaction_rating_select"

	InputAccomplishments = "accomplishments_input"
	InputWorkingOn       = "working_on_input"
	InputBlockers        = "blockers_input"
	InputFeelingText     = "feeling_text_input"
	InputImprovements    = "improvements_input"
)

// Block id prefixes of prompt fields.
const (
	FieldAccomplishments = "accomplishments"
	FieldWorkingOn       = "working_on"
	FieldBlockers        = "blockers"
	FieldFeelingRating   = "feeling_rating"
	FieldFeelingText     = "feeling_text"
	FieldImprovements    = "improvements"
	FieldSatisfaction    = "satisfaction_rating"
)

// ErrBadPromptKey is returned by ParsePromptKey for malformed values.
var ErrBadPromptKey = errors.New("malformed prompt key")

// PromptKey identifies one prompt: the client it was sent to and its period
// (standup date or feedback week ending). It travels as the button value
// "client|YYYY-MM-DD" and suffixes every block id of the prompt.
type PromptKey struct {
	ClientID int64
	Date     string
}

// NewPromptKey builds the key for clientID on day d.
func NewPromptKey(clientID int64, d time.Time) PromptKey {
	return PromptKey{ClientID: clientID, Date: d.Format(time.DateOnly)}
}

// String returns the button value form.
func (k PromptKey) String() string { return fmt.Sprintf("%d|%s", k.ClientID, k.Date) }

// BlockID returns the block id of field within this prompt.
func (k PromptKey) BlockID(field string) string {
	return fmt.Sprintf("%s_%d_%s", field, k.ClientID, k.Date)
}

// IsTest reports whether the key belongs to a test prompt.
func (k PromptKey) IsTest() bool { return k.ClientID == TestClientID }

// ParsePromptKey parses a "client|YYYY-MM-DD" button value.
func ParsePromptKey(v string) (PromptKey, error) {
	id, date, ok := strings.Cut(strings.TrimSpace(v), "|")
	if !ok {
		return PromptKey{}, fmt.Errorf("%w: %q", ErrBadPromptKey, v)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || (n < 1 && n != TestClientID) {
		return PromptKey{}, fmt.Errorf("%w: %q", ErrBadPromptKey, v)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return PromptKey{}, fmt.Errorf("%w: %q", ErrBadPromptKey, v)
	}
	return PromptKey{ClientID: n, Date: date}, nil
}
