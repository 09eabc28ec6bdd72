package blocks

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/domain"
)

var (
	feelingOptions = []string{
		"5 — Excellent", "4 — Good", "3 — Neutral", "2 — Difficult", "1 — Struggling",
	}
	satisfactionOptions = []string{
		"5 — Excellent", "4 — Very Good", "3 — Good", "2 — Fair", "1 — Needs Work",
	}
)

func ratingSelect(actionID, placeholder string, labels []string) *slack.SelectBlockElement {
	opts := make([]*slack.OptionBlockObject, 0, len(labels))
	for _, l := range labels {
		opts = append(opts, slack.NewOptionBlockObject(l[:1], plain(l), nil))
	}
	return slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain(placeholder), actionID, opts...)
}

// FeedbackPrompt is the weekly review DM for clientID, week ending on the
// given Friday.
func FeedbackPrompt(clientID int64, weekEnding time.Time) []slack.Block {
	k := NewPromptKey(clientID, weekEnding)
	submit := slack.NewButtonBlockElement(ActionSubmitFeedback, k.String(), plain("Submit")).
		WithStyle(slack.StylePrimary)

	return []slack.Block{
		slack.NewHeaderBlock(plain("WEEKLY REVIEW")),
		slack.NewContextBlock("", plain("WEEK ENDING "+strings.ToUpper(weekEnding.Format("January 02, 2006")))),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(mrkdwn("*How are you feeling about this week?*"), nil,
			slack.NewAccessory(ratingSelect(ActionFeelingSelect, "Select", feelingOptions)),
			slack.SectionBlockOptionBlockID(k.BlockID(FieldFeelingRating))),
		input(k.BlockID(FieldFeelingText), "NOTES", InputFeelingText, "Additional context", true),
		input(k.BlockID(FieldImprovements), "IMPROVEMENTS", InputImprovements, "What could be improved?", true),
		input(k.BlockID(FieldBlockers), "BLOCKERS", InputBlockers, "Any blockers?", true),
		slack.NewSectionBlock(mrkdwn("*Overall satisfaction with our work together:*"), nil,
			slack.NewAccessory(ratingSelect(ActionSatisfactionSelect, "Rate", satisfactionOptions)),
			slack.SectionBlockOptionBlockID(k.BlockID(FieldSatisfaction))),
		slack.NewActionBlock(k.BlockID("feedback_actions"), submit),
	}
}

// FeedbackConfirmation replaces the prompt once submitted.
func FeedbackConfirmation() []slack.Block {
	return []slack.Block{slack.NewSectionBlock(mrkdwn("*RECEIVED* — Thank you for your feedback."), nil, nil)}
}

func score(r int) string {
	if r < 1 {
		return "—"
	}
	return fmt.Sprintf("%d/5", r)
}

// VibeSummary is the feedback digest posted to the workspace's vibe channel.
func VibeSummary(c domain.Client, r domain.FeedbackResponse) []slack.Block {
	status := "OK"
	if r.NeedsAttention() {
		status = "ATTENTION"
	}
	week := r.WeekEnding
	if t, err := time.Parse(time.DateOnly, r.WeekEnding); err == nil {
		week = t.Format("Jan 02, 2006")
	}
	submitted := fmt.Sprintf("<!date^%d^{date_short} {time}|%s>",
		r.SubmittedAt.Unix(), r.SubmittedAt.UTC().Format(time.RFC3339))

	out := []slack.Block{
		slack.NewHeaderBlock(plain(fmt.Sprintf("[%s] %s", status, c.Name()))),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			mrkdwn("*Feeling:* " + score(r.FeelingRating)),
			mrkdwn("*Satisfaction:* " + score(r.SatisfactionRating)),
			mrkdwn("*Week:* " + week),
			mrkdwn("*Submitted:* " + submitted),
		}, nil),
		slack.NewDividerBlock(),
	}
	for _, s := range []struct{ label, body string }{
		{"Notes", r.FeelingText},
		{"Improvements", r.Improvements},
		{"Blockers", r.Blockers},
	} {
		if strings.TrimSpace(s.body) != "" {
			out = append(out, slack.NewSectionBlock(mrkdwn(fmt.Sprintf("*%s:*\n%s", s.label, s.body)), nil, nil))
		}
	}
	out = append(out, slack.NewContextBlock("",
		mrkdwn(fmt.Sprintf("Response time: %dm | ID: %d", r.ResponseTimeSeconds/60, c.ID))))
	return out
}
