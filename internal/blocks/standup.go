package blocks

import (
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/domain"
)

func plain(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, s, false, false)
}

func mrkdwn(s string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, s, false, false)
}

func textArea(actionID, placeholder string) *slack.PlainTextInputBlockElement {
	el := slack.NewPlainTextInputBlockElement(plain(placeholder), actionID)
	el.Multiline = true
	return el
}

func input(blockID, label, actionID, placeholder string, optional bool) *slack.InputBlock {
	b := slack.NewInputBlock(blockID, plain(label), nil, textArea(actionID, placeholder))
	b.Optional = optional
	return b
}

// StandupPrompt is the daily check-in DM for clientID on day d.
func StandupPrompt(clientID int64, d time.Time) []slack.Block {
	k := NewPromptKey(clientID, d)
	submit := slack.NewButtonBlockElement(ActionSubmitStandup, k.String(), plain("Submit")).
		WithStyle(slack.StylePrimary)
	skip := slack.NewButtonBlockElement(ActionSkipStandup, k.String(), plain("Skip"))

	return []slack.Block{
		slack.NewHeaderBlock(plain("DAILY CHECK-IN")),
		slack.NewContextBlock("", plain(strings.ToUpper(d.Format("Monday, January 02")))),
		slack.NewDividerBlock(),
		input(k.BlockID(FieldAccomplishments), "COMPLETED", InputAccomplishments, "What did you accomplish?", false),
		input(k.BlockID(FieldWorkingOn), "IN PROGRESS", InputWorkingOn, "What are you focusing on?", false),
		input(k.BlockID(FieldBlockers), "BLOCKED", InputBlockers, "Any blockers?", true),
		slack.NewActionBlock(k.BlockID("standup_actions"), submit, skip),
	}
}

// StandupConfirmation replaces the prompt once answered or skipped.
func StandupConfirmation(submitted bool) []slack.Block {
	msg := "*SUBMITTED* — Your update has been recorded."
	if !submitted {
		msg = "*SKIPPED* — Noted for today."
	}
	return []slack.Block{slack.NewSectionBlock(mrkdwn(msg), nil, nil)}
}

// Reminder is the threaded nudge posted under an unanswered prompt.
func Reminder(kind string) string {
	if kind == domain.PromptFeedback {
		return "Friendly reminder: your weekly review is still open above. It only takes a minute."
	}
	return "Friendly reminder: today's check-in is still open above."
}
