package blocks

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/vibe-check/internal/domain"
)

// Modal callback ids.
const (
	ModalAddClient    = "add_client_modal"
	ModalPauseClient  = "pause_client_modal"
	ModalResumeClient = "resume_client_modal"
	ModalRemoveClient = "remove_client_modal"
	ModalSetChannel   = "set_channel_modal"
)

// Modal block and action ids read back by the view handlers.
const (
	BlockUserSelect    = "user_select"
	InputUser          = "user_input"
	BlockTimezone      = "timezone"
	InputTimezone      = "timezone_select"
	BlockScheduleType  = "schedule_type"
	InputScheduleType  = "schedule_type_select"
	BlockStandupTime   = "standup_time"
	InputStandupTime   = "time_select"
	BlockClientSelect  = "client_select"
	InputClientSelect  = "client_select_input"
	BlockChannelSelect = "channel_select"
	InputChannelSelect = "channel_select_input"
)

// maxSelectOptions is Slack's limit for static_select options.
const maxSelectOptions = 100

var timezoneChoices = []struct{ value, label string }{
	{"America/New_York", "America/New_York (EST/EDT)"},
	{"America/Chicago", "America/Chicago (CST/CDT)"},
	{"America/Denver", "America/Denver (MST/MDT)"},
	{"America/Los_Angeles", "America/Los_Angeles (PST/PDT)"},
	{"Europe/London", "Europe/London (GMT/BST)"},
	{"Europe/Paris", "Europe/Paris (CET/CEST)"},
	{"Asia/Tokyo", "Asia/Tokyo (JST)"},
	{"UTC", "UTC"},
}

var titleCase = cases.Title(language.English)

// ScheduleLabel renders a schedule type for humans ("Daily", "Monday Only").
func ScheduleLabel(scheduleType string) string {
	return titleCase.String(strings.ReplaceAll(scheduleType, "_", " "))
}

// Clock12 renders "HH:MM" as "09:00 AM"; unparsable input is returned as is.
func Clock12(hhmm string) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("03:04 PM")
}

func modal(callbackID, title, submit string, blocks ...slack.Block) slack.ModalViewRequest {
	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: callbackID,
		Title:      plain(title),
		Submit:     plain(submit),
		Close:      plain("Cancel"),
		Blocks:     slack.Blocks{BlockSet: blocks},
	}
}

// AddClientModal collects the Slack user, timezone, cadence and time of a
// new client.
func AddClientModal() slack.ModalViewRequest {
	user := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, plain("Select a user"), InputUser)

	var tzOpts []*slack.OptionBlockObject
	for _, tz := range timezoneChoices {
		tzOpts = append(tzOpts, slack.NewOptionBlockObject(tz.value, plain(tz.label), nil))
	}
	tz := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select timezone"), InputTimezone, tzOpts...)
	tz.InitialOption = tzOpts[0]

	daily := slack.NewOptionBlockObject(domain.ScheduleDaily, plain("Daily"), plain("Send standup request every day"))
	monday := slack.NewOptionBlockObject(domain.ScheduleMondayOnly, plain("Monday Only"), plain("Send standup request only on Mondays"))
	cadence := slack.NewRadioButtonsBlockElement(InputScheduleType, daily, monday)
	cadence.InitialOption = daily

	at := slack.NewTimePickerBlockElement(InputStandupTime)
	at.InitialTime = domain.DefaultStandupTime
	at.Placeholder = plain("Select time")

	return modal(ModalAddClient, "Add New Client", "Add Client",
		slack.NewInputBlock(BlockUserSelect, plain("Client User"), nil, user),
		slack.NewInputBlock(BlockTimezone, plain("Timezone"), nil, tz),
		slack.NewInputBlock(BlockScheduleType, plain("Standup Schedule"), nil, cadence),
		slack.NewInputBlock(BlockStandupTime, plain("Standup Time"), nil, at),
	)
}

// clientSelectModal offers clients as a static select. ok is false when no
// client qualifies.
func clientSelectModal(callbackID, title, submit, prompt string, clients []domain.Client) (slack.ModalViewRequest, bool) {
	var opts []*slack.OptionBlockObject
	for _, c := range clients {
		if len(opts) == maxSelectOptions {
			break
		}
		opts = append(opts, slack.NewOptionBlockObject(strconv.FormatUint(uint64(c.ID), 10), plain(c.Name()), nil))
	}
	if len(opts) == 0 {
		return slack.ModalViewRequest{}, false
	}
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, plain("Select a client"), InputClientSelect, opts...)
	return modal(callbackID, title, submit,
		slack.NewInputBlock(BlockClientSelect, plain(prompt), nil, sel),
	), true
}

// PauseClientModal lists clients whose standups can be paused.
func PauseClientModal(clients []domain.Client) (slack.ModalViewRequest, bool) {
	var eligible []domain.Client
	for _, c := range clients {
		if c.IsActive && c.StandupConfig != nil && !c.StandupConfig.IsPaused {
			eligible = append(eligible, c)
		}
	}
	return clientSelectModal(ModalPauseClient, "Pause Standups", "Pause", "Client to pause", eligible)
}

// ResumeClientModal lists clients whose standups are paused.
func ResumeClientModal(clients []domain.Client) (slack.ModalViewRequest, bool) {
	var eligible []domain.Client
	for _, c := range clients {
		if c.StandupConfig != nil && c.StandupConfig.IsPaused {
			eligible = append(eligible, c)
		}
	}
	return clientSelectModal(ModalResumeClient, "Resume Standups", "Resume", "Client to resume", eligible)
}

// RemoveClientModal lists every client.
func RemoveClientModal(clients []domain.Client) (slack.ModalViewRequest, bool) {
	return clientSelectModal(ModalRemoveClient, "Remove Client", "Remove", "Client to remove", clients)
}

// SetChannelModal picks the channel receiving feedback summaries.
func SetChannelModal() slack.ModalViewRequest {
	sel := slack.NewOptionsSelectBlockElement(slack.OptTypeChannels, plain("Select a channel"), InputChannelSelect)
	return modal(ModalSetChannel, "Vibe Check Channel", "Save",
		slack.NewInputBlock(BlockChannelSelect, plain("Post client feedback to"), nil, sel),
	)
}

// NoClients answers a pause/resume/remove command with nothing eligible.
func NoClients(action string) []slack.Block {
	var msg string
	switch action {
	case "pause":
		msg = "No active clients to pause. Use `/vibe-add-client` to add one."
	case "resume":
		msg = "No paused clients to resume."
	default:
		msg = "No clients to remove."
	}
	return []slack.Block{slack.NewSectionBlock(mrkdwn(msg), nil, nil)}
}

// ClientList renders /vibe-list-clients.
func ClientList(clients []domain.Client) []slack.Block {
	if len(clients) == 0 {
		return []slack.Block{slack.NewSectionBlock(mrkdwn("No clients found. Use `/vibe-add-client` to add one."), nil, nil)}
	}
	out := []slack.Block{slack.NewHeaderBlock(plain(fmt.Sprintf("📋 Active Clients (%d)", len(clients))))}
	for _, c := range clients {
		status := "✅"
		if !c.IsActive {
			status = "⏸️"
		}
		standup := "No standup configured"
		if cfg := c.StandupConfig; cfg != nil {
			cadence := "Daily"
			if cfg.ScheduleType == domain.ScheduleMondayOnly {
				cadence = "Mondays"
			}
			standup = fmt.Sprintf("%s at %s", cadence, Clock12(cfg.ScheduleTime))
			if cfg.IsPaused {
				standup += " (Paused)"
			}
		}
		feedback := "❌ Disabled"
		if c.FeedbackConfig != nil && c.FeedbackConfig.IsEnabled {
			feedback = "✅ Enabled"
		}
		out = append(out,
			slack.NewSectionBlock(mrkdwn(fmt.Sprintf("%s *<@%s>*\n• Standup: %s\n• Feedback: %s\n• Timezone: %s",
				status, c.SlackUserID, standup, feedback, c.Timezone)), nil, nil),
			slack.NewDividerBlock(),
		)
	}
	return out
}

// Help renders /vibe-help.
func Help() []slack.Block {
	return []slack.Block{
		slack.NewHeaderBlock(plain("🎭 Vibe Check - Help")),
		slack.NewSectionBlock(mrkdwn("*Available Commands:*"), nil, nil),
		slack.NewSectionBlock(mrkdwn(
			"`/vibe-add-client` - Add a new client to receive standups\n"+
				"`/vibe-remove-client` - Remove a client\n"+
				"`/vibe-list-clients` - List all active clients\n"+
				"`/vibe-pause` - Pause standups for a client\n"+
				"`/vibe-resume` - Resume standups for a client\n"+
				"`/vibe-set-channel` - Choose where feedback is posted\n"+
				"`/vibe-test` - Send a test standup to yourself\n"+
				"`/vibe-test-feedback` - Send a test feedback form to yourself\n"+
				"`/vibe-help` - Show this help message"), nil, nil),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(mrkdwn("*How it works:*\n"+
			"• Daily standups are sent via DM at the configured time\n"+
			"• Weekly feedback is sent every Friday\n"+
			"• All feedback is posted to your private vibe check channel\n"+
			"• Clients can submit responses using the interactive buttons"), nil, nil),
	}
}
