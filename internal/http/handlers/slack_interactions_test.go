package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/tbourn/vibe-check/internal/blocks"
	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/repo"
	"github.com/tbourn/vibe-check/internal/services"
)

const promptTS = "1700000000.000100"

func standupState(k blocks.PromptKey, done, doing, blocked string) map[string]map[string]any {
	text := func(v string) map[string]any { return map[string]any{"type": "plain_text_input", "value": v} }
	return map[string]map[string]any{
		k.BlockID(blocks.FieldAccomplishments): {blocks.InputAccomplishments: text(done)},
		k.BlockID(blocks.FieldWorkingOn):       {blocks.InputWorkingOn: text(doing)},
		k.BlockID(blocks.FieldBlockers):        {blocks.InputBlockers: text(blocked)},
	}
}

func feedbackState(k blocks.PromptKey, feeling, satisfaction string) map[string]map[string]any {
	sel := func(v string) map[string]any {
		if v == "" {
			return map[string]any{"type": "static_select"}
		}
		return map[string]any{"type": "static_select", "selected_option": map[string]any{"value": v}}
	}
	return map[string]map[string]any{
		k.BlockID(blocks.FieldFeelingRating): {blocks.ActionFeelingSelect: sel(feeling)},
		k.BlockID(blocks.FieldSatisfaction):  {blocks.ActionSatisfactionSelect: sel(satisfaction)},
		k.BlockID(blocks.FieldFeelingText):   {blocks.InputFeelingText: map[string]any{"type": "plain_text_input", "value": "  tired  "}},
		k.BlockID(blocks.FieldBlockers):      {blocks.InputBlockers: map[string]any{"type": "plain_text_input", "value": "waiting on review"}},
	}
}

func TestSlackInteractions_BadPayload(t *testing.T) {
	e := newEnv(t, OAuthConfig{})

	if w := e.postForm("/slack/interactions", url.Values{}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing payload: status=%d", w.Code)
	}
	if w := e.postForm("/slack/interactions", url.Values{"payload": {"{not json"}}); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed payload: status=%d", w.Code)
	}
	w := e.postForm("/slack/interactions", payloadForm(t, map[string]any{"type": "shortcut"}))
	if w.Code != http.StatusOK {
		t.Fatalf("ignored type: status=%d", w.Code)
	}
}

func TestSlackInteractions_SubmitStandup(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	c := e.addClient(t, "U00000001", "Ada")
	k := blocks.PromptKey{ClientID: int64(c.ID), Date: today()}

	press := func() {
		t.Helper()
		p := blockActions(c.SlackUserID, blocks.ActionSubmitStandup, k.String(), promptTS,
			standupState(k, " shipped login ", "billing", "none"))
		if w := e.postForm("/slack/interactions", payloadForm(t, p)); w.Code != http.StatusOK {
			t.Fatalf("status=%d", w.Code)
		}
	}
	press()

	got, err := repo.ListStandupResponses(context.Background(), e.db, c.ID, 0, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("responses=%v err=%v", got, err)
	}
	if got[0].Accomplishments != "shipped login" || got[0].WorkingOn != "billing" || got[0].ScheduledDate != k.Date {
		t.Fatalf("stored %+v", got[0])
	}
	if got[0].HasBlockers() {
		t.Fatalf("placeholder blocker must not count")
	}

	updates := e.fake.ByMethod("chat.update")
	if len(updates) != 1 || updates[0].Text != "Standup submitted!" || updates[0].TS != promptTS || updates[0].Channel != "D0001" {
		t.Fatalf("updates=%+v", updates)
	}

	// A second press keeps the first answer and still confirms.
	press()
	if n, _ := repo.CountStandupResponses(context.Background(), e.db, c.ID); n != 1 {
		t.Fatalf("duplicate stored: %d", n)
	}
	if n := len(e.fake.ByMethod("chat.update")); n != 2 {
		t.Fatalf("updates=%d want 2", n)
	}
}

func TestSlackInteractions_TestStandupIsNotStored(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	k := blocks.PromptKey{ClientID: blocks.TestClientID, Date: today()}

	p := blockActions(testAdmin, blocks.ActionSubmitStandup, k.String(), promptTS, standupState(k, "a", "b", ""))
	if w := e.postForm("/slack/interactions", payloadForm(t, p)); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var n int64
	e.db.Model(&domain.StandupResponse{}).Count(&n)
	if n != 0 {
		t.Fatalf("test answers must not be stored, got %d", n)
	}
	updates := e.fake.ByMethod("chat.update")
	if len(updates) != 1 || updates[0].Text != "Test standup submitted!" {
		t.Fatalf("updates=%+v", updates)
	}
}

func TestSlackInteractions_SkipStandup(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	c := e.addClient(t, "U00000001", "Ada")
	k := blocks.PromptKey{ClientID: int64(c.ID), Date: today()}

	p := blockActions(c.SlackUserID, blocks.ActionSkipStandup, k.String(), promptTS, nil)
	e.postForm("/slack/interactions", payloadForm(t, p))

	updates := e.fake.ByMethod("chat.update")
	if len(updates) != 1 || updates[0].Text != "Standup skipped" {
		t.Fatalf("updates=%+v", updates)
	}
	if n, _ := repo.CountStandupResponses(context.Background(), e.db, c.ID); n != 0 {
		t.Fatalf("skip must not store a response")
	}
}

func TestSlackInteractions_SaveFailureIsReportedPrivately(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	k := blocks.PromptKey{ClientID: 999, Date: today()}

	p := blockActions("U00000001", blocks.ActionSubmitStandup, k.String(), promptTS, standupState(k, "a", "b", ""))
	e.postForm("/slack/interactions", payloadForm(t, p))

	if n := len(e.fake.ByMethod("chat.update")); n != 0 {
		t.Fatalf("failed save must keep the prompt, got %d updates", n)
	}
	eph := e.fake.ByMethod("chat.postEphemeral")
	if len(eph) != 1 || eph[0].Text != msgGenericError || eph[0].User != "U00000001" {
		t.Fatalf("ephemeral=%+v", eph)
	}
}

func TestSlackInteractions_BadKeyOrWorkspaceIsDropped(t *testing.T) {
	e := newEnv(t, OAuthConfig{})

	p := blockActions("U00000001", blocks.ActionSubmitStandup, "garbage", promptTS, nil)
	if w := e.postForm("/slack/interactions", payloadForm(t, p)); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	k := blocks.PromptKey{ClientID: 1, Date: today()}
	p = blockActions("U00000001", blocks.ActionSubmitStandup, k.String(), promptTS, nil)
	p["team"] = map[string]any{"id": "TUNKNOWN1"}
	e.postForm("/slack/interactions", payloadForm(t, p))

	if n := len(e.fake.Calls); n != 0 {
		t.Fatalf("dropped actions must not call Slack, got %+v", e.fake.Calls)
	}
}

func TestSlackInteractions_SubmitFeedback(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	ctx := context.Background()
	if err := e.ws.SetVibeChannel(ctx, e.workspace.ID, "C0VIBE0001"); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	c := e.addClient(t, "U00000001", "Ada")
	k := blocks.PromptKey{ClientID: int64(c.ID), Date: services.WeekEnding(time.Now().UTC()).Format(time.DateOnly)}

	p := blockActions(c.SlackUserID, blocks.ActionSubmitFeedback, k.String(), promptTS, feedbackState(k, "2", ""))
	e.postForm("/slack/interactions", payloadForm(t, p))

	got, err := repo.ListFeedbackResponses(ctx, e.db, c.ID, 0, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("responses=%v err=%v", got, err)
	}
	r := got[0]
	if r.FeelingRating != 2 || r.SatisfactionRating != services.DefaultRating || r.FeelingText != "tired" {
		t.Fatalf("stored %+v", r)
	}
	if !r.NeedsAttention() {
		t.Fatalf("low feeling should need attention")
	}

	updates := e.fake.ByMethod("chat.update")
	if len(updates) != 1 || updates[0].Text != "Feedback submitted!" {
		t.Fatalf("updates=%+v", updates)
	}
	var vibe bool
	for _, m := range e.fake.ByMethod("chat.postMessage") {
		if m.Channel == "C0VIBE0001" {
			vibe = true
		}
	}
	if !vibe {
		t.Fatalf("summary not posted to the vibe channel: %+v", e.fake.Calls)
	}
}

func TestSlackInteractions_TestFeedback(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	k := blocks.PromptKey{ClientID: blocks.TestClientID, Date: today()}

	p := blockActions(testAdmin, blocks.ActionSubmitFeedback, k.String(), promptTS, feedbackState(k, "5", "5"))
	e.postForm("/slack/interactions", payloadForm(t, p))

	var n int64
	e.db.Model(&domain.FeedbackResponse{}).Count(&n)
	if n != 0 {
		t.Fatalf("test feedback stored")
	}
	updates := e.fake.ByMethod("chat.update")
	if len(updates) != 1 || updates[0].Text != "Test feedback submitted!" {
		t.Fatalf("updates=%+v", updates)
	}
}

func TestRating(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", services.DefaultRating},
		{"4", 4},
		{"x", 0},
	}
	for _, tc := range cases {
		a := slack.BlockAction{SelectedOption: slack.OptionBlockObject{Value: tc.in}}
		if got := rating(a); got != tc.want {
			t.Fatalf("rating(%q)=%d want %d", tc.in, got, tc.want)
		}
	}
}

//
// Admin modals
//

func addClientValues(user, tz, schedule, hhmm string) map[string]map[string]any {
	return map[string]map[string]any{
		blocks.BlockUserSelect:   {blocks.InputUser: map[string]any{"type": "users_select", "selected_user": user}},
		blocks.BlockTimezone:     {blocks.InputTimezone: map[string]any{"type": "static_select", "selected_option": map[string]any{"value": tz}}},
		blocks.BlockScheduleType: {blocks.InputScheduleType: map[string]any{"type": "radio_buttons", "selected_option": map[string]any{"value": schedule}}},
		blocks.BlockStandupTime:  {blocks.InputStandupTime: map[string]any{"type": "timepicker", "selected_time": hhmm}},
	}
}

type viewErrors struct {
	ResponseAction string            `json:"response_action"`
	Errors         map[string]string `json:"errors"`
}

func TestSlackInteractions_AddClient(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	e.fake.Users["U00000009"] = &slack.User{ID: "U00000009", Name: "ada", TZ: "America/New_York",
		Profile: slack.UserProfile{RealName: "Ada Lovelace", Email: "ada@example.com"}}

	p := viewSubmission(testAdmin, blocks.ModalAddClient, addClientValues("U00000009", "Europe/London", domain.ScheduleMondayOnly, "09:30"))
	w := e.postForm("/slack/interactions", payloadForm(t, p))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("want empty ack, got %d %s", w.Code, w.Body.String())
	}

	list, err := e.clients.List(context.Background(), e.workspace.ID, false)
	if err != nil || len(list) != 1 {
		t.Fatalf("clients=%v err=%v", list, err)
	}
	c := list[0]
	if c.DisplayName != "Ada Lovelace" || c.Timezone != "Europe/London" || c.Email == nil || *c.Email != "ada@example.com" {
		t.Fatalf("client %+v", c)
	}
	if c.StandupConfig == nil || c.StandupConfig.ScheduleType != domain.ScheduleMondayOnly || c.StandupConfig.ScheduleTime != "09:30" {
		t.Fatalf("standup config %+v", c.StandupConfig)
	}

	dms := e.fake.ByMethod("chat.postMessage")
	want := "✅ Successfully added <@U00000009> as a client!\n• Schedule: Monday Only at 09:30 AM\n• Timezone: Europe/London"
	if len(dms) != 1 || dms[0].Channel != testAdmin || dms[0].Text != want {
		t.Fatalf("dm=%+v", dms)
	}

	// The same user again is rejected on the user field.
	w = e.postForm("/slack/interactions", payloadForm(t, p))
	var ve viewErrors
	decodeJSON(t, w, &ve)
	if ve.ResponseAction != "errors" || ve.Errors[blocks.BlockUserSelect] == "" {
		t.Fatalf("duplicate: %+v", ve)
	}
}

func TestSlackInteractions_AddClientValidation(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	e.fake.Users["UBOT000001"] = &slack.User{ID: "UBOT000001", IsBot: true}

	cases := []struct {
		name  string
		vals  map[string]map[string]any
		field string
	}{
		{"no user", addClientValues("", "UTC", domain.ScheduleDaily, "09:00"), blocks.BlockUserSelect},
		{"bot", addClientValues("UBOT000001", "UTC", domain.ScheduleDaily, "09:00"), blocks.BlockUserSelect},
		{"timezone", addClientValues("U00000009", "Mars/Olympus", domain.ScheduleDaily, "09:00"), blocks.BlockTimezone},
		{"schedule", addClientValues("U00000009", "UTC", "hourly", "09:00"), blocks.BlockScheduleType},
		{"time", addClientValues("U00000009", "UTC", domain.ScheduleDaily, "25:99"), blocks.BlockStandupTime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.postForm("/slack/interactions", payloadForm(t, viewSubmission(testAdmin, blocks.ModalAddClient, tc.vals)))
			var ve viewErrors
			decodeJSON(t, w, &ve)
			if ve.ResponseAction != "errors" || ve.Errors[tc.field] == "" {
				t.Fatalf("errors=%+v want field %s", ve, tc.field)
			}
		})
	}
	if list, _ := e.clients.List(context.Background(), e.workspace.ID, false); len(list) != 0 {
		t.Fatalf("no client should be created, got %d", len(list))
	}
}

func TestSlackInteractions_NonAdminViewIsIgnored(t *testing.T) {
	e := newEnv(t, OAuthConfig{})

	p := viewSubmission("USTRANGER1", blocks.ModalAddClient, addClientValues("U00000009", "UTC", domain.ScheduleDaily, "09:00"))
	w := e.postForm("/slack/interactions", payloadForm(t, p))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if list, _ := e.clients.List(context.Background(), e.workspace.ID, false); len(list) != 0 {
		t.Fatalf("non-admin created a client")
	}
}

func clientPick(id uint) map[string]map[string]any {
	return map[string]map[string]any{
		blocks.BlockClientSelect: {blocks.InputClientSelect: map[string]any{
			"type": "static_select", "selected_option": map[string]any{"value": strconv.FormatUint(uint64(id), 10)},
		}},
	}
}

func TestSlackInteractions_PauseResumeRemove(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	ctx := context.Background()
	c := e.addClient(t, "U00000001", "Ada")

	submit := func(callbackID string) {
		t.Helper()
		w := e.postForm("/slack/interactions", payloadForm(t, viewSubmission(testAdmin, callbackID, clientPick(c.ID))))
		if w.Code != http.StatusOK || w.Body.Len() != 0 {
			t.Fatalf("%s: %d %s", callbackID, w.Code, w.Body.String())
		}
	}
	lastDM := func() string {
		dms := e.fake.ByMethod("chat.postMessage")
		if len(dms) == 0 {
			t.Fatalf("no DM sent")
		}
		return dms[len(dms)-1].Text
	}

	submit(blocks.ModalPauseClient)
	got, _ := e.clients.Get(ctx, e.workspace.ID, c.ID)
	if !got.StandupConfig.IsPaused {
		t.Fatalf("client not paused")
	}
	if !strings.HasPrefix(lastDM(), "⏸️ Standups paused for *Ada*.") {
		t.Fatalf("dm=%q", lastDM())
	}

	submit(blocks.ModalResumeClient)
	got, _ = e.clients.Get(ctx, e.workspace.ID, c.ID)
	if got.StandupConfig.IsPaused {
		t.Fatalf("client still paused")
	}
	if !strings.HasPrefix(lastDM(), "▶️ Standups resumed for *Ada*.") {
		t.Fatalf("dm=%q", lastDM())
	}

	submit(blocks.ModalRemoveClient)
	if _, err := e.clients.Get(ctx, e.workspace.ID, c.ID); !errors.Is(err, services.ErrClientNotFound) {
		t.Fatalf("client not removed: %v", err)
	}
	if !strings.HasPrefix(lastDM(), "🗑️ *Ada* has been removed.") {
		t.Fatalf("dm=%q", lastDM())
	}

	// The picked client is gone now.
	w := e.postForm("/slack/interactions", payloadForm(t, viewSubmission(testAdmin, blocks.ModalPauseClient, clientPick(c.ID))))
	var ve viewErrors
	decodeJSON(t, w, &ve)
	if ve.Errors[blocks.BlockClientSelect] == "" {
		t.Fatalf("errors=%+v", ve)
	}
}

func TestSlackInteractions_SetChannel(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	pick := func(ch string) map[string]map[string]any {
		return map[string]map[string]any{
			blocks.BlockChannelSelect: {blocks.InputChannelSelect: map[string]any{"type": "channels_select", "selected_channel": ch}},
		}
	}

	w := e.postForm("/slack/interactions", payloadForm(t, viewSubmission(testAdmin, blocks.ModalSetChannel, pick(""))))
	var ve viewErrors
	decodeJSON(t, w, &ve)
	if ve.Errors[blocks.BlockChannelSelect] == "" {
		t.Fatalf("errors=%+v", ve)
	}

	w = e.postForm("/slack/interactions", payloadForm(t, viewSubmission(testAdmin, blocks.ModalSetChannel, pick("C0VIBE0001"))))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	ws, _ := e.ws.ByID(context.Background(), e.workspace.ID)
	if ws.VibeCheckChannelID == nil || *ws.VibeCheckChannelID != "C0VIBE0001" {
		t.Fatalf("channel=%v", ws.VibeCheckChannelID)
	}
	dms := e.fake.ByMethod("chat.postMessage")
	if len(dms) != 1 || !strings.Contains(dms[0].Text, "<#C0VIBE0001>") {
		t.Fatalf("dm=%+v", dms)
	}
}

func TestSlackInteractions_ViewFailureNotifiesAdmin(t *testing.T) {
	e := newEnv(t, OAuthConfig{})
	e.fake.Fail("users.info", errors.New("user_not_found"))

	p := viewSubmission(testAdmin, blocks.ModalAddClient, addClientValues("U00000009", "UTC", domain.ScheduleDaily, "09:00"))
	w := e.postForm("/slack/interactions", payloadForm(t, p))
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	dms := e.fake.ByMethod("chat.postMessage")
	if len(dms) != 1 || dms[0].Text != msgGenericError {
		t.Fatalf("dm=%+v", dms)
	}
}
