package domain

import "time"

// Prompt kinds recorded in PromptSend.Kind.
const (
	PromptStandup  = "standup"
	PromptFeedback = "feedback"
)

// PromptSend is the send-lock of one prompt, keyed by (client_id, kind,
// period). The row is claimed before the Slack message goes out so that a
// scheduled tick and a manual trigger for the same period cannot both DM the
// client. Period is the standup date or the feedback week ending
// (YYYY-MM-DD, client-local).
//
// MessageTS and SentAt are filled in once the message is posted; a row with
// an empty MessageTS is a claim whose send is still in flight. RemindedAt
// marks the single reminder allowed per prompt.
type PromptSend struct {
	ID          uint       `gorm:"primaryKey"`
	ClientID    uint       `gorm:"not null;uniqueIndex:ux_prompt_sends_key,priority:1"`
	WorkspaceID uint       `gorm:"not null;index"`
	Kind        string     `gorm:"type:varchar(16);not null;uniqueIndex:ux_prompt_sends_key,priority:2"`
	Period      string     `gorm:"type:varchar(10);not null;uniqueIndex:ux_prompt_sends_key,priority:3"`
	Channel     string     `gorm:"type:varchar(32)"`
	MessageTS   string     `gorm:"type:varchar(32)"`
	SentAt      *time.Time `gorm:"index"`
	RemindedAt  *time.Time
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`

	Client Client `gorm:"foreignKey:ClientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName implements the GORM tabler interface.
func (PromptSend) TableName() string { return "prompt_sends" }
