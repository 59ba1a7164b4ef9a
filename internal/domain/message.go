package domain

import "time"

// MessageStatus enumerates the lifecycle states of an outbound message.
type MessageStatus string

const (
	MessageDraft    MessageStatus = "draft"
	MessageApproved MessageStatus = "approved"
	MessageSent     MessageStatus = "sent"
	MessageBounced  MessageStatus = "bounced"
	MessageRejected MessageStatus = "rejected"
)

// EmailType distinguishes the role a message plays in a conversation.
type EmailType string

const (
	EmailInitial    EmailType = "initial"
	EmailFollowup1  EmailType = "followup_1"
	EmailFollowup2  EmailType = "followup_2"
	EmailReapproach EmailType = "reapproach"
	EmailAck        EmailType = "ack"
)

// OutboundMessage is one drafted or sent message tied to exactly one lead.
// At most one message per lead may hold status "approved" at a time; the
// dispatcher relies on this to never double-send.
type OutboundMessage struct {
	ID           string        `json:"id" db:"id"`
	LeadID       string        `json:"lead_id" db:"lead_id"`
	Subject      string        `json:"subject" db:"subject"`
	BodyText     string        `json:"body_text" db:"body_text"`
	BodyHTML     string        `json:"body_html" db:"body_html"`
	TemplateUsed string        `json:"template_used" db:"template_used"`
	EmailType    EmailType     `json:"email_type" db:"email_type"`
	Status       MessageStatus `json:"status" db:"status"`

	// A/B testing + self-assessment. SelfScore never gates sending.
	Variant           string   `json:"variant" db:"variant"`
	SelfScore         *float64 `json:"self_score" db:"self_score"`
	SelfScoreDetail   []byte   `json:"self_score_detail" db:"self_score_detail"`
	LowScore          bool     `json:"low_score" db:"low_score"`
	GenerationAttempt int      `json:"generation_attempt" db:"generation_attempt"`

	// Thread linkage, populated once sent.
	ProviderMessageID *string    `json:"provider_message_id" db:"provider_message_id"`
	ProviderThreadID  *string    `json:"provider_thread_id" db:"provider_thread_id"`
	SentAt            *time.Time `json:"sent_at" db:"sent_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NextActionStatus enumerates the lifecycle of a scheduled follow-up.
type NextActionStatus string

const (
	ActionPending   NextActionStatus = "pending"
	ActionDone      NextActionStatus = "done"
	ActionCancelled NextActionStatus = "cancelled"
)

// NextAction is a scheduled follow-up for a lead that has not replied yet.
// Pending actions are cancelled the moment a reply, bounce, or unsubscribe
// arrives for the lead.
type NextAction struct {
	ID        string           `json:"id" db:"id"`
	LeadID    string           `json:"lead_id" db:"lead_id"`
	Action    EmailType        `json:"action" db:"action"`
	DueAt     time.Time        `json:"due_at" db:"due_at"`
	Status    NextActionStatus `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}
