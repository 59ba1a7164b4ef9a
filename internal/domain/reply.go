package domain

import "time"

// ReplyIntent is the classified purpose of an inbound reply.
type ReplyIntent string

const (
	IntentInterested     ReplyIntent = "interested"
	IntentNotInterested  ReplyIntent = "not_interested"
	IntentQuestion       ReplyIntent = "question"
	IntentOutOfOffice    ReplyIntent = "out_of_office"
	IntentUnsubscribe    ReplyIntent = "unsubscribe"
	IntentSoftDecline    ReplyIntent = "soft_decline"
	IntentInternalReview ReplyIntent = "internal_review"
)

// ReplyStage tracks how far triage has taken a reply.
type ReplyStage string

const (
	StageInitial       ReplyStage = "initial"
	StageNeedsResearch ReplyStage = "needs_research"
	StageRegenerated   ReplyStage = "regenerated"
)

// InboundReply is a reply received for a previously sent OutboundMessage.
// ProviderMessageID is unique: re-polling the mailbox never produces a
// duplicate row.
type InboundReply struct {
	ID                string       `json:"id" db:"id"`
	MessageID         string       `json:"message_id" db:"message_id"`
	LeadID            string       `json:"lead_id" db:"lead_id"`
	ProviderMessageID string       `json:"provider_message_id" db:"provider_message_id"`
	ReplyBody         string       `json:"reply_body" db:"reply_body"`
	AutoSubmitted     bool         `json:"auto_submitted" db:"auto_submitted"`
	Intent            *ReplyIntent `json:"intent" db:"intent"`
	IntentConfidence  *float64     `json:"intent_confidence" db:"intent_confidence"`
	AIDraftResponse   *string      `json:"ai_draft_response" db:"ai_draft_response"`
	AIDraftSubject    *string      `json:"ai_draft_subject" db:"ai_draft_subject"`
	KnowledgeHits     []byte       `json:"knowledge_hits" db:"knowledge_hits"`
	NeedsResearch     bool         `json:"needs_research" db:"needs_research"`
	EscalationReason  string       `json:"escalation_reason" db:"escalation_reason"`
	ReplyStage        ReplyStage   `json:"reply_stage" db:"reply_stage"`
	HumanApproved     bool         `json:"human_approved" db:"human_approved"`
	AckSentAt         *time.Time   `json:"ack_sent_at" db:"ack_sent_at"`
	RespondedAt       *time.Time   `json:"responded_at" db:"responded_at"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// SkipsDraft reports whether triage policy forbids drafting a response for
// this intent. Unsubscribes are handled immediately and out-of-office
// auto-replies have nothing useful to answer yet.
func (i ReplyIntent) SkipsDraft() bool {
	return i == IntentUnsubscribe || i == IntentOutOfOffice
}
