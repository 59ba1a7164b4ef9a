package domain

import "time"

// LeadStatus enumerates the lifecycle states of a lead.
type LeadStatus string

const (
	LeadNew          LeadStatus = "new"
	LeadAnalyzed     LeadStatus = "analyzed"
	LeadDraftReady   LeadStatus = "draft_ready"
	LeadApproved     LeadStatus = "approved"
	LeadSent         LeadStatus = "sent"
	LeadReplied      LeadStatus = "replied"
	LeadDeclined     LeadStatus = "declined"
	LeadUnsubscribed LeadStatus = "unsubscribed"
	LeadBounced      LeadStatus = "bounced"
)

// leadTransitions is the single source of truth for the lead state machine.
// No code path may set a status outside these edges (plus the operator-only
// reset to "new", which is modeled explicitly in the lead service).
var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadNew:        {LeadAnalyzed, LeadDeclined, LeadUnsubscribed},
	LeadAnalyzed:   {LeadDraftReady, LeadDeclined, LeadUnsubscribed},
	LeadDraftReady: {LeadApproved, LeadNew, LeadDeclined, LeadUnsubscribed},
	LeadApproved:   {LeadSent, LeadDeclined, LeadUnsubscribed},
	LeadSent:       {LeadReplied, LeadBounced, LeadDeclined, LeadUnsubscribed},
	LeadReplied:    {LeadUnsubscribed},
}

// CanTransition reports whether a lead may move from one status to another.
func CanTransition(from, to LeadStatus) bool {
	for _, next := range leadTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if automated processing must not touch the lead.
// A human may still manually reset a terminal lead to "new".
func (s LeadStatus) IsTerminal() bool {
	return s == LeadDeclined || s == LeadUnsubscribed || s == LeadBounced
}

// Industry enumerates the coarse industry classifications used by the
// qualifier rubric.
type Industry string

const (
	IndustryECRetail   Industry = "ec_retail"
	IndustryRestaurant Industry = "restaurant"
	IndustryGym        Industry = "gym"
	IndustrySaaS       Industry = "saas"
	IndustryOther      Industry = "other"
)

// ConversationPhase is the coarse relationship stage with a lead, advanced
// as exchanges accumulate.
type ConversationPhase string

const (
	PhaseInitial     ConversationPhase = "initial"
	PhaseDiscovery   ConversationPhase = "discovery"
	PhaseQualified   ConversationPhase = "qualified"
	PhaseEvaluation  ConversationPhase = "evaluation"
	PhaseNegotiation ConversationPhase = "negotiation"
	PhaseClosed      ConversationPhase = "closed"
	PhasePaused      ConversationPhase = "paused"
)

// OnlinePresence captures the marketing-channel signals the qualifier rubric
// scores against.
type OnlinePresence struct {
	HasMessagingChannel bool     `json:"has_messaging_channel"`
	HasNewsletter       bool     `json:"has_newsletter"`
	HasEcommerce        bool     `json:"has_ecommerce"`
	SNSPlatforms        []string `json:"sns_platforms"`
}

// IndustryDetail holds the qualifier's structured analysis of a lead's site.
type IndustryDetail struct {
	BusinessType         string         `json:"business_type"`
	KeyServices          []string       `json:"key_services"`
	TargetCustomers      string         `json:"target_customers"`
	PainPoints           []string       `json:"pain_points"`
	OnlinePresence       OnlinePresence `json:"online_presence"`
	PersonalizationAngle string         `json:"personalization_angle"`
}

// Lead represents a prospective contact and its pipeline state.
type Lead struct {
	ID              string            `json:"id" db:"id"`
	CompanyName     string            `json:"company_name" db:"company_name"`
	Email           string            `json:"email" db:"email"`
	WebsiteURL      string            `json:"website_url" db:"website_url"`
	SourceURL       string            `json:"source_url" db:"source_url"`
	Industry        Industry          `json:"industry" db:"industry"`
	IndustryDetail  *IndustryDetail   `json:"industry_detail" db:"industry_detail"`
	ICPScore        int               `json:"icp_score" db:"icp_score"`
	Status          LeadStatus        `json:"status" db:"status"`
	Phase           ConversationPhase `json:"conversation_phase" db:"conversation_phase"`
	TotalExchanges  int               `json:"total_exchanges" db:"total_exchanges"`
	DiscoveryMethod string            `json:"discovery_method" db:"discovery_method"`
	SourceQuery     string            `json:"source_query" db:"source_query"`
	EstimatedScale  string            `json:"estimated_scale" db:"estimated_scale"`
	UnsubscribedAt  *time.Time        `json:"unsubscribed_at" db:"unsubscribed_at"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}
