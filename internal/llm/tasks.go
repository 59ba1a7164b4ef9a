package llm

import (
	"context"
	"fmt"
	"strings"
)

// SiteAnalysis is the structured result of analyzing a lead's website.
// Field names mirror the stored industry detail so the qualifier can copy
// the analysis through without re-mapping.
type SiteAnalysis struct {
	Industry             string   `json:"industry"`
	BusinessType         string   `json:"business_type"`
	KeyServices          []string `json:"key_services"`
	TargetCustomers      string   `json:"target_customers"`
	PainPoints           []string `json:"pain_points"`
	PersonalizationAngle string   `json:"personalization_angle"`
	HasMessagingChannel  bool     `json:"has_messaging_channel"`
	HasNewsletter        bool     `json:"has_newsletter"`
	HasEcommerce         bool     `json:"has_ecommerce"`
	SNSPlatforms         []string `json:"sns_platforms"`
	SmallTeam            bool     `json:"small_team"`
	EstimatedScale       string   `json:"estimated_scale"`
}

const analyzeSystem = `You are a B2B research analyst. You study a company's website text and
return a strict JSON object describing the business. Respond with JSON only, no prose.`

// AnalyzeSite classifies a company from crawled page text.
func (c *Client) AnalyzeSite(ctx context.Context, companyName, websiteURL, pageText string) (*SiteAnalysis, error) {
	if len(pageText) > 12000 {
		pageText = pageText[:12000]
	}
	prompt := fmt.Sprintf(`Analyze this company and return JSON with keys:
industry (one of: ec_retail, restaurant, gym, saas, other),
business_type, key_services (array), target_customers,
pain_points (array), personalization_angle (one concrete observation),
has_messaging_channel (bool), has_newsletter (bool), has_ecommerce (bool),
sns_platforms (array of active social platforms), small_team (bool),
estimated_scale (one of: solo, small, medium, large).

Company: %s
Website: %s

Page text:
%s`, companyName, websiteURL, pageText)

	var out SiteAnalysis
	if err := c.completeJSON(ctx, analyzeSystem, prompt, 1024, &out); err != nil {
		return nil, fmt.Errorf("analyze site: %w", err)
	}
	return &out, nil
}

// EmailInput carries the lead context the composer hands to the model.
type EmailInput struct {
	CompanyName          string
	Industry             string
	BusinessType         string
	KeyServices          []string
	PainPoints           []string
	PersonalizationAngle string
	Variant              string // "warm" or "direct"
	SenderName           string
	Product              string
	EmailType            string // initial, followup_1, followup_2, reapproach
}

// EmailDraft is one generated outbound email.
type EmailDraft struct {
	Subject  string `json:"subject"`
	BodyText string `json:"body_text"`
}

const composeSystem = `You are an outbound sales copywriter. You write short, specific,
honest cold emails. Hard rules: under 150 words, at most three paragraphs,
no pressure tactics, no fake urgency, no invented claims about the recipient,
exactly one clear ask, never open with "I hope this finds you well" or
"My name is". Respond with a JSON object only:
{"subject": ..., "body_text": ...}.`

// DraftEmail generates one variant of an outbound email.
func (c *Client) DraftEmail(ctx context.Context, in EmailInput) (*EmailDraft, error) {
	tone := "warm and curious; lead with a genuine observation about their work"
	if in.Variant == "direct" {
		tone = "direct and concrete; lead with the specific value proposition"
	}
	prompt := fmt.Sprintf(`Write a %s outreach email about %s, signed by %s.
Tone: %s.

Recipient company: %s
Industry: %s (%s)
What they offer: %s
Likely pain points: %s
Personalization angle: %s`,
		in.EmailType, in.Product, in.SenderName, tone,
		in.CompanyName, in.Industry, in.BusinessType,
		strings.Join(in.KeyServices, ", "),
		strings.Join(in.PainPoints, ", "),
		in.PersonalizationAngle)

	var out EmailDraft
	if err := c.completeJSON(ctx, composeSystem, prompt, 1024, &out); err != nil {
		return nil, fmt.Errorf("draft email: %w", err)
	}
	if out.Subject == "" || out.BodyText == "" {
		return nil, fmt.Errorf("draft email: model returned empty subject or body")
	}
	return &out, nil
}

// IntentResult is the classification of one inbound reply.
type IntentResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

const classifySystem = `You classify replies to cold outreach email. Respond with a JSON
object only: {"intent": ..., "confidence": 0.0-1.0, "reasoning": one sentence}.
intent must be one of: interested, not_interested, question, out_of_office,
unsubscribe, soft_decline, internal_review.`

// ClassifyIntent classifies a reply body against the fixed intent set.
func (c *Client) ClassifyIntent(ctx context.Context, originalSubject, replyBody string) (*IntentResult, error) {
	prompt := fmt.Sprintf(`Original outreach subject: %s

Reply received:
%s`, originalSubject, replyBody)

	var out IntentResult
	if err := c.completeJSON(ctx, classifySystem, prompt, 512, &out); err != nil {
		return nil, fmt.Errorf("classify intent: %w", err)
	}
	// Models occasionally answer on a 0-100 scale despite the prompt.
	if out.Confidence < 0 {
		out.Confidence = 0
	} else if out.Confidence > 1 {
		out.Confidence = 1
	}
	return &out, nil
}

// ReplyInput carries the context for drafting a response to an inbound reply.
type ReplyInput struct {
	CompanyName   string
	ReplyBody     string
	Intent        string
	KnowledgeText string // grounding facts, already relevance-filtered
	SenderName    string
	Product       string
	Feedback      string // operator notes for a regeneration pass, optional
	PriorDraft    string // previous draft being regenerated, optional
}

// ReplyDraft is a generated response to an inbound reply.
type ReplyDraft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const replySystem = `You draft responses to replies received on sales threads. Ground every
factual claim strictly in the provided knowledge; if the knowledge does not
cover the question, say so plainly rather than inventing an answer. Keep it
under 120 words. Respond with a JSON object only: {"subject": ..., "body": ...}.`

// DraftReply generates a grounded response draft for a classified reply.
func (c *Client) DraftReply(ctx context.Context, in ReplyInput) (*ReplyDraft, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, writing about %s.\n\n", in.SenderName, in.Product)
	fmt.Fprintf(&b, "Reply from %s (classified intent: %s):\n%s\n\n", in.CompanyName, in.Intent, in.ReplyBody)
	if in.KnowledgeText != "" {
		fmt.Fprintf(&b, "Knowledge you may use:\n%s\n\n", in.KnowledgeText)
	}
	if in.PriorDraft != "" {
		fmt.Fprintf(&b, "Previous draft (rejected):\n%s\n\n", in.PriorDraft)
	}
	if in.Feedback != "" {
		fmt.Fprintf(&b, "Operator feedback to incorporate:\n%s\n\n", in.Feedback)
	}
	b.WriteString("Draft the response.")

	var out ReplyDraft
	if err := c.completeJSON(ctx, replySystem, b.String(), 1024, &out); err != nil {
		return nil, fmt.Errorf("draft reply: %w", err)
	}
	if out.Body == "" {
		return nil, fmt.Errorf("draft reply: model returned empty body")
	}
	return &out, nil
}
