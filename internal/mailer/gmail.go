package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	appconfig "github.com/ignite/outreach/internal/config"
	"github.com/ignite/outreach/internal/pkg/httpretry"
	"github.com/ignite/outreach/internal/pkg/logger"
)

const gmailAPIBase = "https://gmail.googleapis.com/gmail/v1/users/me"

// GmailMailbox sends threaded mail and reads replies through the Gmail REST
// API. OAuth token refresh happens inside the oauth2 transport; retries for
// transient API errors happen in httpretry.
type GmailMailbox struct {
	http        httpretry.HTTPDoer
	senderEmail string
	senderName  string
}

// NewGmailMailbox builds a mailbox from an offline refresh token.
func NewGmailMailbox(ctx context.Context, cfg appconfig.GmailConfig) (*GmailMailbox, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("gmail: incomplete oauth credentials")
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.send",
			"https://www.googleapis.com/auth/gmail.readonly",
		},
	}
	base := oc.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	base.Timeout = 30 * time.Second

	return &GmailMailbox{
		http:        httpretry.NewRetryClient(base, 3),
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
	}, nil
}

type gmailSendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}

type gmailSendResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Send delivers one message, attaching it to an existing thread when a
// thread id is present.
func (g *GmailMailbox) Send(ctx context.Context, m OutgoingMail) (*SendResult, error) {
	if m.FromEmail == "" {
		m.FromEmail = g.senderEmail
		m.FromName = g.senderName
	}
	raw := base64.URLEncoding.EncodeToString([]byte(buildMIME(m)))

	body, err := json.Marshal(gmailSendRequest{Raw: raw, ThreadID: m.ThreadID})
	if err != nil {
		return nil, fmt.Errorf("gmail send: marshal: %w", err)
	}
	var resp gmailSendResponse
	if err := g.call(ctx, http.MethodPost, gmailAPIBase+"/messages/send", body, &resp); err != nil {
		return nil, fmt.Errorf("gmail send: %w", err)
	}
	logger.Info("gmail message sent", "email", m.To, "thread_id", resp.ThreadID)
	return &SendResult{ProviderMessageID: resp.ID, ThreadID: resp.ThreadID}, nil
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailPart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

type gmailMessage struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	InternalDate string `json:"internalDate"`
	Payload      struct {
		Headers []gmailHeader `json:"headers"`
		gmailPart
	} `json:"payload"`
}

type gmailThread struct {
	Messages []gmailMessage `json:"messages"`
}

// ListThread returns every message on a thread, oldest first.
func (g *GmailMailbox) ListThread(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var thread gmailThread
	url := fmt.Sprintf("%s/threads/%s?format=full", gmailAPIBase, threadID)
	if err := g.call(ctx, http.MethodGet, url, nil, &thread); err != nil {
		return nil, fmt.Errorf("gmail list thread: %w", err)
	}

	out := make([]ThreadMessage, 0, len(thread.Messages))
	for _, msg := range thread.Messages {
		tm := ThreadMessage{
			ProviderMessageID: msg.ID,
			ThreadID:          msg.ThreadID,
			Headers:           map[string]string{},
			Body:              extractTextBody(msg.Payload.gmailPart),
		}
		for _, h := range msg.Payload.Headers {
			key := strings.ToLower(h.Name)
			tm.Headers[key] = h.Value
			switch key {
			case "from":
				tm.From = h.Value
			case "subject":
				tm.Subject = h.Value
			}
		}
		if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
			tm.ReceivedAt = time.UnixMilli(ms)
		}
		out = append(out, tm)
	}
	return out, nil
}

func (g *GmailMailbox) call(ctx context.Context, method, url string, body []byte, v any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("gmail API status %d: %s", resp.StatusCode, string(data))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// extractTextBody walks the MIME tree and returns the first text/plain part,
// falling back to text/html.
func extractTextBody(p gmailPart) string {
	if text := findPart(p, "text/plain"); text != "" {
		return text
	}
	return findPart(p, "text/html")
}

func findPart(p gmailPart, mimeType string) string {
	if strings.HasPrefix(p.MimeType, mimeType) && p.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(p.Body.Data); err == nil {
			return string(data)
		}
		if data, err := base64.RawURLEncoding.DecodeString(p.Body.Data); err == nil {
			return string(data)
		}
	}
	for _, child := range p.Parts {
		if text := findPart(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}
