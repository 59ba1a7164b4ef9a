// Package mailer provides the outbound email transports and the mailbox
// used for reply polling.
package mailer

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"
)

// OutgoingMail is one message ready for a transport.
type OutgoingMail struct {
	FromName  string
	FromEmail string
	To        string
	ToName    string
	Subject   string
	TextBody  string
	HTMLBody  string

	// Threading headers for responses on an existing conversation.
	InReplyTo  string
	References string
	ThreadID   string
}

// SendResult identifies the message on the provider's side.
type SendResult struct {
	ProviderMessageID string
	ThreadID          string
}

// Transport sends mail. Implementations: SES, Gmail.
type Transport interface {
	Send(ctx context.Context, m OutgoingMail) (*SendResult, error)
}

// ThreadMessage is one message read back from a mailbox thread.
type ThreadMessage struct {
	ProviderMessageID string
	ThreadID          string
	From              string
	Subject           string
	Body              string
	Headers           map[string]string
	ReceivedAt        time.Time
}

// Mailbox is a transport that can also read conversation threads.
type Mailbox interface {
	Transport
	ListThread(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// buildMIME renders an RFC 2822 message. With both bodies present it emits
// multipart/alternative, text part first.
func buildMIME(m OutgoingMail) string {
	var b strings.Builder

	from := m.FromEmail
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.FromName), m.FromEmail)
	}
	to := m.To
	if m.ToName != "" {
		to = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.ToName), m.To)
	}

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	if m.InReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", m.InReplyTo)
	}
	if m.References != "" {
		fmt.Fprintf(&b, "References: %s\r\n", m.References)
	}
	b.WriteString("MIME-Version: 1.0\r\n")

	if m.HTMLBody == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(m.TextBody)
		return b.String()
	}

	const boundary = "outreach-alt-boundary"
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, m.TextBody)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, m.HTMLBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
