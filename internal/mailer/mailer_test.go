package mailer

import (
	"strings"
	"testing"
)

func TestBuildMIMEThreadingHeaders(t *testing.T) {
	raw := buildMIME(OutgoingMail{
		FromName:   "Sam Rivera",
		FromEmail:  "sam@ignite.dev",
		To:         "jane@example.com",
		Subject:    "Re: Quick question",
		TextBody:   "Thanks for getting back to me.",
		InReplyTo:  "<abc123@mail.example.com>",
		References: "<abc123@mail.example.com>",
	})

	for _, want := range []string{
		"From: Sam Rivera <sam@ignite.dev>",
		"To: jane@example.com",
		"In-Reply-To: <abc123@mail.example.com>",
		"References: <abc123@mail.example.com>",
		"Content-Type: text/plain",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("MIME missing %q\n%s", want, raw)
		}
	}
}

func TestBuildMIMEMultipartAlternative(t *testing.T) {
	raw := buildMIME(OutgoingMail{
		FromEmail: "sam@ignite.dev",
		To:        "jane@example.com",
		Subject:   "Hello",
		TextBody:  "plain version",
		HTMLBody:  "<p>html version</p>",
	})

	if !strings.Contains(raw, "multipart/alternative") {
		t.Fatalf("expected multipart/alternative:\n%s", raw)
	}
	textIdx := strings.Index(raw, "plain version")
	htmlIdx := strings.Index(raw, "<p>html version</p>")
	if textIdx < 0 || htmlIdx < 0 || textIdx > htmlIdx {
		t.Errorf("text part must precede html part:\n%s", raw)
	}
}

func TestExtractTextBodyPrefersPlain(t *testing.T) {
	part := gmailPart{MimeType: "multipart/alternative"}
	html := gmailPart{MimeType: "text/html"}
	html.Body.Data = "PHA+aGk8L3A+" // <p>hi</p>
	plain := gmailPart{MimeType: "text/plain"}
	plain.Body.Data = "aGVsbG8gdGhlcmU=" // hello there
	part.Parts = []gmailPart{html, plain}

	if got := extractTextBody(part); got != "hello there" {
		t.Errorf("body = %q, want plain part", got)
	}
}
