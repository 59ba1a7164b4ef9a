package replies

import (
	"strings"

	"github.com/osteele/liquid"

	"github.com/ignite/outreach/internal/domain"
)

// autoReplyHeaders mark machine-generated mail. Acknowledging an
// auto-responder starts a mail loop.
var autoReplyHeaders = []string{"x-autoreply", "x-autorespond", "auto-submitted"}

// ackSkipKeywords in the reply's own words (not quoted text) mean an
// acknowledgment would be unwelcome or useless.
var ackSkipKeywords = []string{
	"do not reply",
	"don't reply",
	"auto-reply",
	"automatic reply",
	"autoreply",
	"out of office",
	"no longer with",
	"unsubscribe",
	"remove me",
	"stop emailing",
}

// IsAutoSubmitted inspects message headers for auto-responder markers. The
// monitor records the verdict on the reply so later gate checks don't need
// the raw headers.
func IsAutoSubmitted(headers map[string]string) bool {
	for _, h := range autoReplyHeaders {
		v, ok := headers[h]
		if !ok {
			continue
		}
		if h == "auto-submitted" && strings.EqualFold(strings.TrimSpace(v), "no") {
			continue
		}
		return true
	}
	return false
}

// ShouldSkipAck applies the deterministic acknowledgment gate. It returns
// true with a reason when no ack may be sent. The gate never consults a
// model; every decision here must be reproducible.
func ShouldSkipAck(rep *domain.InboundReply, intent domain.ReplyIntent, threadAcked bool) (bool, string) {
	if threadAcked {
		return true, "thread already acknowledged"
	}
	if intent.SkipsDraft() {
		return true, "intent " + string(intent)
	}
	if rep.AutoSubmitted {
		return true, "auto-reply headers"
	}
	if kw := firstSkipKeyword(rep.ReplyBody); kw != "" {
		return true, "keyword " + kw
	}
	return false, ""
}

// firstSkipKeyword scans only the reply's own lines; quoted lines (leading
// ">") are the prior email echoed back and must not trigger the gate.
func firstSkipKeyword(body string) string {
	for _, line := range strings.Split(strings.ToLower(body), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), ">") {
			continue
		}
		for _, kw := range ackSkipKeywords {
			if strings.Contains(line, kw) {
				return kw
			}
		}
	}
	return ""
}

const ackTemplate = `Hi{% if company %} {{ company }}{% endif %},

Thanks for getting back to me. I've read your note and will follow up
properly within a day.

{{ sender_name }}`

var ackEngine = liquid.NewEngine()

// renderAck builds the acknowledgment body.
func renderAck(company, senderName string) (string, error) {
	return ackEngine.ParseAndRenderString(ackTemplate, liquid.Bindings{
		"company":     company,
		"sender_name": senderName,
	})
}
