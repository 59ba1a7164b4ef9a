package composer

import (
	"strings"

	"github.com/osteele/liquid"
)

// htmlTemplate is the shared HTML shell for outbound mail. The text body is
// the source of truth; HTML is a rendering of the same words.
const htmlTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; font-size: 15px; color: #1a1a1a; line-height: 1.6; max-width: 600px;">
{% for para in paragraphs %}<p>{{ para }}</p>
{% endfor %}<p style="color: #777; font-size: 12px; margin-top: 28px;">
If you'd rather not hear from {{ sender_name }} again, just reply and say so.
</p>
</body>
</html>`

var liquidEngine = liquid.NewEngine()

// renderHTML turns a plain-text body into the HTML variant.
func renderHTML(textBody, senderName string) (string, error) {
	var paragraphs []string
	for _, block := range strings.Split(textBody, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, strings.ReplaceAll(block, "\n", " "))
		}
	}
	return liquidEngine.ParseAndRenderString(htmlTemplate, liquid.Bindings{
		"paragraphs":  paragraphs,
		"sender_name": senderName,
	})
}
