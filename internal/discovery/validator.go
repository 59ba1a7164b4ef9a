package discovery

import (
	"context"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/outreach/internal/pkg/logger"
	"github.com/ignite/outreach/internal/service/lead"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// rolePrefixes are mailbox names that never reach a human.
var rolePrefixes = map[string]bool{
	"noreply":       true,
	"no-reply":      true,
	"donotreply":    true,
	"do-not-reply":  true,
	"postmaster":    true,
	"mailer-daemon": true,
	"abuse":         true,
	"bounce":        true,
	"unsubscribe":   true,
}

// ExtractEmails pulls candidate addresses from a page: explicit mailto
// targets first, then pattern matches over the visible text.
func ExtractEmails(p Page) []string {
	seen := map[string]bool{}
	var out []string
	add := func(addr string) {
		addr = lead.NormalizeEmail(addr)
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		out = append(out, addr)
	}
	for _, addr := range p.Emails {
		add(addr)
	}
	for _, addr := range emailPattern.FindAllString(p.Text, -1) {
		add(addr)
	}
	return out
}

// Validator filters candidate addresses down to deliverable human contacts.
type Validator struct {
	denylist map[string]bool
	lookupMX func(ctx context.Context, domain string) error
}

// NewValidator builds a validator. denylistDomains drops entire domains
// (trackers, link shorteners, image CDNs that leak into page text).
func NewValidator(denylistDomains []string) *Validator {
	deny := make(map[string]bool, len(denylistDomains))
	for _, d := range denylistDomains {
		deny[strings.ToLower(d)] = true
	}
	return &Validator{denylist: deny, lookupMX: defaultLookupMX}
}

// WithMXLookup overrides DNS resolution, used by tests.
func (v *Validator) WithMXLookup(fn func(ctx context.Context, domain string) error) *Validator {
	v.lookupMX = fn
	return v
}

// Valid reports whether one normalized address is worth contacting.
func (v *Validator) Valid(ctx context.Context, email string) bool {
	if !emailPattern.MatchString(email) || strings.Count(email, "@") != 1 {
		return false
	}
	at := strings.IndexByte(email, '@')
	local, domain := email[:at], email[at+1:]
	if rolePrefixes[local] {
		return false
	}
	if v.denylist[domain] {
		return false
	}
	// Image filenames and asset paths often match the pattern.
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg"} {
		if strings.HasSuffix(domain, ext) {
			return false
		}
	}
	if err := v.lookupMX(ctx, domain); err != nil {
		logger.Debug("mx lookup failed", "domain", domain, "error", err)
		return false
	}
	return true
}

// Filter returns the addresses that pass validation, order preserved.
func (v *Validator) Filter(ctx context.Context, emails []string) []string {
	var out []string
	for _, e := range emails {
		if v.Valid(ctx, e) {
			out = append(out, e)
		}
	}
	return out
}

func defaultLookupMX(ctx context.Context, domain string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := net.DefaultResolver.LookupMX(ctx, domain)
	return err
}
