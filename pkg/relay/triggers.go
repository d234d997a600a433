package relay

import "strings"

// DefaultBookingTriggers are the phrases that reveal the booking form when
// the assistant uses them. Deployments override them through config.
var DefaultBookingTriggers = []string{
	"book a call",
	"schedule a call",
	"book a meeting",
	"schedule a meeting",
	"set up a call",
	"preferred date",
	"booking form",
}

// BookingPolicy decides whether assistant text is asking the visitor to book.
// Matching is a case-insensitive substring test; it is a UX hint, not protocol.
type BookingPolicy struct {
	phrases []string
}

// NewBookingPolicy builds a policy from phrases, ignoring blanks.
func NewBookingPolicy(phrases []string) *BookingPolicy {
	p := &BookingPolicy{}
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			p.phrases = append(p.phrases, phrase)
		}
	}
	return p
}

// Matches reports whether text contains any trigger phrase.
func (p *BookingPolicy) Matches(text string) bool {
	if p == nil || len(p.phrases) == 0 || text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, phrase := range p.phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Phrases returns the normalized trigger list.
func (p *BookingPolicy) Phrases() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.phrases))
	copy(out, p.phrases)
	return out
}
