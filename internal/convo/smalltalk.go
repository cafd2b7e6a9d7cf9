package convo

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"smartbudget/internal/finance"
)

// DefaultGreetingCooldown is how long a repeated greeting gets the short filler.
const DefaultGreetingCooldown = 300 * time.Second

var (
	greetingTokens = map[string]struct{}{
		"hi":        {},
		"hello":     {},
		"hey":       {},
		"hola":      {},
		"greetings": {},
	}

	capabilitiesPattern = regexp.MustCompile(`(?i)(?:what can you do|capabilities|features|help me with|what do you do|how can you help)`)
)

// IsGreeting reports whether text contains a greeting word.
func IsGreeting(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := greetingTokens[w]; ok {
			return true
		}
	}
	return false
}

// AsksCapabilities reports whether text asks what the assistant can do.
func AsksCapabilities(text string) bool {
	return capabilitiesPattern.MatchString(text)
}

// Greeter answers greetings, throttled by a per-session cooldown.
type Greeter struct {
	bank     *TemplateBank
	pick     Picker
	cooldown time.Duration
	now      func() time.Time
}

// NewGreeter builds a greeter. A non-positive cooldown uses DefaultGreetingCooldown
// and a nil clock uses time.Now.
func NewGreeter(bank *TemplateBank, pick Picker, cooldown time.Duration, now func() time.Time) *Greeter {
	if cooldown <= 0 {
		cooldown = DefaultGreetingCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Greeter{bank: bank, pick: pick, cooldown: cooldown, now: now}
}

// Greet returns a reply when text is a greeting. An onboarding greeting is
// returned when the cooldown expired or never started; otherwise a short filler.
func (g *Greeter) Greet(text string, s *finance.State) (string, bool) {
	if !IsGreeting(text) {
		return "", false
	}
	now := g.now()
	last := s.LastGreeting()
	if !last.IsZero() && now.Sub(last) <= g.cooldown {
		out, err := g.bank.Render(IntentGreetingFiller, nil, g.pick)
		if err != nil {
			return "", false
		}
		return out, true
	}
	out, err := g.bank.Render(IntentGreeting, nil, g.pick)
	if err != nil {
		return "", false
	}
	s.MarkGreeted(now)
	return out, true
}
