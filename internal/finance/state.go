// Package finance holds the per-conversation financial facts and the rules that
// extract them from free text.
package finance

import (
	"strings"
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// historyLimit is the length above which the history is pruned.
	historyLimit = 10
	// historyKeep is the number of turns kept after pruning.
	historyKeep = 5
	// ContextTurns is the number of recent turns rendered into a remote prompt.
	ContextTurns = 5
)

// Turn is one message of the conversation.
type Turn struct {
	Role    Role
	Content string
}

// Profile carries the scalar facts known about the user.
type Profile struct {
	// Name is set once and never overwritten. Empty means unknown.
	Name        string
	Income      *decimal.Decimal
	SavingsGoal *decimal.Decimal
}

// Entry is a single ledger category with its most recent amount.
type Entry struct {
	Category string
	Amount   decimal.Decimal
}

// Ledger maps expense categories to their latest amount, preserving the order in
// which categories were first recorded. The zero value is ready to use.
type Ledger struct {
	entries *orderedmap.OrderedMap[string, decimal.Decimal]
}

// NormalizeCategory lower-cases a category and collapses its whitespace.
func NormalizeCategory(category string) string {
	return strings.Join(strings.Fields(strings.ToLower(category)), " ")
}

// Set records amount for category, replacing any previous amount.
func (l *Ledger) Set(category string, amount decimal.Decimal) {
	key := NormalizeCategory(category)
	if key == "" {
		return
	}
	if l.entries == nil {
		l.entries = orderedmap.NewOrderedMap[string, decimal.Decimal]()
	}
	l.entries.Set(key, amount)
}

// Get returns the amount recorded for category.
func (l *Ledger) Get(category string) (decimal.Decimal, bool) {
	if l.entries == nil {
		return decimal.Zero, false
	}
	return l.entries.Get(NormalizeCategory(category))
}

// Len returns the number of recorded categories.
func (l *Ledger) Len() int {
	if l.entries == nil {
		return 0
	}
	return l.entries.Len()
}

// Entries returns the ledger content in insertion order.
func (l *Ledger) Entries() []Entry {
	if l.entries == nil {
		return nil
	}
	out := make([]Entry, 0, l.entries.Len())
	for el := l.entries.Front(); el != nil; el = el.Next() {
		out = append(out, Entry{Category: el.Key, Amount: el.Value})
	}
	return out
}

// Total sums every recorded amount.
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Entries() {
		total = total.Add(e.Amount)
	}
	return total
}

// Highest returns the category with the largest amount. Ties go to the category
// recorded first.
func (l *Ledger) Highest() (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range l.Entries() {
		if !found || e.Amount.GreaterThan(best.Amount) {
			best = e
			found = true
		}
	}
	return best, found
}

// State is everything remembered about one conversation. It is not safe for
// concurrent use; the hosting layer owns one State per session.
type State struct {
	Profile  Profile
	Expenses Ledger

	history      []Turn
	lastGreeting time.Time
}

// NewState returns an empty conversation state.
func NewState() *State {
	return &State{}
}

// AppendTurn records a turn. Once the history grows past ten turns it is cut
// back to the five most recent.
func (s *State) AppendTurn(role Role, content string) {
	s.history = append(s.history, Turn{Role: role, Content: content})
	if len(s.history) > historyLimit {
		kept := make([]Turn, historyKeep)
		copy(kept, s.history[len(s.history)-historyKeep:])
		s.history = kept
	}
}

// History returns a copy of the recorded turns, oldest first.
func (s *State) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// TurnCount returns the number of turns currently held.
func (s *State) TurnCount() int {
	return len(s.history)
}

// RecentTurns returns at most n of the latest turns, oldest first.
func (s *State) RecentTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// LastGreeting reports when the assistant last greeted. Zero means never.
func (s *State) LastGreeting() time.Time {
	return s.lastGreeting
}

// MarkGreeted resets the greeting cooldown to at.
func (s *State) MarkGreeted(at time.Time) {
	s.lastGreeting = at
}

// FormatHistory renders the recent turns as "role: content" lines.
func (s *State) FormatHistory() string {
	turns := s.RecentTurns(ContextTurns)
	if len(turns) == 0 {
		return "This is the start of the conversation."
	}
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = string(t.Role) + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}

// FinancialContext summarises the profile and ledger for a remote prompt.
func (s *State) FinancialContext() string {
	var sb strings.Builder
	sb.WriteString("User financial information:\n")
	if s.Profile.Name != "" {
		sb.WriteString("Name: " + s.Profile.Name + "\n")
	}
	if s.Profile.Income != nil {
		sb.WriteString("Monthly Income: " + Currency + FormatCents(*s.Profile.Income) + "\n")
	}
	if s.Profile.SavingsGoal != nil {
		sb.WriteString("Savings Goal: " + Currency + FormatCents(*s.Profile.SavingsGoal) + "\n")
	}
	if entries := s.Expenses.Entries(); len(entries) > 0 {
		title := cases.Title(language.English)
		sb.WriteString("Expenses:\n")
		for _, e := range entries {
			sb.WriteString("- " + title.String(e.Category) + ": " + Currency + FormatCents(e.Amount) + "\n")
		}
	}
	return sb.String()
}
