package convo

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"smartbudget/internal/finance"
)

const (
	// DefaultAssistantName is how the assistant introduces itself.
	DefaultAssistantName = "FIN"

	recommendedRange = "15-20"
	highSharePercent = 30
)

var (
	renamePattern = regexp.MustCompile(`(?i)(?:call you|name you|rename you|your name is|you are|you['’]re) ([a-z]+)`)

	identityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)what(?:['’]s|\s+is)\s+your\s+name`),
		regexp.MustCompile(`(?i)who\s+are\s+you`),
		regexp.MustCompile(`(?i)introduce\s+yourself`),
		regexp.MustCompile(`(?i)your\s+name`),
		regexp.MustCompile(`(?i)call\s+you`),
	}

	analysisKeywords = []string{"analyze", "analysis", "how am i doing", "budget", "review", "overview", "summary", "status"}

	savingsShare = decimal.NewFromFloat(0.2)
	hundred      = decimal.NewFromInt(100)
)

// Decision is the outcome of classifying an utterance.
type Decision struct {
	Intent Intent
	Params Params
	// Prefix is prepended to the rendered template.
	Prefix string
}

type policyRule struct {
	intent Intent
	match  func(p *Policy, text string, s *finance.State) (Decision, bool)
}

// policyRules are evaluated in order; the first match wins.
var policyRules = []policyRule{
	{intent: IntentRename, match: (*Policy).matchRename},
	{intent: IntentIdentity, match: (*Policy).matchIdentity},
	{intent: IntentSavingsGoal, match: (*Policy).matchSavingsGoal},
	{intent: IntentIncome, match: (*Policy).matchIncome},
	{intent: IntentExpense, match: (*Policy).matchExpense},
	{intent: IntentBudgetAnalysis, match: (*Policy).matchBudgetAnalysis},
	{intent: IntentGeneral, match: (*Policy).matchGeneral},
}

// Precedence lists the intents in the order Classify tries them.
func Precedence() []Intent {
	out := make([]Intent, len(policyRules))
	for i, r := range policyRules {
		out[i] = r.intent
	}
	return out
}

// Policy decides which reply category fits an utterance given the session state.
type Policy struct {
	bank      *TemplateBank
	pick      Picker
	assistant string
	aliases   map[string]struct{}
}

// NewPolicy builds a policy. An empty assistant name falls back to DefaultAssistantName.
func NewPolicy(bank *TemplateBank, pick Picker, assistant string) *Policy {
	if strings.TrimSpace(assistant) == "" {
		assistant = DefaultAssistantName
	}
	aliases := map[string]struct{}{
		"fin":       {},
		"chatbot":   {},
		"bot":       {},
		"assistant": {},
	}
	for _, part := range strings.Fields(strings.ToLower(assistant)) {
		aliases[part] = struct{}{}
	}
	return &Policy{bank: bank, pick: pick, assistant: assistant, aliases: aliases}
}

// Assistant returns the canonical assistant name.
func (p *Policy) Assistant() string {
	return p.assistant
}

// Classify returns the first matching decision. It always returns a decision.
func (p *Policy) Classify(text string, s *finance.State) Decision {
	for _, r := range policyRules {
		if d, ok := r.match(p, text, s); ok {
			d.Intent = r.intent
			return d
		}
	}
	return Decision{Intent: IntentGeneral}
}

// FixedReply reports whether text is a rename attempt or identity question and
// returns the canonical answer.
func (p *Policy) FixedReply(text string) (string, bool) {
	for _, r := range policyRules[:2] {
		if d, ok := r.match(p, text, nil); ok {
			out, err := p.bank.Render(r.intent, d.Params, p.pick)
			if err != nil {
				return "", false
			}
			return out, true
		}
	}
	return "", false
}

func (p *Policy) matchRename(text string, _ *finance.State) (Decision, bool) {
	m := renamePattern.FindStringSubmatch(text)
	if m == nil {
		return Decision{}, false
	}
	if _, known := p.aliases[strings.ToLower(m[1])]; known {
		return Decision{}, false
	}
	return Decision{Params: Params{"assistant": p.assistant}}, true
}

func (p *Policy) matchIdentity(text string, _ *finance.State) (Decision, bool) {
	for _, re := range identityPatterns {
		if re.MatchString(text) {
			return Decision{Params: Params{"assistant": p.assistant}}, true
		}
	}
	return Decision{}, false
}

func (p *Policy) matchSavingsGoal(text string, _ *finance.State) (Decision, bool) {
	goal, ok := finance.MatchSavingsGoal(text)
	if !ok {
		return Decision{}, false
	}
	return Decision{Params: Params{"goal": finance.FormatWhole(goal)}}, true
}

func (p *Policy) matchIncome(_ string, s *finance.State) (Decision, bool) {
	if s.Profile.Income == nil || s.TurnCount() >= 3 {
		return Decision{}, false
	}
	return Decision{Params: Params{"income": finance.FormatWhole(*s.Profile.Income)}}, true
}

func (p *Policy) matchExpense(text string, s *finance.State) (Decision, bool) {
	e, ok := finance.MatchExpense(text)
	if !ok {
		return Decision{}, false
	}
	return Decision{Params: Params{
		"amount":         finance.FormatWhole(e.Amount),
		"category":       e.Category,
		"total_expenses": finance.FormatWhole(s.Expenses.Total()),
	}}, true
}

func (p *Policy) matchBudgetAnalysis(text string, s *finance.State) (Decision, bool) {
	if s.Profile.Income == nil || !containsAny(strings.ToLower(text), analysisKeywords) {
		return Decision{}, false
	}
	income := *s.Profile.Income
	total := s.Expenses.Total()
	return Decision{Params: Params{
		"income":         finance.FormatWhole(income),
		"total_expenses": finance.FormatWhole(total),
		"remaining":      finance.FormatWhole(income.Sub(total)),
		"advice":         p.advice(income, s),
	}}, true
}

func (p *Policy) matchGeneral(_ string, s *finance.State) (Decision, bool) {
	d := Decision{}
	if s.Profile.Name != "" {
		d.Prefix = "Hi " + s.Profile.Name + "! "
	}
	return d, true
}

func (p *Policy) advice(income decimal.Decimal, s *finance.State) string {
	highest, ok := s.Expenses.Highest()
	if ok && income.IsPositive() {
		percent := highest.Amount.Div(income).Mul(hundred)
		status := "reasonable"
		if percent.GreaterThan(decimal.NewFromInt(highSharePercent)) {
			status = "high"
		}
		goal := income.Mul(savingsShare)
		savingsGoal := goal
		if s.Profile.SavingsGoal != nil {
			savingsGoal = *s.Profile.SavingsGoal
		}
		out, err := p.bank.Render(IntentAdvice, Params{
			"category":     highest.Category,
			"amount":       finance.FormatWhole(highest.Amount),
			"percent":      finance.FormatPercent(percent),
			"recommended":  recommendedRange,
			"status":       status,
			"goal":         finance.FormatWhole(goal),
			"savings_goal": finance.FormatWhole(savingsGoal),
		}, p.pick)
		if err == nil {
			return out
		}
	}
	out, err := p.bank.Render(IntentAdviceGeneric, nil, p.pick)
	if err != nil {
		return "Consider tracking your expenses by category to get more specific advice."
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
