package finance

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const amountPattern = `(?:rs\.?|₹)?\s*(\d+(?:,\d+)*(?:\.\d+)?)`

var (
	incomePattern  = regexp.MustCompile(`(?i)(?:income|earn|salary|make|making)(?:\s+is|\s+of)?\s+` + amountPattern)
	expensePattern = regexp.MustCompile(`(?i)(?:spend|spent|spending|pay|paying|paid|expense|expenses|cost|costs)\s+` + amountPattern + `\s+(?:on|for|in)\s+([a-zA-Z\s]+)`)

	// savingsPatterns are tried in order; the first one yielding an amount wins.
	savingsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:save|saving|savings|goal)\s+` + amountPattern),
		regexp.MustCompile(`(?i)(?:want to|wanna|going to|plan to)\s+save\s+` + amountPattern),
	}

	// namePatterns are tried in order; the first match wins.
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:my name is|i am|i['’]m) ([a-z]+)`),
		regexp.MustCompile(`(?i)(?:call me) ([a-z]+)`),
		regexp.MustCompile(`(?i)^(?:i['’]m|i am) ([a-z]+)`),
	}
)

// Expense is one "spent X on Y" statement found in an utterance.
type Expense struct {
	Category string
	Amount   decimal.Decimal
}

// Rule is a named extraction step applied to every utterance.
type Rule struct {
	Name  string
	Apply func(text string, s *State)
}

// Rules lists the extraction rules in the order Extract applies them. The rules
// are independent of each other.
var Rules = []Rule{
	{Name: "income", Apply: extractIncome},
	{Name: "expense", Apply: extractExpenses},
	{Name: "savings_goal", Apply: extractSavingsGoal},
	{Name: "name", Apply: extractName},
}

// Extract updates s with every fact found in text. It never fails; text that
// matches nothing or carries malformed numbers leaves s untouched.
func Extract(text string, s *State) {
	if s == nil {
		return
	}
	for _, r := range Rules {
		r.Apply(text, s)
	}
}

// MatchIncome returns the income stated in text.
func MatchIncome(text string) (decimal.Decimal, bool) {
	m := incomePattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	return ParseAmount(m[1])
}

// MatchExpense returns the first expense statement in text.
func MatchExpense(text string) (Expense, bool) {
	m := expensePattern.FindStringSubmatch(text)
	if m == nil {
		return Expense{}, false
	}
	return toExpense(m)
}

// MatchExpenses returns every non-overlapping expense statement in text.
func MatchExpenses(text string) []Expense {
	var out []Expense
	for _, m := range expensePattern.FindAllStringSubmatch(text, -1) {
		if e, ok := toExpense(m); ok {
			out = append(out, e)
		}
	}
	return out
}

// MatchSavingsGoal returns the savings goal stated in text.
func MatchSavingsGoal(text string) (decimal.Decimal, bool) {
	for _, re := range savingsPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if goal, ok := ParseAmount(m[1]); ok {
			return goal, true
		}
	}
	return decimal.Zero, false
}

// MatchName returns the capitalised name the user introduced themselves with.
func MatchName(text string) (string, bool) {
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return capitalize(m[1]), true
		}
	}
	return "", false
}

func extractIncome(text string, s *State) {
	if income, ok := MatchIncome(text); ok {
		s.Profile.Income = &income
	}
}

func extractExpenses(text string, s *State) {
	for _, e := range MatchExpenses(text) {
		s.Expenses.Set(e.Category, e.Amount)
	}
}

func extractSavingsGoal(text string, s *State) {
	if goal, ok := MatchSavingsGoal(text); ok {
		s.Profile.SavingsGoal = &goal
	}
}

func extractName(text string, s *State) {
	if s.Profile.Name != "" {
		return
	}
	if name, ok := MatchName(text); ok {
		s.Profile.Name = name
	}
}

func toExpense(m []string) (Expense, bool) {
	amount, ok := ParseAmount(m[1])
	if !ok {
		return Expense{}, false
	}
	category := NormalizeCategory(m[2])
	if category == "" {
		return Expense{}, false
	}
	return Expense{Category: category, Amount: amount}, true
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if size == 0 {
		return word
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
}
