package convo

import (
	_ "embed"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultCatalog []byte

// Intent is the category of reply the engine produces.
type Intent string

const (
	IntentRename         Intent = "rename"
	IntentIdentity       Intent = "identity"
	IntentSavingsGoal    Intent = "savings_goal"
	IntentIncome         Intent = "income"
	IntentExpense        Intent = "expense"
	IntentBudgetAnalysis Intent = "budget_analysis"
	IntentGeneral        Intent = "general"

	IntentAdvice         Intent = "advice"
	IntentAdviceGeneric  Intent = "advice_generic"
	IntentGreeting       Intent = "greeting"
	IntentGreetingFiller Intent = "greeting_filler"
	IntentStarter        Intent = "starter"
)

// Params binds placeholder names to already formatted values.
type Params map[string]string

// Picker chooses an index in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

// NewPicker returns a goroutine-safe picker seeded with seed.
func NewPicker(seed uint64) Picker {
	return &lockedPicker{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type lockedPicker struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (p *lockedPicker) IntN(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.r.IntN(n)
}

// CapabilityGroup is one headed block of the capabilities answer.
type CapabilityGroup struct {
	Title string   `yaml:"title"`
	Items []string `yaml:"items"`
}

type catalog struct {
	Responses    map[Intent][]string `yaml:"responses"`
	Capabilities struct {
		Intro  string            `yaml:"intro"`
		Outro  string            `yaml:"outro"`
		Groups []CapabilityGroup `yaml:"groups"`
	} `yaml:"capabilities"`
}

// requiredIntents must each have at least one variant in a catalog.
var requiredIntents = []Intent{
	IntentRename, IntentIdentity, IntentSavingsGoal, IntentIncome, IntentExpense,
	IntentBudgetAnalysis, IntentGeneral, IntentAdvice, IntentAdviceGeneric,
	IntentGreeting, IntentGreetingFiller, IntentStarter,
}

const (
	capabilityGroups   = 3
	capabilitiesPerGrp = 4
)

// TemplateBank is a read-only catalog of reply variants per intent.
type TemplateBank struct {
	cat catalog
}

// LoadTemplateBank parses a YAML catalog and checks that every intent has variants.
func LoadTemplateBank(data []byte) (*TemplateBank, error) {
	var cat catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	for _, intent := range requiredIntents {
		if len(cat.Responses[intent]) == 0 {
			return nil, fmt.Errorf("template catalog: no variants for intent %q", intent)
		}
	}
	if len(cat.Capabilities.Groups) != capabilityGroups {
		return nil, fmt.Errorf("template catalog: want %d capability groups, got %d", capabilityGroups, len(cat.Capabilities.Groups))
	}
	for _, g := range cat.Capabilities.Groups {
		if len(g.Items) != capabilitiesPerGrp {
			return nil, fmt.Errorf("template catalog: capability group %q has %d items, want %d", g.Title, len(g.Items), capabilitiesPerGrp)
		}
	}
	return &TemplateBank{cat: cat}, nil
}

// DefaultTemplateBank returns the catalog embedded in the binary.
func DefaultTemplateBank() *TemplateBank {
	bank, err := LoadTemplateBank(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return bank
}

// Variants returns a copy of the variants registered for intent.
func (b *TemplateBank) Variants(intent Intent) []string {
	return append([]string(nil), b.cat.Responses[intent]...)
}

// Render picks one variant of intent and fills its placeholders.
func (b *TemplateBank) Render(intent Intent, params Params, pick Picker) (string, error) {
	variants := b.cat.Responses[intent]
	if len(variants) == 0 {
		return "", fmt.Errorf("no templates for intent %q", intent)
	}
	idx := 0
	if len(variants) > 1 && pick != nil {
		idx = pick.IntN(len(variants))
	}
	return Fill(variants[idx], params), nil
}

// Fill substitutes {name} placeholders in tmpl. Unknown placeholders are kept.
func Fill(tmpl string, params Params) string {
	if len(params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// CapabilityGroups returns the capability groups in display order.
func (b *TemplateBank) CapabilityGroups() []CapabilityGroup {
	out := make([]CapabilityGroup, len(b.cat.Capabilities.Groups))
	for i, g := range b.cat.Capabilities.Groups {
		out[i] = CapabilityGroup{Title: g.Title, Items: append([]string(nil), g.Items...)}
	}
	return out
}

// Capabilities returns the twelve capability descriptions in order.
func (b *TemplateBank) Capabilities() []string {
	var out []string
	for _, g := range b.cat.Capabilities.Groups {
		out = append(out, g.Items...)
	}
	return out
}

// CapabilitiesAnswer renders the grouped capabilities listing.
func (b *TemplateBank) CapabilitiesAnswer() string {
	var sb strings.Builder
	sb.WriteString(b.cat.Capabilities.Intro)
	for _, g := range b.cat.Capabilities.Groups {
		sb.WriteString("\n\n")
		sb.WriteString(g.Title + ":\n")
		sb.WriteString(strings.Join(g.Items, "\n"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(b.cat.Capabilities.Outro)
	return sb.String()
}
