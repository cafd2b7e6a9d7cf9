package convo

import (
	"fmt"
	"log/slog"

	"smartbudget/internal/finance"
)

const lastResortReply = "I'm here to help with your budget! You can tell me about your income, expenses, or savings goals."

// Fallback produces replies locally from the template bank when no remote
// model answer is available.
type Fallback struct {
	policy *Policy
	bank   *TemplateBank
	pick   Picker
	logger *slog.Logger
}

// NewFallback wires a fallback orchestrator.
func NewFallback(bank *TemplateBank, policy *Policy, pick Picker, logger *slog.Logger) *Fallback {
	return &Fallback{
		policy: policy,
		bank:   bank,
		pick:   pick,
		logger: logger.With("component", "fallback"),
	}
}

// Reply records the user turn, extracts facts, composes the answer and records
// it as the assistant turn.
func (f *Fallback) Reply(text string, s *finance.State) string {
	s.AppendTurn(finance.RoleUser, text)
	finance.Extract(text, s)
	reply := f.Compose(text, s)
	s.AppendTurn(finance.RoleAssistant, reply)
	return reply
}

// Compose classifies text against s and renders the reply without touching the
// history. Any failure degrades to a general reply.
func (f *Fallback) Compose(text string, s *finance.State) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("compose reply panicked", "error", fmt.Sprint(r))
			reply = f.general(s, nil)
		}
	}()

	d := f.policy.Classify(text, s)
	out, err := f.bank.Render(d.Intent, d.Params, f.pick)
	if err != nil {
		f.logger.Warn("render reply failed", "error", err, "intent", d.Intent)
		return f.general(s, f.pick)
	}
	return d.Prefix + out
}

func (f *Fallback) general(s *finance.State, pick Picker) string {
	out, err := f.bank.Render(IntentGeneral, nil, pick)
	if err != nil {
		out = lastResortReply
	}
	if s != nil && s.Profile.Name != "" {
		out = "Hi " + s.Profile.Name + "! " + out
	}
	return out
}
