package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smartbudget/internal/cache"
	"smartbudget/internal/finance"
	"smartbudget/internal/metrics"
	"smartbudget/internal/nlu"
	"smartbudget/internal/repo"
	"smartbudget/internal/session"
)

// Reply sources, used as metric labels and message log types.
const (
	SourceCapabilities = "capabilities"
	SourceGreeting     = "greeting"
	SourceFixed        = "fixed"
	SourceRemote       = "remote"
	SourceFallback     = "fallback"
)

var errEmptyReply = errors.New("empty reply")

// Remote generates replies with a hosted language model.
type Remote interface {
	GenerateReply(ctx context.Context, input nlu.DialogInput) (string, error)
}

// BankAdvisor looks up banking product information for a topic.
type BankAdvisor interface {
	Lookup(ctx context.Context, topic string) string
}

// TopicDetector finds the banking topic mentioned in a message.
type TopicDetector func(text string) (string, bool)

// MessageLog records inbound and outbound messages.
type MessageLog interface {
	InsertMessage(ctx context.Context, msg repo.MessageRecord) error
}

// Deps bundles the collaborators of an Engine. Only Sessions, Metrics and
// Logger are required; a nil Remote keeps every reply local.
type Deps struct {
	Sessions *session.Store
	Bank     *TemplateBank
	Picker   Picker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	AssistantName    string
	GreetingCooldown time.Duration
	Now              func() time.Time

	Remote        Remote
	Advisor       BankAdvisor
	DetectTopic   TopicDetector
	Messages      MessageLog
	Limiter       *cache.Redis
	RateLimit     int64
	RateWindow    time.Duration
	RemoteTimeout time.Duration
}

// Engine routes each message of a session to the matching responder.
type Engine struct {
	sessions *session.Store
	bank     *TemplateBank
	pick     Picker
	policy   *Policy
	greeter  *Greeter
	fallback *Fallback

	remote        Remote
	advisor       BankAdvisor
	detectTopic   TopicDetector
	messages      MessageLog
	limiter       *cache.Redis
	rateLimit     int64
	rateWindow    time.Duration
	remoteTimeout time.Duration
	systemPrompt  string

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a conversation engine instance.
func New(deps Deps) *Engine {
	bank := deps.Bank
	if bank == nil {
		bank = DefaultTemplateBank()
	}
	pick := deps.Picker
	if pick == nil {
		pick = NewPicker(uint64(time.Now().UnixNano()))
	}
	policy := NewPolicy(bank, pick, deps.AssistantName)
	e := &Engine{
		sessions:      deps.Sessions,
		bank:          bank,
		pick:          pick,
		policy:        policy,
		greeter:       NewGreeter(bank, pick, deps.GreetingCooldown, deps.Now),
		fallback:      NewFallback(bank, policy, pick, deps.Logger),
		remote:        deps.Remote,
		advisor:       deps.Advisor,
		detectTopic:   deps.DetectTopic,
		messages:      deps.Messages,
		limiter:       deps.Limiter,
		rateLimit:     deps.RateLimit,
		rateWindow:    deps.RateWindow,
		remoteTimeout: deps.RemoteTimeout,
		systemPrompt:  SystemPrompt(policy.Assistant()),
		metrics:       deps.Metrics,
		logger:        deps.Logger.With("component", "convo"),
	}
	if e.rateWindow <= 0 {
		e.rateWindow = time.Minute
	}
	return e
}

// Process answers one message of sessionID. It never fails; every error
// degrades to a locally composed reply.
func (e *Engine) Process(ctx context.Context, sessionID, text string) string {
	state, release := e.sessions.Acquire(sessionID)
	defer release()

	e.logMessage(ctx, sessionID, "incoming", "text", text)

	reply, source := e.respond(ctx, sessionID, text, state)
	e.metrics.Replies.WithLabelValues(source).Inc()

	e.logMessage(ctx, sessionID, "outgoing", source, reply)
	return reply
}

func (e *Engine) respond(ctx context.Context, sessionID, text string, s *finance.State) (string, string) {
	if AsksCapabilities(text) {
		return e.record(s, text, e.bank.CapabilitiesAnswer()), SourceCapabilities
	}
	if out, ok := e.greeter.Greet(text, s); ok {
		return e.record(s, text, out), SourceGreeting
	}
	if e.remote == nil || !e.allowRemote(ctx, sessionID) {
		return e.fallback.Reply(text, s), SourceFallback
	}
	return e.remoteReply(ctx, text, s)
}

func (e *Engine) remoteReply(ctx context.Context, text string, s *finance.State) (string, string) {
	history := s.FormatHistory()
	s.AppendTurn(finance.RoleUser, text)
	finance.Extract(text, s)

	if out, ok := e.policy.FixedReply(text); ok {
		s.AppendTurn(finance.RoleAssistant, out)
		return out, SourceFixed
	}

	input := nlu.DialogInput{
		SystemPrompt:     e.systemPrompt,
		History:          history,
		FinancialContext: s.FinancialContext(),
		UserMessage:      text,
		Starter:          e.starter(),
	}
	if e.advisor != nil && e.detectTopic != nil {
		if topic, ok := e.detectTopic(text); ok {
			input.BankInfo = e.advisor.Lookup(ctx, topic)
		}
	}

	callCtx := ctx
	if e.remoteTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.remoteTimeout)
		defer cancel()
	}

	reply, err := e.remote.GenerateReply(callCtx, input)
	source := SourceRemote
	if err != nil || reply == "" {
		if err == nil {
			err = errEmptyReply
		}
		e.logger.Warn("remote reply failed, using fallback", "error", err)
		e.metrics.Errors.WithLabelValues("remote").Inc()
		reply = e.fallback.Compose(text, s)
		source = SourceFallback
	}
	s.AppendTurn(finance.RoleAssistant, reply)
	return reply, source
}

func (e *Engine) record(s *finance.State, text, reply string) string {
	s.AppendTurn(finance.RoleUser, text)
	finance.Extract(text, s)
	s.AppendTurn(finance.RoleAssistant, reply)
	return reply
}

func (e *Engine) starter() string {
	out, err := e.bank.Render(IntentStarter, nil, e.pick)
	if err != nil {
		return ""
	}
	return out
}

func (e *Engine) allowRemote(ctx context.Context, sessionID string) bool {
	if e.limiter == nil || e.rateLimit <= 0 {
		return true
	}
	key := fmt.Sprintf("rl:remote:%s", sessionID)
	ok, err := e.limiter.Allow(ctx, key, e.rateLimit, e.rateWindow)
	if err != nil {
		e.logger.Warn("rate limit check failed", "error", err)
		return true
	}
	if !ok {
		e.logger.Info("remote rate limit reached", "session_id", sessionID)
	}
	return ok
}

func (e *Engine) logMessage(ctx context.Context, sessionID, direction, msgType, content string) {
	if e.messages == nil {
		return
	}
	if err := e.messages.InsertMessage(ctx, repo.MessageRecord{
		SessionID: sessionID,
		Direction: direction,
		Type:      msgType,
		Content:   content,
	}); err != nil {
		e.logger.Warn("failed logging message", "error", err, "direction", direction)
	}
}
