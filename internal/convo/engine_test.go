package convo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbudget/internal/bankinfo"
	"smartbudget/internal/metrics"
	"smartbudget/internal/nlu"
	"smartbudget/internal/repo"
	"smartbudget/internal/session"
)

type fakeRemote struct {
	reply  string
	err    error
	inputs []nlu.DialogInput
}

func (f *fakeRemote) GenerateReply(_ context.Context, input nlu.DialogInput) (string, error) {
	f.inputs = append(f.inputs, input)
	return f.reply, f.err
}

type fakeAdvisor struct {
	topics []string
}

func (f *fakeAdvisor) Lookup(_ context.Context, topic string) string {
	f.topics = append(f.topics, topic)
	return "info about " + topic
}

type engineFixture struct {
	engine   *Engine
	sessions *session.Store
	metrics  *metrics.Metrics
	log      *repo.Memory
}

func newEngine(t *testing.T, remote Remote, advisor BankAdvisor) engineFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewNop()
	store := session.NewStore(time.Minute, m, logger)
	log := repo.NewMemory()
	deps := Deps{
		Sessions:    store,
		Picker:      firstPicker{},
		Metrics:     m,
		Logger:      logger,
		Advisor:     advisor,
		DetectTopic: bankinfo.DetectTopic,
		Messages:    log,
	}
	if remote != nil {
		deps.Remote = remote
	}
	return engineFixture{engine: New(deps), sessions: store, metrics: m, log: log}
}

func TestProcessCapabilities(t *testing.T) {
	f := newEngine(t, nil, nil)
	out := f.engine.Process(context.Background(), "s1", "hello, what can you do?")

	assert.Equal(t, DefaultTemplateBank().CapabilitiesAnswer(), out)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Replies.WithLabelValues(SourceCapabilities)))

	st, release := f.sessions.Acquire("s1")
	defer release()
	assert.Equal(t, 2, st.TurnCount())
	assert.True(t, st.LastGreeting().IsZero())
}

func TestProcessGreetingThenFiller(t *testing.T) {
	f := newEngine(t, nil, nil)
	ctx := context.Background()

	first := f.engine.Process(ctx, "s1", "hi")
	assert.Equal(t, DefaultTemplateBank().Variants(IntentGreeting)[0], first)

	second := f.engine.Process(ctx, "s1", "hello")
	assert.Equal(t, "I'm here to help! Just let me know what you need.", second)

	// A different session has its own cooldown.
	other := f.engine.Process(ctx, "s2", "hey")
	assert.Equal(t, first, other)
}

func TestProcessFallbackWithoutRemote(t *testing.T) {
	f := newEngine(t, nil, nil)
	out := f.engine.Process(context.Background(), "s1", "I spend 5000 on groceries")

	assert.Contains(t, plain(out), "₹5000 for groceries")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Replies.WithLabelValues(SourceFallback)))

	msgs := f.log.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "incoming", msgs[0].Direction)
	assert.Equal(t, "s1", msgs[0].SessionID)
	assert.Equal(t, "outgoing", msgs[1].Direction)
	assert.Equal(t, SourceFallback, msgs[1].Type)
	assert.Equal(t, out, msgs[1].Content)
}

func TestProcessRemote(t *testing.T) {
	remote := &fakeRemote{reply: "Nice! Groceries noted 🛒"}
	advisor := &fakeAdvisor{}
	f := newEngine(t, remote, advisor)
	ctx := context.Background()

	out := f.engine.Process(ctx, "s1", "my name is asha and I spend 5000 on groceries")
	assert.Equal(t, "Nice! Groceries noted 🛒", out)
	require.Len(t, remote.inputs, 1)

	in := remote.inputs[0]
	assert.Contains(t, in.SystemPrompt, "You are FIN")
	assert.Equal(t, "This is the start of the conversation.", in.History)
	assert.Contains(t, in.FinancialContext, "Name: Asha")
	assert.Contains(t, in.FinancialContext, "- Groceries: ₹5,000.00")
	assert.Empty(t, in.BankInfo)
	assert.Equal(t, DefaultTemplateBank().Variants(IntentStarter)[0], in.Starter)
	assert.Empty(t, advisor.topics)

	f.engine.Process(ctx, "s1", "what are the latest FD rates?")
	require.Len(t, remote.inputs, 2)
	assert.Equal(t, []string{"fd"}, advisor.topics)
	assert.Equal(t, "info about fd", remote.inputs[1].BankInfo)
	assert.Equal(t, "user: my name is asha and I spend 5000 on groceries\nassistant: Nice! Groceries noted 🛒", remote.inputs[1].History)
	assert.NotContains(t, remote.inputs[1].History, "FD rates")
	assert.Equal(t, "what are the latest FD rates?", remote.inputs[1].UserMessage)

	st, release := f.sessions.Acquire("s1")
	defer release()
	assert.Equal(t, 4, st.TurnCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Replies.WithLabelValues(SourceRemote)))
}

func TestProcessRemoteFailureFallsBack(t *testing.T) {
	remote := &fakeRemote{err: errors.New("unavailable")}
	f := newEngine(t, remote, nil)

	out := f.engine.Process(context.Background(), "s1", "I spend 5000 on groceries")
	assert.Contains(t, plain(out), "₹5000 for groceries")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Errors.WithLabelValues("remote")))

	st, release := f.sessions.Acquire("s1")
	defer release()
	require.Equal(t, 2, st.TurnCount())
	assert.Equal(t, out, st.History()[1].Content)
	_, ok := st.Expenses.Get("groceries")
	assert.True(t, ok)
}

func TestProcessRemoteEmptyReplyFallsBack(t *testing.T) {
	f := newEngine(t, &fakeRemote{}, nil)
	out := f.engine.Process(context.Background(), "s1", "tell me a joke")
	assert.Equal(t, DefaultTemplateBank().Variants(IntentGeneral)[0], out)
}

func TestProcessFixedRepliesSkipRemote(t *testing.T) {
	remote := &fakeRemote{reply: "should not be used"}
	f := newEngine(t, remote, nil)
	ctx := context.Background()

	out := f.engine.Process(ctx, "s1", "who are you?")
	assert.True(t, strings.HasPrefix(out, "I'm FIN"))

	out = f.engine.Process(ctx, "s1", "I will call you Max")
	assert.Contains(t, out, "I prefer to go by FIN")

	assert.Empty(t, remote.inputs)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Replies.WithLabelValues(SourceFixed)))
}

func TestSystemPromptUsesAssistantName(t *testing.T) {
	p := SystemPrompt("Penny")
	assert.True(t, strings.HasPrefix(p, "You are Penny,"))
	assert.NotContains(t, p, "{assistant}")
}

func TestProcessGreetingKeepsFacts(t *testing.T) {
	f := newEngine(t, &fakeRemote{reply: "unused"}, nil)
	ctx := context.Background()

	f.engine.Process(ctx, "s1", "hello")
	f.engine.Process(ctx, "s1", "Hi, my name is Sam and my income is 50000")

	st, release := f.sessions.Acquire("s1")
	defer release()
	assert.Equal(t, "Sam", st.Profile.Name)
	require.NotNil(t, st.Profile.Income)
	assert.True(t, decimal.NewFromInt(50000).Equal(*st.Profile.Income))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Replies.WithLabelValues(SourceGreeting)))
}

func TestProcessCapabilitiesKeepsFacts(t *testing.T) {
	f := newEngine(t, nil, nil)
	out := f.engine.Process(context.Background(), "s2", "what can you do? I spend 300 on food")
	assert.Equal(t, DefaultTemplateBank().CapabilitiesAnswer(), out)

	st, release := f.sessions.Acquire("s2")
	defer release()
	amount, ok := st.Expenses.Get("food")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(300).Equal(amount))
}
