package bankinfo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbudget/internal/metrics"
)

type fakeSearcher struct {
	result  string
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.result, f.err
}

func newAdvisor(s Searcher) *Advisor {
	return New(s, nil, metrics.NewNop(), slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
}

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		text  string
		topic string
		ok    bool
	}{
		{"what are the FD rates now", "fd", true},
		{"tell me about fixed deposit options", "fixed deposit", true},
		{"best savings account?", "savings account", true},
		{"compare credit card offers", "credit card", true},
		{"how is my EMI computed", "emi", true},
		{"my card is blocked", "", false},
		{"I need to buy a third bird", "", false},
		{"remind me tomorrow", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			topic, ok := DetectTopic(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.topic, topic)
		})
	}
}

func TestQueryFor(t *testing.T) {
	assert.Equal(t, "latest FD interest rates comparison major banks India", QueryFor("fd"))
	assert.Equal(t, "latest FD interest rates comparison major banks India", QueryFor("fixed deposit"))
	assert.Equal(t, "best savings account interest rates India comparison", QueryFor("savings account"))
	assert.Equal(t, "current loan interest rates comparison banks India", QueryFor("loan rate"))
	assert.Equal(t, "best credit card offers India comparison", QueryFor("credit card"))
	assert.Equal(t, "latest emi banking products India comparison", QueryFor("emi"))
}

func TestLookupFormatsSearchResult(t *testing.T) {
	s := &fakeSearcher{result: "- SBI: 6.8%\n"}
	out := newAdvisor(s).Lookup(context.Background(), "fixed deposit")

	require.Equal(t, []string{"latest FD interest rates comparison major banks India"}, s.queries)
	assert.True(t, strings.HasPrefix(out, "📊 Latest Fixed Deposit Information:\n\n- SBI: 6.8%"))
	assert.True(t, strings.HasSuffix(out, disclaimer))
}

func TestLookupFallsBackToStaticSummary(t *testing.T) {
	out := newAdvisor(&fakeSearcher{err: errors.New("offline")}).Lookup(context.Background(), "rd")
	assert.True(t, strings.HasPrefix(out, "Sorry, I couldn't get the latest information on rd."))
	assert.Contains(t, out, "Fixed deposit rates typically range from 3-7%")

	out = newAdvisor(&fakeSearcher{result: "   "}).Lookup(context.Background(), "fd")
	assert.Contains(t, out, "Sorry, I couldn't get the latest information on fd.")

	out = newAdvisor(nil).Lookup(context.Background(), "emi")
	assert.Contains(t, out, "Please check with specific banks for their current rates and offers.")
}
