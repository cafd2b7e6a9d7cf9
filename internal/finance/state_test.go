package finance

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendTurnHysteresis(t *testing.T) {
	s := NewState()
	for i := 1; i <= 10; i++ {
		s.AppendTurn(RoleUser, fmt.Sprintf("m%d", i))
	}
	require.Equal(t, 10, s.TurnCount())

	s.AppendTurn(RoleAssistant, "m11")
	history := s.History()
	require.Len(t, history, 5)
	assert.Equal(t, "m7", history[0].Content)
	assert.Equal(t, "m11", history[4].Content)
	assert.Equal(t, RoleAssistant, history[4].Role)
}

func TestRecentTurns(t *testing.T) {
	s := NewState()
	assert.Empty(t, s.RecentTurns(5))

	for i := 1; i <= 7; i++ {
		s.AppendTurn(RoleUser, fmt.Sprintf("m%d", i))
	}
	recent := s.RecentTurns(5)
	require.Len(t, recent, 5)
	assert.Equal(t, "m3", recent[0].Content)
	assert.Len(t, s.RecentTurns(20), 7)
}

func TestFormatHistory(t *testing.T) {
	s := NewState()
	assert.Equal(t, "This is the start of the conversation.", s.FormatHistory())

	s.AppendTurn(RoleUser, "hi")
	s.AppendTurn(RoleAssistant, "hello")
	assert.Equal(t, "user: hi\nassistant: hello", s.FormatHistory())
}

func TestFinancialContext(t *testing.T) {
	s := NewState()
	Extract("my name is neha, my income is 50000 and I want to save 5000", s)
	Extract("I spent 12500.5 on house rent", s)

	want := "User financial information:\n" +
		"Name: Neha\n" +
		"Monthly Income: ₹50,000.00\n" +
		"Savings Goal: ₹5,000.00\n" +
		"Expenses:\n" +
		"- House Rent: ₹12,500.50\n"
	assert.Equal(t, want, s.FinancialContext())
}

func TestLedgerHighestTieGoesToFirst(t *testing.T) {
	var l Ledger
	_, ok := l.Highest()
	assert.False(t, ok)

	l.Set("food", dec(t, "1000"))
	l.Set("Rent", dec(t, "4000"))
	l.Set("travel", dec(t, "4000"))

	best, ok := l.Highest()
	require.True(t, ok)
	assert.Equal(t, "rent", best.Category)
}

func TestGreetingTimestamp(t *testing.T) {
	s := NewState()
	assert.True(t, s.LastGreeting().IsZero())

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.MarkGreeted(at)
	assert.Equal(t, at, s.LastGreeting())
}
