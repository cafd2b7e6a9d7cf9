package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	for _, key := range []string{"GEMINI_KEYS", "DATABASE_URL", "REDIS_ADDR", "WHATSAPP_ENABLED", "ASSISTANT_NAME"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestChatOffline(t *testing.T) {
	stdout, _, err := executeCLI(t, "my income is 10000\n\nI spent 4000 on rent\nanalyze my budget\nexit\nnever read\n", "chat", "--offline")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Chatting with FIN.")
	assert.Contains(t, stdout, "FIN: ")
	assert.Contains(t, stdout, "₹10,000")
	assert.Contains(t, stdout, "rent")
	assert.NotContains(t, stdout, "never read")
	assert.Equal(t, 3, strings.Count(stdout, "FIN: "))
}

func TestChatStopsAtEOF(t *testing.T) {
	stdout, _, err := executeCLI(t, "what can you do", "chat")
	require.NoError(t, err)
	assert.Contains(t, stdout, "🏦 Banking Information:")
}

func TestChatRejectsInvalidConfig(t *testing.T) {
	t.Setenv("GREETING_COOLDOWN", "later")
	_, _, err := executeCLI(t, "", "chat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GREETING_COOLDOWN")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warning").String())
	assert.Equal(t, "INFO", parseLogLevel("verbose").String())
}
