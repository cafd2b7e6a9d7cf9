package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbudget/internal/metrics"
)

type echoProcessor struct {
	sessions []string
	panics   bool
}

func (p *echoProcessor) Process(_ context.Context, sessionID, text string) string {
	if p.panics {
		panic("boom")
	}
	p.sessions = append(p.sessions, sessionID)
	return "echo: " + text
}

func newTestServer(p Processor) (*ChatServer, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	return NewChatServer(p, m, reg, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, chatResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestChat(t *testing.T) {
	p := &echoProcessor{}
	srv, m := newTestServer(p)

	rec, resp := postChat(t, srv, `{"input":"  hello  ","session_id":"abc"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "echo: hello", resp.Response)
	assert.Equal(t, "abc", resp.SessionID)
	assert.Equal(t, []string{"abc"}, p.sessions)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IncomingMessages.WithLabelValues("http")))
}

func TestChatAllocatesSession(t *testing.T) {
	p := &echoProcessor{}
	srv, _ := newTestServer(p)

	_, resp := postChat(t, srv, `{"input":"hi"}`)
	assert.Len(t, resp.SessionID, 36)
	require.Len(t, p.sessions, 1)
	assert.Equal(t, resp.SessionID, p.sessions[0])
}

func TestChatRejectsEmptyInput(t *testing.T) {
	srv, _ := newTestServer(&echoProcessor{})

	for _, body := range []string{`{"input":""}`, `{"input":"   "}`, `{}`, `not json`} {
		rec, resp := postChat(t, srv, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Please provide some input.", resp.Response, body)
	}
}

func TestChatRecoversFromPanic(t *testing.T) {
	srv, m := newTestServer(&echoProcessor{panics: true})

	rec, resp := postChat(t, srv, `{"input":"hi","session_id":"s"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Sorry, there was an error processing your request.", resp.Response)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("http")))
}

func TestChatMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(&echoProcessor{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, m := newTestServer(&echoProcessor{})
	m.Replies.WithLabelValues("fallback").Inc()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_replies_total{source="fallback"} 1`)
}
