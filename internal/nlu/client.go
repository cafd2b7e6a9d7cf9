package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"smartbudget/internal/metrics"
	"smartbudget/internal/repo"

	"log/slog"
)

const (
	defaultAPIBase = "https://generativelanguage.googleapis.com/v1beta"
	providerName   = "gemini"
)

// ErrNoKeys is returned when the key pool is empty or every key is cooling down.
var ErrNoKeys = errors.New("no available gemini keys")

// KeyStore provides the rotating pool of Gemini API keys.
type KeyStore interface {
	ListActiveGeminiKeys(ctx context.Context) ([]repo.APIKey, error)
	SetCooldownUntil(ctx context.Context, keyID string, until time.Time) error
}

// Client talks to the Gemini generateContent API for dialogue and search.
type Client struct {
	keys        KeyStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
	httpClient  *http.Client
	baseURL     string
	model       string
	timeout     time.Duration
	cooldown    time.Duration
	keyCacheTTL time.Duration

	mu       sync.Mutex
	cachedAt time.Time
	cached   []repo.APIKey
}

type callResult struct {
	text string
	key  string
	err  error
}

// Config holds NLU client configuration.
type Config struct {
	Model    string
	Timeout  time.Duration
	Cooldown time.Duration
	// BaseURL overrides the Gemini endpoint, mainly for tests.
	BaseURL string
}

// New creates a Gemini client.
func New(keys KeyStore, logger *slog.Logger, metrics *metrics.Metrics, cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultAPIBase
	}
	return &Client{
		keys:        keys,
		logger:      logger.With("component", "nlu", "provider", providerName),
		metrics:     metrics,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     base,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		cooldown:    cfg.Cooldown,
		keyCacheTTL: 1 * time.Minute,
	}
}

// DialogInput is everything the remote model sees for one turn.
type DialogInput struct {
	SystemPrompt     string
	History          string
	FinancialContext string
	BankInfo         string
	UserMessage      string
	// Starter is appended after "Assistant:" to vary the opening of the reply.
	Starter string
}

// GenerateReply asks Gemini for the assistant's next message.
func (c *Client) GenerateReply(ctx context.Context, input DialogInput) (string, error) {
	text, keyUsed, err := c.callGemini(ctx, buildDialogPrompt(input))
	if err != nil {
		return "", err
	}
	c.metrics.GeminiRequests.WithLabelValues("success").Inc()
	c.logger.Debug("dialogue reply generated", "key", keyUsed, "chars", len(text))
	return strings.TrimSpace(text), nil
}

// Search answers query using Gemini grounded on Google Search results.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("search query empty")
	}
	payload := geminiRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: "Search the web and summarise, as short bullet points with bank names and figures, the answer to: " + query},
				},
			},
		},
		Tools: []geminiTool{{GoogleSearch: &struct{}{}}},
		GenerationConfig: generationConfig{
			Temperature:     0.2,
			MaxOutputTokens: 768,
		},
	}
	text, _, err := c.callGemini(ctx, payload)
	if err != nil {
		return "", err
	}
	c.metrics.GeminiRequests.WithLabelValues("success").Inc()
	return strings.TrimSpace(text), nil
}

func buildDialogPrompt(input DialogInput) geminiRequest {
	var sb strings.Builder
	sb.WriteString(input.SystemPrompt)
	sb.WriteString("\n\nPrevious conversation:\n")
	sb.WriteString(input.History)
	sb.WriteString("\n\nFinancial context:\n")
	sb.WriteString(input.FinancialContext)
	sb.WriteString("\n\n")
	if input.BankInfo != "" {
		sb.WriteString("Latest bank information requested:\n")
		sb.WriteString(input.BankInfo)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User: " + input.UserMessage + "\n")
	sb.WriteString("Assistant: " + input.Starter)

	return geminiRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{Text: sb.String()},
				},
			},
		},
		GenerationConfig: generationConfig{
			Temperature:     0.8,
			TopP:            0.95,
			MaxOutputTokens: 1024,
		},
	}
}

func (c *Client) callGemini(ctx context.Context, payload geminiRequest) (string, string, error) {
	var lastErr error

	keys, err := c.fetchKeys(ctx)
	if err != nil {
		c.metrics.GeminiRequests.WithLabelValues("failed").Inc()
		return "", "", err
	}

	for _, k := range keys {
		if k.CooldownUntil != nil && time.Now().Before(*k.CooldownUntil) {
			continue
		}

		res := c.invokeWithKey(ctx, k, payload)
		if res.err == nil {
			return res.text, res.key, nil
		}
		lastErr = res.err

		if errors.Is(res.err, errQuotaExceeded) || errors.Is(res.err, errUnauthorised) {
			if err := c.keys.SetCooldownUntil(ctx, k.ID, time.Now().Add(c.cooldown)); err != nil {
				c.logger.Error("set cooldown failed", "error", err, "key", k.ID)
			}
			c.invalidateKeys()
		}
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = ErrNoKeys
	}
	c.metrics.GeminiRequests.WithLabelValues("failed").Inc()
	return "", "", lastErr
}

func (c *Client) invokeWithKey(ctx context.Context, key repo.APIKey, payload geminiRequest) callResult {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return callResult{err: fmt.Errorf("marshal payload: %w", err)}
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return callResult{err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key.Value)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GeminiRequests.WithLabelValues("error").Inc()
		return callResult{err: fmt.Errorf("gemini http: %w", err)}
	}
	defer resp.Body.Close()

	latency := time.Since(start).Seconds()
	statusLabel := fmt.Sprintf("%d", resp.StatusCode)
	c.metrics.GeminiLatency.WithLabelValues(statusLabel).Observe(latency)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return callResult{err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode == http.StatusOK {
		text, err := extractCandidateText(body)
		if err != nil {
			return callResult{err: err}
		}
		return callResult{text: text, key: key.ID}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return callResult{err: errQuotaExceeded}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return callResult{err: errUnauthorised}
	}

	return callResult{err: fmt.Errorf("gemini request failed: status=%d body=%s", resp.StatusCode, snippet(string(body), 200))}
}

func (c *Client) fetchKeys(ctx context.Context) ([]repo.APIKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cached) > 0 && time.Since(c.cachedAt) < c.keyCacheTTL {
		return c.cached, nil
	}

	keys, err := c.keys.ListActiveGeminiKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gemini keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	c.cached = keys
	c.cachedAt = time.Now()
	return keys, nil
}

func (c *Client) invalidateKeys() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

func extractCandidateText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
	return "", fmt.Errorf("no candidate text found")
}

func snippet(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

var (
	errQuotaExceeded = errors.New("gemini quota exceeded")
	errUnauthorised  = errors.New("gemini unauthorised")
)

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	Tools            []geminiTool     `json:"tools,omitempty"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	TopK            float64 `json:"topK,omitempty"`
	MaxOutputTokens int32   `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Role  string       `json:"role"`
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}
