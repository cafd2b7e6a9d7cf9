// Package bankinfo looks up current banking product information for the
// topics users ask about.
package bankinfo

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"smartbudget/internal/cache"
	"smartbudget/internal/metrics"
)

const (
	defaultCacheTTL = 6 * time.Hour
	defaultTimeout  = 15 * time.Second

	disclaimer = "⚠️ Note: Rates may vary. Please check with banks for the most current information."
)

// Keywords are the banking topics recognised in user messages, in priority order.
var Keywords = []string{
	"fd",
	"fixed deposit",
	"interest rate",
	"bank rate",
	"rd",
	"recurring deposit",
	"savings account",
	"loan rate",
	"credit card",
	"emi",
	"banking product",
}

var keywordPatterns = compileKeywords(Keywords)

func compileKeywords(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// DetectTopic returns the first banking keyword mentioned in text.
func DetectTopic(text string) (string, bool) {
	for i, re := range keywordPatterns {
		if re.MatchString(text) {
			return Keywords[i], true
		}
	}
	return "", false
}

// QueryFor maps a topic to the web search query used to research it.
func QueryFor(topic string) string {
	t := strings.ToLower(topic)
	switch {
	case strings.Contains(t, "fd") || strings.Contains(t, "fixed deposit"):
		return "latest FD interest rates comparison major banks India"
	case strings.Contains(t, "saving"):
		return "best savings account interest rates India comparison"
	case strings.Contains(t, "loan"):
		return "current loan interest rates comparison banks India"
	case strings.Contains(t, "credit card"):
		return "best credit card offers India comparison"
	default:
		return fmt.Sprintf("latest %s banking products India comparison", topic)
	}
}

// Searcher answers a free-text web search query.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Config holds advisor settings.
type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Advisor turns a banking topic into an informational paragraph.
type Advisor struct {
	searcher Searcher
	cache    *cache.Redis
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration
	cacheTTL time.Duration
}

// New creates an advisor. searcher and redis may be nil; without a searcher
// every lookup returns the static summary.
func New(searcher Searcher, redis *cache.Redis, metrics *metrics.Metrics, logger *slog.Logger, cfg Config) *Advisor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Advisor{
		searcher: searcher,
		cache:    redis,
		metrics:  metrics,
		logger:   logger.With("component", "bankinfo"),
		timeout:  cfg.Timeout,
		cacheTTL: cfg.CacheTTL,
	}
}

// Lookup returns formatted information about topic. It never fails: search
// errors are replaced by a static summary.
func (a *Advisor) Lookup(ctx context.Context, topic string) string {
	info, err := a.search(ctx, QueryFor(topic))
	if err != nil {
		a.logger.Warn("bank info search failed", "error", err, "topic", topic)
		a.metrics.SearchRequests.WithLabelValues("failed").Inc()
		return staticSummary(topic)
	}
	return fmt.Sprintf("📊 Latest %s Information:\n\n%s\n\n%s", cases.Title(language.English).String(topic), info, disclaimer)
}

func (a *Advisor) search(ctx context.Context, query string) (string, error) {
	if a.searcher == nil {
		return "", fmt.Errorf("no search backend configured")
	}

	cacheKey := "bankinfo:" + strings.ReplaceAll(strings.ToLower(query), " ", "_")
	if a.cache != nil {
		var cached string
		ok, err := a.cache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			a.logger.Warn("read bank info cache failed", "error", err)
		} else if ok && cached != "" {
			a.metrics.SearchRequests.WithLabelValues("cache_hit").Inc()
			return cached, nil
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	info, err := a.searcher.Search(searchCtx, query)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	info = strings.TrimSpace(info)
	if info == "" {
		return "", fmt.Errorf("search %q: empty result", query)
	}
	a.metrics.SearchRequests.WithLabelValues("success").Inc()

	if a.cache != nil {
		if err := a.cache.SetJSON(ctx, cacheKey, info, a.cacheTTL); err != nil {
			a.logger.Warn("set bank info cache failed", "error", err)
		}
	}
	return info, nil
}

func staticSummary(topic string) string {
	return "Sorry, I couldn't get the latest information on " + topic + ". Here's what I know:\n\n" +
		"• Fixed deposit rates typically range from 3-7% depending on the bank and duration\n" +
		"• Senior citizens usually get 0.25-0.5% higher rates\n" +
		"• Most banks offer higher rates for longer duration deposits\n" +
		"• Special FD schemes may have higher rates but limited periods\n" +
		"• Some banks offer additional benefits for existing customers\n\n" +
		"Please check with specific banks for their current rates and offers."
}
