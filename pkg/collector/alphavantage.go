package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/domain"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// alphaVantageTimeLayout is the provider's time_published format
const alphaVantageTimeLayout = "20060102T150405"

// AlphaVantage collects articles from the NEWS_SENTIMENT endpoint. Items with
// near-neutral overall sentiment are skipped before the relevance filter runs.
type AlphaVantage struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	filter       *RelevanceFilter
	minSentiment float64
	maxPerSource int
	status       statusHolder
}

// NewAlphaVantage creates an Alpha Vantage collector. An empty key puts the
// collector in demo state where it contributes nothing.
func NewAlphaVantage(apiKey string, filter *RelevanceFilter, timeout time.Duration, minSentiment float64, maxPerSource int) *AlphaVantage {
	c := &AlphaVantage{
		apiKey:       apiKey,
		baseURL:      alphaVantageBaseURL,
		client:       &http.Client{Timeout: timeout},
		filter:       filter,
		minSentiment: minSentiment,
		maxPerSource: maxPerSource,
	}
	if apiKey == "" {
		c.status.set(domain.CollectorDemo, "api key not configured")
	} else {
		c.status.set(domain.CollectorActive, "")
	}
	return c
}

// Name returns the collector name
func (c *AlphaVantage) Name() string { return "alphavantage" }

// Status returns the current collector status
func (c *AlphaVantage) Status() domain.CollectorStatus { return c.status.get() }

// Collect fetches recent market news with sentiment from Alpha Vantage
func (c *AlphaVantage) Collect(ctx context.Context, window time.Duration) []domain.Article {
	if c.apiKey == "" {
		return nil
	}

	query := url.Values{
		"function":  {"NEWS_SENTIMENT"},
		"sort":      {"LATEST"},
		"limit":     {"50"},
		"time_from": {time.Now().Add(-window).UTC().Format(alphaVantageTimeLayout)},
		"apikey":    {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), http.NoBody)
	if err != nil {
		c.status.set(domain.CollectorError, err.Error())
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		lgr.Printf("[WARN] alphavantage request failed: %v", err)
		c.status.set(domain.CollectorError, err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.status.set(domain.CollectorError, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
		return nil
	}

	var raw alphaVantageResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.status.set(domain.CollectorError, fmt.Sprintf("decode response: %v", err))
		return nil
	}

	// the API reports throttling as a 200 with a Note field
	if raw.Note != "" {
		c.status.set(domain.CollectorRateLimited, raw.Note)
		return nil
	}

	articles := make([]domain.Article, 0, len(raw.Feed))
	for _, item := range raw.Feed {
		sentiment := item.OverallSentimentScore
		if math.Abs(sentiment) < c.minSentiment {
			continue // skip very neutral news
		}

		published, err := time.Parse(alphaVantageTimeLayout, item.TimePublished)
		if err != nil {
			published = time.Time{}
		}

		tickers := make([]string, 0, len(item.TickerSentiment))
		for _, ts := range item.TickerSentiment {
			if ts.Ticker != "" {
				tickers = append(tickers, ts.Ticker)
			}
		}

		articles = append(articles, domain.Article{
			Title:            item.Title,
			Description:      item.Summary,
			URL:              item.URL,
			Source:           item.Source,
			Published:        published,
			Author:           firstOr(item.Authors, item.Source),
			Content:          item.Summary,
			CollectionMethod: "alphavantage",
			Tickers:          tickers,
			SentimentScore:   sentiment,
		})
	}

	c.status.set(domain.CollectorActive, "")

	articles = c.filter.Filter(articles)
	if c.maxPerSource > 0 && len(articles) > c.maxPerSource {
		articles = articles[:c.maxPerSource]
	}
	return articles
}

func firstOr(list []string, fallback string) string {
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

type alphaVantageResponse struct {
	Note string                 `json:"Note,omitempty"`
	Feed []alphaVantageFeedItem `json:"feed"`
}

type alphaVantageFeedItem struct {
	Title                 string   `json:"title"`
	URL                   string   `json:"url"`
	TimePublished         string   `json:"time_published"`
	Authors               []string `json:"authors"`
	Summary               string   `json:"summary"`
	Source                string   `json:"source"`
	OverallSentimentScore float64  `json:"overall_sentiment_score"`
	TickerSentiment       []struct {
		Ticker string `json:"ticker"`
	} `json:"ticker_sentiment"`
}

// WithBaseURL overrides the API endpoint, used by tests
func (c *AlphaVantage) WithBaseURL(u string) *AlphaVantage {
	c.baseURL = u
	return c
}
