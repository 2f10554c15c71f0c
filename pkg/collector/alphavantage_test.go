package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/marketbrief/pkg/domain"
)

func TestAlphaVantage_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NEWS_SENTIMENT", r.URL.Query().Get("function"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		fmt.Fprint(w, `{
			"feed": [
				{
					"title": "Apple stock climbs on strong iPhone demand",
					"url": "https://example.com/aapl",
					"time_published": "20260826T090000",
					"authors": ["John Analyst"],
					"summary": "Shares of Apple rose in premarket trading",
					"source": "Benzinga",
					"overall_sentiment_score": 0.35,
					"ticker_sentiment": [{"ticker": "AAPL"}, {"ticker": "MSFT"}]
				},
				{
					"title": "Quiet trading day for sleepy utility stocks",
					"url": "https://example.com/util",
					"time_published": "20260826T091500",
					"summary": "Nothing moved the stock sector",
					"source": "Benzinga",
					"overall_sentiment_score": 0.02,
					"ticker_sentiment": []
				}
			]
		}`)
	}))
	defer srv.Close()

	filter := NewRelevanceFilter([]string{"stock", "shares"}, nil)
	c := NewAlphaVantage("test-key", filter, 5*time.Second, 0.1, 20).WithBaseURL(srv.URL)

	got := c.Collect(context.Background(), time.Hour)

	require.Len(t, got, 1, "near-neutral sentiment item skipped")
	assert.Equal(t, "Apple stock climbs on strong iPhone demand", got[0].Title)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got[0].Tickers)
	assert.InDelta(t, 0.35, got[0].SentimentScore, 0.001)
	assert.Equal(t, "John Analyst", got[0].Author)
	assert.Equal(t, "alphavantage", got[0].CollectionMethod)
	assert.Equal(t, domain.CollectorActive, c.Status().State)
}

func TestAlphaVantage_CollectRateLimitedNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`)
	}))
	defer srv.Close()

	c := NewAlphaVantage("test-key", NewRelevanceFilter(nil, nil), 5*time.Second, 0.1, 20).WithBaseURL(srv.URL)

	got := c.Collect(context.Background(), time.Hour)
	assert.Empty(t, got)
	assert.Equal(t, domain.CollectorRateLimited, c.Status().State)
}

func TestAlphaVantage_CollectBadTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"feed": [{
			"title": "Market shares update with broken time",
			"url": "https://example.com/x",
			"time_published": "not-a-time",
			"summary": "shares are moving",
			"source": "Benzinga",
			"overall_sentiment_score": -0.4,
			"ticker_sentiment": []
		}]}`)
	}))
	defer srv.Close()

	filter := NewRelevanceFilter([]string{"shares"}, nil)
	c := NewAlphaVantage("test-key", filter, 5*time.Second, 0.1, 20).WithBaseURL(srv.URL)

	got := c.Collect(context.Background(), time.Hour)
	require.Len(t, got, 1)
	assert.True(t, got[0].Published.IsZero(), "unparsable timestamp kept with zero time")
}

func TestAlphaVantage_CollectNoKey(t *testing.T) {
	c := NewAlphaVantage("", NewRelevanceFilter(nil, nil), 5*time.Second, 0.1, 20)

	got := c.Collect(context.Background(), time.Hour)
	assert.Empty(t, got)
	assert.Equal(t, domain.CollectorDemo, c.Status().State)
}
