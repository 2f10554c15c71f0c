package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/domain"
)

// newsAPIBaseURL is the production NewsAPI endpoint, overridable in tests
const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPI collects articles from the NewsAPI "everything" endpoint using a
// finance-focused query.
type NewsAPI struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	filter       *RelevanceFilter
	maxPerSource int
	status       statusHolder
}

// NewNewsAPI creates a NewsAPI collector. An empty key puts the collector in
// demo state where it contributes nothing.
func NewNewsAPI(apiKey string, filter *RelevanceFilter, timeout time.Duration, maxPerSource int) *NewsAPI {
	c := &NewsAPI{
		apiKey:       apiKey,
		baseURL:      newsAPIBaseURL,
		client:       &http.Client{Timeout: timeout},
		filter:       filter,
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
func (c *NewsAPI) Name() string { return "newsapi" }

// Status returns the current collector status
func (c *NewsAPI) Status() domain.CollectorStatus { return c.status.get() }

// Collect fetches recent finance articles from NewsAPI
func (c *NewsAPI) Collect(ctx context.Context, window time.Duration) []domain.Article {
	if c.apiKey == "" {
		return nil
	}

	from := time.Now().Add(-window).UTC().Format(time.RFC3339)
	query := url.Values{
		"q":        {"stock market OR earnings OR nasdaq OR \"wall street\""},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"from":     {from},
		"pageSize": {"100"},
		"apiKey":   {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), http.NoBody)
	if err != nil {
		c.status.set(domain.CollectorError, err.Error())
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		lgr.Printf("[WARN] newsapi request failed: %v", err)
		c.status.set(domain.CollectorError, err.Error())
		return nil
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK: // proceed
	case http.StatusTooManyRequests:
		c.status.set(domain.CollectorRateLimited, "rate limit exceeded")
		return nil
	default:
		c.status.set(domain.CollectorError, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
		return nil
	}

	var raw newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		c.status.set(domain.CollectorError, fmt.Sprintf("decode response: %v", err))
		return nil
	}

	articles := make([]domain.Article, 0, len(raw.Articles))
	for _, item := range raw.Articles {
		published, _ := time.Parse(time.RFC3339, item.PublishedAt)
		articles = append(articles, domain.Article{
			Title:            item.Title,
			Description:      item.Description,
			URL:              item.URL,
			Source:           item.Source.Name,
			Published:        published,
			Author:           item.Author,
			Content:          item.Content,
			CollectionMethod: "newsapi",
		})
	}

	c.status.set(domain.CollectorActive, "")

	articles = c.filter.Filter(articles)
	if c.maxPerSource > 0 && len(articles) > c.maxPerSource {
		articles = articles[:c.maxPerSource]
	}
	return articles
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Content     string `json:"content"`
	} `json:"articles"`
}

// WithBaseURL overrides the API endpoint, used by tests
func (c *NewsAPI) WithBaseURL(u string) *NewsAPI {
	c.baseURL = u
	return c
}
