package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const duckDuckGoBaseURL = "https://html.duckduckgo.com/html/"

// Result is a single search hit
type Result struct {
	Title   string
	Snippet string
}

// DuckDuckGo queries the HTML search endpoint and scrapes result titles and
// snippets. No API key required.
type DuckDuckGo struct {
	baseURL    string
	client     *http.Client
	maxResults int
}

// NewDuckDuckGo creates a search client
func NewDuckDuckGo(timeout time.Duration, maxResults int) *DuckDuckGo {
	return &DuckDuckGo{
		baseURL:    duckDuckGoBaseURL,
		client:     &http.Client{Timeout: timeout},
		maxResults: maxResults,
	}
}

// Search runs a query and returns up to maxResults hits
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	reqURL := d.baseURL + "?" + url.Values{"q": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Marketbrief/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find(".result__a").First().Text())
		snippet := strings.TrimSpace(s.Find(".result__snippet").First().Text())
		if title == "" {
			return true
		}
		results = append(results, Result{Title: title, Snippet: snippet})
		return len(results) < d.maxResults
	})

	return results, nil
}

// Context joins search results into a compact context block for prompts
func Context(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s", i+1, r.Title)
		if r.Snippet != "" {
			sb.WriteString(" - ")
			sb.WriteString(r.Snippet)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// WithBaseURL overrides the search endpoint, used by tests
func (d *DuckDuckGo) WithBaseURL(u string) *DuckDuckGo {
	d.baseURL = u
	return d
}
