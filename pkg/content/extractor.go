package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/sync/errgroup"

	"github.com/verist/marketbrief/pkg/config"
	"github.com/verist/marketbrief/pkg/domain"
)

// Extractor pulls full article text from URLs using trafilatura. It is used
// to fill in content for collected articles that carry only a headline and
// description, so the analyzer has something to work with.
type Extractor struct {
	cfg    config.ExtractionConfig
	client *http.Client
}

// NewExtractor creates a content extractor
func NewExtractor(cfg config.ExtractionConfig) *Extractor {
	return &Extractor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enrich fills empty Content fields in place, best effort with bounded
// concurrency. Extraction failures leave the article untouched.
func (e *Extractor) Enrich(ctx context.Context, articles []domain.Article) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)

	for i := range articles {
		if articles[i].Content != "" || articles[i].URL == "" {
			continue
		}

		g.Go(func() error {
			text, err := e.Extract(ctx, articles[i].URL)
			if err != nil {
				lgr.Printf("[DEBUG] content extraction failed for %s: %v", articles[i].URL, err)
				return nil // best effort, never propagate
			}
			articles[i].Content = text
			return nil
		})
	}

	_ = g.Wait() // workers never return errors
}

// Extract retrieves and extracts text content from the given URL
func (e *Extractor) Extract(ctx context.Context, urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", urlStr)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", e.cfg.UserAgent)
	addBrowserHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", urlStr)
	}

	text := strings.TrimSpace(result.ContentText)
	if len(text) < e.cfg.MinTextLength {
		return "", fmt.Errorf("extracted text too short (%d chars) from %s", len(text), urlStr)
	}

	return text, nil
}
