package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/verist/marketbrief/pkg/domain"
)

// RSS collects articles from a set of RSS/Atom feeds. Individual feed
// failures are logged and skipped; the collector errors out only when every
// feed fails.
type RSS struct {
	feeds        []string
	parser       *gofeed.Parser
	sanitizer    *bluemonday.Policy
	filter       *RelevanceFilter
	timeout      time.Duration
	maxPerSource int
	status       statusHolder
}

// NewRSS creates an RSS collector over the given feed URLs
func NewRSS(feeds []string, filter *RelevanceFilter, timeout time.Duration, userAgent string, maxPerSource int) *RSS {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent

	r := &RSS{
		feeds:        feeds,
		parser:       parser,
		sanitizer:    bluemonday.StrictPolicy(),
		filter:       filter,
		timeout:      timeout,
		maxPerSource: maxPerSource,
	}
	r.status.set(domain.CollectorActive, "")
	return r
}

// Name returns the collector name
func (r *RSS) Name() string { return "rss" }

// Status returns the current collector status
func (r *RSS) Status() domain.CollectorStatus { return r.status.get() }

// Collect fetches all configured feeds and returns relevant articles within the window
func (r *RSS) Collect(ctx context.Context, window time.Duration) []domain.Article {
	if len(r.feeds) == 0 {
		r.status.set(domain.CollectorDemo, "no feeds configured")
		return nil
	}

	cutoff := time.Now().Add(-window)
	var articles []domain.Article
	failed := 0

	for _, feedURL := range r.feeds {
		items, err := r.fetchFeed(ctx, feedURL)
		if err != nil {
			lgr.Printf("[WARN] rss feed %s failed: %v", feedURL, err)
			failed++
			continue
		}

		for _, a := range items {
			if !a.Published.IsZero() && a.Published.Before(cutoff) {
				continue
			}
			articles = append(articles, a)
		}
	}

	if failed == len(r.feeds) {
		r.status.set(domain.CollectorError, fmt.Sprintf("all %d feeds failed", failed))
		return nil
	}
	r.status.set(domain.CollectorActive, "")

	articles = r.filter.Filter(articles)
	if r.maxPerSource > 0 && len(articles) > r.maxPerSource {
		articles = articles[:r.maxPerSource]
	}
	return articles
}

// fetchFeed retrieves and converts a single feed
func (r *RSS) fetchFeed(ctx context.Context, feedURL string) ([]domain.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := sourceFromFeed(feed, feedURL)
	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		article := domain.Article{
			Title:            item.Title,
			Description:      strings.TrimSpace(r.sanitizer.Sanitize(item.Description)),
			URL:              item.Link,
			Source:           source,
			Content:          strings.TrimSpace(r.sanitizer.Sanitize(item.Content)),
			CollectionMethod: "rss",
		}

		if item.Author != nil {
			article.Author = item.Author.Name
		}
		if article.Author == "" {
			article.Author = source
		}

		if item.PublishedParsed != nil {
			article.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			article.Published = *item.UpdatedParsed
		}

		if article.Content == "" {
			article.Content = article.Description
		}

		articles = append(articles, article)
	}

	return articles, nil
}

// sourceFromFeed picks a human-readable source name for a feed
func sourceFromFeed(feed *gofeed.Feed, feedURL string) string {
	if feed.Title != "" {
		return feed.Title
	}
	trimmed := strings.TrimPrefix(strings.TrimPrefix(feedURL, "https://"), "http://")
	if i := strings.Index(trimmed, "/"); i > 0 {
		return trimmed[:i]
	}
	return trimmed
}
