package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-pkgz/lgr"

	"github.com/verist/marketbrief/pkg/config"
	"github.com/verist/marketbrief/pkg/domain"
)

// Completer produces a free-text completion for a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// ContextProvider supplies optional web-search context for an article
type ContextProvider interface {
	ContextFor(ctx context.Context, article domain.Article) string
	ShouldSearch(analysis domain.Analysis) bool
}

// Analyzer scores each article's market impact with the LLM and filters out
// low-impact items. Articles are processed independently: a failure analyzing
// one never aborts the rest.
type Analyzer struct {
	completer Completer
	searcher  ContextProvider // may be nil
	cfg       config.AnalysisConfig
}

// New creates an analyzer; searcher may be nil to disable enrichment
func New(completer Completer, searcher ContextProvider, cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{completer: completer, searcher: searcher, cfg: cfg}
}

// Analyze scores up to limit articles and returns those meeting the impact
// threshold. Parse failures and below-threshold scores drop the article
// silently; they are filtering decisions, not run errors.
func (a *Analyzer) Analyze(ctx context.Context, articles []domain.Article, limit int) []domain.AnalyzedArticle {
	if limit <= 0 || limit > len(articles) {
		limit = len(articles)
	}

	analyzed := make([]domain.AnalyzedArticle, 0, limit)
	for i, article := range articles[:limit] {
		lgr.Printf("[DEBUG] analyzing article %d/%d: %s", i+1, limit, truncate(article.Title, 50))

		result, ok := a.analyzeOne(ctx, article)
		if !ok {
			continue
		}
		analyzed = append(analyzed, result)
	}

	lgr.Printf("[INFO] analyzed %d articles, %d passed impact threshold %d", limit, len(analyzed), a.cfg.MinImpactScore)
	return analyzed
}

// analyzeOne runs a single article through the model and the threshold filter
func (a *Analyzer) analyzeOne(ctx context.Context, article domain.Article) (domain.AnalyzedArticle, bool) {
	prompt := a.buildPrompt(article, "")

	resp, err := a.completer.Complete(ctx, prompt, a.cfg.Temperature)
	if err != nil {
		lgr.Printf("[WARN] analysis call failed for %q: %v", truncate(article.Title, 50), err)
		return domain.AnalyzedArticle{}, false
	}

	analysis, err := parseAnalysis(resp)
	if err != nil {
		lgr.Printf("[WARN] analysis parse failed for %q: %v", truncate(article.Title, 50), err)
		return domain.AnalyzedArticle{}, false
	}

	// uncertain or high-stakes analyses get one retry with web context
	if a.searcher != nil && a.searcher.ShouldSearch(analysis) {
		if webCtx := a.searcher.ContextFor(ctx, article); webCtx != "" {
			if enriched, ok := a.reanalyze(ctx, article, webCtx); ok {
				enriched.SearchContext = webCtx
				analysis = enriched
			}
		}
	}

	if analysis.ImpactScore < a.cfg.MinImpactScore {
		return domain.AnalyzedArticle{}, false
	}

	return domain.AnalyzedArticle{
		Article:        article,
		Analysis:       analysis,
		CompositeScore: a.compositeScore(analysis, article),
	}, true
}

// reanalyze repeats the analysis with web-search context in the prompt
func (a *Analyzer) reanalyze(ctx context.Context, article domain.Article, webCtx string) (domain.Analysis, bool) {
	resp, err := a.completer.Complete(ctx, a.buildPrompt(article, webCtx), a.cfg.Temperature)
	if err != nil {
		return domain.Analysis{}, false
	}
	analysis, err := parseAnalysis(resp)
	if err != nil {
		return domain.Analysis{}, false
	}
	return analysis, true
}

// buildPrompt renders the fixed-schema analysis prompt with content capped to
// the configured budget.
func (a *Analyzer) buildPrompt(article domain.Article, webCtx string) string {
	content := article.Content
	if len(content) > a.cfg.ContentBudget {
		content = content[:a.cfg.ContentBudget] + "..."
	}

	var sb strings.Builder
	sb.WriteString("Analyze this financial news for US stock market impact:\n\n")
	fmt.Fprintf(&sb, "HEADLINE: %s\n", article.Title)
	fmt.Fprintf(&sb, "SUMMARY: %s\n", article.Description)
	fmt.Fprintf(&sb, "SOURCE: %s\n", article.Source)
	fmt.Fprintf(&sb, "FULL CONTENT: %s\n", content)

	if webCtx != "" {
		fmt.Fprintf(&sb, "\nADDITIONAL WEB CONTEXT:\n%s\n", webCtx)
	}

	sb.WriteString(`
Task: Analyze market impact and provide structured analysis.

Provide the analysis as JSON in this exact format:
{
    "tickers": ["TICKER1", "TICKER2"],
    "impact_score": 8,
    "price_impact": "positive",
    "category": "earnings|m&a|tech-ai|macro|trading|other",
    "reasoning": "Brief explanation of impact reasoning",
    "market_significance": "high|medium|low"
}

Analysis Guidelines:
1. Ticker Extraction: Find all stock tickers mentioned (prioritize: ` + strings.Join(topN(a.cfg.LargeCaps, 10), ", ") + `)
2. Impact Score (1-10):
   - 10 = Market-changing major news (Fed decisions, huge M&A)
   - 8-9 = High impact (major earnings, significant AI news)
   - 6-7 = Medium impact (product launches, analyst upgrades)
   - 5 = Moderate impact (routine updates, minor developments)
   - 1-4 = Low impact (minor news, routine coverage)
3. Price Impact: "positive", "negative", or "neutral"
4. Market Significance: How this affects the broader market

Return ONLY the JSON response, no additional text.`)

	return sb.String()
}

// parseAnalysis extracts the first balanced JSON object from a free-text
// response using the greedy first-opening/last-closing brace span.
func parseAnalysis(response string) (domain.Analysis, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || start >= end {
		return domain.Analysis{}, fmt.Errorf("no json object found in response")
	}

	var raw struct {
		Tickers            []string `json:"tickers"`
		ImpactScore        *int     `json:"impact_score"`
		PriceImpact        string   `json:"price_impact"`
		Category           string   `json:"category"`
		Reasoning          string   `json:"reasoning"`
		MarketSignificance string   `json:"market_significance"`
	}
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return domain.Analysis{}, fmt.Errorf("parse json response: %w", err)
	}
	if raw.ImpactScore == nil {
		return domain.Analysis{}, fmt.Errorf("impact_score missing from response")
	}

	score := *raw.ImpactScore
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	return domain.Analysis{
		Tickers:            raw.Tickers,
		ImpactScore:        score,
		PriceImpact:        domain.PriceImpact(strings.ToLower(raw.PriceImpact)),
		Category:           domain.Category(strings.ToLower(raw.Category)),
		Reasoning:          raw.Reasoning,
		MarketSignificance: strings.ToLower(raw.MarketSignificance),
	}, nil
}

// compositeScore adjusts the model score with heuristic bonuses: up to +2 for
// large-cap tickers, +1 for a reputable source, capped at 10.
func (a *Analyzer) compositeScore(analysis domain.Analysis, article domain.Article) int {
	score := analysis.ImpactScore

	largeCaps := 0
	for _, t := range analysis.Tickers {
		for _, lc := range a.cfg.LargeCaps {
			if strings.EqualFold(t, lc) {
				largeCaps++
				break
			}
		}
	}
	if largeCaps > 2 {
		largeCaps = 2
	}
	score += largeCaps

	source := strings.ToLower(article.Source)
	for _, rel := range a.cfg.ReliableSources {
		if strings.Contains(source, rel) {
			score++
			break
		}
	}

	if score > 10 {
		score = 10
	}
	return score
}

// Summary aggregates analysis results for the run record
func Summary(analyzed []domain.AnalyzedArticle) domain.AnalysisSummary {
	s := domain.AnalysisSummary{TotalAnalyzed: len(analyzed)}
	if len(analyzed) == 0 {
		return s
	}

	s.Categories = map[domain.Category]int{}
	for _, a := range analyzed {
		switch {
		case a.Analysis.ImpactScore >= 8:
			s.HighImpact++
		case a.Analysis.ImpactScore >= 5:
			s.MediumImpact++
		}
		s.Categories[a.Analysis.Category]++
	}
	return s
}

func topN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
