package domain

import "time"

// Article represents a raw news article collected from a single source.
// Title and URL together form the deduplication identity.
type Article struct {
	Title            string
	Description      string
	URL              string
	Source           string
	Published        time.Time
	Author           string
	Content          string
	CollectionMethod string
	Tickers          []string // pre-extracted by the source, if available
	SentimentScore   float64  // source-provided sentiment, if available
}

// PriceImpact is the model's direction call for an article.
type PriceImpact string

// price impact values
const (
	ImpactPositive PriceImpact = "positive"
	ImpactNegative PriceImpact = "negative"
	ImpactNeutral  PriceImpact = "neutral"
)

// Category classifies the kind of market news
type Category string

// news categories
const (
	CategoryEarnings Category = "earnings"
	CategoryMA       Category = "m&a"
	CategoryTechAI   Category = "tech-ai"
	CategoryMacro    Category = "macro"
	CategoryTrading  Category = "trading"
	CategoryOther    Category = "other"
)

// Analysis holds the model-derived impact assessment for one article
type Analysis struct {
	Tickers            []string    `json:"tickers"`
	ImpactScore        int         `json:"impact_score"`
	PriceImpact        PriceImpact `json:"price_impact"`
	Category           Category    `json:"category"`
	Reasoning          string      `json:"reasoning"`
	MarketSignificance string      `json:"market_significance"`
	SearchContext      string      `json:"-"` // optional web-search context used during analysis
}

// AnalyzedArticle is an article that passed the impact threshold,
// carrying its analysis and the heuristic-adjusted composite score
type AnalyzedArticle struct {
	Article        Article
	Analysis       Analysis
	CompositeScore int
}

// RankedArticle is an analyzed article with its final position. Reasoning is
// set only when the model placed the article; fallback-ordered articles carry
// an empty reasoning.
type RankedArticle struct {
	AnalyzedArticle
	Rank        int
	ModelRanked bool
	Reasoning   string
}

// TranslatedLine is one formatted localized output line bound to a single ranked article
type TranslatedLine struct {
	Rank int
	Line string
}

// CollectorState describes the health of a single collector
type CollectorState string

// collector states
const (
	CollectorActive      CollectorState = "active"
	CollectorDemo        CollectorState = "demo"
	CollectorRateLimited CollectorState = "rate_limited"
	CollectorError       CollectorState = "error"
)

// CollectorStatus reports a collector's state with optional detail
type CollectorStatus struct {
	State  CollectorState `json:"state"`
	Detail string         `json:"detail,omitempty"`
}

// CollectorStat records the outcome of one collector during a collection pass
type CollectorStat struct {
	Status CollectorStatus `json:"status"`
	Count  int             `json:"count"`
	Error  string          `json:"error,omitempty"`
}
