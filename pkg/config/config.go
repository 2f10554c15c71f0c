package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Status server configuration"`

	Database struct {
		DSN             string `yaml:"dsn" json:"dsn" jsonschema:"default=file:marketbrief.db?cache=shared&mode=rwc,description=Database connection string for run history"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
	} `yaml:"database" json:"database" jsonschema:"description=Run history database configuration"`

	Collectors CollectorsConfig `yaml:"collectors" json:"collectors" jsonschema:"description=News collector configuration"`

	LLM LLMConfig `yaml:"llm" json:"llm" jsonschema:"description=LLM provider chain configuration"`

	Analysis AnalysisConfig `yaml:"analysis" json:"analysis" jsonschema:"description=Impact analysis configuration"`

	Ranking RankingConfig `yaml:"ranking" json:"ranking" jsonschema:"description=Ranking configuration"`

	Translation TranslationConfig `yaml:"translation" json:"translation" jsonschema:"description=Translation and bulletin formatting configuration"`

	Search SearchConfig `yaml:"search" json:"search" jsonschema:"description=Web search enrichment configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Article content extraction configuration"`

	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" jsonschema:"description=Broadcast schedule configuration"`

	Delivery DeliveryConfig `yaml:"delivery" json:"delivery" jsonschema:"description=Delivery channel configuration"`
}

// CollectorsConfig holds per-source collector settings
type CollectorsConfig struct {
	TimeWindow      time.Duration `yaml:"time_window" json:"time_window" jsonschema:"default=3h,description=How far back to collect news"`
	MaxPerSource    int           `yaml:"max_per_source" json:"max_per_source" jsonschema:"default=20,description=Maximum articles kept per source"`
	MinTitleLength  int           `yaml:"min_title_length" json:"min_title_length" jsonschema:"default=10,description=Articles with shorter titles are dropped"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout" jsonschema:"default=15s,description=Per-request timeout for collector HTTP calls"`
	FinanceKeywords []string      `yaml:"finance_keywords" json:"finance_keywords" jsonschema:"description=Relevance vocabulary (defaults applied when empty)"`
	NewsAPIKey      string        `yaml:"newsapi_key" json:"newsapi_key" jsonschema:"description=NewsAPI key (empty disables the collector)"`
	AlphaVantageKey string        `yaml:"alphavantage_key" json:"alphavantage_key" jsonschema:"description=Alpha Vantage key (empty disables the collector)"`
	MinSentimentMag float64       `yaml:"min_sentiment_magnitude" json:"min_sentiment_magnitude" jsonschema:"default=0.1,description=Minimum absolute sentiment for Alpha Vantage items"`
	RSSFeeds        []string      `yaml:"rss_feeds" json:"rss_feeds" jsonschema:"description=RSS/Atom feed URLs"`
	RSSUserAgent    string        `yaml:"rss_user_agent" json:"rss_user_agent" jsonschema:"default=Marketbrief/1.0,description=User agent for RSS fetches"`
}

// ProviderConfig describes one LLM provider in the fallback chain
type ProviderConfig struct {
	Name      string        `yaml:"name" json:"name" jsonschema:"required,description=Provider name used in logs and status"`
	Endpoint  string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=OpenAI-compatible API endpoint"`
	APIKey    string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model     string        `yaml:"model" json:"model" jsonschema:"required,description=Model name (e.g. glm-4.6 or mistral-large-latest)"`
	MaxTokens int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=1000,description=Maximum tokens in response"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=60s,description=Request timeout"`
}

// LLMConfig holds the provider chain, tried in listed order
type LLMConfig struct {
	Providers []ProviderConfig `yaml:"providers" json:"providers" jsonschema:"required,description=Providers in priority order"`
}

// AnalysisConfig holds impact analysis settings
type AnalysisConfig struct {
	MinImpactScore  int      `yaml:"min_impact_score" json:"min_impact_score" jsonschema:"default=5,minimum=1,maximum=10,description=Articles scoring below this are dropped"`
	MaxArticles     int      `yaml:"max_articles" json:"max_articles" jsonschema:"default=50,description=Maximum articles analyzed per run"`
	ContentBudget   int      `yaml:"content_budget" json:"content_budget" jsonschema:"default=500,description=Content characters included in the analysis prompt"`
	Temperature     float64  `yaml:"temperature" json:"temperature" jsonschema:"default=0.1,description=Temperature for analysis calls"`
	LargeCaps       []string `yaml:"large_caps" json:"large_caps" jsonschema:"description=Priority ticker list (defaults applied when empty)"`
	ReliableSources []string `yaml:"reliable_sources" json:"reliable_sources" jsonschema:"description=Sources granted the reputation bonus (defaults applied when empty)"`
}

// RankingConfig holds ranking settings
type RankingConfig struct {
	Candidates   int     `yaml:"candidates" json:"candidates" jsonschema:"default=15,description=Top analyzed articles submitted to the model for fine ranking"`
	OutputSize   int     `yaml:"output_size" json:"output_size" jsonschema:"default=10,description=Maximum ranked articles returned"`
	Temperature  float64 `yaml:"temperature" json:"temperature" jsonschema:"default=0.2,description=Temperature for ranking calls"`
	ReasoningMax int     `yaml:"reasoning_max" json:"reasoning_max" jsonschema:"default=200,description=Maximum characters kept from per-item ranking reasoning"`
}

// TranslationConfig holds translation and bulletin settings
type TranslationConfig struct {
	Temperature float64 `yaml:"temperature" json:"temperature" jsonschema:"default=0.1,description=Temperature for translation calls"`
	MaxLines    int     `yaml:"max_lines" json:"max_lines" jsonschema:"default=10,description=Maximum bulletin lines"`
}

// SearchConfig holds web-search enrichment settings
type SearchConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable web search enrichment"`
	MaxResults      int           `yaml:"max_results" json:"max_results" jsonschema:"default=5,description=Maximum search results per query"`
	CacheTTL        time.Duration `yaml:"cache_ttl" json:"cache_ttl" jsonschema:"default=1h,description=Search context cache TTL"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Search request timeout"`
	HighImpactScore int           `yaml:"high_impact_score" json:"high_impact_score" jsonschema:"default=8,description=Impact score at which verification search triggers"`
	MinTickers      int           `yaml:"min_tickers" json:"min_tickers" jsonschema:"default=1,description=Search triggers when fewer tickers were extracted"`
}

// ExtractionConfig holds article content extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable full-content extraction for articles without content"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"default=5,description=Maximum concurrent extractions"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Marketbrief/1.0,description=User agent for HTTP requests"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
}

// ScheduleConfig holds broadcast schedule settings
type ScheduleConfig struct {
	BroadcastTimes []string      `yaml:"broadcast_times" json:"broadcast_times" jsonschema:"description=Daily local times (HH:MM) to run and broadcast"`
	HealthInterval time.Duration `yaml:"health_interval" json:"health_interval" jsonschema:"default=1h,description=Health probe interval"`
}

// DeliveryConfig holds push channel settings
type DeliveryConfig struct {
	ChannelToken string        `yaml:"channel_token" json:"channel_token" jsonschema:"description=Push channel access token (empty disables delivery)"`
	APIURL       string        `yaml:"api_url" json:"api_url" jsonschema:"default=https://api.line.biz/v3/bot,description=Push API base URL"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Push request timeout"`
}

// defaultFinanceKeywords is the relevance vocabulary shared by all collectors
var defaultFinanceKeywords = []string{
	"stock", "earnings", "market", "shares", "price", "nasdaq",
	"nyse", "dow", "sp500", "investment", "trading", "dividend",
	"wall street", "etf", "ipo",
}

// defaultLargeCaps is the priority ticker list receiving scoring bonuses
var defaultLargeCaps = []string{
	"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "META", "NVDA", "TSLA",
	"JPM", "V", "PG", "JNJ", "WMT", "UNH", "HD", "MA", "BAC", "XOM",
	"CVX", "LLY", "ABBV", "PFE", "KO", "PEP", "TMO", "AVGO", "COST",
	"CRM", "ACN", "NKE", "ADBE", "TXN", "NFLX", "CMCSA", "INTC",
	"AMD", "PYPL", "DIS", "VZ", "CSCO",
}

// defaultReliableSources get a flat reputation bonus during scoring
var defaultReliableSources = []string{
	"bloomberg", "reuters", "wsj", "cnbc", "yahoo finance",
	"marketwatch", "barrons", "seekingalpha",
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// setDefaults fills zero values with working defaults
func (c *Config) setDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 3600
	}

	if c.Collectors.TimeWindow == 0 {
		c.Collectors.TimeWindow = 3 * time.Hour
	}
	if c.Collectors.MaxPerSource == 0 {
		c.Collectors.MaxPerSource = 20
	}
	if c.Collectors.MinTitleLength == 0 {
		c.Collectors.MinTitleLength = 10
	}
	if c.Collectors.RequestTimeout == 0 {
		c.Collectors.RequestTimeout = 15 * time.Second
	}
	if len(c.Collectors.FinanceKeywords) == 0 {
		c.Collectors.FinanceKeywords = defaultFinanceKeywords
	}
	if c.Collectors.MinSentimentMag == 0 {
		c.Collectors.MinSentimentMag = 0.1
	}
	if c.Collectors.RSSUserAgent == "" {
		c.Collectors.RSSUserAgent = "Marketbrief/1.0"
	}

	for i := range c.LLM.Providers {
		p := &c.LLM.Providers[i]
		if p.MaxTokens == 0 {
			p.MaxTokens = 1000
		}
		if p.Timeout == 0 {
			p.Timeout = 60 * time.Second
		}
	}

	if c.Analysis.MinImpactScore == 0 {
		c.Analysis.MinImpactScore = 5
	}
	if c.Analysis.MaxArticles == 0 {
		c.Analysis.MaxArticles = 50
	}
	if c.Analysis.ContentBudget == 0 {
		c.Analysis.ContentBudget = 500
	}
	if c.Analysis.Temperature == 0 {
		c.Analysis.Temperature = 0.1
	}
	if len(c.Analysis.LargeCaps) == 0 {
		c.Analysis.LargeCaps = defaultLargeCaps
	}
	if len(c.Analysis.ReliableSources) == 0 {
		c.Analysis.ReliableSources = defaultReliableSources
	}

	if c.Ranking.Candidates == 0 {
		c.Ranking.Candidates = 15
	}
	if c.Ranking.OutputSize == 0 {
		c.Ranking.OutputSize = 10
	}
	if c.Ranking.Temperature == 0 {
		c.Ranking.Temperature = 0.2
	}
	if c.Ranking.ReasoningMax == 0 {
		c.Ranking.ReasoningMax = 200
	}

	if c.Translation.Temperature == 0 {
		c.Translation.Temperature = 0.1
	}
	if c.Translation.MaxLines == 0 {
		c.Translation.MaxLines = 10
	}

	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if c.Search.CacheTTL == 0 {
		c.Search.CacheTTL = time.Hour
	}
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 10 * time.Second
	}
	if c.Search.HighImpactScore == 0 {
		c.Search.HighImpactScore = 8
	}
	if c.Search.MinTickers == 0 {
		c.Search.MinTickers = 1
	}

	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 30 * time.Second
	}
	if c.Extraction.MaxConcurrent == 0 {
		c.Extraction.MaxConcurrent = 5
	}
	if c.Extraction.UserAgent == "" {
		c.Extraction.UserAgent = "Marketbrief/1.0"
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}

	if len(c.Schedule.BroadcastTimes) == 0 {
		c.Schedule.BroadcastTimes = []string{"09:00", "13:00", "17:00"}
	}
	if c.Schedule.HealthInterval == 0 {
		c.Schedule.HealthInterval = time.Hour
	}

	if c.Delivery.APIURL == "" {
		c.Delivery.APIURL = "https://api.line.biz/v3/bot"
	}
	if c.Delivery.Timeout == 0 {
		c.Delivery.Timeout = 10 * time.Second
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if len(cfg.LLM.Providers) == 0 {
		return fmt.Errorf("llm.providers must list at least one provider")
	}
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("llm.providers[%d].name is required", i)
		}
		if p.Model == "" {
			return fmt.Errorf("llm.providers[%d].model is required", i)
		}
	}

	if cfg.Analysis.MinImpactScore < 1 || cfg.Analysis.MinImpactScore > 10 {
		return fmt.Errorf("analysis.min_impact_score must be between 1 and 10")
	}
	if cfg.Analysis.Temperature < 0 || cfg.Analysis.Temperature > 2 {
		return fmt.Errorf("analysis.temperature must be between 0 and 2")
	}

	if cfg.Ranking.OutputSize > cfg.Ranking.Candidates {
		return fmt.Errorf("ranking.output_size must not exceed ranking.candidates")
	}

	for _, ts := range cfg.Schedule.BroadcastTimes {
		if _, err := time.Parse("15:04", ts); err != nil {
			return fmt.Errorf("schedule.broadcast_times entry %q is not HH:MM", ts)
		}
	}

	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Extraction.Enabled && cfg.Extraction.Timeout < time.Second {
		return fmt.Errorf("extraction timeout must be at least 1 second")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}
