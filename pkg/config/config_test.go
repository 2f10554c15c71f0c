package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
llm:
  providers:
    - name: glm
      model: glm-4.6
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, 3*time.Hour, cfg.Collectors.TimeWindow)
	assert.Equal(t, 20, cfg.Collectors.MaxPerSource)
	assert.Equal(t, 10, cfg.Collectors.MinTitleLength)
	assert.NotEmpty(t, cfg.Collectors.FinanceKeywords)
	assert.Equal(t, 5, cfg.Analysis.MinImpactScore)
	assert.Equal(t, 50, cfg.Analysis.MaxArticles)
	assert.Contains(t, cfg.Analysis.LargeCaps, "AAPL")
	assert.Contains(t, cfg.Analysis.ReliableSources, "bloomberg")
	assert.Equal(t, 15, cfg.Ranking.Candidates)
	assert.Equal(t, 10, cfg.Ranking.OutputSize)
	assert.Equal(t, 10, cfg.Translation.MaxLines)
	assert.Equal(t, time.Hour, cfg.Search.CacheTTL)
	assert.Equal(t, 8, cfg.Search.HighImpactScore)
	assert.Equal(t, []string{"09:00", "13:00", "17:00"}, cfg.Schedule.BroadcastTimes)
	assert.Equal(t, "https://api.line.biz/v3/bot", cfg.Delivery.APIURL)

	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, 1000, cfg.LLM.Providers[0].MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.LLM.Providers[0].Timeout)
}

func TestLoad_FullConfig(t *testing.T) {
	content := `
server:
  listen: ":9090"
  timeout: 10s
collectors:
  time_window: 6h
  newsapi_key: news-key
  rss_feeds:
    - https://example.com/feed.xml
llm:
  providers:
    - name: glm
      endpoint: https://api.z.ai/v1
      api_key: glm-key
      model: glm-4.6
    - name: mistral
      api_key: mistral-key
      model: mistral-large-latest
analysis:
  min_impact_score: 6
ranking:
  candidates: 20
  output_size: 8
schedule:
  broadcast_times: ["08:30", "16:30"]
delivery:
  channel_token: line-token
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, 6*time.Hour, cfg.Collectors.TimeWindow)
	assert.Equal(t, "news-key", cfg.Collectors.NewsAPIKey)
	assert.Equal(t, []string{"https://example.com/feed.xml"}, cfg.Collectors.RSSFeeds)
	require.Len(t, cfg.LLM.Providers, 2)
	assert.Equal(t, "glm", cfg.LLM.Providers[0].Name)
	assert.Equal(t, "mistral", cfg.LLM.Providers[1].Name)
	assert.Equal(t, 6, cfg.Analysis.MinImpactScore)
	assert.Equal(t, 8, cfg.Ranking.OutputSize)
	assert.Equal(t, []string{"08:30", "16:30"}, cfg.Schedule.BroadcastTimes)
	assert.Equal(t, "line-token", cfg.Delivery.ChannelToken)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_NEWSAPI_KEY", "secret-from-env")

	content := `
collectors:
  newsapi_key: ${TEST_NEWSAPI_KEY}
llm:
  providers:
    - name: glm
      model: glm-4.6
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Collectors.NewsAPIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "llm: [broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no providers", "server:\n  listen: ':8080'\n", "llm.providers must list at least one provider"},
		{"provider missing name", "llm:\n  providers:\n    - model: glm-4.6\n", "name is required"},
		{"provider missing model", "llm:\n  providers:\n    - name: glm\n", "model is required"},
		{"bad impact score", minimalConfig + "analysis:\n  min_impact_score: 11\n", "min_impact_score"},
		{"output exceeds candidates", minimalConfig + "ranking:\n  candidates: 5\n  output_size: 9\n", "output_size"},
		{"bad broadcast time", minimalConfig + "schedule:\n  broadcast_times: ['9am']\n", "not HH:MM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_GetServerConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, ":8080", listen)
	assert.Equal(t, 30*time.Second, timeout)
}
