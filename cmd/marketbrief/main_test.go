package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/marketbrief/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
server:
  listen: "127.0.0.1:0"
database:
  dsn: "file:%s/test.db"
collectors:
  newsapi_key: news-key
  alphavantage_key: av-key
  rss_feeds:
    - https://example.com/feed.xml
llm:
  providers:
    - name: glm
      api_key: glm-key
      model: glm-4.6
delivery:
  channel_token: line-token
`, dir)
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestSecrets(t *testing.T) {
	cfg := testConfig(t)

	got := secrets(cfg)
	assert.ElementsMatch(t, []string{"news-key", "av-key", "line-token", "glm-key"}, got)
}

func TestSecretsEmptyConfig(t *testing.T) {
	assert.Empty(t, secrets(&config.Config{}))
}

func TestMakeAggregator(t *testing.T) {
	cfg := testConfig(t)

	agg := makeAggregator(cfg)
	statuses := agg.Statuses()

	assert.Contains(t, statuses, "newsapi")
	assert.Contains(t, statuses, "alphavantage")
	assert.Contains(t, statuses, "rss")
}

func TestMakeAggregatorNoKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Collectors.NewsAPIKey = ""
	cfg.Collectors.AlphaVantageKey = ""
	cfg.Collectors.RSSFeeds = nil

	agg := makeAggregator(cfg)
	assert.Empty(t, agg.Statuses())
}

func TestRun_StartStop(t *testing.T) {
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg, false) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not stop after context cancellation")
	}
}
