package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/marketbrief/pkg/config"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "glm-4.6", req["model"])

		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant", "content": "the answer"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{
		Name:      "glm",
		Endpoint:  srv.URL,
		APIKey:    "test-key",
		Model:     "glm-4.6",
		MaxTokens: 1000,
		Timeout:   5 * time.Second,
	})

	got, err := p.Complete(context.Background(), "what moved the market today?", 0.1)
	require.NoError(t, err)
	assert.Equal(t, "the answer", got)
	assert.Equal(t, "glm", p.Name())
}

func TestOpenAIProvider_CompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "boom"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{Name: "glm", Endpoint: srv.URL, APIKey: "k", Model: "glm-4.6"})

	_, err := p.Complete(context.Background(), "prompt", 0.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm request failed")
}

func TestOpenAIProvider_CompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(config.ProviderConfig{Name: "glm", Endpoint: srv.URL, APIKey: "k", Model: "glm-4.6"})

	_, err := p.Complete(context.Background(), "prompt", 0.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response")
}
