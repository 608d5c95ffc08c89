package llm

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(Config{
		APIKey:       "secret",
		FolderID:     "folder",
		Model:        "yandexgpt-lite",
		URL:          url,
		Timeout:      time.Second,
		Temperature:  0.2,
		MaxTokens:    700,
		SystemPrompt: "system",
	})
}

func TestClient_Generate(t *testing.T) {
	t.Run("Should send the completion request and return trimmed text", func(t *testing.T) {
		var captured completionRequest
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_, _ = w.Write([]byte(`{"result":{"alternatives":[{"message":{"role":"assistant","text":"  Объяснение.  "}}]}}`))
		}))
		defer srv.Close()
		text, err := newTestClient(srv.URL).Generate(t.Context(), "prompt")
		require.NoError(t, err)
		assert.Equal(t, "Объяснение.", text)
		assert.Equal(t, "Api-Key secret", auth)
		assert.Equal(t, "gpt://folder/yandexgpt-lite", captured.ModelURI)
		assert.False(t, captured.CompletionOptions.Stream)
		assert.Equal(t, 700, captured.CompletionOptions.MaxTokens)
		require.Len(t, captured.Messages, 2)
		assert.Equal(t, "system", captured.Messages[0].Role)
		assert.Equal(t, "prompt", captured.Messages[1].Text)
	})

	t.Run("Should fail fast without a network call when unconfigured", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
		defer srv.Close()
		client := NewClient(Config{URL: srv.URL, Timeout: time.Second})
		_, err := client.Generate(t.Context(), "prompt")
		assert.Equal(t, ReasonUnconfigured, ReasonOf(err))
		assert.Zero(t, calls.Load())
		assert.False(t, client.Configured())
	})

	t.Run("Should classify non-2xx responses as http_status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()
		_, err := newTestClient(srv.URL).Generate(t.Context(), "prompt")
		var genErr *GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, ReasonHTTPStatus, genErr.Reason)
		assert.Equal(t, http.StatusTooManyRequests, genErr.StatusCode)
	})

	t.Run("Should classify missing alternatives as malformed_response", func(t *testing.T) {
		for _, body := range []string{`{"result":{"alternatives":[]}}`, `{"result":{"alternatives":[{"message":{}}]}}`, `not json`} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			_, err := newTestClient(srv.URL).Generate(t.Context(), "prompt")
			srv.Close()
			assert.Equal(t, ReasonMalformedResponse, ReasonOf(err), body)
		}
	})

	t.Run("Should classify slow responses as timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()
		client := newTestClient(srv.URL)
		client.http.SetTimeout(20 * time.Millisecond)
		_, err := client.Generate(t.Context(), "prompt")
		assert.Equal(t, ReasonTimeout, ReasonOf(err))
	})
}

func TestReasonOf(t *testing.T) {
	t.Run("Should default unknown errors to transport", func(t *testing.T) {
		assert.Equal(t, ReasonTransport, ReasonOf(errors.New("boom")))
	})
}
