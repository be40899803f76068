package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill-ai-api/internal/config"
	apperrors "quill-ai-api/pkg/errors"
)

func TestOpenAIGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("blocking call returns text and usage", func(t *testing.T) {
		var gotReq openaiRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer cfg-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			json.NewEncoder(w).Encode(map[string]any{
				"model": "gpt-5.2",
				"choices": []map[string]any{
					{"message": map[string]string{"content": "generated"}},
				},
				"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 50},
			})
		}))
		defer server.Close()

		p := NewOpenAIProvider(config.ProviderConfig{APIKey: "cfg-key", BaseURL: server.URL})
		result, err := p.Generate(ctx, &Request{
			Prompt:       "write",
			SystemPrompt: "be brief",
			Model:        "gpt-5.2",
		})
		require.NoError(t, err)

		assert.Equal(t, "generated", result.Text)
		assert.Equal(t, 100, result.Usage.PromptTokens)
		assert.Equal(t, 50, result.Usage.CompletionTokens)

		// system 提示作为首条消息
		require.Len(t, gotReq.Messages, 2)
		assert.Equal(t, "system", gotReq.Messages[0].Role)
		assert.Equal(t, "user", gotReq.Messages[1].Role)
		assert.Nil(t, gotReq.StreamOptions)
	})

	t.Run("missing key fails before any network call", func(t *testing.T) {
		p := NewOpenAIProvider(config.ProviderConfig{BaseURL: "http://127.0.0.1:1"})
		_, err := p.Generate(ctx, &Request{Prompt: "write", Model: "gpt-5.2"})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeProviderNotConfigured, appErr.Code)
	})

	t.Run("upstream error surfaces status and message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"type": "invalid_request_error", "message": "bad key"},
			})
		}))
		defer server.Close()

		p := NewOpenAIProvider(config.ProviderConfig{APIKey: "k", BaseURL: server.URL})
		_, err := p.Generate(ctx, &Request{Prompt: "write", Model: "gpt-5.2"})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeUpstreamError, appErr.Code)
		assert.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
		assert.Contains(t, appErr.Message, "bad key")
	})
}

func TestOpenAIGenerateStream(t *testing.T) {
	ctx := context.Background()

	t.Run("deltas are emitted and trailing usage captured", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req openaiRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Stream)
			require.NotNil(t, req.StreamOptions)
			assert.True(t, req.StreamOptions.IncludeUsage)

			w.Header().Set("Content-Type", "text/event-stream")
			frames := []string{
				`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
				``,
				`data: {"choices":[{"delta":{"content":" world"}}]}`,
				``,
				`data: {"choices":[],"usage":{"prompt_tokens":100,"completion_tokens":50}}`,
				``,
				`data: [DONE]`,
				``,
			}
			for _, frame := range frames {
				w.Write([]byte(frame + "\n"))
			}
		}))
		defer server.Close()

		p := NewOpenAIProvider(config.ProviderConfig{APIKey: "k", BaseURL: server.URL})

		var got []string
		result, err := p.GenerateStream(ctx, &Request{Prompt: "write", Model: "gpt-5.2"}, func(text string) {
			got = append(got, text)
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"Hello", " world"}, got)
		assert.Equal(t, 100, result.Usage.PromptTokens)
		assert.Equal(t, 50, result.Usage.CompletionTokens)
	})
}
