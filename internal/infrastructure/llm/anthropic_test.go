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

func TestAnthropicGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("blocking call returns text and usage", func(t *testing.T) {
		var gotReq anthropicRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "cfg-key", r.Header.Get("x-api-key"))
			assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			json.NewEncoder(w).Encode(map[string]any{
				"model": "claude-opus-4-6",
				"content": []map[string]any{
					{"type": "text", "text": "Once upon "},
					{"type": "text", "text": "a time"},
				},
				"usage": map[string]int{"input_tokens": 500, "output_tokens": 200},
			})
		}))
		defer server.Close()

		p := NewAnthropicProvider(config.ProviderConfig{APIKey: "cfg-key", BaseURL: server.URL})
		result, err := p.Generate(ctx, &Request{
			Prompt:       "write",
			SystemPrompt: "be brief",
			Model:        "claude-opus-4-6",
		})
		require.NoError(t, err)

		assert.Equal(t, "Once upon a time", result.Text)
		assert.Equal(t, 500, result.Usage.PromptTokens)
		assert.Equal(t, 200, result.Usage.CompletionTokens)

		assert.Equal(t, "be brief", gotReq.System)
		assert.Equal(t, defaultMaxTokens, gotReq.MaxTokens)
		assert.InDelta(t, defaultTemperature, gotReq.Temperature, 1e-9)
		require.Len(t, gotReq.Messages, 1)
		assert.Equal(t, "user", gotReq.Messages[0].Role)
	})

	t.Run("byok key overrides configured key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "caller-key", r.Header.Get("x-api-key"))
			json.NewEncoder(w).Encode(map[string]any{"content": []map[string]any{}})
		}))
		defer server.Close()

		p := NewAnthropicProvider(config.ProviderConfig{APIKey: "cfg-key", BaseURL: server.URL})
		_, err := p.Generate(ctx, &Request{Prompt: "write", Model: "claude-opus-4-6", APIKey: "caller-key"})
		require.NoError(t, err)
	})

	t.Run("missing key fails before any network call", func(t *testing.T) {
		p := NewAnthropicProvider(config.ProviderConfig{BaseURL: "http://127.0.0.1:1"})
		_, err := p.Generate(ctx, &Request{Prompt: "write", Model: "claude-opus-4-6"})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeProviderNotConfigured, appErr.Code)
	})

	t.Run("upstream error surfaces status and message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"type": "rate_limit_error", "message": "rate limited"},
			})
		}))
		defer server.Close()

		p := NewAnthropicProvider(config.ProviderConfig{APIKey: "k", BaseURL: server.URL})
		_, err := p.Generate(ctx, &Request{Prompt: "write", Model: "claude-opus-4-6"})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeUpstreamError, appErr.Code)
		assert.Equal(t, http.StatusTooManyRequests, appErr.HTTPStatus)
		assert.Contains(t, appErr.Message, "rate limited")
	})
}

func TestAnthropicGenerateStream(t *testing.T) {
	ctx := context.Background()

	t.Run("deltas are emitted and usage accumulated", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req anthropicRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Stream)

			w.Header().Set("Content-Type", "text/event-stream")
			frames := []string{
				`event: message_start`,
				`data: {"type":"message_start","message":{"usage":{"input_tokens":500,"output_tokens":1}}}`,
				``,
				`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"Hello"}}`,
				``,
				`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":" world"}}`,
				``,
				`data: {"type":"message_delta","usage":{"output_tokens":200}}`,
				``,
			}
			for _, frame := range frames {
				w.Write([]byte(frame + "\n"))
			}
		}))
		defer server.Close()

		p := NewAnthropicProvider(config.ProviderConfig{APIKey: "k", BaseURL: server.URL})

		var got []string
		result, err := p.GenerateStream(ctx, &Request{Prompt: "write", Model: "claude-opus-4-6"}, func(text string) {
			got = append(got, text)
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"Hello", " world"}, got)
		assert.Equal(t, 500, result.Usage.PromptTokens)
		// message_delta 的累计值覆盖 message_start 的初始值
		assert.Equal(t, 200, result.Usage.CompletionTokens)
	})

	t.Run("malformed frame is skipped without killing the stream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("data: {not json}\n\n"))
			w.Write([]byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"ok"}}` + "\n\n"))
		}))
		defer server.Close()

		p := NewAnthropicProvider(config.ProviderConfig{APIKey: "k", BaseURL: server.URL})

		var got []string
		_, err := p.GenerateStream(ctx, &Request{Prompt: "write", Model: "claude-opus-4-6"}, func(text string) {
			got = append(got, text)
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"ok"}, got)
	})
}
