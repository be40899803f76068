package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"quill-ai-api/internal/config"
	apperrors "quill-ai-api/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIProvider OpenAI Chat Completions API 适配器
type OpenAIProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// NewOpenAIProvider 创建 OpenAI 适配器
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: newHTTPClient(cfg),
	}
}

// Name 实现 Provider
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiStreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiRequest struct {
	Model         string               `json:"model"`
	Messages      []openaiMessage      `json:"messages"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Temperature   float64              `json:"temperature"`
	Stream        bool                 `json:"stream,omitempty"`
	StreamOptions *openaiStreamOptions `json:"stream_options,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage openaiUsage `json:"usage"`
}

type openaiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// openaiStreamEvent 流式事件：choices 携带文本增量，
// 请求 include_usage 后末尾帧携带用量统计。
type openaiStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage"`
}

// resolveAPIKey 调用方自带密钥优先，其次进程配置
func (p *OpenAIProvider) resolveAPIKey(req *Request) (string, error) {
	if req.APIKey != "" {
		return req.APIKey, nil
	}
	if p.cfg.APIKey != "" {
		return p.cfg.APIKey, nil
	}
	return "", apperrors.New(apperrors.CodeProviderNotConfigured, "openai api key not configured")
}

// do 构造并发送上游请求，非 2xx 转换为上游错误
func (p *OpenAIProvider) do(ctx context.Context, req *Request, stream bool) (*http.Response, error) {
	apiKey, err := p.resolveAPIKey(req)
	if err != nil {
		return nil, err
	}

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	var messages []openaiMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	body := openaiRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
	if stream {
		// 要求上游在流末尾携带用量统计
		body.StreamOptions = &openaiStreamOptions{IncludeUsage: true}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "openai call failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, upstreamError(ProviderOpenAI, resp, func(raw []byte) string {
			var errResp openaiErrorResponse
			if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Message != "" {
				return errResp.Error.Message
			}
			return ""
		})
	}
	return resp, nil
}

// Generate 实现 Provider
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "openai.Generate")
	span.SetAttributes(attribute.String("llm.model", req.Model))
	defer span.End()

	resp, err := p.do(ctx, req, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	var parsed openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "failed to decode openai response")
	}

	var text string
	if len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}

	return &Result{
		Text:  text,
		Model: req.Model,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

// GenerateStream 实现 Provider
func (p *OpenAIProvider) GenerateStream(ctx context.Context, req *Request, emit func(text string)) (*Result, error) {
	ctx, span := tracer.Start(ctx, "openai.GenerateStream")
	span.SetAttributes(attribute.String("llm.model", req.Model))
	defer span.End()

	resp, err := p.do(ctx, req, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	var usage Usage
	err = relayFrames(ctx, resp.Body, func(payload []byte) error {
		var event openaiStreamEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}

		if len(event.Choices) > 0 && event.Choices[0].Delta.Content != "" {
			emit(event.Choices[0].Delta.Content)
		}
		if event.Usage != nil {
			usage.PromptTokens = event.Usage.PromptTokens
			usage.CompletionTokens = event.Usage.CompletionTokens
		}
		return nil
	})

	result := &Result{Model: req.Model, Usage: usage}

	if err != nil {
		// 客户端断开视为流结束，按已累计用量结算
		if ctx.Err() != nil {
			return result, nil
		}
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "openai stream failed")
	}
	return result, nil
}
