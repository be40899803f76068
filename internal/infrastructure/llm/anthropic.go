package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"quill-ai-api/internal/config"
	apperrors "quill-ai-api/pkg/errors"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"

	// maxErrorBodySize 错误响应体读取上限
	maxErrorBodySize = 64 << 10
)

// AnthropicProvider Anthropic Messages API 适配器
type AnthropicProvider struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// NewAnthropicProvider 创建 Anthropic 适配器
func NewAnthropicProvider(cfg config.ProviderConfig) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	return &AnthropicProvider{
		cfg:    cfg,
		client: newHTTPClient(cfg),
	}
}

// Name 实现 Provider
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage anthropicUsage `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicStreamEvent 流式事件。Anthropic 按事件类型区分：
// content_block_delta 携带文本增量，message_start 携带输入 token 用量，
// message_delta 携带输出 token 用量。
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage anthropicUsage `json:"usage"`
	} `json:"message"`
	Usage anthropicUsage `json:"usage"`
}

// resolveAPIKey 调用方自带密钥优先，其次进程配置
func (p *AnthropicProvider) resolveAPIKey(req *Request) (string, error) {
	if req.APIKey != "" {
		return req.APIKey, nil
	}
	if p.cfg.APIKey != "" {
		return p.cfg.APIKey, nil
	}
	return "", apperrors.New(apperrors.CodeProviderNotConfigured, "anthropic api key not configured")
}

// do 构造并发送上游请求，非 2xx 转换为上游错误
func (p *AnthropicProvider) do(ctx context.Context, req *Request, stream bool) (*http.Response, error) {
	apiKey, err := p.resolveAPIKey(req)
	if err != nil {
		return nil, err
	}

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      req.SystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.Prompt},
		},
		Stream: stream,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "anthropic call failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, upstreamError(ProviderAnthropic, resp, func(raw []byte) string {
			var errResp anthropicErrorResponse
			if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Message != "" {
				return errResp.Error.Message
			}
			return ""
		})
	}
	return resp, nil
}

// Generate 实现 Provider
func (p *AnthropicProvider) Generate(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "anthropic.Generate")
	span.SetAttributes(attribute.String("llm.model", req.Model))
	defer span.End()

	resp, err := p.do(ctx, req, false)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "failed to decode anthropic response")
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &Result{
		Text:  text,
		Model: req.Model,
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
		},
	}, nil
}

// GenerateStream 实现 Provider
func (p *AnthropicProvider) GenerateStream(ctx context.Context, req *Request, emit func(text string)) (*Result, error) {
	ctx, span := tracer.Start(ctx, "anthropic.GenerateStream")
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
		var event anthropicStreamEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return err
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				emit(event.Delta.Text)
			}
		case "message_start":
			usage.PromptTokens = event.Message.Usage.InputTokens
		case "message_delta":
			// 输出 token 为累计值，直接覆盖
			usage.CompletionTokens = event.Usage.OutputTokens
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
		return nil, apperrors.Wrap(err, apperrors.CodeUpstreamError, "anthropic stream failed")
	}
	return result, nil
}

// upstreamError 将非 2xx 上游响应转换为携带状态码的应用错误
func upstreamError(provider string, resp *http.Response, parseMessage func(raw []byte) string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	message := parseMessage(raw)
	if message == "" {
		message = resp.Status
	}

	return apperrors.New(apperrors.CodeUpstreamError, fmt.Sprintf("%s: %s", provider, message)).
		WithStatus(resp.StatusCode)
}
