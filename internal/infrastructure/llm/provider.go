// Package llm 提供 LLM 提供商适配层
package llm

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"quill-ai-api/internal/config"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("llm")

// 提供商名称
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// 未指定时的生成参数
const (
	defaultTemperature = 0.8
	defaultMaxTokens   = 4096
)

// Usage 一次调用的 token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Request 一次生成调用的入参，构造后不可变
type Request struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
	// APIKey 调用方自带密钥（BYOK），仅对本次调用生效，
	// 通过参数显式传递，绝不写入共享状态
	APIKey string
}

// Result 一次生成调用的结果
type Result struct {
	Text  string
	Model string
	Usage Usage
}

// Provider 屏蔽不同上游的请求/响应与流式帧差异
type Provider interface {
	Name() string

	// Generate 阻塞式生成
	Generate(ctx context.Context, req *Request) (*Result, error)

	// GenerateStream 流式生成，文本片段按到达顺序回调 emit，
	// 返回时携带流结束后累计的用量
	GenerateStream(ctx context.Context, req *Request, emit func(text string)) (*Result, error)
}

// Registry 按模型名将请求路由到对应的 Provider。
// 路由只在请求入口解析一次，避免前缀判断散落在各调用点。
type Registry struct {
	cfg       *config.LLMConfig
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry 创建 Provider 注册表
func NewRegistry(cfg *config.LLMConfig) *Registry {
	return &Registry{
		cfg:       cfg,
		providers: make(map[string]Provider),
	}
}

// Resolve 解析模型名，返回对应 Provider 与最终生效的模型名。
// 模型为空时使用配置的默认模型。
func (r *Registry) Resolve(model string) (Provider, string, error) {
	m := strings.TrimSpace(model)
	if m == "" {
		m = strings.TrimSpace(r.cfg.DefaultModel)
	}

	p, err := r.get(providerNameFor(m))
	if err != nil {
		return nil, "", err
	}
	return p, m, nil
}

// providerNameFor 根据模型名前缀选择提供商
func providerNameFor(model string) string {
	if strings.HasPrefix(model, "claude") {
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// get 获取指定名称的 Provider，惰性创建
func (r *Registry) get(name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// 再次检查防止竞态
	if p, ok = r.providers[name]; ok {
		return p, nil
	}

	// 凭证缺失在调用时才报错，BYOK 请求可不依赖进程配置
	providerCfg := r.cfg.Providers[name]

	switch name {
	case ProviderAnthropic:
		p = NewAnthropicProvider(providerCfg)
	default:
		p = NewOpenAIProvider(providerCfg)
	}

	r.providers[name] = p
	return p, nil
}

// newHTTPClient 按提供商配置创建 HTTP 客户端，超时为 0 表示不限制
func newHTTPClient(cfg config.ProviderConfig) *http.Client {
	return &http.Client{Timeout: cfg.Timeout}
}
