// Package dto 提供 HTTP 层数据传输对象
package dto

// GenerateRequest 文本生成请求
type GenerateRequest struct {
	Prompt       string   `json:"prompt" binding:"required"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty" binding:"gte=0"`
	Temperature  *float64 `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	ProjectID    string   `json:"project_id,omitempty"`
	ChapterID    string   `json:"chapter_id,omitempty"`
	Action       string   `json:"action,omitempty" binding:"max=64"`
	// APIKey 调用方自带密钥，仅用于本次请求
	APIKey string `json:"api_key,omitempty"`
}

// GenerateResponse 文本生成响应
type GenerateResponse struct {
	Text             string `json:"text"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Credits          int64  `json:"credits"`
}

// StreamFrame 流式生成的单帧负载
type StreamFrame struct {
	Type             string `json:"type"`
	Text             string `json:"text,omitempty"`
	Model            string `json:"model,omitempty"`
	Provider         string `json:"provider,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	Credits          int64  `json:"credits,omitempty"`
	Code             string `json:"code,omitempty"`
	Message          string `json:"message,omitempty"`
}
