// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"quill-ai-api/internal/domain/entity"
)

// BalanceResponse 账户余额响应
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// LedgerEntryResponse 扣费流水响应
type LedgerEntryResponse struct {
	ID               string    `json:"id"`
	Action           string    `json:"action,omitempty"`
	Credits          int64     `json:"credits"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	ProjectID        *string   `json:"project_id,omitempty"`
	ChapterID        *string   `json:"chapter_id,omitempty"`
	TokensPrompt     int       `json:"tokens_prompt"`
	TokensCompletion int       `json:"tokens_completion"`
	DurationMs       int       `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// ToLedgerEntryResponses 实体列表转响应列表
func ToLedgerEntryResponses(entries []*entity.CreditLedgerEntry) []*LedgerEntryResponse {
	out := make([]*LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, &LedgerEntryResponse{
			ID:               e.ID,
			Action:           e.Action,
			Credits:          e.Credits,
			Provider:         e.Provider,
			Model:            e.Model,
			ProjectID:        e.ProjectID,
			ChapterID:        e.ChapterID,
			TokensPrompt:     e.TokensPrompt,
			TokensCompletion: e.TokensCompletion,
			DurationMs:       e.DurationMs,
			CreatedAt:        e.CreatedAt,
		})
	}
	return out
}
