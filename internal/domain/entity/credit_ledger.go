// Package entity 定义领域实体
package entity

import "time"

// CreditLedgerEntry 积分扣费流水
type CreditLedgerEntry struct {
	ID               string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID        string    `json:"account_id" gorm:"type:uuid;index;not null"`
	// Action 调用方传入的业务动作标签（如 continue/rewrite/outline）
	Action           string    `json:"action,omitempty" gorm:"type:varchar(64)"`
	Credits          int64     `json:"credits" gorm:"not null;default:0"`
	Provider         string    `json:"provider" gorm:"type:varchar(32);not null"`
	Model            string    `json:"model" gorm:"type:varchar(64);not null"`
	ProjectID        *string   `json:"project_id,omitempty" gorm:"type:uuid;index"`
	ChapterID        *string   `json:"chapter_id,omitempty" gorm:"type:uuid;index"`
	TokensPrompt     int       `json:"tokens_prompt" gorm:"not null;default:0"`
	TokensCompletion int       `json:"tokens_completion" gorm:"not null;default:0"`
	DurationMs       int       `json:"duration_ms" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (CreditLedgerEntry) TableName() string {
	return "credit_ledger_entries"
}
