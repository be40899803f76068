package service

import "context"

// CreditDebit 表示一次生成调用的可计费数据。
// 说明：该结构位于 domain/service，作为跨层的稳定契约（port），避免基础设施层依赖应用层实现。
type CreditDebit struct {
	AccountID string

	Action   string
	Provider string
	Model    string

	ProjectID string
	ChapterID string

	PromptTokens     int
	CompletionTokens int
	DurationMs       int

	Credits int64
}

// CreditRecorder 负责记账（扣减余额 + 流水落库）。
// 约定：余额扣减与流水写入必须在同一事务内完成。
type CreditRecorder interface {
	Record(ctx context.Context, in CreditDebit) error
}
