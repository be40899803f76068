// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"quill-ai-api/internal/domain/entity"
)

// CreditLedgerRepository 积分流水仓储接口
type CreditLedgerRepository interface {
	// Create 追加一条扣费流水
	Create(ctx context.Context, entry *entity.CreditLedgerEntry) error

	// ListByAccount 获取账户流水列表
	ListByAccount(ctx context.Context, accountID string, pagination Pagination) (*PagedResult[*entity.CreditLedgerEntry], error)

	// GetCreditsUsed 统计区间内扣费积分总额
	GetCreditsUsed(ctx context.Context, accountID string, startInclusive, endExclusive time.Time) (int64, error)
}
