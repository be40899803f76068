// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"
	"time"

	"quill-ai-api/internal/domain/entity"
	"quill-ai-api/internal/domain/repository"
)

// CreditLedgerRepository 积分流水仓储实现
type CreditLedgerRepository struct {
	client *Client
}

// NewCreditLedgerRepository 创建积分流水仓储
func NewCreditLedgerRepository(client *Client) *CreditLedgerRepository {
	return &CreditLedgerRepository{client: client}
}

// Create 追加一条扣费流水
func (r *CreditLedgerRepository) Create(ctx context.Context, entry *entity.CreditLedgerEntry) error {
	ctx, span := tracer.Start(ctx, "postgres.CreditLedgerRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(entry).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

// ListByAccount 获取账户流水列表
func (r *CreditLedgerRepository) ListByAccount(ctx context.Context, accountID string, pagination repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditLedgerRepository.ListByAccount")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.CreditLedgerEntry{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	var entries []*entity.CreditLedgerEntry
	if err := db.Where("account_id = ?", accountID).
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&entries).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return repository.NewPagedResult(entries, total, pagination), nil
}

// GetCreditsUsed 统计区间内扣费积分总额
func (r *CreditLedgerRepository) GetCreditsUsed(ctx context.Context, accountID string, startInclusive, endExclusive time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.CreditLedgerRepository.GetCreditsUsed")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var total int64
	if err := db.Model(&entity.CreditLedgerEntry{}).
		Where("account_id = ? AND created_at >= ? AND created_at < ?", accountID, startInclusive, endExclusive).
		Select("COALESCE(SUM(credits),0)").
		Scan(&total).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to sum credits used: %w", err)
	}
	return total, nil
}
