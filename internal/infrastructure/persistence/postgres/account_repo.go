// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"fmt"

	"quill-ai-api/internal/domain/entity"
)

// AccountRepository 账户仓储实现
type AccountRepository struct {
	client *Client
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(client *Client) *AccountRepository {
	return &AccountRepository{client: client}
}

// Create 创建账户
func (r *AccountRepository) Create(ctx context.Context, account *entity.Account) error {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(account).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取账户
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var account entity.Account
	if err := db.First(&account, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// GetBalance 获取剩余积分余额
func (r *AccountRepository) GetBalance(ctx context.Context, id string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.GetBalance")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var balance int64
	if err := db.Model(&entity.Account{}).
		Where("id = ?", id).
		Select("balance").
		Scan(&balance).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get account balance: %w", err)
	}
	return balance, nil
}

// DebitCredits 扣减积分，余额下限在数据库侧钳制为 0
func (r *AccountRepository) DebitCredits(ctx context.Context, id string, credits int64) error {
	ctx, span := tracer.Start(ctx, "postgres.AccountRepository.DebitCredits")
	defer span.End()

	if credits <= 0 {
		return nil
	}

	db := getDB(ctx, r.client.db)
	result := db.Exec(
		"UPDATE accounts SET balance = GREATEST(balance - ?, 0), updated_at = NOW() WHERE id = ?",
		credits, id,
	)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to debit credits: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}
