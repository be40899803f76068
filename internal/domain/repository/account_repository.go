// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"quill-ai-api/internal/domain/entity"
)

// AccountRepository 账户仓储接口
type AccountRepository interface {
	// Create 创建账户
	Create(ctx context.Context, account *entity.Account) error

	// GetByID 根据 ID 获取账户
	GetByID(ctx context.Context, id string) (*entity.Account, error)

	// GetBalance 获取剩余积分余额
	GetBalance(ctx context.Context, id string) (int64, error)

	// DebitCredits 扣减积分，余额下限为 0
	DebitCredits(ctx context.Context, id string, credits int64) error
}
