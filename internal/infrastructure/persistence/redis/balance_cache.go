package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quill-ai-api/internal/domain/entity"
	"quill-ai-api/internal/domain/repository"
)

// balanceCacheTTL 余额缓存时长。余额在扣费提交后会被主动失效，
// TTL 只作为失效消息丢失时的兜底。
const balanceCacheTTL = 30 * time.Second

// AccountBalanceCache 账户仓储的余额缓存装饰器。
// 读余额走 Read-Through 缓存，写路径透传并使缓存失效。
type AccountBalanceCache struct {
	next  repository.AccountRepository
	cache *Cache
}

// NewAccountBalanceCache 创建余额缓存装饰器
func NewAccountBalanceCache(next repository.AccountRepository, cache *Cache) *AccountBalanceCache {
	return &AccountBalanceCache{
		next:  next,
		cache: cache,
	}
}

func balanceKey(accountID string) string {
	return fmt.Sprintf("account:balance:%s", accountID)
}

// Create 实现 AccountRepository
func (c *AccountBalanceCache) Create(ctx context.Context, account *entity.Account) error {
	return c.next.Create(ctx, account)
}

// GetByID 实现 AccountRepository
func (c *AccountBalanceCache) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return c.next.GetByID(ctx, id)
}

// GetBalance 实现 AccountRepository，余额经缓存读取
func (c *AccountBalanceCache) GetBalance(ctx context.Context, id string) (int64, error) {
	raw, err := c.cache.GetOrLoadSafe(ctx, balanceKey(id), balanceCacheTTL, func() (interface{}, error) {
		return c.next.GetBalance(ctx, id)
	})
	if err != nil {
		// 缓存不可用时直接回源
		return c.next.GetBalance(ctx, id)
	}

	var balance int64
	if err := json.Unmarshal(raw, &balance); err != nil {
		return c.next.GetBalance(ctx, id)
	}
	return balance, nil
}

// DebitCredits 实现 AccountRepository，扣减后使缓存失效
func (c *AccountBalanceCache) DebitCredits(ctx context.Context, id string, credits int64) error {
	if err := c.next.DebitCredits(ctx, id, credits); err != nil {
		return err
	}
	return c.cache.Delete(ctx, balanceKey(id))
}

// InvalidateBalance 主动使余额缓存失效（扣费事务提交后调用）。
// 失效失败由 TTL 兜底，不向调用方传播。
func (c *AccountBalanceCache) InvalidateBalance(ctx context.Context, accountID string) {
	_ = c.cache.Delete(ctx, balanceKey(accountID))
}
