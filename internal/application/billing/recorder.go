package billing

import (
	"context"
	"fmt"
	"strings"

	"quill-ai-api/internal/domain/entity"
	"quill-ai-api/internal/domain/repository"
	"quill-ai-api/internal/domain/service"
)

// BalanceInvalidator 记账后失效余额缓存
type BalanceInvalidator interface {
	InvalidateBalance(ctx context.Context, accountID string)
}

// Recorder 积分记账器：余额扣减与流水写入在同一事务内完成
type Recorder struct {
	txMgr    repository.Transactor
	accounts repository.AccountRepository
	ledger   repository.CreditLedgerRepository
	cache    BalanceInvalidator
}

// NewRecorder 创建记账器，cache 可为 nil
func NewRecorder(
	txMgr repository.Transactor,
	accounts repository.AccountRepository,
	ledger repository.CreditLedgerRepository,
	cache BalanceInvalidator,
) *Recorder {
	return &Recorder{
		txMgr:    txMgr,
		accounts: accounts,
		ledger:   ledger,
		cache:    cache,
	}
}

// Record 实现 service.CreditRecorder
func (r *Recorder) Record(ctx context.Context, in service.CreditDebit) error {
	accountID := strings.TrimSpace(in.AccountID)
	if accountID == "" {
		return fmt.Errorf("account id is required")
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 || in.Credits < 0 {
		return fmt.Errorf("invalid debit input")
	}

	entry := &entity.CreditLedgerEntry{
		AccountID:        accountID,
		Action:           strings.TrimSpace(in.Action),
		Credits:          in.Credits,
		Provider:         strings.TrimSpace(in.Provider),
		Model:            strings.TrimSpace(in.Model),
		TokensPrompt:     in.PromptTokens,
		TokensCompletion: in.CompletionTokens,
		DurationMs:       in.DurationMs,
	}
	if id := strings.TrimSpace(in.ProjectID); id != "" {
		entry.ProjectID = &id
	}
	if id := strings.TrimSpace(in.ChapterID); id != "" {
		entry.ChapterID = &id
	}

	err := r.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		if in.Credits > 0 {
			if err := r.accounts.DebitCredits(txCtx, accountID, in.Credits); err != nil {
				return err
			}
		}
		return r.ledger.Create(txCtx, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to record credit debit: %w", err)
	}

	if r.cache != nil {
		r.cache.InvalidateBalance(ctx, accountID)
	}
	return nil
}
