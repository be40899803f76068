// Package handler 提供 HTTP 请求处理器
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"quill-ai-api/internal/domain/repository"
	"quill-ai-api/internal/interfaces/http/dto"
	"quill-ai-api/pkg/logger"
)

// AccountHandler 账户处理器
type AccountHandler struct {
	accountRepo repository.AccountRepository
	ledgerRepo  repository.CreditLedgerRepository
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(accountRepo repository.AccountRepository, ledgerRepo repository.CreditLedgerRepository) *AccountHandler {
	return &AccountHandler{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
	}
}

// GetBalance 获取积分余额
// @Summary 获取积分余额
// @Description 获取当前账户的剩余积分
// @Tags Account
// @Produce json
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/account/balance [get]
func (h *AccountHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()
	accountID := accountIDFromGin(c)

	balance, err := h.accountRepo.GetBalance(ctx, accountID)
	if err != nil {
		logger.Error(ctx, "failed to get balance", err, "account_id", accountID)
		dto.InternalError(c, "failed to get balance")
		return
	}

	dto.Success(c, dto.BalanceResponse{
		AccountID: accountID,
		Balance:   balance,
	})
}

// ListUsage 获取扣费流水
// @Summary 获取扣费流水
// @Description 按时间倒序分页返回当前账户的扣费流水
// @Tags Account
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]dto.LedgerEntryResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/account/usage [get]
func (h *AccountHandler) ListUsage(c *gin.Context) {
	ctx := c.Request.Context()
	accountID := accountIDFromGin(c)

	pageReq := dto.BindPage(c)

	result, err := h.ledgerRepo.ListByAccount(ctx, accountID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list usage", err, "account_id", accountID)
		dto.InternalError(c, "failed to list usage")
		return
	}

	resp := dto.ToLedgerEntryResponses(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// UsageSummaryResponse 用量汇总响应
type UsageSummaryResponse struct {
	AccountID   string    `json:"account_id"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	CreditsUsed int64     `json:"credits_used"`
}

// GetUsageSummary 获取区间用量汇总
// @Summary 获取区间用量汇总
// @Description 统计 [from, to) 区间内扣减的积分总额，默认最近 30 天
// @Tags Account
// @Produce json
// @Param from query string false "起始时间（RFC3339）"
// @Param to query string false "结束时间（RFC3339）"
// @Success 200 {object} dto.Response[UsageSummaryResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/account/usage/summary [get]
func (h *AccountHandler) GetUsageSummary(c *gin.Context) {
	ctx := c.Request.Context()
	accountID := accountIDFromGin(c)

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			dto.BadRequest(c, "invalid from: must be RFC3339")
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			dto.BadRequest(c, "invalid to: must be RFC3339")
			return
		}
		to = t
	}
	if !from.Before(to) {
		dto.BadRequest(c, "invalid range: from must be before to")
		return
	}

	used, err := h.ledgerRepo.GetCreditsUsed(ctx, accountID, from, to)
	if err != nil {
		logger.Error(ctx, "failed to summarize usage", err, "account_id", accountID)
		dto.InternalError(c, "failed to summarize usage")
		return
	}

	dto.Success(c, UsageSummaryResponse{
		AccountID:   accountID,
		From:        from,
		To:          to,
		CreditsUsed: used,
	})
}
