package generation

import (
	"context"
	"strings"
	"time"

	"quill-ai-api/internal/application/billing"
	"quill-ai-api/internal/domain/repository"
	"quill-ai-api/internal/domain/service"
	"quill-ai-api/internal/infrastructure/llm"
	apperrors "quill-ai-api/pkg/errors"
	"quill-ai-api/pkg/logger"
	"quill-ai-api/pkg/metrics"
)

// ProviderResolver 将模型名解析为 Provider（*llm.Registry 实现）
type ProviderResolver interface {
	Resolve(model string) (llm.Provider, string, error)
}

// Input 一次生成请求的入参
type Input struct {
	AccountID    string
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  *float64
	ProjectID    string
	ChapterID    string
	Action       string
	// APIKey 调用方自带密钥（BYOK）
	APIKey string
}

// Output 一次生成请求的结果
type Output struct {
	Text             string `json:"text"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Credits          int64  `json:"credits"`
}

// Service 生成编排器
type Service struct {
	resolver ProviderResolver
	pricing  *billing.Pricing
	inflight *InFlight
	accounts repository.AccountRepository
	projects repository.ProjectRepository
	chapters repository.ChapterRepository
	recorder service.CreditRecorder
}

// NewService 创建生成编排器
func NewService(
	resolver ProviderResolver,
	pricing *billing.Pricing,
	inflight *InFlight,
	accounts repository.AccountRepository,
	projects repository.ProjectRepository,
	chapters repository.ChapterRepository,
	recorder service.CreditRecorder,
) *Service {
	return &Service{
		resolver: resolver,
		pricing:  pricing,
		inflight: inflight,
		accounts: accounts,
		projects: projects,
		chapters: chapters,
		recorder: recorder,
	}
}

// Generate 阻塞式生成
func (s *Service) Generate(ctx context.Context, in *Input) (*Output, error) {
	return s.run(ctx, in, nil)
}

// GenerateStream 流式生成，文本片段按到达顺序回调 emit
func (s *Service) GenerateStream(ctx context.Context, in *Input, emit func(text string)) (*Output, error) {
	return s.run(ctx, in, emit)
}

// run 公共编排流程：校验 -> 归属检查 -> 余额检查 -> 单飞抢占 -> 派发 -> 计价 -> 记账
func (s *Service) run(ctx context.Context, in *Input, emit func(text string)) (*Output, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "prompt is required")
	}

	if err := s.checkOwnership(ctx, in); err != nil {
		return nil, err
	}

	// 余额检查必须在任何上游调用之前
	balance, err := s.accounts.GetBalance(ctx, in.AccountID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load account balance")
	}
	if balance <= 0 {
		return nil, apperrors.New(apperrors.CodeInsufficientCredits, "insufficient credits")
	}

	if !s.inflight.TryAcquire(in.AccountID) {
		return nil, apperrors.New(apperrors.CodeGenerationBusy, "another generation is in progress for this account")
	}
	// 释放必须覆盖所有退出路径，包括抢占之后的任何失败
	defer s.inflight.Release(in.AccountID)

	metrics.GenerationInFlight.Inc()
	defer metrics.GenerationInFlight.Dec()

	provider, model, err := s.resolver.Resolve(in.Model)
	if err != nil {
		return nil, err
	}

	req := &llm.Request{
		Prompt:       in.Prompt,
		SystemPrompt: in.SystemPrompt,
		Model:        model,
		MaxTokens:    in.MaxTokens,
		APIKey:       in.APIKey,
	}
	if in.Temperature != nil {
		req.Temperature = *in.Temperature
	}

	start := time.Now()

	var result *llm.Result
	if emit == nil {
		result, err = provider.Generate(ctx, req)
	} else {
		result, err = provider.GenerateStream(ctx, req, emit)
	}

	duration := time.Since(start)
	metrics.GenerationDuration.WithLabelValues(provider.Name(), model).Observe(duration.Seconds())

	if err != nil {
		metrics.GenerationTotal.WithLabelValues(provider.Name(), model, "error").Inc()
		return nil, err
	}
	metrics.GenerationTotal.WithLabelValues(provider.Name(), model, "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(provider.Name(), model, "prompt").Add(float64(result.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(provider.Name(), model, "completion").Add(float64(result.Usage.CompletionTokens))

	credits := s.pricing.Credits(result.Usage.PromptTokens, result.Usage.CompletionTokens, model)
	metrics.CreditsCharged.WithLabelValues(model, in.Action).Add(float64(credits))

	// 客户端断开不能豁免已产生的消耗：记账脱离请求取消，
	// 否则断流后 ctx 已取消，事务无法开启，扣费会丢失
	recordCtx := context.WithoutCancel(ctx)

	// 记账失败不回滚已完成的生成，只记录告警
	if err := s.recorder.Record(recordCtx, service.CreditDebit{
		AccountID:        in.AccountID,
		Action:           in.Action,
		Provider:         provider.Name(),
		Model:            model,
		ProjectID:        in.ProjectID,
		ChapterID:        in.ChapterID,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		DurationMs:       int(duration.Milliseconds()),
		Credits:          credits,
	}); err != nil {
		metrics.LedgerWriteErrors.Inc()
		logger.Error(recordCtx, "failed to record credit debit", err,
			"account_id", in.AccountID,
			"credits", credits,
		)
	}

	return &Output{
		Text:             result.Text,
		Model:            model,
		Provider:         provider.Name(),
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Credits:          credits,
	}, nil
}

// checkOwnership 校验引用的项目/章节归属于请求账户
func (s *Service) checkOwnership(ctx context.Context, in *Input) error {
	if in.ChapterID != "" {
		chapter, err := s.chapters.GetByID(ctx, in.ChapterID)
		if err != nil {
			return apperrors.New(apperrors.CodeChapterNotFound, "chapter not found").WithError(err)
		}
		if in.ProjectID == "" {
			in.ProjectID = chapter.ProjectID
		} else if chapter.ProjectID != in.ProjectID {
			return apperrors.New(apperrors.CodeForbidden, "chapter does not belong to project")
		}
	}

	if in.ProjectID != "" {
		project, err := s.projects.GetByID(ctx, in.ProjectID)
		if err != nil {
			return apperrors.New(apperrors.CodeProjectNotFound, "project not found").WithError(err)
		}
		if !project.OwnedBy(in.AccountID) {
			return apperrors.New(apperrors.CodeForbidden, "project is not owned by this account")
		}
	}
	return nil
}
