package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill-ai-api/internal/application/billing"
	"quill-ai-api/internal/config"
	"quill-ai-api/internal/domain/entity"
	"quill-ai-api/internal/domain/repository"
	"quill-ai-api/internal/domain/service"
	"quill-ai-api/internal/infrastructure/llm"
	apperrors "quill-ai-api/pkg/errors"
)

type fakeProvider struct {
	name       string
	result     *llm.Result
	err        error
	chunks     []string
	calls      int
	streamHook func()
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	p.calls++
	return p.result, p.err
}

func (p *fakeProvider) GenerateStream(ctx context.Context, req *llm.Request, emit func(text string)) (*llm.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	for _, chunk := range p.chunks {
		emit(chunk)
	}
	if p.streamHook != nil {
		p.streamHook()
	}
	return p.result, nil
}

type fakeResolver struct {
	provider llm.Provider
	model    string
	err      error
}

func (r *fakeResolver) Resolve(model string) (llm.Provider, string, error) {
	if r.err != nil {
		return nil, "", r.err
	}
	resolved := model
	if resolved == "" {
		resolved = r.model
	}
	return r.provider, resolved, nil
}

type accountRepoStub struct {
	balance int64
}

func (s *accountRepoStub) Create(ctx context.Context, account *entity.Account) error { return nil }
func (s *accountRepoStub) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return &entity.Account{ID: id, Balance: s.balance}, nil
}
func (s *accountRepoStub) GetBalance(ctx context.Context, id string) (int64, error) {
	return s.balance, nil
}
func (s *accountRepoStub) DebitCredits(ctx context.Context, id string, credits int64) error {
	s.balance -= credits
	if s.balance < 0 {
		s.balance = 0
	}
	return nil
}

type projectRepoStub struct {
	projects map[string]*entity.Project
}

func (s *projectRepoStub) Create(ctx context.Context, project *entity.Project) error { return nil }
func (s *projectRepoStub) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	if p, ok := s.projects[id]; ok {
		return p, nil
	}
	return nil, apperrors.New(apperrors.CodeProjectNotFound, "project not found")
}
func (s *projectRepoStub) ListByAccount(ctx context.Context, accountID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	return repository.NewPagedResult[*entity.Project](nil, 0, pagination), nil
}

type chapterRepoStub struct {
	chapters map[string]*entity.Chapter
}

func (s *chapterRepoStub) Create(ctx context.Context, chapter *entity.Chapter) error { return nil }
func (s *chapterRepoStub) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	if ch, ok := s.chapters[id]; ok {
		return ch, nil
	}
	return nil, apperrors.New(apperrors.CodeChapterNotFound, "chapter not found")
}
func (s *chapterRepoStub) ListByProject(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Chapter], error) {
	return repository.NewPagedResult[*entity.Chapter](nil, 0, pagination), nil
}

type recorderStub struct {
	debits []service.CreditDebit
	ctxs   []context.Context
	err    error
}

func (s *recorderStub) Record(ctx context.Context, in service.CreditDebit) error {
	s.ctxs = append(s.ctxs, ctx)
	if s.err != nil {
		return s.err
	}
	s.debits = append(s.debits, in)
	return nil
}

type serviceFixture struct {
	svc      *Service
	provider *fakeProvider
	accounts *accountRepoStub
	recorder *recorderStub
	inflight *InFlight
}

func newServiceFixture(balance int64, result *llm.Result) *serviceFixture {
	provider := &fakeProvider{
		name:   llm.ProviderAnthropic,
		result: result,
	}
	accounts := &accountRepoStub{balance: balance}
	recorder := &recorderStub{}
	inflight := NewInFlight()

	svc := NewService(
		&fakeResolver{provider: provider, model: "claude-opus-4-6"},
		billing.NewPricing(&config.BillingConfig{}),
		inflight,
		accounts,
		&projectRepoStub{projects: map[string]*entity.Project{
			"proj-1": {ID: "proj-1", AccountID: "acc-1"},
			"proj-2": {ID: "proj-2", AccountID: "acc-2"},
		}},
		&chapterRepoStub{chapters: map[string]*entity.Chapter{
			"chap-1": {ID: "chap-1", ProjectID: "proj-1"},
		}},
		recorder,
	)

	return &serviceFixture{
		svc:      svc,
		provider: provider,
		accounts: accounts,
		recorder: recorder,
		inflight: inflight,
	}
}

func TestServiceGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("successful generation bills accumulated usage", func(t *testing.T) {
		fx := newServiceFixture(10, &llm.Result{
			Text:  "generated text",
			Usage: llm.Usage{PromptTokens: 500, CompletionTokens: 200},
		})

		out, err := fx.svc.Generate(ctx, &Input{
			AccountID: "acc-1",
			Prompt:    "write something",
			Action:    "continue",
		})
		require.NoError(t, err)

		assert.Equal(t, "generated text", out.Text)
		assert.Equal(t, "claude-opus-4-6", out.Model)
		assert.Equal(t, llm.ProviderAnthropic, out.Provider)
		// 500*1 + 200*3 = 1100 加权 token -> 2 积分
		assert.Equal(t, int64(2), out.Credits)

		require.Len(t, fx.recorder.debits, 1)
		assert.Equal(t, int64(2), fx.recorder.debits[0].Credits)
		assert.Equal(t, "continue", fx.recorder.debits[0].Action)
	})

	t.Run("empty prompt is rejected before any upstream call", func(t *testing.T) {
		fx := newServiceFixture(10, nil)

		_, err := fx.svc.Generate(ctx, &Input{AccountID: "acc-1", Prompt: "   "})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeInvalidParam, appErr.Code)
		assert.Zero(t, fx.provider.calls)
	})

	t.Run("zero balance blocks generation without upstream call", func(t *testing.T) {
		fx := newServiceFixture(0, nil)

		_, err := fx.svc.Generate(ctx, &Input{AccountID: "acc-1", Prompt: "write"})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeInsufficientCredits, appErr.Code)
		assert.Zero(t, fx.provider.calls)
		assert.Empty(t, fx.recorder.debits)
	})

	t.Run("concurrent generation for the same account is rejected", func(t *testing.T) {
		fx := newServiceFixture(10, nil)
		require.True(t, fx.inflight.TryAcquire("acc-1"))

		_, err := fx.svc.Generate(ctx, &Input{AccountID: "acc-1", Prompt: "write"})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeGenerationBusy, appErr.Code)
		assert.Zero(t, fx.provider.calls)
	})

	t.Run("guard is released after completion", func(t *testing.T) {
		fx := newServiceFixture(10, &llm.Result{Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 10}})

		_, err := fx.svc.Generate(ctx, &Input{AccountID: "acc-1", Prompt: "write"})
		require.NoError(t, err)
		assert.Equal(t, 0, fx.inflight.Len())
	})

	t.Run("guard is released after provider failure", func(t *testing.T) {
		fx := newServiceFixture(10, nil)
		fx.provider.err = apperrors.New(apperrors.CodeUpstreamError, "upstream exploded")

		_, err := fx.svc.Generate(ctx, &Input{AccountID: "acc-1", Prompt: "write"})
		require.Error(t, err)
		assert.Equal(t, 0, fx.inflight.Len())
		assert.Empty(t, fx.recorder.debits)
	})

	t.Run("foreign project is forbidden", func(t *testing.T) {
		fx := newServiceFixture(10, nil)

		_, err := fx.svc.Generate(ctx, &Input{
			AccountID: "acc-1",
			Prompt:    "write",
			ProjectID: "proj-2",
		})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeForbidden, appErr.Code)
		assert.Zero(t, fx.provider.calls)
	})

	t.Run("chapter infers its project for ownership check", func(t *testing.T) {
		fx := newServiceFixture(10, &llm.Result{Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 10}})

		out, err := fx.svc.Generate(ctx, &Input{
			AccountID: "acc-1",
			Prompt:    "write",
			ChapterID: "chap-1",
		})
		require.NoError(t, err)
		assert.NotNil(t, out)

		require.Len(t, fx.recorder.debits, 1)
		assert.Equal(t, "proj-1", fx.recorder.debits[0].ProjectID)
		assert.Equal(t, "chap-1", fx.recorder.debits[0].ChapterID)
	})

	t.Run("chapter under mismatched project is forbidden", func(t *testing.T) {
		fx := newServiceFixture(10, nil)

		_, err := fx.svc.Generate(ctx, &Input{
			AccountID: "acc-1",
			Prompt:    "write",
			ProjectID: "proj-2",
			ChapterID: "chap-1",
		})
		require.Error(t, err)

		appErr := apperrors.AsAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperrors.CodeForbidden, appErr.Code)
	})

	t.Run("ledger failure does not fail the generation", func(t *testing.T) {
		fx := newServiceFixture(10, &llm.Result{
			Text:  "ok",
			Usage: llm.Usage{PromptTokens: 100, CompletionTokens: 100},
		})
		fx.recorder.err = assert.AnError

		out, err := fx.svc.Generate(ctx, &Input{AccountID: "acc-1", Prompt: "write"})
		require.NoError(t, err)
		assert.Equal(t, "ok", out.Text)
	})
}

func TestServiceGenerateStream(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks are forwarded in order and usage billed at the end", func(t *testing.T) {
		fx := newServiceFixture(10, &llm.Result{
			Usage: llm.Usage{PromptTokens: 500, CompletionTokens: 200},
		})
		fx.provider.chunks = []string{"Once ", "upon ", "a time"}

		var got []string
		out, err := fx.svc.GenerateStream(ctx, &Input{
			AccountID: "acc-1",
			Prompt:    "write",
		}, func(text string) {
			got = append(got, text)
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"Once ", "upon ", "a time"}, got)
		assert.Equal(t, int64(2), out.Credits)
		require.Len(t, fx.recorder.debits, 1)
		assert.Equal(t, int64(2), fx.recorder.debits[0].Credits)
	})

	t.Run("client disconnect mid-stream still bills accumulated usage", func(t *testing.T) {
		fx := newServiceFixture(10, &llm.Result{
			Text:  "partial",
			Usage: llm.Usage{PromptTokens: 500, CompletionTokens: 200},
		})
		fx.provider.chunks = []string{"partial"}

		// 适配器在客户端断开时返回已累计的结果，ctx 此时已取消
		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		fx.provider.streamHook = cancel

		out, err := fx.svc.GenerateStream(streamCtx, &Input{
			AccountID: "acc-1",
			Prompt:    "write",
		}, func(string) {})
		require.NoError(t, err)
		assert.Equal(t, int64(2), out.Credits)

		require.Len(t, fx.recorder.debits, 1)
		assert.Equal(t, int64(2), fx.recorder.debits[0].Credits)
		// 记账上下文必须脱离请求取消，否则事务无法开启、扣费丢失
		require.Len(t, fx.recorder.ctxs, 1)
		assert.NoError(t, fx.recorder.ctxs[0].Err())
	})
}
