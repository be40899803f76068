package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quill-ai-api/internal/application/billing"
	"quill-ai-api/internal/application/generation"
	"quill-ai-api/internal/config"
	"quill-ai-api/internal/domain/entity"
	"quill-ai-api/internal/domain/repository"
	"quill-ai-api/internal/domain/service"
	"quill-ai-api/internal/infrastructure/llm"
	"quill-ai-api/internal/interfaces/http/dto"
	apperrors "quill-ai-api/pkg/errors"
)

type stubProvider struct {
	chunks []string
	usage  llm.Usage
}

func (p *stubProvider) Name() string { return llm.ProviderAnthropic }

func (p *stubProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	return &llm.Result{Text: strings.Join(p.chunks, ""), Model: req.Model, Usage: p.usage}, nil
}

func (p *stubProvider) GenerateStream(ctx context.Context, req *llm.Request, emit func(text string)) (*llm.Result, error) {
	for _, chunk := range p.chunks {
		emit(chunk)
	}
	return &llm.Result{Model: req.Model, Usage: p.usage}, nil
}

type stubResolver struct{ provider llm.Provider }

func (r *stubResolver) Resolve(model string) (llm.Provider, string, error) {
	if model == "" {
		model = "claude-opus-4-6"
	}
	return r.provider, model, nil
}

type stubAccounts struct{ balance int64 }

func (s *stubAccounts) Create(ctx context.Context, account *entity.Account) error { return nil }
func (s *stubAccounts) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	return &entity.Account{ID: id, Balance: s.balance}, nil
}
func (s *stubAccounts) GetBalance(ctx context.Context, id string) (int64, error) {
	return s.balance, nil
}
func (s *stubAccounts) DebitCredits(ctx context.Context, id string, credits int64) error { return nil }

type stubProjects struct{}

func (stubProjects) Create(ctx context.Context, project *entity.Project) error { return nil }
func (stubProjects) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	return nil, apperrors.New(apperrors.CodeProjectNotFound, "project not found")
}
func (stubProjects) ListByAccount(ctx context.Context, accountID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Project], error) {
	return repository.NewPagedResult[*entity.Project](nil, 0, pagination), nil
}

type stubChapters struct{}

func (stubChapters) Create(ctx context.Context, chapter *entity.Chapter) error { return nil }
func (stubChapters) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	return nil, apperrors.New(apperrors.CodeChapterNotFound, "chapter not found")
}
func (stubChapters) ListByProject(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Chapter], error) {
	return repository.NewPagedResult[*entity.Chapter](nil, 0, pagination), nil
}

type stubRecorder struct{}

func (stubRecorder) Record(ctx context.Context, in service.CreditDebit) error { return nil }

func newTestEngine(balance int64, provider llm.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)

	svc := generation.NewService(
		&stubResolver{provider: provider},
		billing.NewPricing(&config.BillingConfig{}),
		generation.NewInFlight(),
		&stubAccounts{balance: balance},
		stubProjects{},
		stubChapters{},
		stubRecorder{},
	)
	h := NewGenerationHandler(svc)

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set("account_id", "acc-1")
	})
	engine.POST("/v1/generate", h.Generate)
	engine.POST("/v1/generate/stream", h.GenerateStream)
	return engine
}

func TestGenerateEndpoint(t *testing.T) {
	t.Run("returns text and billing result", func(t *testing.T) {
		engine := newTestEngine(10, &stubProvider{
			chunks: []string{"Once upon ", "a time"},
			usage:  llm.Usage{PromptTokens: 500, CompletionTokens: 200},
		})

		req := httptest.NewRequest(http.MethodPost, "/v1/generate",
			strings.NewReader(`{"prompt":"write","action":"continue"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.Response[dto.GenerateResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Once upon a time", resp.Data.Text)
		assert.Equal(t, llm.ProviderAnthropic, resp.Data.Provider)
		assert.Equal(t, int64(2), resp.Data.Credits)
	})

	t.Run("missing prompt is a 400", func(t *testing.T) {
		engine := newTestEngine(10, &stubProvider{})

		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("zero balance is a 402", func(t *testing.T) {
		engine := newTestEngine(0, &stubProvider{})

		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"prompt":"write"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, string(apperrors.CodeInsufficientCredits), resp.Error.ErrorCode)
	})
}

// streamRecorder 在 ResponseRecorder 之上补齐 CloseNotify，
// gin 的 c.Stream 依赖该接口感知客户端断开
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{
		ResponseRecorder: httptest.NewRecorder(),
		closed:           make(chan bool, 1),
	}
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

// parseFrames 解析 SSE 响应体中的 data: 帧
func parseFrames(t *testing.T, body string) []dto.StreamFrame {
	t.Helper()

	var frames []dto.StreamFrame
	for _, line := range strings.Split(body, "\n") {
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var frame dto.StreamFrame
		require.NoError(t, json.Unmarshal([]byte(payload), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func TestGenerateStreamEndpoint(t *testing.T) {
	t.Run("text frames arrive in order and done frame carries billing", func(t *testing.T) {
		engine := newTestEngine(10, &stubProvider{
			chunks: []string{"Hello", " world"},
			usage:  llm.Usage{PromptTokens: 500, CompletionTokens: 200},
		})

		req := httptest.NewRequest(http.MethodPost, "/v1/generate/stream", strings.NewReader(`{"prompt":"write"}`))
		req.Header.Set("Content-Type", "application/json")
		w := newStreamRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		frames := parseFrames(t, w.Body.String())
		require.Len(t, frames, 3)

		assert.Equal(t, "text", frames[0].Type)
		assert.Equal(t, "Hello", frames[0].Text)
		assert.Equal(t, "text", frames[1].Type)
		assert.Equal(t, " world", frames[1].Text)

		done := frames[2]
		assert.Equal(t, "done", done.Type)
		assert.Equal(t, "claude-opus-4-6", done.Model)
		assert.Equal(t, 500, done.PromptTokens)
		assert.Equal(t, 200, done.CompletionTokens)
		assert.Equal(t, int64(2), done.Credits)
	})

	t.Run("pre-dispatch failure is reported as an error frame", func(t *testing.T) {
		engine := newTestEngine(0, &stubProvider{})

		req := httptest.NewRequest(http.MethodPost, "/v1/generate/stream", strings.NewReader(`{"prompt":"write"}`))
		req.Header.Set("Content-Type", "application/json")
		w := newStreamRecorder()
		engine.ServeHTTP(w, req)

		frames := parseFrames(t, w.Body.String())
		require.Len(t, frames, 1)
		assert.Equal(t, "error", frames[0].Type)
		assert.Equal(t, string(apperrors.CodeInsufficientCredits), frames[0].Code)
	})
}
