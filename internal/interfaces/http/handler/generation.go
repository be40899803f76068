// Package handler 提供 HTTP 请求处理器
package handler

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"quill-ai-api/internal/application/generation"
	"quill-ai-api/internal/interfaces/http/dto"
	apperrors "quill-ai-api/pkg/errors"
)

// GenerationHandler 文本生成处理器
type GenerationHandler struct {
	svc *generation.Service
}

// NewGenerationHandler 创建文本生成处理器
func NewGenerationHandler(svc *generation.Service) *GenerationHandler {
	return &GenerationHandler{svc: svc}
}

// toInput 请求转编排入参
func toInput(c *gin.Context, req *dto.GenerateRequest) *generation.Input {
	return &generation.Input{
		AccountID:    accountIDFromGin(c),
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
		ProjectID:    req.ProjectID,
		ChapterID:    req.ChapterID,
		Action:       req.Action,
		APIKey:       req.APIKey,
	}
}

// Generate 阻塞式文本生成
// @Summary 文本生成
// @Description 调用 LLM 生成文本，完成后一次性返回全文与计费结果
// @Tags Generation
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 {object} dto.Response[dto.GenerateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Router /v1/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	out, err := h.svc.Generate(ctx, toInput(c, &req))
	if err != nil {
		respondError(ctx, c, err)
		return
	}

	dto.Success(c, dto.GenerateResponse{
		Text:             out.Text,
		Model:            out.Model,
		Provider:         out.Provider,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
		Credits:          out.Credits,
	})
}

// GenerateStream 流式文本生成
// @Summary 流式文本生成
// @Description 调用 LLM 生成文本，通过 SSE 按片段推送，结束帧携带计费结果
// @Tags Generation
// @Accept json
// @Produce text/event-stream
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/generate/stream [post]
func (h *GenerationHandler) GenerateStream(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	frames := make(chan dto.StreamFrame, 16)

	go func() {
		defer close(frames)

		out, err := h.svc.GenerateStream(ctx, toInput(c, &req), func(text string) {
			select {
			case frames <- dto.StreamFrame{Type: "text", Text: text}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			frame := dto.StreamFrame{Type: "error", Message: "generation failed"}
			if appErr := apperrors.AsAppError(err); appErr != nil {
				frame.Code = string(appErr.Code)
				frame.Message = appErr.Message
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
			}
			return
		}

		select {
		case frames <- dto.StreamFrame{
			Type:             "done",
			Model:            out.Model,
			Provider:         out.Provider,
			PromptTokens:     out.PromptTokens,
			CompletionTokens: out.CompletionTokens,
			Credits:          out.Credits,
		}:
		case <-ctx.Done():
		}
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case frame, ok := <-frames:
			if !ok {
				return false
			}
			writeFrame(w, frame)
			// done 和 error 都是终结帧
			return frame.Type == "text"

		case <-ctx.Done():
			// 客户端断开，生成协程随上下文取消收敛
			return false
		}
	})
}

// writeFrame 按 data: <json> 格式写出单帧
func writeFrame(w io.Writer, frame dto.StreamFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
