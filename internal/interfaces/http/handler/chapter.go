// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"quill-ai-api/internal/domain/entity"
	"quill-ai-api/internal/domain/repository"
	"quill-ai-api/internal/interfaces/http/dto"
	"quill-ai-api/pkg/logger"
)

// ChapterHandler 章节处理器
type ChapterHandler struct {
	chapterRepo repository.ChapterRepository
	projectRepo repository.ProjectRepository
}

// NewChapterHandler 创建章节处理器
func NewChapterHandler(chapterRepo repository.ChapterRepository, projectRepo repository.ProjectRepository) *ChapterHandler {
	return &ChapterHandler{
		chapterRepo: chapterRepo,
		projectRepo: projectRepo,
	}
}

// ownedProject 校验项目归属，越权与不存在同样返回 nil
func (h *ChapterHandler) ownedProject(c *gin.Context, projectID string) *entity.Project {
	project, err := h.projectRepo.GetByID(c.Request.Context(), projectID)
	if err != nil {
		return nil
	}
	if !project.OwnedBy(accountIDFromGin(c)) {
		return nil
	}
	return project
}

// ListChapters 获取章节列表
// @Summary 获取章节列表
// @Description 按序号升序分页返回项目章节
// @Tags Chapters
// @Produce json
// @Param pid path string true "项目 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]dto.ChapterResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters [get]
func (h *ChapterHandler) ListChapters(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	if h.ownedProject(c, projectID) == nil {
		dto.NotFound(c, "project not found")
		return
	}

	pageReq := dto.BindPage(c)

	result, err := h.chapterRepo.ListByProject(ctx, projectID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		logger.Error(ctx, "failed to list chapters", err, "project_id", projectID)
		dto.InternalError(c, "failed to list chapters")
		return
	}

	resp := dto.ToChapterResponses(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// GetChapter 获取章节详情
// @Summary 获取章节详情
// @Tags Chapters
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.ChapterResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid} [get]
func (h *ChapterHandler) GetChapter(c *gin.Context) {
	chapterID := dto.BindChapterID(c)

	chapter, err := h.chapterRepo.GetByID(c.Request.Context(), chapterID)
	if err != nil {
		dto.NotFound(c, "chapter not found")
		return
	}
	if h.ownedProject(c, chapter.ProjectID) == nil {
		dto.NotFound(c, "chapter not found")
		return
	}

	dto.Success(c, dto.ToChapterResponse(chapter))
}
