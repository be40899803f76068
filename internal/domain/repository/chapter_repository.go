// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"quill-ai-api/internal/domain/entity"
)

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// Create 创建章节
	Create(ctx context.Context, chapter *entity.Chapter) error

	// GetByID 根据 ID 获取章节
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// ListByProject 获取项目章节列表
	ListByProject(ctx context.Context, projectID string, pagination Pagination) (*PagedResult[*entity.Chapter], error)
}
