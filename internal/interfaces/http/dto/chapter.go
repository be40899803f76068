// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"quill-ai-api/internal/domain/entity"
)

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID                 string                     `json:"id"`
	ProjectID          string                     `json:"project_id"`
	SeqNum             int                        `json:"seq_num"`
	Title              string                     `json:"title,omitempty"`
	ContentText        string                     `json:"content_text,omitempty"`
	WordCount          int                        `json:"word_count"`
	Status             string                     `json:"status"`
	GenerationMetadata *entity.GenerationMetadata `json:"generation_metadata,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
	UpdatedAt          time.Time                  `json:"updated_at"`
}

// ToChapterResponse 实体转响应
func ToChapterResponse(ch *entity.Chapter) *ChapterResponse {
	return &ChapterResponse{
		ID:                 ch.ID,
		ProjectID:          ch.ProjectID,
		SeqNum:             ch.SeqNum,
		Title:              ch.Title,
		ContentText:        ch.ContentText,
		WordCount:          ch.WordCount,
		Status:             string(ch.Status),
		GenerationMetadata: ch.GenerationMetadata,
		CreatedAt:          ch.CreatedAt,
		UpdatedAt:          ch.UpdatedAt,
	}
}

// ToChapterResponses 实体列表转响应列表
func ToChapterResponses(chapters []*entity.Chapter) []*ChapterResponse {
	out := make([]*ChapterResponse, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, ToChapterResponse(ch))
	}
	return out
}
