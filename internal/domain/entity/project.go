// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusWriting   ProjectStatus = "writing"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// Project 小说项目实体
type Project struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID   string         `json:"account_id" gorm:"type:uuid;index;not null"`
	Title       string         `json:"title" gorm:"type:varchar(255);not null"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Genres      pq.StringArray `json:"genres,omitempty" gorm:"type:text[]"`
	Status      ProjectStatus  `json:"status" gorm:"type:varchar(50);default:'draft'"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// NewProject 创建新项目
func NewProject(accountID, title string) *Project {
	now := time.Now()
	return &Project{
		AccountID: accountID,
		Title:     title,
		Status:    ProjectStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedBy 检查项目归属
func (p *Project) OwnedBy(accountID string) bool {
	return p.AccountID == accountID
}
