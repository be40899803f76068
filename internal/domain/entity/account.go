// Package entity 定义领域实体
package entity

import "time"

// AccountStatus 账户状态
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusDeleted   AccountStatus = "deleted"
)

// Account 账户实体
type Account struct {
	ID        string        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email     string        `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name      string        `json:"name" gorm:"type:varchar(255)"`
	// Balance 剩余积分余额
	Balance   int64         `json:"balance" gorm:"not null;default:0"`
	Status    AccountStatus `json:"status" gorm:"type:varchar(50);default:'active'"`
	CreatedAt time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "accounts"
}

// NewAccount 创建新账户
func NewAccount(email, name string) *Account {
	now := time.Now()
	return &Account{
		Email:     email,
		Name:      name,
		Status:    AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive 检查账户是否活跃
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
