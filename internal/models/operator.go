package models

import (
	"time"

	"gorm.io/gorm"
)

// Operator 操作员账号表
type Operator struct {
	BaseModel
	Username    string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Nickname    string     `gorm:"size:100" json:"nickname"`
	Password    string     `gorm:"size:255;not null" json:"-"` // argon2id哈希
	Status      string     `gorm:"size:20;default:'active'" json:"status"` // active, disabled
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP string     `gorm:"size:50" json:"last_login_ip"`

	// 关联
	Sessions []OperatorSession `gorm:"foreignKey:OperatorID" json:"-"`
}

// OperatorSession 操作员会话表
type OperatorSession struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	OperatorID   uint       `gorm:"index;not null" json:"operator_id"`
	SessionID    string     `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	RefreshToken string     `gorm:"uniqueIndex;size:512;not null" json:"-"`
	IP           string     `gorm:"size:50" json:"ip"`
	UserAgent    string     `gorm:"size:255" json:"user_agent"`
	ExpireAt     time.Time  `json:"expire_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName 指定Operator表名
func (Operator) TableName() string {
	return "operators"
}

// TableName 指定OperatorSession表名
func (OperatorSession) TableName() string {
	return "operator_sessions"
}

// BeforeCreate 创建前的钩子
func (o *Operator) BeforeCreate(tx *gorm.DB) error {
	if o.Nickname == "" {
		o.Nickname = o.Username
	}
	if o.Status == "" {
		o.Status = "active"
	}
	return nil
}

// IsActive 检查操作员是否可用
func (o *Operator) IsActive() bool {
	return o.Status == "active"
}

// UpdateLoginInfo 更新登录信息
func (o *Operator) UpdateLoginInfo(ip string) {
	now := time.Now()
	o.LastLoginAt = &now
	o.LastLoginIP = ip
}

// IsValid 检查会话是否有效
func (s *OperatorSession) IsValid() bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpireAt.After(time.Now())
}
