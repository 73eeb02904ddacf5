package models

import (
	"time"

	"gorm.io/gorm"
)

// SendKind 发送类型
type SendKind string

const (
	SendKindSlot   SendKind = "slot"   // 密码槽触发
	SendKindCustom SendKind = "custom" // 自定义命令
	SendKindProbe  SendKind = "probe"  // 诊断探测
)

// SendLog 串口发送历史
type SendLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 基础信息
	TraceID string   `gorm:"type:varchar(64);index" json:"trace_id"`        // 追踪ID（用于关联API请求和推送）
	Kind    SendKind `gorm:"type:varchar(20);index;not null" json:"kind"`   // 发送类型 (slot/custom/probe)
	SlotNo  *int     `gorm:"index" json:"slot_no,omitempty"`                // 槽位号（仅slot类型）
	Command string   `gorm:"type:varchar(255);index" json:"command"`        // 下发内容（不含换行符）
	Port    string   `gorm:"type:varchar(100);index" json:"port"`           // 串口端口

	// 结果相关
	Success   bool   `gorm:"index" json:"success"`               // 是否发送成功
	ErrorMsg  string `gorm:"type:text" json:"error_msg,omitempty"` // 错误信息
	BytesSent int    `gorm:"default:0" json:"bytes_sent"`        // 实际写入字节数

	// 性能指标
	Duration  int64 `gorm:"default:0" json:"duration,omitempty"` // 处理时长（毫秒）
	Timestamp int64 `gorm:"index" json:"timestamp"`              // Unix时间戳（毫秒）

	// 额外信息
	Extra JSONMap `gorm:"type:json" json:"extra,omitempty"`
}

// TableName 指定表名
func (SendLog) TableName() string {
	return "send_logs"
}

// BeforeCreate 创建前的钩子
func (s *SendLog) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Timestamp == 0 {
		s.Timestamp = time.Now().UnixMilli()
	}
	return nil
}

// SendLogQuery 查询参数
type SendLogQuery struct {
	Kind      SendKind   `json:"kind,omitempty"`
	SlotNo    *int       `json:"slot_no,omitempty"`
	Port      string     `json:"port,omitempty"`
	Command   string     `json:"command,omitempty"`
	TraceID   string     `json:"trace_id,omitempty"`
	Success   *bool      `json:"success,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
	OrderBy   string     `json:"order_by,omitempty"`
}

// SendLogStats 统计信息
type SendLogStats struct {
	TotalCount  int64   `json:"total_count"`
	TotalSlot   int64   `json:"total_slot"`
	TotalCustom int64   `json:"total_custom"`
	TotalProbe  int64   `json:"total_probe"`
	TotalFailed int64   `json:"total_failed"`
	SuccessRate float64 `json:"success_rate"`
	AvgDuration float64 `json:"avg_duration"`
	MaxDuration int64   `json:"max_duration"`
	MinDuration int64   `json:"min_duration"`
}
