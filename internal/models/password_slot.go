package models

import (
	"fmt"
	"time"
)

// SlotCount 密码槽固定数量
const SlotCount = 4

// PasswordSlot 密码槽表
// 每个槽位保存一个触发序列和用户可编辑的按钮名称，
// 实际密码保存在单片机固件内，这里只下发触发序列。
type PasswordSlot struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SlotNo    int       `gorm:"uniqueIndex;not null" json:"slot_no"`      // 槽位号 1..4
	Label     string    `gorm:"size:100;not null" json:"label"`           // 按钮名称
	Sequence  string    `gorm:"size:255;not null" json:"sequence"`        // 下发的触发序列
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (PasswordSlot) TableName() string {
	return "password_slots"
}

// DefaultLabel 返回槽位的默认按钮名称
func DefaultLabel(slotNo int) string {
	return fmt.Sprintf("Send Password %d", slotNo)
}

// DefaultSequence 返回槽位的默认触发序列
func DefaultSequence(slotNo int) string {
	return fmt.Sprintf("password%d", slotNo)
}

// DefaultSlots 返回全部默认槽位
func DefaultSlots() []PasswordSlot {
	slots := make([]PasswordSlot, 0, SlotCount)
	for i := 1; i <= SlotCount; i++ {
		slots = append(slots, PasswordSlot{
			SlotNo:   i,
			Label:    DefaultLabel(i),
			Sequence: DefaultSequence(i),
		})
	}
	return slots
}

// IsValidSlotNo 检查槽位号是否合法
func IsValidSlotNo(slotNo int) bool {
	return slotNo >= 1 && slotNo <= SlotCount
}
