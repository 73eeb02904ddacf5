package repository

import (
	"context"
	"errors"

	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PasswordSlotRepository 密码槽位仓储接口
type PasswordSlotRepository interface {
	BaseRepository
	GetAll(ctx context.Context) ([]*models.PasswordSlot, error)
	GetBySlotNo(ctx context.Context, slotNo int) (*models.PasswordSlot, error)
	UpdateSlot(ctx context.Context, slotNo int, label, sequence string) (*models.PasswordSlot, error)
	UpdateLabel(ctx context.Context, slotNo int, label string) error
	UpdateSequence(ctx context.Context, slotNo int, sequence string) error
	ResetAll(ctx context.Context) error
	EnsureDefaults(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// passwordSlotRepo 密码槽位仓储实现
type passwordSlotRepo struct {
	*BaseRepo
}

// NewPasswordSlotRepository 创建密码槽位仓储
func NewPasswordSlotRepository(db *gorm.DB) PasswordSlotRepository {
	return &passwordSlotRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// GetAll 获取所有槽位（按槽位号排序）
func (r *passwordSlotRepo) GetAll(ctx context.Context) ([]*models.PasswordSlot, error) {
	var slots []*models.PasswordSlot
	err := r.db.WithContext(ctx).
		Order("slot_no ASC").
		Find(&slots).Error
	return slots, err
}

// GetBySlotNo 根据槽位号查找
func (r *passwordSlotRepo) GetBySlotNo(ctx context.Context, slotNo int) (*models.PasswordSlot, error) {
	var slot models.PasswordSlot
	err := r.db.WithContext(ctx).Where("slot_no = ?", slotNo).First(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("密码槽位不存在")
		}
		return nil, err
	}
	return &slot, nil
}

// UpdateSlot 更新槽位的标签和触发序列
func (r *passwordSlotRepo) UpdateSlot(ctx context.Context, slotNo int, label, sequence string) (*models.PasswordSlot, error) {
	err := r.db.WithContext(ctx).
		Model(&models.PasswordSlot{}).
		Where("slot_no = ?", slotNo).
		Updates(map[string]interface{}{
			"label":    label,
			"sequence": sequence,
		}).Error
	if err != nil {
		return nil, err
	}
	return r.GetBySlotNo(ctx, slotNo)
}

// UpdateLabel 更新槽位标签
func (r *passwordSlotRepo) UpdateLabel(ctx context.Context, slotNo int, label string) error {
	return r.db.WithContext(ctx).
		Model(&models.PasswordSlot{}).
		Where("slot_no = ?", slotNo).
		Update("label", label).Error
}

// UpdateSequence 更新槽位触发序列
func (r *passwordSlotRepo) UpdateSequence(ctx context.Context, slotNo int, sequence string) error {
	return r.db.WithContext(ctx).
		Model(&models.PasswordSlot{}).
		Where("slot_no = ?", slotNo).
		Update("sequence", sequence).Error
}

// ResetAll 重置所有槽位为默认值
func (r *passwordSlotRepo) ResetAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, slot := range models.DefaultSlots() {
			err := tx.Model(&models.PasswordSlot{}).
				Where("slot_no = ?", slot.SlotNo).
				Updates(map[string]interface{}{
					"label":    slot.Label,
					"sequence": slot.Sequence,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureDefaults 确保所有默认槽位存在（已存在的不覆盖）
func (r *passwordSlotRepo) EnsureDefaults(ctx context.Context) error {
	for _, slot := range models.DefaultSlots() {
		s := slot
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "slot_no"}},
				DoNothing: true,
			}).
			Create(&s).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Count 统计槽位数量
func (r *passwordSlotRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PasswordSlot{}).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *passwordSlotRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &passwordSlotRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
