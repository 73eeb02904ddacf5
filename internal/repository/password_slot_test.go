package repository

import (
	"context"
	"testing"

	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordSlotRepository_GetAll(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	// 获取所有槽位
	slots, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, slots, models.SlotCount)

	// 验证按槽位号排序且内容为默认值
	for i, slot := range slots {
		assert.Equal(t, i+1, slot.SlotNo)
		assert.Equal(t, models.DefaultLabel(i+1), slot.Label)
		assert.Equal(t, models.DefaultSequence(i+1), slot.Sequence)
	}
}

func TestPasswordSlotRepository_GetBySlotNo(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	// 获取存在的槽位
	slot, err := repo.GetBySlotNo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, slot.SlotNo)
	assert.Equal(t, "Send Password 2", slot.Label)
	assert.Equal(t, "password2", slot.Sequence)

	// 获取不存在的槽位
	slot, err = repo.GetBySlotNo(ctx, 99)
	assert.Error(t, err)
	assert.Nil(t, slot)
}

func TestPasswordSlotRepository_UpdateSlot(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	// 同时更新标签和触发序列
	slot, err := repo.UpdateSlot(ctx, 1, "主密码", "secret-trigger-1")
	require.NoError(t, err)
	assert.Equal(t, "主密码", slot.Label)
	assert.Equal(t, "secret-trigger-1", slot.Sequence)

	// 验证已持久化
	reloaded, err := repo.GetBySlotNo(ctx, 1)
	require.NoError(t, err)
	AssertPasswordSlot(t, slot, reloaded)

	// 其他槽位不受影响
	other, err := repo.GetBySlotNo(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "password2", other.Sequence)
}

func TestPasswordSlotRepository_UpdateLabel(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	err := repo.UpdateLabel(ctx, 3, "工作机密码")
	require.NoError(t, err)

	slot, err := repo.GetBySlotNo(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "工作机密码", slot.Label)
	// 序列保持不变
	assert.Equal(t, "password3", slot.Sequence)
}

func TestPasswordSlotRepository_UpdateSequence(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	err := repo.UpdateSequence(ctx, 4, "new-trigger")
	require.NoError(t, err)

	slot, err := repo.GetBySlotNo(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "new-trigger", slot.Sequence)
	// 标签保持不变
	assert.Equal(t, "Send Password 4", slot.Label)
}

func TestPasswordSlotRepository_ResetAll(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	// 修改所有槽位
	for i := 1; i <= models.SlotCount; i++ {
		_, err := repo.UpdateSlot(ctx, i, "自定义标签", "custom-seq")
		require.NoError(t, err)
	}

	// 重置为默认值
	err := repo.ResetAll(ctx)
	require.NoError(t, err)

	// 验证全部恢复默认
	slots, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, slots, models.SlotCount)
	for i, slot := range slots {
		assert.Equal(t, models.DefaultLabel(i+1), slot.Label)
		assert.Equal(t, models.DefaultSequence(i+1), slot.Sequence)
	}
}

func TestPasswordSlotRepository_EnsureDefaults(t *testing.T) {
	db := TestDB(t)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	// 空库时创建全部默认槽位
	err := repo.EnsureDefaults(ctx)
	require.NoError(t, err)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(models.SlotCount), count)

	// 修改一个槽位
	_, err = repo.UpdateSlot(ctx, 1, "已修改", "modified-seq")
	require.NoError(t, err)

	// 再次调用不覆盖已有数据
	err = repo.EnsureDefaults(ctx)
	require.NoError(t, err)

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(models.SlotCount), count)

	slot, err := repo.GetBySlotNo(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "已修改", slot.Label)
	assert.Equal(t, "modified-seq", slot.Sequence)
}

func TestPasswordSlotRepository_Count(t *testing.T) {
	db := TestDB(t)
	repo := NewPasswordSlotRepository(db)
	ctx := context.Background()

	// 空库
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// 填充默认槽位
	SeedTestData(t, db)
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(models.SlotCount), count)
}

func TestPasswordSlotRepository_SlotNoUnique(t *testing.T) {
	db := TestDB(t)
	SeedTestData(t, db)

	// 槽位号唯一索引生效
	dup := &models.PasswordSlot{
		SlotNo:   1,
		Label:    "重复槽位",
		Sequence: "dup",
	}
	err := db.Create(dup).Error
	assert.Error(t, err)
}
