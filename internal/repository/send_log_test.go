package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendLogRepository_Create(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	slotNo := 1
	log := CreateTestSendLog(models.SendKindSlot, &slotNo, "password1", "/dev/ttyACM0", true)
	err := repo.Create(log)
	require.NoError(t, err)
	assert.NotZero(t, log.ID)

	// BeforeCreate 钩子补齐时间戳
	assert.False(t, log.CreatedAt.IsZero())
	assert.NotZero(t, log.Timestamp)

	// 读取验证
	loaded, err := repo.GetByID(log.ID)
	require.NoError(t, err)
	AssertSendLog(t, log, loaded)
	require.NotNil(t, loaded.SlotNo)
	assert.Equal(t, 1, *loaded.SlotNo)
}

func TestSendLogRepository_CreateBatch(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	// 空批次直接返回
	err := repo.CreateBatch(nil)
	require.NoError(t, err)

	logs := make([]*models.SendLog, 0, 250)
	for i := 0; i < 250; i++ {
		logs = append(logs, CreateTestSendLog(models.SendKindCustom, nil, fmt.Sprintf("cmd-%d", i), "/dev/ttyACM0", true))
	}
	err = repo.CreateBatch(logs)
	require.NoError(t, err)

	var count int64
	db.Model(&models.SendLog{}).Count(&count)
	assert.Equal(t, int64(250), count)
}

func TestSendLogRepository_GetByTraceID(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	log := CreateTestSendLog(models.SendKindCustom, nil, "hello", "/dev/ttyUSB0", true)
	log.TraceID = "trace-abc"
	require.NoError(t, repo.Create(log))

	other := CreateTestSendLog(models.SendKindCustom, nil, "world", "/dev/ttyUSB0", true)
	other.TraceID = "trace-xyz"
	require.NoError(t, repo.Create(other))

	logs, err := repo.GetByTraceID("trace-abc")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "hello", logs[0].Command)
}

func TestSendLogRepository_Query(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	// 准备数据：2条槽位发送（1成功1失败）、1条自定义命令
	slot1, slot2 := 1, 2
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot1, "password1", "/dev/ttyACM0", true)))
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot2, "password2", "/dev/ttyACM0", false)))
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindCustom, nil, "reboot", "/dev/ttyUSB0", true)))

	t.Run("ByKind", func(t *testing.T) {
		logs, total, err := repo.Query(&models.SendLogQuery{Kind: models.SendKindSlot})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, logs, 2)
	})

	t.Run("BySlotNo", func(t *testing.T) {
		logs, total, err := repo.Query(&models.SendLogQuery{SlotNo: &slot2})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, logs, 1)
		assert.Equal(t, "password2", logs[0].Command)
	})

	t.Run("BySuccess", func(t *testing.T) {
		failed := false
		logs, total, err := repo.Query(&models.SendLogQuery{Success: &failed})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, logs, 1)
		assert.False(t, logs[0].Success)
	})

	t.Run("ByPort", func(t *testing.T) {
		_, total, err := repo.Query(&models.SendLogQuery{Port: "/dev/ttyUSB0"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("ByCommandLike", func(t *testing.T) {
		_, total, err := repo.Query(&models.SendLogQuery{Command: "password"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
	})

	t.Run("WithLimit", func(t *testing.T) {
		logs, total, err := repo.Query(&models.SendLogQuery{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, logs, 2)
	})

	t.Run("TimeRange", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		_, total, err := repo.Query(&models.SendLogQuery{StartTime: &future})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
	})
}

func TestSendLogRepository_GetStats(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	slot1 := 1
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot1, "password1", "/dev/ttyACM0", true)))
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot1, "password1", "/dev/ttyACM0", false)))
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindCustom, nil, "status", "/dev/ttyACM0", true)))
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindProbe, nil, "ping", "/dev/ttyACM0", true)))

	stats, err := repo.GetStats(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalCount)
	assert.Equal(t, int64(2), stats.TotalSlot)
	assert.Equal(t, int64(1), stats.TotalCustom)
	assert.Equal(t, int64(1), stats.TotalProbe)
	assert.Equal(t, int64(1), stats.TotalFailed)
	assert.InDelta(t, 0.75, stats.SuccessRate, 0.001)
	assert.Greater(t, stats.AvgDuration, 0.0)

	// 未来时间范围内无数据
	future := time.Now().Add(time.Hour)
	stats, err = repo.GetStats(&future, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalCount)
}

func TestSendLogRepository_GetLatest(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	for i := 0; i < 5; i++ {
		log := CreateTestSendLog(models.SendKindCustom, nil, fmt.Sprintf("cmd-%d", i), "/dev/ttyACM0", true)
		log.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(log))
	}

	logs, err := repo.GetLatest(3, "")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	// 最新的在前
	assert.Equal(t, "cmd-4", logs[0].Command)

	// 按类型过滤
	logs, err = repo.GetLatest(10, models.SendKindSlot)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSendLogRepository_GetErrorLogs(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	slot1 := 1
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot1, "password1", "/dev/ttyACM0", true)))
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot1, "password1", "/dev/ttyACM0", false)))

	logs, err := repo.GetErrorLogs(10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.NotEmpty(t, logs[0].ErrorMsg)
}

func TestSendLogRepository_GetBySlotNo(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	slot1, slot3 := 1, 3
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot1, "password1", "/dev/ttyACM0", true)))
	require.NoError(t, repo.Create(CreateTestSendLog(models.SendKindSlot, &slot3, "password3", "/dev/ttyACM0", true)))

	logs, err := repo.GetBySlotNo(3, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "password3", logs[0].Command)
}

func TestSendLogRepository_DeleteOldLogs(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	// 一条旧记录、一条新记录
	oldLog := CreateTestSendLog(models.SendKindCustom, nil, "old", "/dev/ttyACM0", true)
	oldLog.CreatedAt = time.Now().AddDate(0, 0, -60)
	require.NoError(t, repo.Create(oldLog))

	newLog := CreateTestSendLog(models.SendKindCustom, nil, "new", "/dev/ttyACM0", true)
	require.NoError(t, repo.Create(newLog))

	// 删除30天前的记录
	deleted, err := repo.DeleteOldLogs(time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var count int64
	db.Model(&models.SendLog{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSendLogRepository_CleanupLogs(t *testing.T) {
	db := TestDB(t)
	repo := NewSendLogRepository(db)

	// 非法保留天数
	_, err := repo.CleanupLogs(0)
	assert.Error(t, err)

	oldLog := CreateTestSendLog(models.SendKindCustom, nil, "old", "/dev/ttyACM0", true)
	oldLog.CreatedAt = time.Now().AddDate(0, 0, -45)
	require.NoError(t, repo.Create(oldLog))

	deleted, err := repo.CleanupLogs(30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestSendLogRepository_BulkInsertWithConflict(t *testing.T) {
	if isCI() {
		t.Skip("跳过CI环境下的大批量写入测试")
	}

	db := TestDB(t)
	repo := NewSendLogRepository(db)

	logs := make([]*models.SendLog, 0, 500)
	for i := 0; i < 500; i++ {
		logs = append(logs, CreateTestSendLog(models.SendKindCustom, nil, fmt.Sprintf("bulk-%d", i), "/dev/ttyACM0", true))
	}
	err := repo.BulkInsertWithConflict(logs)
	require.NoError(t, err)

	var count int64
	db.Model(&models.SendLog{}).Count(&count)
	assert.Equal(t, int64(500), count)
}
