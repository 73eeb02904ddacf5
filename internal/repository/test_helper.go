package repository

import (
	"os"
	"testing"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// isCI 检查是否在CI环境中运行
func isCI() bool {
	// GitHub Actions 设置 CI=true
	// 其他CI系统也通常设置 CI 环境变量
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}

// SetupTestDB 为测试套件设置测试数据库
func SetupTestDB() *gorm.DB {
	// 使用内存数据库进行测试（更快，不需要文件系统，在所有环境中都能工作）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		// 密码槽位
		&models.PasswordSlot{},

		// 发送记录
		&models.SendLog{},

		// 操作员系统
		&models.Operator{},
		&models.OperatorSession{},

		// 系统管理
		&models.SystemConfig{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	// 关闭数据库连接
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// TestDB 创建测试数据库
func TestDB(t *testing.T) *gorm.DB {
	// 使用内存数据库，每个测试一个独立实例
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.PasswordSlot{},
		&models.SendLog{},
		&models.Operator{},
		&models.OperatorSession{},
		&models.SystemConfig{},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		CleanupTestDB(db)
	})

	return db
}

// SeedTestData 创建测试数据
func SeedTestData(t *testing.T, db *gorm.DB) {
	// 创建默认密码槽位
	slots := models.DefaultSlots()
	err := db.Create(&slots).Error
	require.NoError(t, err)

	// 创建测试操作员
	operators := []models.Operator{
		{
			Username: "testadmin",
			Nickname: "测试管理员",
			Password: "$argon2id$v=19$m=65536,t=3,p=2$dGVzdHNhbHQ$dGVzdGhhc2g",
			Status:   "active",
		},
		{
			Username: "testviewer",
			Nickname: "测试观察员",
			Password: "$argon2id$v=19$m=65536,t=3,p=2$dGVzdHNhbHQ$dGVzdGhhc2g",
			Status:   "disabled",
		},
	}
	err = db.Create(&operators).Error
	require.NoError(t, err)

	// 创建测试系统配置
	configs := []models.SystemConfig{
		{
			Key:         "system.version",
			Value:       "1.0.0",
			Type:        "string",
			Group:       "system",
			Description: "系统版本",
			IsPublic:    true,
		},
		{
			Key:         "vault.slot_count",
			Value:       "4",
			Type:        "int",
			Group:       "vault",
			Description: "密码槽位数量",
			IsPublic:    false,
		},
		{
			Key:         "history.retention_days",
			Value:       "30",
			Type:        "int",
			Group:       "history",
			Description: "发送记录保留天数",
			IsPublic:    false,
		},
	}
	err = db.Create(&configs).Error
	require.NoError(t, err)
}

// AssertPasswordSlot 验证密码槽位
func AssertPasswordSlot(t *testing.T, expected, actual *models.PasswordSlot) {
	assert.Equal(t, expected.SlotNo, actual.SlotNo)
	assert.Equal(t, expected.Label, actual.Label)
	assert.Equal(t, expected.Sequence, actual.Sequence)
}

// AssertSendLog 验证发送记录
func AssertSendLog(t *testing.T, expected, actual *models.SendLog) {
	assert.Equal(t, expected.Kind, actual.Kind)
	assert.Equal(t, expected.Command, actual.Command)
	assert.Equal(t, expected.Port, actual.Port)
	assert.Equal(t, expected.Success, actual.Success)
}

// AssertSystemConfig 验证系统配置
func AssertSystemConfig(t *testing.T, expected, actual *models.SystemConfig) {
	assert.Equal(t, expected.Key, actual.Key)
	assert.Equal(t, expected.Value, actual.Value)
	assert.Equal(t, expected.Type, actual.Type)
	assert.Equal(t, expected.Group, actual.Group)
}

// CreateTestSendLog 创建测试发送记录
func CreateTestSendLog(kind models.SendKind, slotNo *int, command, port string, success bool) *models.SendLog {
	log := &models.SendLog{
		TraceID:   "test_trace_" + time.Now().Format("20060102150405.000"),
		Kind:      kind,
		SlotNo:    slotNo,
		Command:   command,
		Port:      port,
		Success:   success,
		BytesSent: len(command) + 1,
		Duration:  5,
		Timestamp: time.Now().UnixMilli(),
	}
	if !success {
		log.ErrorMsg = "串口写入失败"
	}
	return log
}

// CreateTestOperatorSession 创建测试操作员会话
func CreateTestOperatorSession(operatorID uint, sessionID string) *models.OperatorSession {
	return &models.OperatorSession{
		OperatorID:   operatorID,
		SessionID:    sessionID,
		RefreshToken: "refresh_" + sessionID,
		IP:           "127.0.0.1",
		UserAgent:    "test-agent",
		ExpireAt:     time.Now().Add(24 * time.Hour),
	}
}
