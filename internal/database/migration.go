package database

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件
	CleanupStaleLocks()

	// 获取迁移锁，避免多个进程同时迁移
	dbPath := getDBPath()
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	// 定义需要迁移的模型
	migrationModels := []interface{}{
		// 密码槽位相关
		&models.PasswordSlot{},

		// 发送记录相关
		&models.SendLog{},

		// 操作员相关
		&models.Operator{},
		&models.OperatorSession{},

		// 系统相关
		&models.SystemConfig{},
	}

	// 执行迁移
	logger.Info("开始数据库迁移...")

	// 设置 SQLite 专用配置，避免锁定问题
	if DB.Dialector.Name() == "sqlite" {
		// 禁用外键约束，避免重建表时的问题
		DB.Exec("PRAGMA foreign_keys = OFF")
		defer DB.Exec("PRAGMA foreign_keys = ON")
	}

	for _, model := range migrationModels {
		tableName := getTableName(model)

		// 检查表是否存在且有数据
		if shouldSkipMigration(tableName) {
			logger.Info("跳过大型表的迁移", zap.String("table", tableName))
			continue
		}

		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	// 创建索引
	if err := createIndexes(); err != nil {
		return err
	}

	// 初始化默认数据
	if err := initDefaultData(); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建数据库索引
func createIndexes() error {
	// 密码槽位表索引
	if err := DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_password_slots_slot_no ON password_slots(slot_no)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_password_slots_slot_no"), zap.Error(err))
	}

	// 发送记录表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_send_logs_kind ON send_logs(kind)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_send_logs_kind"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_send_logs_slot_no ON send_logs(slot_no)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_send_logs_slot_no"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_send_logs_port ON send_logs(port)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_send_logs_port"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_send_logs_success ON send_logs(success)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_send_logs_success"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_send_logs_trace_id ON send_logs(trace_id)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_send_logs_trace_id"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_send_logs_created_at ON send_logs(created_at)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_send_logs_created_at"), zap.Error(err))
	}

	// 操作员表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_operators_username ON operators(username)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_operators_username"), zap.Error(err))
	}

	// 操作员会话表索引
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_operator_sessions_operator_id ON operator_sessions(operator_id)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_operator_sessions_operator_id"), zap.Error(err))
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_operator_sessions_expire_at ON operator_sessions(expire_at)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_operator_sessions_expire_at"), zap.Error(err))
	}

	logger.Info("数据库索引创建完成")
	return nil
}

// initDefaultData 初始化默认数据
func initDefaultData() error {
	// 初始化默认密码槽位
	var slotCount int64
	DB.Model(&models.PasswordSlot{}).Count(&slotCount)
	if slotCount == 0 {
		for _, slot := range models.DefaultSlots() {
			if err := DB.Create(&slot).Error; err != nil {
				logger.Error("创建默认密码槽位失败",
					zap.Int("slot_no", slot.SlotNo),
					zap.Error(err),
				)
				return err
			}
		}
		logger.Info("默认密码槽位创建完成", zap.Int("count", models.SlotCount))
	}

	// 检查是否已有系统配置
	var count int64
	DB.Model(&models.SystemConfig{}).Count(&count)
	if count > 0 {
		return nil
	}

	// 创建默认系统配置
	defaultConfigs := []models.SystemConfig{
		{
			Key:         "system.version",
			Value:       "1.0.0",
			Description: "系统版本",
			Type:        "string",
		},
		{
			Key:         "vault.slot_count",
			Value:       fmt.Sprintf("%d", models.SlotCount),
			Description: "密码槽位数量",
			Type:        "int",
		},
		{
			Key:         "serial.default_baud",
			Value:       "9600",
			Description: "默认串口波特率",
			Type:        "int",
		},
		{
			Key:         "history.retention_days",
			Value:       "30",
			Description: "发送记录保留天数",
			Type:        "int",
		},
	}

	for _, config := range defaultConfigs {
		if err := DB.Create(&config).Error; err != nil {
			logger.Error("创建默认配置失败",
				zap.String("key", config.Key),
				zap.Error(err),
			)
		}
	}

	logger.Info("默认数据初始化完成")
	return nil
}

// getTableName 获取模型对应的表名
func getTableName(model interface{}) string {
	// 使用反射获取类型
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	// 尝试调用TableName方法
	if tabler, ok := model.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}

	// 否则使用GORM默认的表名规则
	modelName := t.Name()
	// 转换为蛇形命名并复数化
	tableName := toSnakeCase(modelName) + "s"
	return tableName
}

// toSnakeCase 将驼峰命名转换为蛇形命名
func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, r)
	}
	return strings.ToLower(string(result))
}

// shouldSkipMigration 检查是否应该跳过迁移
func shouldSkipMigration(tableName string) bool {
	// 对于send_logs这种大表，检查是否已存在且有大量数据
	if tableName == "send_logs" {
		var count int64
		var exists bool

		// 检查表是否存在
		err := DB.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name=?", tableName).Scan(&exists).Error
		if err != nil || !exists {
			return false
		}

		// 检查表中的数据量
		DB.Raw(fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&count)

		// 如果表存在且数据量超过10000条，跳过迁移
		if count > 10000 {
			logger.Info("表中数据量较大，跳过AutoMigrate",
				zap.String("table", tableName),
				zap.Int64("count", count))

			// 仅添加新的索引，不修改表结构
			ensureIndexesForLargeTable(tableName)
			return true
		}
	}
	return false
}

// ensureIndexesForLargeTable 为大表确保索引存在
func ensureIndexesForLargeTable(tableName string) {
	if tableName == "send_logs" {
		// 仅创建不存在的索引，避免重建表
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_send_logs_kind ON send_logs(kind)",
			"CREATE INDEX IF NOT EXISTS idx_send_logs_slot_no ON send_logs(slot_no)",
			"CREATE INDEX IF NOT EXISTS idx_send_logs_port ON send_logs(port)",
			"CREATE INDEX IF NOT EXISTS idx_send_logs_success ON send_logs(success)",
			"CREATE INDEX IF NOT EXISTS idx_send_logs_trace_id ON send_logs(trace_id)",
			"CREATE INDEX IF NOT EXISTS idx_send_logs_created_at ON send_logs(created_at)",
			"CREATE INDEX IF NOT EXISTS idx_send_logs_timestamp ON send_logs(timestamp)",
			"CREATE INDEX IF NOT EXISTS idx_send_logs_command ON send_logs(command)",
		}

		for _, idx := range indexes {
			if err := DB.Exec(idx).Error; err != nil {
				// 忽略索引已存在的错误
				if !strings.Contains(err.Error(), "already exists") {
					logger.Warn("创建索引失败", zap.String("index", idx), zap.Error(err))
				}
			}
		}
	}
}

// DropAllTables 删除所有表（仅用于测试环境）
func DropAllTables() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 获取所有表名
	var tables []string
	if err := DB.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tables).Error; err != nil {
		return err
	}

	// 删除所有表
	for _, table := range tables {
		if err := DB.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)).Error; err != nil {
			logger.Error("删除表失败", zap.String("table", table), zap.Error(err))
			return err
		}
	}

	logger.Info("所有表已删除")
	return nil
}
