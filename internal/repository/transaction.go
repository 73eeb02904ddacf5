package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"gorm.io/gorm"
)

// TransactionManager 事务管理器接口
type TransactionManager interface {
	// Begin 开始事务
	Begin(ctx context.Context) (*Transaction, error)
	// BeginWithOptions 使用选项开始事务
	BeginWithOptions(ctx context.Context, opts *TxOptions) (*Transaction, error)
	// WithTransaction 在事务中执行函数
	WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error
	// WithTransactionOptions 使用选项在事务中执行函数
	WithTransactionOptions(ctx context.Context, opts *TxOptions, fn func(tx *Transaction) error) error
}

// TxOptions 事务选项
type TxOptions struct {
	// IsolationLevel 事务隔离级别
	IsolationLevel string
	// ReadOnly 是否只读事务
	ReadOnly bool
	// Timeout 事务超时时间（秒）
	Timeout int
}

// Transaction 事务包装器
type Transaction struct {
	tx         *gorm.DB
	ctx        context.Context
	committed  bool
	rolledback bool

	// 事务中的仓储实例
	passwordSlot    PasswordSlotRepository
	systemConfig    SystemConfigRepository
	operator        OperatorRepository
	operatorSession OperatorSessionRepository
}

// txManager 事务管理器实现
type txManager struct {
	db *gorm.DB
}

// NewTransactionManager 创建事务管理器
func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &txManager{db: db}
}

// Begin 开始事务
func (m *txManager) Begin(ctx context.Context) (*Transaction, error) {
	return m.BeginWithOptions(ctx, nil)
}

// BeginWithOptions 使用选项开始事务
func (m *txManager) BeginWithOptions(ctx context.Context, opts *TxOptions) (*Transaction, error) {
	tx := m.db.WithContext(ctx)

	// 开始事务
	tx = tx.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	// SQLite不支持SET TRANSACTION，隔离级别选项仅在MySQL/PostgreSQL下生效

	return &Transaction{
		tx:  tx,
		ctx: ctx,
	}, nil
}

// WithTransaction 在事务中执行函数
func (m *txManager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.WithTransactionOptions(ctx, nil, fn)
}

// WithTransactionOptions 使用选项在事务中执行函数
func (m *txManager) WithTransactionOptions(ctx context.Context, opts *TxOptions, fn func(tx *Transaction) error) error {
	tx, err := m.BeginWithOptions(ctx, opts)
	if err != nil {
		return err
	}

	// 确保事务被处理
	defer func() {
		if !tx.committed && !tx.rolledback {
			tx.Rollback()
		}
	}()

	// 执行业务逻辑
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	// 提交事务
	return tx.Commit()
}

// Commit 提交事务
func (t *Transaction) Commit() error {
	if t.committed {
		return fmt.Errorf("事务已提交")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Commit().Error; err != nil {
		return err
	}

	t.committed = true
	return nil
}

// Rollback 回滚事务
func (t *Transaction) Rollback() error {
	if t.committed {
		return fmt.Errorf("事务已提交，无法回滚")
	}
	if t.rolledback {
		return fmt.Errorf("事务已回滚")
	}

	if err := t.tx.Rollback().Error; err != nil {
		return err
	}

	t.rolledback = true
	return nil
}

// GetDB 获取事务中的数据库实例
func (t *Transaction) GetDB() *gorm.DB {
	return t.tx
}

// PasswordSlot 获取事务中的密码槽位仓储
func (t *Transaction) PasswordSlot() PasswordSlotRepository {
	if t.passwordSlot == nil {
		t.passwordSlot = &passwordSlotRepo{
			BaseRepo: &BaseRepo{db: t.tx},
		}
	}
	return t.passwordSlot
}

// SystemConfig 获取事务中的系统配置仓储
func (t *Transaction) SystemConfig() SystemConfigRepository {
	if t.systemConfig == nil {
		// 系统配置有缓存，事务中使用独立缓存避免污染全局缓存
		t.systemConfig = &systemConfigRepo{
			BaseRepo: &BaseRepo{db: t.tx},
			cache:    make(map[string]*models.SystemConfig),
		}
	}
	return t.systemConfig
}

// Operator 获取事务中的操作员仓储
func (t *Transaction) Operator() OperatorRepository {
	if t.operator == nil {
		t.operator = &operatorRepo{
			BaseRepo: &BaseRepo{db: t.tx},
		}
	}
	return t.operator
}

// OperatorSession 获取事务中的操作员会话仓储
func (t *Transaction) OperatorSession() OperatorSessionRepository {
	if t.operatorSession == nil {
		t.operatorSession = &operatorSessionRepo{
			BaseRepo: &BaseRepo{db: t.tx},
		}
	}
	return t.operatorSession
}

// SavePoint 创建保存点
func (t *Transaction) SavePoint(name string) error {
	return t.tx.SavePoint(name).Error
}

// RollbackToSavePoint 回滚到保存点
func (t *Transaction) RollbackToSavePoint(name string) error {
	return t.tx.RollbackTo(name).Error
}

// TransactionHelper 事务辅助函数
type TransactionHelper struct {
	manager TransactionManager
}

// NewTransactionHelper 创建事务辅助器
func NewTransactionHelper(manager TransactionManager) *TransactionHelper {
	return &TransactionHelper{manager: manager}
}

// ExecuteInTransaction 在事务中执行多个操作
func (h *TransactionHelper) ExecuteInTransaction(ctx context.Context, operations ...func(tx *Transaction) error) error {
	return h.manager.WithTransaction(ctx, func(tx *Transaction) error {
		for i, op := range operations {
			// 创建保存点
			savePoint := fmt.Sprintf("sp_%d", i)
			if err := tx.SavePoint(savePoint); err != nil {
				return err
			}

			// 执行操作
			if err := op(tx); err != nil {
				// 回滚到保存点
				tx.RollbackToSavePoint(savePoint)
				return err
			}
		}
		return nil
	})
}

// RunInReadOnlyTransaction 在只读事务中执行
func (h *TransactionHelper) RunInReadOnlyTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	opts := &TxOptions{
		ReadOnly: true,
	}
	return h.manager.WithTransactionOptions(ctx, opts, fn)
}

// RunWithRetry 带重试的事务执行
func (h *TransactionHelper) RunWithRetry(ctx context.Context, maxRetries int, fn func(tx *Transaction) error) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := h.manager.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}

		lastErr = err

		// 检查是否是可重试的错误（如死锁、数据库锁定）
		if !isRetryableError(err) {
			return err
		}
	}

	return fmt.Errorf("事务执行失败，已重试%d次: %w", maxRetries, lastErr)
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	errStr := err.Error()

	// SQLite锁定错误
	if strings.Contains(errStr, "database is locked") {
		return true
	}

	// MySQL死锁错误
	if strings.Contains(errStr, "Deadlock") {
		return true
	}

	// PostgreSQL死锁错误
	if strings.Contains(errStr, "deadlock detected") {
		return true
	}

	// 连接错误
	if strings.Contains(errStr, "connection") && strings.Contains(errStr, "timeout") {
		return true
	}

	return false
}

// 事务隔离级别常量
const (
	// IsolationLevelReadUncommitted 读未提交
	IsolationLevelReadUncommitted = "READ UNCOMMITTED"
	// IsolationLevelReadCommitted 读已提交
	IsolationLevelReadCommitted = "READ COMMITTED"
	// IsolationLevelRepeatableRead 可重复读
	IsolationLevelRepeatableRead = "REPEATABLE READ"
	// IsolationLevelSerializable 串行化
	IsolationLevelSerializable = "SERIALIZABLE"
)
