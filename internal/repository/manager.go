package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 事务管理器
	txManager TransactionManager

	// 仓储实例（使用懒加载）
	passwordSlotOnce sync.Once
	passwordSlot     PasswordSlotRepository

	sendLogOnce sync.Once
	sendLog     *SendLogRepository

	systemConfigOnce sync.Once
	systemConfig     SystemConfigRepository

	operatorOnce sync.Once
	operator     OperatorRepository

	operatorSessionOnce sync.Once
	operatorSession     OperatorSessionRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:        db,
		txManager: NewTransactionManager(db),
	}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Transaction 获取事务管理器
func (m *Manager) Transaction() TransactionManager {
	return m.txManager
}

// PasswordSlot 获取密码槽位仓储
func (m *Manager) PasswordSlot() PasswordSlotRepository {
	m.passwordSlotOnce.Do(func() {
		m.passwordSlot = NewPasswordSlotRepository(m.db)
	})
	return m.passwordSlot
}

// SendLog 获取发送记录仓储
func (m *Manager) SendLog() *SendLogRepository {
	m.sendLogOnce.Do(func() {
		m.sendLog = NewSendLogRepository(m.db)
	})
	return m.sendLog
}

// SystemConfig 获取系统配置仓储
func (m *Manager) SystemConfig() SystemConfigRepository {
	m.systemConfigOnce.Do(func() {
		m.systemConfig = NewSystemConfigRepository(m.db)
	})
	return m.systemConfig
}

// Operator 获取操作员仓储
func (m *Manager) Operator() OperatorRepository {
	m.operatorOnce.Do(func() {
		m.operator = NewOperatorRepository(m.db)
	})
	return m.operator
}

// OperatorSession 获取操作员会话仓储
func (m *Manager) OperatorSession() OperatorSessionRepository {
	m.operatorSessionOnce.Do(func() {
		m.operatorSession = NewOperatorSessionRepository(m.db)
	})
	return m.operatorSession
}

// WithTransaction 在事务中执行操作
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	return m.txManager.WithTransaction(ctx, fn)
}

// WithReadOnlyTransaction 在只读事务中执行操作
func (m *Manager) WithReadOnlyTransaction(ctx context.Context, fn func(tx *Transaction) error) error {
	opts := &TxOptions{
		ReadOnly: true,
	}
	return m.txManager.WithTransactionOptions(ctx, opts, fn)
}

// RepositoryProvider 仓储提供者接口，用于依赖注入
type RepositoryProvider interface {
	GetManager() *Manager
	PasswordSlot() PasswordSlotRepository
	SendLog() *SendLogRepository
	SystemConfig() SystemConfigRepository
	Operator() OperatorRepository
}

// provider 仓储提供者实现
type provider struct {
	manager *Manager
}

// NewProvider 创建仓储提供者
func NewProvider(db *gorm.DB) RepositoryProvider {
	return &provider{
		manager: NewManager(db),
	}
}

// GetManager 获取仓储管理器
func (p *provider) GetManager() *Manager {
	return p.manager
}

// PasswordSlot 获取密码槽位仓储
func (p *provider) PasswordSlot() PasswordSlotRepository {
	return p.manager.PasswordSlot()
}

// SendLog 获取发送记录仓储
func (p *provider) SendLog() *SendLogRepository {
	return p.manager.SendLog()
}

// SystemConfig 获取系统配置仓储
func (p *provider) SystemConfig() SystemConfigRepository {
	return p.manager.SystemConfig()
}

// Operator 获取操作员仓储
func (p *provider) Operator() OperatorRepository {
	return p.manager.Operator()
}

// UnitOfWork 工作单元模式实现
type UnitOfWork struct {
	manager    *Manager
	operations []func(*Transaction) error
}

// NewUnitOfWork 创建工作单元
func NewUnitOfWork(manager *Manager) *UnitOfWork {
	return &UnitOfWork{
		manager:    manager,
		operations: make([]func(*Transaction) error, 0),
	}
}

// Register 注册操作
func (u *UnitOfWork) Register(op func(*Transaction) error) {
	u.operations = append(u.operations, op)
}

// Commit 提交所有操作
func (u *UnitOfWork) Commit(ctx context.Context) error {
	return u.manager.WithTransaction(ctx, func(tx *Transaction) error {
		for _, op := range u.operations {
			if err := op(tx); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear 清除所有操作
func (u *UnitOfWork) Clear() {
	u.operations = u.operations[:0]
}

// BatchOperator 批量操作器
type BatchOperator struct {
	manager *Manager
}

// NewBatchOperator 创建批量操作器
func NewBatchOperator(manager *Manager) *BatchOperator {
	return &BatchOperator{manager: manager}
}

// ResetVaultSlots 重置所有密码槽位（事务中）
func (b *BatchOperator) ResetVaultSlots(ctx context.Context) error {
	return b.manager.WithTransaction(ctx, func(tx *Transaction) error {
		return tx.PasswordSlot().ResetAll(ctx)
	})
}

// DisableOperator 禁用操作员并撤销其所有会话
func (b *BatchOperator) DisableOperator(ctx context.Context, operatorID uint) error {
	return b.manager.WithTransaction(ctx, func(tx *Transaction) error {
		if err := tx.Operator().UpdateStatus(ctx, operatorID, "disabled"); err != nil {
			return err
		}
		return tx.OperatorSession().RevokeByOperatorID(ctx, operatorID)
	})
}

// RefreshSystemConfig 刷新系统配置（事务中）
func (b *BatchOperator) RefreshSystemConfig(ctx context.Context) error {
	return b.manager.WithTransaction(ctx, func(tx *Transaction) error {
		return tx.SystemConfig().RefreshCache(ctx)
	})
}
