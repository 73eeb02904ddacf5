package repository

import (
	"context"
	"errors"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"gorm.io/gorm"
)

// OperatorRepository 操作员仓储接口
type OperatorRepository interface {
	BaseRepository
	Create(ctx context.Context, operator *models.Operator) error
	Update(ctx context.Context, operator *models.Operator) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.Operator, error)
	FindByUsername(ctx context.Context, username string) (*models.Operator, error)
	GetAll(ctx context.Context, pagination *Pagination) ([]*models.Operator, error)
	UpdateLastLogin(ctx context.Context, operatorID uint, ip string) error
	UpdatePassword(ctx context.Context, operatorID uint, hashedPassword string) error
	UpdateStatus(ctx context.Context, operatorID uint, status string) error
	Count(ctx context.Context) (int64, error)
}

// operatorRepo 操作员仓储实现
type operatorRepo struct {
	*BaseRepo
}

// NewOperatorRepository 创建操作员仓储
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建操作员
func (r *operatorRepo) Create(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

// Update 更新操作员
func (r *operatorRepo) Update(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Save(operator).Error
}

// Delete 删除操作员（软删除）
func (r *operatorRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Operator{}, id).Error
}

// FindByID 根据ID查找操作员
func (r *operatorRepo) FindByID(ctx context.Context, id uint) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).First(&operator, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("操作员不存在")
		}
		return nil, err
	}
	return &operator, nil
}

// FindByUsername 根据用户名查找
func (r *operatorRepo) FindByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&operator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("操作员不存在")
		}
		return nil, err
	}
	return &operator, nil
}

// GetAll 获取所有操作员（分页）
func (r *operatorRepo) GetAll(ctx context.Context, pagination *Pagination) ([]*models.Operator, error) {
	var operators []*models.Operator
	query := r.db.WithContext(ctx).Model(&models.Operator{})

	// 获取总数
	var total int64
	query.Count(&total)
	pagination.Total = total

	// 分页查询
	err := query.
		Limit(pagination.PageSize).
		Offset(pagination.Offset()).
		Order("created_at DESC").
		Find(&operators).Error

	return operators, err
}

// UpdateLastLogin 更新最后登录信息
func (r *operatorRepo) UpdateLastLogin(ctx context.Context, operatorID uint, ip string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"last_login_ip": ip,
		}).Error
}

// UpdatePassword 更新密码
func (r *operatorRepo) UpdatePassword(ctx context.Context, operatorID uint, hashedPassword string) error {
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Update("password", hashedPassword).Error
}

// UpdateStatus 更新操作员状态
func (r *operatorRepo) UpdateStatus(ctx context.Context, operatorID uint, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("id = ?", operatorID).
		Update("status", status).Error
}

// Count 统计操作员数量
func (r *operatorRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *operatorRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &operatorRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}

// OperatorSessionRepository 操作员会话仓储接口
type OperatorSessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *models.OperatorSession) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.OperatorSession, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (*models.OperatorSession, error)
	FindByOperatorID(ctx context.Context, operatorID uint) ([]*models.OperatorSession, error)
	UpdateRefreshToken(ctx context.Context, sessionID, refreshToken string, expireAt time.Time) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeByOperatorID(ctx context.Context, operatorID uint) error
	CleanupExpired(ctx context.Context) error
}

// operatorSessionRepo 操作员会话仓储实现
type operatorSessionRepo struct {
	*BaseRepo
}

// NewOperatorSessionRepository 创建操作员会话仓储
func NewOperatorSessionRepository(db *gorm.DB) OperatorSessionRepository {
	return &operatorSessionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建会话
func (r *operatorSessionRepo) Create(ctx context.Context, session *models.OperatorSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindBySessionID 根据会话ID查找
func (r *operatorSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.OperatorSession, error) {
	var session models.OperatorSession
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND expire_at > ?", sessionID, time.Now()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("会话不存在或已过期")
		}
		return nil, err
	}
	return &session, nil
}

// FindByRefreshToken 根据刷新令牌查找
func (r *operatorSessionRepo) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.OperatorSession, error) {
	var session models.OperatorSession
	err := r.db.WithContext(ctx).
		Where("refresh_token = ? AND expire_at > ?", refreshToken, time.Now()).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("会话不存在或已过期")
		}
		return nil, err
	}
	return &session, nil
}

// FindByOperatorID 查找操作员的所有有效会话
func (r *operatorSessionRepo) FindByOperatorID(ctx context.Context, operatorID uint) ([]*models.OperatorSession, error) {
	var sessions []*models.OperatorSession
	err := r.db.WithContext(ctx).
		Where("operator_id = ? AND expire_at > ? AND revoked_at IS NULL", operatorID, time.Now()).
		Find(&sessions).Error
	return sessions, err
}

// UpdateRefreshToken 轮换会话的刷新令牌
func (r *operatorSessionRepo) UpdateRefreshToken(ctx context.Context, sessionID, refreshToken string, expireAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OperatorSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"refresh_token": refreshToken,
			"expire_at":     expireAt,
		}).Error
}

// Revoke 撤销会话
func (r *operatorSessionRepo) Revoke(ctx context.Context, sessionID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.OperatorSession{}).
		Where("session_id = ?", sessionID).
		Update("revoked_at", now).Error
}

// RevokeByOperatorID 撤销操作员的所有会话
func (r *operatorSessionRepo) RevokeByOperatorID(ctx context.Context, operatorID uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.OperatorSession{}).
		Where("operator_id = ? AND revoked_at IS NULL", operatorID).
		Update("revoked_at", now).Error
}

// CleanupExpired 清理过期会话
func (r *operatorSessionRepo) CleanupExpired(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("expire_at < ?", time.Now()).
		Delete(&models.OperatorSession{}).Error
}

// WithTx 使用事务
func (r *operatorSessionRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &operatorSessionRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
