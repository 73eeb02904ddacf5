package repository

import (
	"fmt"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SendLogRepository 发送记录仓库
type SendLogRepository struct {
	db *gorm.DB
}

// NewSendLogRepository 创建发送记录仓库
func NewSendLogRepository(db *gorm.DB) *SendLogRepository {
	return &SendLogRepository{
		db: db,
	}
}

// Create 创建发送记录
func (r *SendLogRepository) Create(log *models.SendLog) error {
	return r.db.Create(log).Error
}

// CreateBatch 批量创建发送记录
func (r *SendLogRepository) CreateBatch(logs []*models.SendLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(logs, 100).Error
}

// GetByID 根据ID获取记录
func (r *SendLogRepository) GetByID(id uint) (*models.SendLog, error) {
	var log models.SendLog
	err := r.db.First(&log, id).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetByTraceID 根据追踪ID获取记录
func (r *SendLogRepository) GetByTraceID(traceID string) ([]*models.SendLog, error) {
	var logs []*models.SendLog
	err := r.db.Where("trace_id = ?", traceID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// Query 查询发送记录
func (r *SendLogRepository) Query(query *models.SendLogQuery) ([]*models.SendLog, int64, error) {
	db := r.db.Model(&models.SendLog{})

	// 构建查询条件
	if query.Kind != "" {
		db = db.Where("kind = ?", query.Kind)
	}
	if query.SlotNo != nil {
		db = db.Where("slot_no = ?", *query.SlotNo)
	}
	if query.Port != "" {
		db = db.Where("port = ?", query.Port)
	}
	if query.Command != "" {
		db = db.Where("command LIKE ?", "%"+query.Command+"%")
	}
	if query.TraceID != "" {
		db = db.Where("trace_id = ?", query.TraceID)
	}
	if query.Success != nil {
		db = db.Where("success = ?", *query.Success)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}

	// 获取总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 排序
	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	db = db.Order(orderBy)

	// 分页
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	// 查询数据
	var logs []*models.SendLog
	if err := db.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// GetStats 获取统计信息
func (r *SendLogRepository) GetStats(startTime, endTime *time.Time) (*models.SendLogStats, error) {
	stats := &models.SendLogStats{}

	// 时间范围过滤
	scoped := func() *gorm.DB {
		db := r.db.Model(&models.SendLog{})
		if startTime != nil {
			db = db.Where("created_at >= ?", *startTime)
		}
		if endTime != nil {
			db = db.Where("created_at <= ?", *endTime)
		}
		return db
	}

	// 总数统计
	if err := scoped().Count(&stats.TotalCount).Error; err != nil {
		return nil, err
	}

	// 分类统计
	if err := scoped().
		Where("kind = ?", models.SendKindSlot).
		Count(&stats.TotalSlot).Error; err != nil {
		return nil, err
	}
	if err := scoped().
		Where("kind = ?", models.SendKindCustom).
		Count(&stats.TotalCustom).Error; err != nil {
		return nil, err
	}
	if err := scoped().
		Where("kind = ?", models.SendKindProbe).
		Count(&stats.TotalProbe).Error; err != nil {
		return nil, err
	}

	// 失败统计
	if err := scoped().
		Where("success = ?", false).
		Count(&stats.TotalFailed).Error; err != nil {
		return nil, err
	}
	if stats.TotalCount > 0 {
		stats.SuccessRate = float64(stats.TotalCount-stats.TotalFailed) / float64(stats.TotalCount)
	}

	// 性能统计
	type DurationStats struct {
		AvgDuration float64
		MaxDuration int64
		MinDuration int64
	}
	var durationStats DurationStats
	if err := scoped().
		Select("AVG(duration) as avg_duration, MAX(duration) as max_duration, MIN(duration) as min_duration").
		Where("duration > 0").
		Scan(&durationStats).Error; err != nil {
		return nil, err
	}
	stats.AvgDuration = durationStats.AvgDuration
	stats.MaxDuration = durationStats.MaxDuration
	stats.MinDuration = durationStats.MinDuration

	return stats, nil
}

// GetLatest 获取最新的发送记录
func (r *SendLogRepository) GetLatest(limit int, kind models.SendKind) ([]*models.SendLog, error) {
	var logs []*models.SendLog
	db := r.db.Order("created_at DESC").Limit(limit)
	if kind != "" {
		db = db.Where("kind = ?", kind)
	}
	err := db.Find(&logs).Error
	return logs, err
}

// GetErrorLogs 获取失败的发送记录
func (r *SendLogRepository) GetErrorLogs(limit int) ([]*models.SendLog, error) {
	var logs []*models.SendLog
	err := r.db.Where("success = ?", false).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetBySlotNo 获取指定槽位的发送记录
func (r *SendLogRepository) GetBySlotNo(slotNo int, limit int) ([]*models.SendLog, error) {
	var logs []*models.SendLog
	err := r.db.Where("slot_no = ?", slotNo).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// DeleteOldLogs 删除旧记录
func (r *SendLogRepository) DeleteOldLogs(beforeTime time.Time) (int64, error) {
	result := r.db.Unscoped().
		Where("created_at < ?", beforeTime).
		Delete(&models.SendLog{})
	return result.RowsAffected, result.Error
}

// CleanupLogs 清理记录（保留最近N天的数据）
func (r *SendLogRepository) CleanupLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be greater than 0")
	}
	beforeTime := time.Now().AddDate(0, 0, -retentionDays)
	return r.DeleteOldLogs(beforeTime)
}

// BulkInsertWithConflict 批量插入（忽略冲突）
func (r *SendLogRepository) BulkInsertWithConflict(logs []*models.SendLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.Clauses(clause.OnConflict{
		DoNothing: true,
	}).CreateInBatches(logs, 100).Error
}
