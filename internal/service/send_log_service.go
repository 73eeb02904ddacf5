package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/r41nm4k3r/AutopassGui/internal/repository"
	"go.uber.org/zap"
)

// SendLogService 发送历史服务
// 发送路径只向缓冲通道投递，落库由后台协程批量完成
type SendLogService struct {
	repo          *repository.SendLogRepository
	logger        *zap.Logger
	retentionDays int
	batchSize     int
	flushInterval time.Duration

	mu       sync.Mutex
	buffer   []*models.SendLog
	bufferCh chan *models.SendLog
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSendLogService 创建发送历史服务
func NewSendLogService(repo *repository.SendLogRepository, cfg *config.HistoryConfig) *SendLogService {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	service := &SendLogService{
		repo:          repo,
		logger:        logger.GetModuleLogger("history"),
		retentionDays: cfg.RetentionDays,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		buffer:        make([]*models.SendLog, 0, batchSize),
		bufferCh:      make(chan *models.SendLog, bufferSize),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}

	// 启动后台写入协程
	go service.backgroundWriter()

	return service
}

// backgroundWriter 后台写入协程
func (s *SendLogService) backgroundWriter() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-s.bufferCh:
			s.mu.Lock()
			s.buffer = append(s.buffer, entry)
			// 攒够一批立即写入
			if len(s.buffer) >= s.batchSize {
				s.flushBuffer()
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.mu.Lock()
			s.flushBuffer()
			s.mu.Unlock()

		case <-s.stopCh:
			// 退出前排空通道并写入剩余记录
			s.mu.Lock()
			for {
				select {
				case entry := <-s.bufferCh:
					s.buffer = append(s.buffer, entry)
				default:
					s.flushBuffer()
					s.mu.Unlock()
					return
				}
			}
		}
	}
}

// flushBuffer 写入缓冲区的记录到数据库，调用方需持有锁
func (s *SendLogService) flushBuffer() {
	if len(s.buffer) == 0 {
		return
	}

	if err := s.repo.CreateBatch(s.buffer); err != nil {
		s.logger.Error("批量写入发送记录失败", zap.Error(err), zap.Int("count", len(s.buffer)))
	} else {
		s.logger.Debug("批量写入发送记录成功", zap.Int("count", len(s.buffer)))
	}

	// 清空缓冲区
	s.buffer = s.buffer[:0]
}

// Record 记录一次发送（异步写入，缓冲区满时丢弃并告警）
func (s *SendLogService) Record(entry *models.SendLog) {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}

	select {
	case s.bufferCh <- entry:
	default:
		s.logger.Warn("发送记录缓冲区满，丢弃记录",
			zap.String("kind", string(entry.Kind)),
			zap.String("command", entry.Command))
	}
}

// Flush 立即写入缓冲区中的记录
func (s *SendLogService) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		select {
		case entry := <-s.bufferCh:
			s.buffer = append(s.buffer, entry)
		default:
			s.flushBuffer()
			return
		}
	}
}

// Query 查询发送记录
func (s *SendLogService) Query(query *models.SendLogQuery) ([]*models.SendLog, int64, error) {
	return s.repo.Query(query)
}

// GetByTraceID 根据追踪ID查询
func (s *SendLogService) GetByTraceID(traceID string) ([]*models.SendLog, error) {
	return s.repo.GetByTraceID(traceID)
}

// GetStats 获取统计信息
func (s *SendLogService) GetStats(startTime, endTime *time.Time) (*models.SendLogStats, error) {
	return s.repo.GetStats(startTime, endTime)
}

// GetLatest 获取最新的发送记录
func (s *SendLogService) GetLatest(limit int, kind models.SendKind) ([]*models.SendLog, error) {
	return s.repo.GetLatest(limit, kind)
}

// GetErrorLogs 获取失败的发送记录
func (s *SendLogService) GetErrorLogs(limit int) ([]*models.SendLog, error) {
	return s.repo.GetErrorLogs(limit)
}

// CleanupBefore 删除指定时间之前的记录
func (s *SendLogService) CleanupBefore(before time.Time) (int64, error) {
	return s.repo.DeleteOldLogs(before)
}

// Cleanup 按配置的保留天数清理
func (s *SendLogService) Cleanup() (int64, error) {
	days := s.retentionDays
	if days <= 0 {
		days = 30
	}
	return s.repo.CleanupLogs(days)
}

// Export 导出记录为JSON格式
func (s *SendLogService) Export(query *models.SendLogQuery) ([]byte, error) {
	logs, _, err := s.Query(query)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(logs, "", "  ")
}

// Stop 停止服务，排空缓冲并等待后台协程退出
func (s *SendLogService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}
