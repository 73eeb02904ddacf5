package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/r41nm4k3r/AutopassGui/internal/repository"
	"go.uber.org/zap"
)

// vaultService 密码槽服务实现
type vaultService struct {
	slotRepo repository.PasswordSlotRepository
	device   *hardware.DeviceManager
	history  *SendLogService
	log      *zap.Logger
}

// NewVaultService 创建密码槽服务
func NewVaultService(
	slotRepo repository.PasswordSlotRepository,
	device *hardware.DeviceManager,
	history *SendLogService,
	log *zap.Logger,
) VaultService {
	return &vaultService{
		slotRepo: slotRepo,
		device:   device,
		history:  history,
		log:      log,
	}
}

// ListSlots 获取全部槽位
func (s *vaultService) ListSlots(ctx context.Context) ([]*models.PasswordSlot, error) {
	slots, err := s.slotRepo.GetAll(ctx)
	if err != nil {
		s.log.Error("Failed to list slots", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "获取密码槽失败")
	}
	return slots, nil
}

// GetSlot 获取指定槽位
func (s *vaultService) GetSlot(ctx context.Context, slotNo int) (*models.PasswordSlot, error) {
	if !models.IsValidSlotNo(slotNo) {
		return nil, apperrors.Newf(apperrors.ErrSlotNotFound, "槽位号超出范围: %d", slotNo)
	}

	slot, err := s.slotRepo.GetBySlotNo(ctx, slotNo)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSlotNotFound)
	}
	return slot, nil
}

// RenameSlot 修改槽位的按钮名称
func (s *vaultService) RenameSlot(ctx context.Context, slotNo int, label string) (*models.PasswordSlot, error) {
	if !models.IsValidSlotNo(slotNo) {
		return nil, apperrors.Newf(apperrors.ErrSlotNotFound, "槽位号超出范围: %d", slotNo)
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return nil, apperrors.New(apperrors.ErrLabelEmpty)
	}

	if err := s.slotRepo.UpdateLabel(ctx, slotNo, label); err != nil {
		s.log.Error("Failed to rename slot", zap.Error(err), zap.Int("slotNo", slotNo))
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新按钮名称失败")
	}

	s.log.Info("Slot renamed", zap.Int("slotNo", slotNo), zap.String("label", label))
	return s.GetSlot(ctx, slotNo)
}

// SetSequence 修改槽位的触发序列
// 序列按原样保存，只校验非空白
func (s *vaultService) SetSequence(ctx context.Context, slotNo int, sequence string) (*models.PasswordSlot, error) {
	if !models.IsValidSlotNo(slotNo) {
		return nil, apperrors.Newf(apperrors.ErrSlotNotFound, "槽位号超出范围: %d", slotNo)
	}

	if strings.TrimSpace(sequence) == "" {
		return nil, apperrors.New(apperrors.ErrSequenceEmpty)
	}

	if err := s.slotRepo.UpdateSequence(ctx, slotNo, sequence); err != nil {
		s.log.Error("Failed to set sequence", zap.Error(err), zap.Int("slotNo", slotNo))
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新触发序列失败")
	}

	s.log.Info("Slot sequence updated", zap.Int("slotNo", slotNo))
	return s.GetSlot(ctx, slotNo)
}

// ResetDefaults 恢复全部槽位为默认值，恢复前先断开设备
func (s *vaultService) ResetDefaults(ctx context.Context) ([]*models.PasswordSlot, error) {
	if s.device.IsConnected() {
		if err := s.device.Disconnect(); err != nil {
			s.log.Warn("Failed to disconnect device before reset", zap.Error(err))
		}
	}

	if err := s.slotRepo.ResetAll(ctx); err != nil {
		s.log.Error("Failed to reset slots", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "重置密码槽失败")
	}

	s.log.Info("Slots reset to defaults")
	return s.ListSlots(ctx)
}

// SendSlot 下发指定槽位的触发序列
func (s *vaultService) SendSlot(ctx context.Context, slotNo int) (*SendResult, error) {
	if !models.IsValidSlotNo(slotNo) {
		return nil, apperrors.Newf(apperrors.ErrSlotNotFound, "槽位号超出范围: %d", slotNo)
	}

	slot, err := s.slotRepo.GetBySlotNo(ctx, slotNo)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSlotNotFound)
	}

	return s.dispatch(ctx, models.SendKindSlot, &slotNo, slot.Sequence)
}

// SendCustom 下发自定义命令，内容按原样发送
func (s *vaultService) SendCustom(ctx context.Context, command string) (*SendResult, error) {
	if strings.TrimSpace(command) == "" {
		return nil, apperrors.New(apperrors.ErrCommandEmpty)
	}

	return s.dispatch(ctx, models.SendKindCustom, nil, command)
}

// dispatch 执行下发并记录发送历史，成功与失败各记一条
func (s *vaultService) dispatch(ctx context.Context, kind models.SendKind, slotNo *int, command string) (*SendResult, error) {
	traceID := uuid.New().String()
	port := s.device.Port()
	start := time.Now()

	err := s.device.SendCommand(ctx, command)
	duration := time.Since(start).Milliseconds()

	entry := &models.SendLog{
		TraceID:  traceID,
		Kind:     kind,
		SlotNo:   slotNo,
		Command:  command,
		Port:     port,
		Success:  err == nil,
		Duration: duration,
	}
	if err != nil {
		entry.ErrorMsg = err.Error()
	} else {
		// 实际写入为命令加换行符
		entry.BytesSent = len(command) + 1
	}
	s.history.Record(entry)

	if err != nil {
		return nil, err
	}

	result := &SendResult{
		TraceID:  traceID,
		Kind:     kind,
		Command:  command,
		Port:     port,
		Duration: duration,
		SentAt:   start,
	}
	if slotNo != nil {
		result.SlotNo = *slotNo
	}
	return result, nil
}
