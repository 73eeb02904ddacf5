package service

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/repository"
	"go.uber.org/zap"
)

// deviceService 设备服务实现
type deviceService struct {
	device *hardware.DeviceManager
	state  *repository.DeviceStateHelper
	log    *zap.Logger
}

// NewDeviceService 创建设备服务
func NewDeviceService(
	device *hardware.DeviceManager,
	state *repository.DeviceStateHelper,
	log *zap.Logger,
) DeviceService {
	return &deviceService{
		device: device,
		state:  state,
		log:    log,
	}
}

// ListPorts 扫描可用的串口设备
func (s *deviceService) ListPorts() []string {
	return s.device.ListPorts()
}

// Connect 连接指定端口并记录连接状态
func (s *deviceService) Connect(ctx context.Context, port string) error {
	if strings.TrimSpace(port) == "" {
		return apperrors.New(apperrors.ErrInvalidParam, "请先选择串口端口")
	}

	if err := s.device.Connect(ctx, port); err != nil {
		return err
	}

	// 持久化记录只影响统计，失败不回滚连接
	if err := s.state.SetLastPort(ctx, s.device.Port()); err != nil {
		s.log.Warn("Failed to persist last port", zap.Error(err))
	}
	if err := s.state.SetLastConnectAt(ctx, time.Now().Format(time.RFC3339)); err != nil {
		s.log.Warn("Failed to persist connect time", zap.Error(err))
	}
	if err := s.state.IncrTotalSessions(ctx); err != nil {
		s.log.Warn("Failed to update session counter", zap.Error(err))
	}

	return nil
}

// Disconnect 断开设备连接，未连接时为空操作
func (s *deviceService) Disconnect() error {
	return s.device.Disconnect()
}

// Status 设备状态，包含实时快照和持久化的累计信息
func (s *deviceService) Status(ctx context.Context) *DeviceStatus {
	return &DeviceStatus{
		DeviceSnapshot: s.device.Status(),
		LastPort:       s.state.GetLastPort(ctx),
		LastConnectAt:  s.state.GetLastConnectAt(ctx),
		TotalSessions:  s.state.GetTotalSessions(ctx),
	}
}
