package service

import (
	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/repository"
	"github.com/r41nm4k3r/AutopassGui/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Vault   VaultService
	Device  DeviceService
	SendLog *SendLogService
	Auth    AuthService

	jwtManager *utils.JWTManager
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, cfg *config.Config, device *hardware.DeviceManager, log *zap.Logger) *Services {
	// 初始化仓储
	repos := repository.NewManager(db)

	// 初始化JWT管理器
	jwtManager := utils.NewJWTManager(
		cfg.Auth.AccessSecret,
		cfg.Auth.RefreshSecret,
		cfg.Auth.AccessExpire,
		cfg.Auth.RefreshExpire,
	)

	// 初始化服务
	sendLogService := NewSendLogService(repos.SendLog(), &cfg.Vault.History)

	vaultService := NewVaultService(
		repos.PasswordSlot(),
		device,
		sendLogService,
		log,
	)

	deviceService := NewDeviceService(
		device,
		repository.NewDeviceStateHelper(repos.SystemConfig()),
		log,
	)

	authService := NewAuthService(
		&cfg.Auth,
		repos.Operator(),
		repos.OperatorSession(),
		jwtManager,
		log,
	)

	return &Services{
		Vault:      vaultService,
		Device:     deviceService,
		SendLog:    sendLogService,
		Auth:       authService,
		jwtManager: jwtManager,
	}
}

// JWT 获取JWT管理器，认证中间件使用
func (s *Services) JWT() *utils.JWTManager {
	return s.jwtManager
}

// Close 关闭服务集合，排空发送历史缓冲
func (s *Services) Close() {
	s.SendLog.Stop()
}
