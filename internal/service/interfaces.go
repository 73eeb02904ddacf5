package service

import (
	"context"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
)

// VaultService 密码槽服务接口
type VaultService interface {
	// 槽位管理
	ListSlots(ctx context.Context) ([]*models.PasswordSlot, error)
	GetSlot(ctx context.Context, slotNo int) (*models.PasswordSlot, error)
	RenameSlot(ctx context.Context, slotNo int, label string) (*models.PasswordSlot, error)
	SetSequence(ctx context.Context, slotNo int, sequence string) (*models.PasswordSlot, error)
	ResetDefaults(ctx context.Context) ([]*models.PasswordSlot, error)

	// 命令下发
	SendSlot(ctx context.Context, slotNo int) (*SendResult, error)
	SendCustom(ctx context.Context, command string) (*SendResult, error)
}

// DeviceService 设备服务接口
type DeviceService interface {
	ListPorts() []string
	Connect(ctx context.Context, port string) error
	Disconnect() error
	Status(ctx context.Context) *DeviceStatus
}

// AuthService 操作员认证服务接口
type AuthService interface {
	// Enabled 认证是否启用，未启用时所有操作返回功能未启用错误
	Enabled() bool
	EnsureBootstrap(ctx context.Context) error

	// 登录登出
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, sessionID string) error

	// 密码与会话
	ChangePassword(ctx context.Context, operatorID uint, oldPassword, newPassword string) error
	ValidateSession(ctx context.Context, sessionID string) (*models.OperatorSession, error)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	IP        string `json:"-"` // 客户端IP，由handler设置
	UserAgent string `json:"-"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	Operator     *models.Operator `json:"operator"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int64            `json:"expires_in"`
	TokenType    string           `json:"token_type"`
}

// SendResult 一次命令下发的结果
type SendResult struct {
	TraceID  string          `json:"trace_id"`
	Kind     models.SendKind `json:"kind"`
	SlotNo   int             `json:"slot_no,omitempty"`
	Command  string          `json:"command"`
	Port     string          `json:"port"`
	Duration int64           `json:"duration_ms"`
	SentAt   time.Time       `json:"sent_at"`
}

// DeviceStatus 设备状态响应，在实时快照上附加持久化的累计信息
type DeviceStatus struct {
	*hardware.DeviceSnapshot
	LastPort      string `json:"last_port,omitempty"`
	LastConnectAt string `json:"last_connect_at,omitempty"`
	TotalSessions int    `json:"total_sessions"`
}
