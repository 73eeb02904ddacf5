package service

import (
	"context"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/database"
	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
	"github.com/r41nm4k3r/AutopassGui/internal/repository"
	"github.com/r41nm4k3r/AutopassGui/internal/utils"
	"go.uber.org/zap"
)

// authService 操作员认证服务实现
type authService struct {
	cfg          *config.AuthConfig
	operatorRepo repository.OperatorRepository
	sessionRepo  repository.OperatorSessionRepository
	jwtManager   *utils.JWTManager
	log          *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(
	cfg *config.AuthConfig,
	operatorRepo repository.OperatorRepository,
	sessionRepo repository.OperatorSessionRepository,
	jwtManager *utils.JWTManager,
	log *zap.Logger,
) AuthService {
	return &authService{
		cfg:          cfg,
		operatorRepo: operatorRepo,
		sessionRepo:  sessionRepo,
		jwtManager:   jwtManager,
		log:          log,
	}
}

// Enabled 认证是否启用
func (s *authService) Enabled() bool {
	return s.cfg.Enabled
}

// EnsureBootstrap 确保初始操作员存在
// 仅在启用认证且数据库中没有任何操作员时按配置创建
func (s *authService) EnsureBootstrap(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}

	count, err := s.operatorRepo.Count(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "统计操作员失败")
	}
	if count > 0 {
		return nil
	}

	username := s.cfg.Bootstrap.Username
	password := s.cfg.Bootstrap.Password
	if username == "" || password == "" {
		s.log.Warn("Auth enabled but bootstrap operator not configured")
		return nil
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "密码加密失败")
	}

	operator := &models.Operator{
		Username: username,
		Password: hashed,
		Status:   "active",
	}
	if err := s.operatorRepo.Create(ctx, operator); err != nil {
		// 另一个进程先完成了初始化
		if database.IsUniqueViolation(err) {
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建初始操作员失败")
	}

	s.log.Info("Bootstrap operator created", zap.String("username", username))
	return nil
}

// Login 操作员登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if !s.cfg.Enabled {
		return nil, apperrors.New(apperrors.ErrUnavailable, "认证功能未启用")
	}

	operator, err := s.operatorRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		s.log.Warn("Login failed: operator not found", zap.String("username", req.Username))
		return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
	}

	if !operator.IsActive() {
		return nil, apperrors.New(apperrors.ErrOperatorDisabled)
	}

	valid, err := utils.VerifyPassword(req.Password, operator.Password)
	if err != nil || !valid {
		s.log.Warn("Login failed: invalid password", zap.String("username", req.Username))
		return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
	}

	sessionID, err := utils.GenerateSessionID()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成会话ID失败")
	}

	refreshToken, err := s.jwtManager.GenerateRefreshToken(operator.ID, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成刷新令牌失败")
	}

	session := &models.OperatorSession{
		OperatorID:   operator.ID,
		SessionID:    sessionID,
		RefreshToken: refreshToken,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		ExpireAt:     time.Now().Add(s.jwtManager.GetTokenExpiry("refresh")),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		s.log.Error("Failed to create session", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "创建会话失败")
	}

	if err := s.operatorRepo.UpdateLastLogin(ctx, operator.ID, req.IP); err != nil {
		s.log.Warn("Failed to update last login", zap.Error(err))
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(
		operator.ID, operator.Username, operator.Nickname, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成访问令牌失败")
	}

	s.log.Info("Operator logged in",
		zap.Uint("operatorID", operator.ID),
		zap.String("username", operator.Username))

	return &AuthResponse{
		Operator:     operator,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// RefreshToken 刷新令牌，旧刷新令牌轮换作废
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if !s.cfg.Enabled {
		return nil, apperrors.New(apperrors.ErrUnavailable, "认证功能未启用")
	}

	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTokenInvalid)
	}

	session, err := s.sessionRepo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "会话不存在或已过期")
	}
	if !session.IsValid() {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "会话已撤销")
	}

	operator, err := s.operatorRepo.FindByID(ctx, claims.OperatorID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "操作员不存在")
	}
	if !operator.IsActive() {
		return nil, apperrors.New(apperrors.ErrOperatorDisabled)
	}

	newRefreshToken, err := s.jwtManager.GenerateRefreshToken(operator.ID, session.SessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成刷新令牌失败")
	}

	expireAt := time.Now().Add(s.jwtManager.GetTokenExpiry("refresh"))
	if err := s.sessionRepo.UpdateRefreshToken(ctx, session.SessionID, newRefreshToken, expireAt); err != nil {
		s.log.Error("Failed to rotate refresh token", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "轮换刷新令牌失败")
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(
		operator.ID, operator.Username, operator.Nickname, session.SessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "生成访问令牌失败")
	}

	return &AuthResponse{
		Operator:     operator,
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// Logout 登出，撤销会话，重复登出为空操作
func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if !s.cfg.Enabled {
		return apperrors.New(apperrors.ErrUnavailable, "认证功能未启用")
	}

	if err := s.sessionRepo.Revoke(ctx, sessionID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "撤销会话失败")
	}

	s.log.Info("Operator logged out", zap.String("sessionID", sessionID))
	return nil
}

// ChangePassword 修改密码，成功后撤销该操作员的全部会话
func (s *authService) ChangePassword(ctx context.Context, operatorID uint, oldPassword, newPassword string) error {
	if !s.cfg.Enabled {
		return apperrors.New(apperrors.ErrUnavailable, "认证功能未启用")
	}

	if len(newPassword) < 6 {
		return apperrors.New(apperrors.ErrInvalidParam, "新密码长度至少6个字符")
	}

	operator, err := s.operatorRepo.FindByID(ctx, operatorID)
	if err != nil {
		return apperrors.New(apperrors.ErrNotFound, "操作员不存在")
	}

	valid, err := utils.VerifyPassword(oldPassword, operator.Password)
	if err != nil || !valid {
		return apperrors.New(apperrors.ErrPasswordWrong, "旧密码不正确")
	}

	hashed, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "密码加密失败")
	}

	if err := s.operatorRepo.UpdatePassword(ctx, operatorID, hashed); err != nil {
		s.log.Error("Failed to update password", zap.Error(err), zap.Uint("operatorID", operatorID))
		return apperrors.Wrap(err, apperrors.ErrDatabaseUpdate, "更新密码失败")
	}

	// 全部会话作废，持新旧令牌的客户端都需要重新登录
	if err := s.sessionRepo.RevokeByOperatorID(ctx, operatorID); err != nil {
		s.log.Warn("Failed to revoke sessions", zap.Error(err), zap.Uint("operatorID", operatorID))
	}

	s.log.Info("Password changed", zap.Uint("operatorID", operatorID))
	return nil
}

// ValidateSession 校验会话是否有效，认证中间件使用
func (s *authService) ValidateSession(ctx context.Context, sessionID string) (*models.OperatorSession, error) {
	session, err := s.sessionRepo.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "会话不存在或已过期")
	}
	if !session.IsValid() {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "会话已撤销")
	}
	return session, nil
}
