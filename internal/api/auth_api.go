package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/middleware"
	"github.com/r41nm4k3r/AutopassGui/internal/service"
)

// AuthAPI 操作员认证API
type AuthAPI struct {
	service service.AuthService
}

// NewAuthAPI 创建认证API
func NewAuthAPI(service service.AuthService) *AuthAPI {
	return &AuthAPI{
		service: service,
	}
}

// Login 操作员登录
// @Summary 操作员登录
// @Description 使用用户名和密码登录，返回访问令牌和刷新令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.LoginRequest true "登录信息"
// @Success 200 {object} service.AuthResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/v1/auth/login [post]
func (api *AuthAPI) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// 客户端信息用于会话审计
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	resp, err := api.service.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshToken 刷新访问令牌
// @Summary 刷新访问令牌
// @Description 使用刷新令牌换取新的令牌对，旧刷新令牌立即失效
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RefreshTokenRequest true "刷新令牌"
// @Success 200 {object} service.AuthResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (api *AuthAPI) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := api.service.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout 操作员登出
// @Summary 操作员登出
// @Description 撤销当前会话
// @Tags Auth
// @Security Bearer
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /api/v1/auth/logout [post]
func (api *AuthAPI) Logout(c *gin.Context) {
	sessionID, _ := middleware.GetSessionID(c)

	if err := api.service.Logout(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}

	respondMessage(c, "登出成功", nil)
}

// UpdatePassword 修改登录密码
// @Summary 修改登录密码
// @Description 修改成功后全部已登录会话失效，需要重新登录
// @Tags Auth
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body UpdatePasswordRequest true "密码信息"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/auth/password [post]
func (api *AuthAPI) UpdatePassword(c *gin.Context) {
	if !api.service.Enabled() {
		respondError(c, apperrors.New(apperrors.ErrUnavailable, "认证功能未启用"))
		return
	}

	operatorID, ok := middleware.GetOperatorID(c)
	if !ok {
		respondError(c, apperrors.New(apperrors.ErrAuthentication, "未登录"))
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := api.service.ChangePassword(c.Request.Context(), operatorID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	respondMessage(c, "密码修改成功，请重新登录", nil)
}

// 请求和响应结构体

// RefreshTokenRequest 刷新令牌请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// UpdatePasswordRequest 修改密码请求
type UpdatePasswordRequest struct {
	OldPassword     string `json:"old_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}
