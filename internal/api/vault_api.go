package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/service"
	"github.com/r41nm4k3r/AutopassGui/internal/websocket"
)

// VaultAPI 密码槽API
type VaultAPI struct {
	service  service.VaultService
	notifier *websocket.StatusNotifier
	log      *zap.Logger
}

// NewVaultAPI 创建密码槽API
func NewVaultAPI(service service.VaultService, notifier *websocket.StatusNotifier, log *zap.Logger) *VaultAPI {
	return &VaultAPI{
		service:  service,
		notifier: notifier,
		log:      log,
	}
}

// ListSlots 列出全部密码槽
// @Summary 列出全部密码槽
// @Description 按槽位号顺序返回4个密码槽
// @Tags Vault
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/slots [get]
func (api *VaultAPI) ListSlots(c *gin.Context) {
	slots, err := api.service.ListSlots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  slots,
		"count": len(slots),
	})
}

// GetSlot 获取单个密码槽
// @Summary 获取单个密码槽
// @Tags Vault
// @Produce json
// @Param no path int true "槽位号(1-4)"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/slots/{no} [get]
func (api *VaultAPI) GetSlot(c *gin.Context) {
	no, ok := parseSlotNo(c)
	if !ok {
		return
	}

	slot, err := api.service.GetSlot(c.Request.Context(), no)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, slot)
}

// RenameSlot 修改槽位名称
// @Summary 修改槽位名称
// @Description 名称首尾空白会被去除，去除后不能为空
// @Tags Vault
// @Accept json
// @Produce json
// @Param no path int true "槽位号(1-4)"
// @Param request body RenameSlotRequest true "新名称"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/slots/{no}/label [put]
func (api *VaultAPI) RenameSlot(c *gin.Context) {
	no, ok := parseSlotNo(c)
	if !ok {
		return
	}

	var req RenameSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	slot, err := api.service.RenameSlot(c.Request.Context(), no, req.Label)
	if err != nil {
		respondError(c, err)
		return
	}

	respondMessage(c, "名称已更新", slot)
}

// SetSequence 修改槽位触发序列
// @Summary 修改槽位触发序列
// @Description 序列原样保存，包括空白字符，不能为空
// @Tags Vault
// @Accept json
// @Produce json
// @Param no path int true "槽位号(1-4)"
// @Param request body SetSequenceRequest true "新序列"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /api/v1/slots/{no}/sequence [put]
func (api *VaultAPI) SetSequence(c *gin.Context) {
	no, ok := parseSlotNo(c)
	if !ok {
		return
	}

	var req SetSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	slot, err := api.service.SetSequence(c.Request.Context(), no, req.Sequence)
	if err != nil {
		respondError(c, err)
		return
	}

	respondMessage(c, "序列已更新", slot)
}

// ResetSlots 恢复默认槽位配置
// @Summary 恢复默认槽位配置
// @Description 4个槽位全部重置为出厂名称和序列
// @Tags Vault
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/slots/reset [post]
func (api *VaultAPI) ResetSlots(c *gin.Context) {
	slots, err := api.service.ResetDefaults(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	api.notifier.NotifySlotsReset(slots)

	respondMessage(c, "已恢复默认配置", gin.H{"slots": slots})
}

// SendSlot 下发槽位序列
// @Summary 下发槽位序列
// @Description 向打字器发送槽位的触发序列并记录发送历史
// @Tags Vault
// @Produce json
// @Param no path int true "槽位号(1-4)"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/slots/{no}/send [post]
func (api *VaultAPI) SendSlot(c *gin.Context) {
	no, ok := parseSlotNo(c)
	if !ok {
		return
	}

	result, err := api.service.SendSlot(c.Request.Context(), no)
	if err != nil {
		respondError(c, err)
		return
	}

	api.notifier.NotifySendResult(result)

	respondOK(c, result)
}

// SendCustom 下发自定义命令
// @Summary 下发自定义命令
// @Description 命令内容原样发送，不做裁剪
// @Tags Vault
// @Accept json
// @Produce json
// @Param request body SendCommandRequest true "命令内容"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/commands/send [post]
func (api *VaultAPI) SendCustom(c *gin.Context) {
	var req SendCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := api.service.SendCustom(c.Request.Context(), req.Command)
	if err != nil {
		respondError(c, err)
		return
	}

	api.notifier.NotifySendResult(result)

	respondOK(c, result)
}

// parseSlotNo 解析路径中的槽位号
func parseSlotNo(c *gin.Context) (int, bool) {
	no, err := strconv.Atoi(c.Param("no"))
	if err != nil {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam, "槽位号必须是数字"))
		return 0, false
	}
	return no, true
}

// 请求和响应结构体
// 内容校验在服务层完成，空值要返回对应的业务错误码而不是参数错误

// RenameSlotRequest 修改名称请求
type RenameSlotRequest struct {
	Label string `json:"label"`
}

// SetSequenceRequest 修改序列请求
type SetSequenceRequest struct {
	Sequence string `json:"sequence"`
}

// SendCommandRequest 自定义命令请求
type SendCommandRequest struct {
	Command string `json:"command"`
}
