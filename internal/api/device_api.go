package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/r41nm4k3r/AutopassGui/internal/service"
)

// DeviceAPI 设备管理API
type DeviceAPI struct {
	service service.DeviceService
	log     *zap.Logger
}

// NewDeviceAPI 创建设备管理API
func NewDeviceAPI(service service.DeviceService, log *zap.Logger) *DeviceAPI {
	return &DeviceAPI{
		service: service,
		log:     log,
	}
}

// ListPorts 列出候选串口
// @Summary 列出候选串口
// @Description 按配置的模式扫描系统中存在的串口设备
// @Tags Device
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/device/ports [get]
func (api *DeviceAPI) ListPorts(c *gin.Context) {
	ports := api.service.ListPorts()

	c.JSON(http.StatusOK, gin.H{
		"data":  ports,
		"count": len(ports),
	})
}

// GetStatus 获取设备状态
// @Summary 获取设备状态
// @Description 返回连接状态、发送计数和最近一次连接的持久化信息
// @Tags Device
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/device/status [get]
func (api *DeviceAPI) GetStatus(c *gin.Context) {
	status := api.service.Status(c.Request.Context())
	respondOK(c, status)
}

// Connect 连接设备
// @Summary 连接设备
// @Description 打开指定串口，已连接时返回409
// @Tags Device
// @Accept json
// @Produce json
// @Param request body ConnectRequest true "连接参数"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /api/v1/device/connect [post]
func (api *DeviceAPI) Connect(c *gin.Context) {
	var req ConnectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	if err := api.service.Connect(c.Request.Context(), req.Port); err != nil {
		respondError(c, err)
		return
	}

	status := api.service.Status(c.Request.Context())
	respondMessage(c, "连接成功", status)
}

// Disconnect 断开设备连接
// @Summary 断开设备连接
// @Description 释放串口句柄，未连接时为空操作
// @Tags Device
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/device/disconnect [post]
func (api *DeviceAPI) Disconnect(c *gin.Context) {
	if err := api.service.Disconnect(); err != nil {
		respondError(c, err)
		return
	}

	respondMessage(c, "已断开连接", nil)
}

// 请求和响应结构体

// ConnectRequest 连接请求，端口为空时由服务层拒绝
type ConnectRequest struct {
	Port string `json:"port"`
}
