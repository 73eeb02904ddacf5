package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/middleware"
	"github.com/r41nm4k3r/AutopassGui/internal/service"
	ws "github.com/r41nm4k3r/AutopassGui/internal/websocket"
)

// WebSocketHandler 状态推送通道处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	device   service.DeviceService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, device service.DeviceService, wsCfg *config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	readBuffer := wsCfg.ReadBufferSize
	if readBuffer <= 0 {
		readBuffer = 1024
	}
	writeBuffer := wsCfg.WriteBufferSize
	if writeBuffer <= 0 {
		writeBuffer = 1024
	}

	return &WebSocketHandler{
		hub:    hub,
		device: device,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    readBuffer,
			WriteBufferSize:   writeBuffer,
			EnableCompression: wsCfg.EnableCompression,
			CheckOrigin: func(r *http.Request) bool {
				// 本机守护进程，握手来源不做限制
				return true
			},
		},
		logger: logger,
	}
}

// Handle 建立状态推送连接
// 认证由路由上的中间件完成，浏览器客户端通过token查询参数携带令牌
func (h *WebSocketHandler) Handle(c *gin.Context) {
	operatorID, _ := middleware.GetOperatorID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("ip", c.ClientIP()),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, operatorID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	// 新连接先收到一份当前设备状态
	h.sendSnapshot(client)

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Uint("operator_id", operatorID),
		zap.String("ip", c.ClientIP()))
}

// sendSnapshot 推送设备状态快照给单个客户端
// 连接升级后请求上下文已不归HTTP服务器管理，使用独立上下文
func (h *WebSocketHandler) sendSnapshot(client *ws.Client) {
	status := h.device.Status(context.Background())
	if err := client.SendMessage(ws.MessageTypeDeviceStatus, status); err != nil {
		h.logger.Warn("推送初始状态失败",
			zap.String("client_id", client.ID),
			zap.Error(err))
	}
}

// OnlineCount 当前在线客户端数
func (h *WebSocketHandler) OnlineCount() int {
	return h.hub.GetOnlineCount()
}
