package websocket

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
)

// StatusNotifier 把设备事件推送给所有WebSocket订阅者
// 连接状态变化和发送动作推送完整的设备快照，设备回显逐行推送
type StatusNotifier struct {
	hub    *Hub
	device *hardware.DeviceManager
	logger *zap.Logger
}

// NewStatusNotifier 创建状态推送器
func NewStatusNotifier(hub *Hub, device *hardware.DeviceManager, logger *zap.Logger) *StatusNotifier {
	return &StatusNotifier{
		hub:    hub,
		device: device,
		logger: logger,
	}
}

// Start 订阅设备事件
func (n *StatusNotifier) Start() {
	n.device.Subscribe(hardware.EventConnected, func(event hardware.Event) {
		n.NotifyDeviceStatus()
	})
	n.device.Subscribe(hardware.EventDisconnected, func(event hardware.Event) {
		n.NotifyDeviceStatus()
	})
	n.device.Subscribe(hardware.EventSend, func(event hardware.Event) {
		// 发送后计数器和最近命令已变化，刷新快照
		n.NotifyDeviceStatus()
	})
	n.device.Subscribe(hardware.EventLine, func(event hardware.Event) {
		n.notifyDeviceLine(event)
	})
}

// NotifyDeviceStatus 广播当前设备状态快照
func (n *StatusNotifier) NotifyDeviceStatus() {
	n.push(MessageTypeDeviceStatus, n.device.Status())
}

// NotifySendResult 广播一次发送的结果
func (n *StatusNotifier) NotifySendResult(result interface{}) {
	n.push(MessageTypeSendResult, result)
}

// NotifySlotsReset 广播槽位已恢复默认值
func (n *StatusNotifier) NotifySlotsReset(slots []*models.PasswordSlot) {
	n.push(MessageTypeSlotsReset, map[string]interface{}{
		"slots": slots,
	})
}

// notifyDeviceLine 推送设备回显行
func (n *StatusNotifier) notifyDeviceLine(event hardware.Event) {
	n.push(MessageTypeDeviceLine, map[string]interface{}{
		"port": event.Port,
		"line": event.Line,
	})
}

// push 序列化并广播
func (n *StatusNotifier) push(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("序列化推送消息失败",
			zap.String("type", msgType),
			zap.Error(err))
		return
	}

	n.hub.Broadcast(&Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
