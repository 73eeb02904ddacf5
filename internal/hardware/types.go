package hardware

import (
	"time"
)

// TyperConfig 打字器串口配置
type TyperConfig struct {
	Port        string        // 串口端口
	BaudRate    int           // 波特率
	ReadTimeout time.Duration // 读取超时
	BootDelay   time.Duration // 打开串口后等待板子复位的时间
}

// EventType 设备事件类型
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventSend         EventType = "send"
	EventLine         EventType = "line"
)

// Event 设备事件
type Event struct {
	Type      EventType `json:"type"`
	Port      string    `json:"port,omitempty"`
	Command   string    `json:"command,omitempty"`
	Line      string    `json:"line,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler 设备事件回调
type EventHandler func(event Event)

// DeviceSnapshot 设备状态快照
type DeviceSnapshot struct {
	Connected     bool       `json:"connected"`
	Mock          bool       `json:"mock"`
	Port          string     `json:"port,omitempty"`
	ConnectedAt   *time.Time `json:"connected_at,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	SendCount     uint64     `json:"send_count"`
	ErrorCount    uint64     `json:"error_count"`
	LastCommand   string     `json:"last_command,omitempty"`
	LastSendAt    *time.Time `json:"last_send_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}
