package hardware

import (
	"context"
	"sync"

	"github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"go.uber.org/zap"
)

// MockTyper 模拟打字器（用于无硬件模式和测试）
type MockTyper struct {
	mu        sync.RWMutex
	logger    *zap.Logger
	port      string
	connected bool

	sent []string // 记录发送过的命令

	// 注入的故障
	connectErr error
	sendErr    error

	onLine       func(line string)
	onDisconnect func(err error)
}

// NewMockTyper 创建模拟打字器
func NewMockTyper(config *TyperConfig) *MockTyper {
	port := "mock"
	if config != nil && config.Port != "" {
		port = config.Port
	}
	return &MockTyper{
		port:   port,
		logger: logger.GetModuleLogger("hardware"),
	}
}

// Connect 模拟连接
func (m *MockTyper) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCanceled, "连接已取消")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return errors.New(errors.ErrAlreadyConnected, "串口已连接")
	}
	if m.connectErr != nil {
		return m.connectErr
	}

	m.connected = true
	m.logger.Info("模拟打字器已连接", zap.String("port", m.port))
	return nil
}

// Disconnect 模拟断开
func (m *MockTyper) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.connected = false
	m.logger.Info("模拟打字器已断开", zap.String("port", m.port))
	return nil
}

// IsConnected 检查连接状态
func (m *MockTyper) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Port 当前端口
func (m *MockTyper) Port() string {
	return m.port
}

// Send 模拟发送，记录命令
func (m *MockTyper) Send(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCanceled, "发送已取消")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return errors.New(errors.ErrNotConnected, "串口未连接")
	}
	if m.sendErr != nil {
		return m.sendErr
	}

	m.sent = append(m.sent, cmd)
	m.logger.Debug("模拟发送命令", zap.String("command", cmd))
	return nil
}

// SetOnLine 设置设备输出行回调
func (m *MockTyper) SetOnLine(fn func(line string)) {
	m.mu.Lock()
	m.onLine = fn
	m.mu.Unlock()
}

// SetOnDisconnect 设置意外断开回调
func (m *MockTyper) SetOnDisconnect(fn func(err error)) {
	m.mu.Lock()
	m.onDisconnect = fn
	m.mu.Unlock()
}

// SentCommands 返回已发送命令的副本
func (m *MockTyper) SentCommands() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastCommand 返回最后一条发送的命令
func (m *MockTyper) LastCommand() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

// FailConnect 注入连接故障
func (m *MockTyper) FailConnect(err error) {
	m.mu.Lock()
	m.connectErr = err
	m.mu.Unlock()
}

// FailSend 注入发送故障
func (m *MockTyper) FailSend(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// SimulateLine 模拟设备输出一行
func (m *MockTyper) SimulateLine(line string) {
	m.mu.RLock()
	cb := m.onLine
	m.mu.RUnlock()

	if cb != nil {
		cb(line)
	}
}

// SimulateDeviceLost 模拟设备意外断开
func (m *MockTyper) SimulateDeviceLost(err error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return
	}
	m.connected = false
	cb := m.onDisconnect
	m.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}
