package hardware

import (
	"context"
	"sync"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"go.uber.org/zap"
)

// DeviceManager 设备管理器
// 持有唯一的活动打字器连接，对外提供连接管理、命令发送和事件订阅
type DeviceManager struct {
	mu     sync.RWMutex
	logger *zap.Logger

	cfg       *config.SerialConfig
	scanner   *PortScanner
	reconnect *ReconnectManager

	// newTyper 打字器工厂，模拟模式下替换为MockTyper
	newTyper func(cfg *TyperConfig) Typer

	typer       Typer
	port        string
	connecting  bool
	connectedAt time.Time

	sendCount   uint64
	errorCount  uint64
	lastCommand string
	lastSendAt  time.Time
	lastError   string

	handlerMu sync.RWMutex
	handlers  map[EventType][]EventHandler
}

// NewDeviceManager 创建设备管理器
func NewDeviceManager(cfg *config.SerialConfig) *DeviceManager {
	m := &DeviceManager{
		logger:   logger.GetModuleLogger("hardware"),
		cfg:      cfg,
		scanner:  NewPortScanner(cfg.PortPatterns, cfg.MaxPortIndex),
		handlers: make(map[EventType][]EventHandler),
	}

	if cfg.MockMode {
		m.newTyper = func(tc *TyperConfig) Typer { return NewMockTyper(tc) }
	} else {
		m.newTyper = func(tc *TyperConfig) Typer { return NewSerialTyper(tc) }
	}

	if cfg.Reconnect.Enabled {
		m.reconnect = NewReconnectManager(
			m.scanner,
			cfg.Reconnect.Interval,
			cfg.Reconnect.MaxInterval,
			func(port string) error {
				return m.Connect(context.Background(), port)
			},
		)
		m.reconnect.SetOnReconnect(func(port string) {
			logger.LogDeviceEvent("reconnected", port)
		})
	}

	return m
}

// Start 启动设备管理器，按配置执行自动连接
// 设备缺席不算启动失败，守护进程照常提供接口服务
func (m *DeviceManager) Start(ctx context.Context) error {
	if m.reconnect != nil {
		m.reconnect.Start()
	}

	if !m.cfg.AutoConnect {
		return nil
	}

	if err := m.Connect(ctx, m.cfg.Port); err != nil {
		m.logger.Warn("自动连接失败", zap.Error(err))
		if m.reconnect != nil {
			m.reconnect.TriggerReconnect()
		}
	}
	return nil
}

// Close 关闭设备管理器
func (m *DeviceManager) Close() error {
	if m.reconnect != nil {
		m.reconnect.Stop()
	}

	m.mu.Lock()
	t := m.typer
	m.typer = nil
	m.port = ""
	m.mu.Unlock()

	if t != nil {
		return t.Disconnect()
	}
	return nil
}

// Subscribe 订阅设备事件
func (m *DeviceManager) Subscribe(event EventType, handler EventHandler) {
	m.handlerMu.Lock()
	m.handlers[event] = append(m.handlers[event], handler)
	m.handlerMu.Unlock()
}

// emit 同步分发事件给所有订阅者
func (m *DeviceManager) emit(event Event) {
	m.handlerMu.RLock()
	handlers := m.handlers[event.Type]
	m.handlerMu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// ListPorts 扫描可用的串口设备
func (m *DeviceManager) ListPorts() []string {
	if m.cfg.MockMode {
		return []string{"mock"}
	}

	ports := m.scanner.ListPorts()

	// 配置中指定的端口即使不在扫描模式内也要列出
	if m.cfg.Port != "" && PortExists(m.cfg.Port) {
		found := false
		for _, p := range ports {
			if p == m.cfg.Port {
				found = true
				break
			}
		}
		if !found {
			ports = append([]string{m.cfg.Port}, ports...)
		}
	}

	return ports
}

// Connect 连接指定端口，端口为空时依次尝试配置端口和扫描结果
// 同一时刻只允许一个活动连接
func (m *DeviceManager) Connect(ctx context.Context, port string) error {
	m.mu.Lock()
	if m.typer != nil && m.typer.IsConnected() {
		m.mu.Unlock()
		return errors.New(errors.ErrAlreadyConnected, "设备已连接")
	}
	if m.connecting {
		m.mu.Unlock()
		return errors.New(errors.ErrAlreadyConnected, "连接正在进行中")
	}
	m.connecting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.connecting = false
		m.mu.Unlock()
	}()

	if port == "" {
		port = m.cfg.Port
	}
	if port == "" && m.cfg.MockMode {
		port = "mock"
	}
	if port == "" {
		port = m.scanner.FindFirst()
	}
	if port == "" {
		return errors.New(errors.ErrPortNotFound, "未找到可用串口设备")
	}

	t := m.newTyper(&TyperConfig{
		Port:        port,
		BaudRate:    m.cfg.BaudRate,
		ReadTimeout: m.cfg.ReadTimeout,
		BootDelay:   m.cfg.BootDelay,
	})
	t.SetOnLine(m.handleLine)
	t.SetOnDisconnect(m.handleDeviceLost)

	if err := t.Connect(ctx); err != nil {
		m.mu.Lock()
		m.lastError = err.Error()
		m.mu.Unlock()
		return err
	}

	now := time.Now()
	m.mu.Lock()
	m.typer = t
	m.port = t.Port()
	m.connectedAt = now
	m.lastError = ""
	m.mu.Unlock()

	if m.reconnect != nil {
		m.reconnect.MarkConnected(t.Port())
	}

	logger.LogDeviceEvent("connected", t.Port(),
		zap.Int("baud_rate", m.cfg.BaudRate))

	m.emit(Event{
		Type:      EventConnected,
		Port:      t.Port(),
		Timestamp: now,
	})

	return nil
}

// Disconnect 主动断开连接，幂等
func (m *DeviceManager) Disconnect() error {
	// 主动断开不触发自动重连
	if m.reconnect != nil {
		m.reconnect.Suspend()
	}

	m.mu.Lock()
	t := m.typer
	port := m.port
	m.typer = nil
	m.port = ""
	m.connectedAt = time.Time{}
	m.mu.Unlock()

	if t == nil {
		return nil
	}

	err := t.Disconnect()

	logger.LogDeviceEvent("disconnected", port)
	m.emit(Event{
		Type:      EventDisconnected,
		Port:      port,
		Timestamp: time.Now(),
	})

	return err
}

// IsConnected 检查设备连接状态
func (m *DeviceManager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.typer != nil && m.typer.IsConnected()
}

// Port 当前连接的端口
func (m *DeviceManager) Port() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.port
}

// SendCommand 发送命令到设备
func (m *DeviceManager) SendCommand(ctx context.Context, cmd string) error {
	m.mu.RLock()
	t := m.typer
	port := m.port
	m.mu.RUnlock()

	if t == nil || !t.IsConnected() {
		return errors.New(errors.ErrNotConnected, "设备未连接")
	}

	err := t.Send(ctx, cmd)

	now := time.Now()
	m.mu.Lock()
	m.lastCommand = cmd
	m.lastSendAt = now
	if err != nil {
		m.errorCount++
		m.lastError = err.Error()
	} else {
		m.sendCount++
	}
	m.mu.Unlock()

	logger.LogSerialSend(port, cmd, err == nil, err)

	event := Event{
		Type:      EventSend,
		Port:      port,
		Command:   cmd,
		Timestamp: now,
	}
	if err != nil {
		event.Error = err.Error()
	}
	m.emit(event)

	return err
}

// Status 设备状态快照
func (m *DeviceManager) Status() *DeviceSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &DeviceSnapshot{
		Connected:   m.typer != nil && m.typer.IsConnected(),
		Mock:        m.cfg.MockMode,
		Port:        m.port,
		SendCount:   m.sendCount,
		ErrorCount:  m.errorCount,
		LastCommand: m.lastCommand,
		LastError:   m.lastError,
	}

	if snapshot.Connected && !m.connectedAt.IsZero() {
		connectedAt := m.connectedAt
		snapshot.ConnectedAt = &connectedAt
		snapshot.UptimeSeconds = int64(time.Since(connectedAt).Seconds())
	}
	if !m.lastSendAt.IsZero() {
		lastSendAt := m.lastSendAt
		snapshot.LastSendAt = &lastSendAt
	}

	return snapshot
}

// handleLine 设备输出行回调
func (m *DeviceManager) handleLine(line string) {
	m.mu.RLock()
	port := m.port
	m.mu.RUnlock()

	m.emit(Event{
		Type:      EventLine,
		Port:      port,
		Line:      line,
		Timestamp: time.Now(),
	})
}

// handleDeviceLost 设备意外断开回调
func (m *DeviceManager) handleDeviceLost(err error) {
	m.mu.Lock()
	port := m.port
	m.typer = nil
	m.port = ""
	m.connectedAt = time.Time{}
	if err != nil {
		m.lastError = err.Error()
	}
	m.mu.Unlock()

	logger.LogDeviceEvent("lost", port, zap.Error(err))

	event := Event{
		Type:      EventDisconnected,
		Port:      port,
		Timestamp: time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	m.emit(event)

	if m.reconnect != nil {
		m.reconnect.TriggerReconnect()
	}
}
