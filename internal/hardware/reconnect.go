package hardware

import (
	"strings"
	"sync"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"go.uber.org/zap"
)

// disconnectPatterns 断线类错误的特征字符串
var disconnectPatterns = []string{
	"input/output error",
	"device not configured",
	"broken pipe",
	"no such file",
	"permission denied",
}

// isDisconnectError 判断错误是否属于设备断开
func isDisconnectError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range disconnectPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// ReconnectManager 串口自动重连管理器
type ReconnectManager struct {
	scanner     *PortScanner
	connect     func(port string) error // 建立连接
	onReconnect func(port string)       // 重连成功回调
	interval    time.Duration           // 初始重连间隔
	maxInterval time.Duration           // 最大重连间隔
	logger      *zap.Logger

	mu           sync.RWMutex
	lastPort     string // 最后成功连接的端口
	reconnecting bool
	suspended    bool // 主动断开后暂停自动重连

	stopCh      chan struct{}
	reconnectCh chan struct{}
}

// NewReconnectManager 创建重连管理器
func NewReconnectManager(scanner *PortScanner, interval, maxInterval time.Duration, connect func(port string) error) *ReconnectManager {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxInterval < interval {
		maxInterval = 30 * time.Second
	}
	return &ReconnectManager{
		scanner:     scanner,
		connect:     connect,
		interval:    interval,
		maxInterval: maxInterval,
		logger:      logger.GetModuleLogger("hardware"),
		reconnectCh: make(chan struct{}, 1),
	}
}

// SetOnReconnect 设置重连成功回调
func (m *ReconnectManager) SetOnReconnect(fn func(port string)) {
	m.mu.Lock()
	m.onReconnect = fn
	m.mu.Unlock()
}

// Start 启动重连监控
func (m *ReconnectManager) Start() {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go m.reconnectLoop(stopCh)
}

// Stop 停止重连监控
func (m *ReconnectManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
}

// MarkConnected 记录连接成功的端口并恢复自动重连
func (m *ReconnectManager) MarkConnected(port string) {
	m.mu.Lock()
	m.lastPort = port
	m.suspended = false
	m.mu.Unlock()
}

// Suspend 暂停自动重连（主动断开时调用）
func (m *ReconnectManager) Suspend() {
	m.mu.Lock()
	m.suspended = true
	m.mu.Unlock()
}

// TriggerReconnect 触发一次重连
func (m *ReconnectManager) TriggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
		// 已经有重连请求在队列中
	}
}

// HandleError 根据错误判断是否触发重连
func (m *ReconnectManager) HandleError(err error) {
	if !isDisconnectError(err) {
		return
	}

	m.logger.Error("检测到串口断线",
		zap.String("port", m.LastPort()),
		zap.Error(err))

	m.TriggerReconnect()
}

// LastPort 最后成功连接的端口
func (m *ReconnectManager) LastPort() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastPort
}

// isSuspended 检查是否暂停
func (m *ReconnectManager) isSuspended() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.suspended
}

// findPort 查找可连接的端口，优先使用最后成功的端口
func (m *ReconnectManager) findPort() string {
	if last := m.LastPort(); last != "" && PortExists(last) {
		return last
	}
	return m.scanner.FindFirst()
}

// reconnectLoop 重连循环，失败后指数退避直到maxInterval
func (m *ReconnectManager) reconnectLoop(stopCh chan struct{}) {
	interval := m.interval

	for {
		select {
		case <-stopCh:
			m.logger.Debug("重连循环已停止")
			return

		case <-m.reconnectCh:
			if m.isSuspended() {
				continue
			}

			m.mu.Lock()
			if m.reconnecting {
				m.mu.Unlock()
				continue
			}
			m.reconnecting = true
			m.mu.Unlock()

			retryCount := 0
			for {
				select {
				case <-stopCh:
					m.mu.Lock()
					m.reconnecting = false
					m.mu.Unlock()
					return
				default:
				}

				if m.isSuspended() {
					break
				}

				retryCount++
				port := m.findPort()
				if port == "" {
					m.logger.Warn("未找到可用串口设备，等待重试",
						zap.Int("retry", retryCount),
						zap.Duration("interval", interval))
				} else {
					m.logger.Info("尝试重连",
						zap.String("port", port),
						zap.Int("retry", retryCount))

					if err := m.connect(port); err == nil {
						m.logger.Info("重连成功",
							zap.String("port", port),
							zap.Int("retry_count", retryCount))

						m.mu.Lock()
						m.lastPort = port
						cb := m.onReconnect
						m.mu.Unlock()

						if cb != nil {
							cb(port)
						}
						break
					} else {
						m.logger.Warn("重连失败，等待重试",
							zap.String("port", port),
							zap.Error(err),
							zap.Duration("interval", interval))
					}
				}

				select {
				case <-stopCh:
					m.mu.Lock()
					m.reconnecting = false
					m.mu.Unlock()
					return
				case <-time.After(interval):
				}

				// 逐渐增加重连间隔
				if interval < m.maxInterval {
					interval = interval * 2
					if interval > m.maxInterval {
						interval = m.maxInterval
					}
				}
			}

			m.mu.Lock()
			m.reconnecting = false
			m.mu.Unlock()

			// 重置重连间隔
			interval = m.interval
		}
	}
}
