package hardware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/r41nm4k3r/AutopassGui/internal/logger"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

// Typer 打字器设备接口
type Typer interface {
	// Connect 打开串口并等待设备就绪
	Connect(ctx context.Context) error

	// Disconnect 断开连接（幂等）
	Disconnect() error

	// IsConnected 检查连接状态
	IsConnected() bool

	// Port 当前端口路径
	Port() string

	// Send 发送一条命令（自动追加换行符）
	Send(ctx context.Context, cmd string) error

	// SetOnLine 设置设备输出行回调
	SetOnLine(fn func(line string))

	// SetOnDisconnect 设置意外断开回调（主动断开不触发）
	SetOnDisconnect(fn func(err error))
}

// watchInterval 设备节点检查周期
const watchInterval = 1 * time.Second

// SerialTyper 串口打字器实现
type SerialTyper struct {
	config *TyperConfig
	logger *zap.Logger

	mu        sync.RWMutex
	port      *serial.Port
	connected bool
	stopCh    chan struct{}

	// writeMu 串行化写操作，避免命令交叉
	writeMu sync.Mutex

	onLine       func(line string)
	onDisconnect func(err error)
}

// NewSerialTyper 创建串口打字器
func NewSerialTyper(config *TyperConfig) *SerialTyper {
	return &SerialTyper{
		config: config,
		logger: logger.GetModuleLogger("hardware"),
	}
}

// Connect 打开串口并等待设备就绪
// Arduino类设备在串口打开时会复位，需要等待引导完成后才能接收命令
func (t *SerialTyper) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return errors.New(errors.ErrAlreadyConnected, "串口已连接")
	}
	t.mu.Unlock()

	if !PortExists(t.config.Port) {
		return errors.Newf(errors.ErrPortNotFound, "串口设备不存在: %s", t.config.Port)
	}

	serialCfg := &serial.Config{
		Name:        t.config.Port,
		Baud:        t.config.BaudRate,
		ReadTimeout: t.config.ReadTimeout,
	}

	port, err := serial.OpenPort(serialCfg)
	if err != nil {
		t.logger.Error("打开串口失败",
			zap.String("port", t.config.Port),
			zap.Error(err))
		return errors.Wrapf(err, errors.ErrSerialPortOpen, "打开串口失败: %s", t.config.Port)
	}

	// 等待板子复位完成
	if t.config.BootDelay > 0 {
		t.logger.Debug("等待设备就绪",
			zap.String("port", t.config.Port),
			zap.Duration("boot_delay", t.config.BootDelay))

		select {
		case <-time.After(t.config.BootDelay):
		case <-ctx.Done():
			port.Close()
			return errors.Wrap(ctx.Err(), errors.ErrCanceled, "连接已取消")
		}
	}

	t.mu.Lock()
	t.port = port
	t.connected = true
	t.stopCh = make(chan struct{})
	stopCh := t.stopCh
	t.mu.Unlock()

	go t.readLoop(port, stopCh)
	go t.watchLoop(t.config.Port, stopCh)

	t.logger.Info("串口连接成功",
		zap.String("port", t.config.Port),
		zap.Int("baud_rate", t.config.BaudRate))

	return nil
}

// Disconnect 主动断开连接
func (t *SerialTyper) Disconnect() error {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return nil
	}

	t.connected = false
	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}

	var err error
	if t.port != nil {
		err = t.port.Close()
		t.port = nil
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("关闭串口失败", zap.Error(err))
		return errors.Wrap(err, errors.ErrSerialPortOpen, "关闭串口失败")
	}

	t.logger.Info("串口已断开", zap.String("port", t.config.Port))
	return nil
}

// IsConnected 检查连接状态
func (t *SerialTyper) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Port 当前端口路径
func (t *SerialTyper) Port() string {
	return t.config.Port
}

// SetOnLine 设置设备输出行回调
func (t *SerialTyper) SetOnLine(fn func(line string)) {
	t.mu.Lock()
	t.onLine = fn
	t.mu.Unlock()
}

// SetOnDisconnect 设置意外断开回调
func (t *SerialTyper) SetOnDisconnect(fn func(err error)) {
	t.mu.Lock()
	t.onDisconnect = fn
	t.mu.Unlock()
}

// Send 发送命令到设备
// 命令以换行符结尾，板子固件按行解析并执行键盘输出
func (t *SerialTyper) Send(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCanceled, "发送已取消")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.RLock()
	port := t.port
	connected := t.connected
	t.mu.RUnlock()

	if !connected || port == nil {
		return errors.New(errors.ErrNotConnected, "串口未连接")
	}

	data := []byte(cmd + "\n")
	n, err := port.Write(data)
	if err != nil {
		t.logger.Error("串口写入失败",
			zap.String("port", t.config.Port),
			zap.Error(err))

		if isDisconnectError(err) {
			go t.markLost(errors.Wrap(err, errors.ErrDeviceLost, "串口设备已断开"))
		}
		return errors.Wrap(err, errors.ErrSerialPortWrite, "串口写入失败")
	}
	if n != len(data) {
		return errors.Newf(errors.ErrSerialPortWrite, "串口写入不完整: %d/%d 字节", n, len(data))
	}

	t.logger.Debug("命令已发送",
		zap.String("port", t.config.Port),
		zap.Int("bytes", n))

	return nil
}

// readLoop 后台读取循环，把设备输出按行分发给回调
func (t *SerialTyper) readLoop(port *serial.Port, stopCh chan struct{}) {
	defer t.logger.Debug("读取循环已退出", zap.String("port", t.config.Port))

	buffer := make([]byte, 256)
	var lineBuffer string

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		n, err := port.Read(buffer)
		if err != nil {
			// ReadTimeout到期时Read返回EOF，USB-CDC设备空闲时也会周期性产生EOF，均继续读取
			if strings.Contains(err.Error(), "EOF") {
				continue
			}
			if isDisconnectError(err) {
				t.logger.Error("串口设备断开",
					zap.String("port", t.config.Port),
					zap.Error(err))
				t.markLost(errors.Wrap(err, errors.ErrDeviceLost, "串口设备已断开"))
				return
			}
			t.logger.Debug("串口读取错误", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if n == 0 {
			continue
		}

		lineBuffer += string(buffer[:n])

		// 按\n切分完整的行，兼容\r\n行尾
		for {
			idx := strings.Index(lineBuffer, "\n")
			if idx == -1 {
				break
			}

			line := strings.TrimSpace(lineBuffer[:idx])
			lineBuffer = lineBuffer[idx+1:]
			if line == "" {
				continue
			}

			t.logger.Debug("收到设备输出",
				zap.String("port", t.config.Port),
				zap.String("line", line))

			t.mu.RLock()
			cb := t.onLine
			t.mu.RUnlock()
			if cb != nil {
				cb(line)
			}
		}
	}
}

// watchLoop 周期性检查设备节点是否仍然存在
// USB设备拔出后读写不一定立即报错，通过stat设备文件能更快发现断开
func (t *SerialTyper) watchLoop(path string, stopCh chan struct{}) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !PortExists(path) {
				t.logger.Error("串口设备节点消失", zap.String("port", path))
				t.markLost(errors.Newf(errors.ErrDeviceLost, "设备节点已消失: %s", path))
				return
			}
		}
	}
}

// markLost 处理意外断开，幂等
func (t *SerialTyper) markLost(err error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}

	t.connected = false
	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
	cb := t.onDisconnect
	t.mu.Unlock()

	if cb != nil {
		cb(err)
	}
}
