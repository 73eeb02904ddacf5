package hardware

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDisconnectError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"空错误", nil, false},
		{"IO错误", fmt.Errorf("read /dev/ttyACM0: input/output error"), true},
		{"设备未配置", fmt.Errorf("device not configured"), true},
		{"管道中断", fmt.Errorf("write: broken pipe"), true},
		{"设备不存在", fmt.Errorf("open /dev/ttyACM0: no such file or directory"), true},
		{"权限不足", fmt.Errorf("open /dev/ttyACM0: permission denied"), true},
		{"大小写不敏感", fmt.Errorf("Input/Output Error"), true},
		{"读取超时", fmt.Errorf("read timeout"), false},
		{"普通错误", fmt.Errorf("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isDisconnectError(tt.err))
		})
	}
}

// reconnectRecorder 记录重连尝试的连接函数
type reconnectRecorder struct {
	mu       sync.Mutex
	attempts []string
	failures int // 前N次尝试返回错误
}

func (r *reconnectRecorder) connect(port string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts = append(r.attempts, port)
	if len(r.attempts) <= r.failures {
		return fmt.Errorf("connect failed")
	}
	return nil
}

func (r *reconnectRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

func TestReconnectManager_TriggerReconnect(t *testing.T) {
	dir := t.TempDir()
	device := touchDevice(t, dir, "ttyACM0")

	scanner := NewPortScanner([]string{"ttyACM"}, 9)
	scanner.root = dir

	recorder := &reconnectRecorder{}
	m := NewReconnectManager(scanner, 10*time.Millisecond, 40*time.Millisecond, recorder.connect)

	var reconnected string
	var reconnectedMu sync.Mutex
	m.SetOnReconnect(func(port string) {
		reconnectedMu.Lock()
		reconnected = port
		reconnectedMu.Unlock()
	})

	m.Start()
	defer m.Stop()

	m.TriggerReconnect()

	require.Eventually(t, func() bool {
		reconnectedMu.Lock()
		defer reconnectedMu.Unlock()
		return reconnected == device
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, recorder.count())
	assert.Equal(t, device, m.LastPort())
}

func TestReconnectManager_RetriesUntilSuccess(t *testing.T) {
	dir := t.TempDir()
	touchDevice(t, dir, "ttyACM0")

	scanner := NewPortScanner([]string{"ttyACM"}, 9)
	scanner.root = dir

	recorder := &reconnectRecorder{failures: 2}
	m := NewReconnectManager(scanner, 10*time.Millisecond, 40*time.Millisecond, recorder.connect)

	m.Start()
	defer m.Stop()

	m.TriggerReconnect()

	// 前两次失败后第三次成功
	require.Eventually(t, func() bool {
		return recorder.count() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestReconnectManager_PrefersLastPort(t *testing.T) {
	dir := t.TempDir()
	touchDevice(t, dir, "ttyACM0")
	lastDevice := touchDevice(t, dir, "ttyACM2")

	scanner := NewPortScanner([]string{"ttyACM"}, 9)
	scanner.root = dir

	recorder := &reconnectRecorder{}
	m := NewReconnectManager(scanner, 10*time.Millisecond, 40*time.Millisecond, recorder.connect)
	m.MarkConnected(lastDevice)

	m.Start()
	defer m.Stop()

	m.TriggerReconnect()

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, time.Second, 5*time.Millisecond)

	recorder.mu.Lock()
	assert.Equal(t, lastDevice, recorder.attempts[0])
	recorder.mu.Unlock()
}

func TestReconnectManager_SuspendBlocksReconnect(t *testing.T) {
	dir := t.TempDir()
	touchDevice(t, dir, "ttyACM0")

	scanner := NewPortScanner([]string{"ttyACM"}, 9)
	scanner.root = dir

	recorder := &reconnectRecorder{}
	m := NewReconnectManager(scanner, 10*time.Millisecond, 40*time.Millisecond, recorder.connect)

	m.Start()
	defer m.Stop()

	m.Suspend()
	m.TriggerReconnect()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, recorder.count())

	// MarkConnected恢复自动重连
	m.MarkConnected("")
	m.TriggerReconnect()

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReconnectManager_HandleError(t *testing.T) {
	dir := t.TempDir()
	touchDevice(t, dir, "ttyACM0")

	scanner := NewPortScanner([]string{"ttyACM"}, 9)
	scanner.root = dir

	recorder := &reconnectRecorder{}
	m := NewReconnectManager(scanner, 10*time.Millisecond, 40*time.Millisecond, recorder.connect)

	m.Start()
	defer m.Stop()

	// 非断线类错误不触发重连
	m.HandleError(fmt.Errorf("read timeout"))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, recorder.count())

	// 断线类错误触发重连
	m.HandleError(fmt.Errorf("input/output error"))

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, time.Second, 5*time.Millisecond)
}
