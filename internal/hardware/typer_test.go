package hardware

import (
	"context"
	"testing"
	"time"

	"github.com/r41nm4k3r/AutopassGui/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTyperConfig(port string) *TyperConfig {
	return &TyperConfig{
		Port:        port,
		BaudRate:    9600,
		ReadTimeout: time.Second,
		BootDelay:   2 * time.Second,
	}
}

func TestSerialTyper_ConnectMissingPort(t *testing.T) {
	typer := NewSerialTyper(newTestTyperConfig("/dev/ttyACM99"))

	err := typer.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPortNotFound))
	assert.False(t, typer.IsConnected())
}

func TestSerialTyper_Port(t *testing.T) {
	typer := NewSerialTyper(newTestTyperConfig("/dev/ttyACM0"))
	assert.Equal(t, "/dev/ttyACM0", typer.Port())
}

func TestSerialTyper_SendNotConnected(t *testing.T) {
	typer := NewSerialTyper(newTestTyperConfig("/dev/ttyACM0"))

	err := typer.Send(context.Background(), "password1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
}

func TestSerialTyper_SendCanceledContext(t *testing.T) {
	typer := NewSerialTyper(newTestTyperConfig("/dev/ttyACM0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := typer.Send(ctx, "password1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCanceled))
}

func TestSerialTyper_DisconnectIdempotent(t *testing.T) {
	typer := NewSerialTyper(newTestTyperConfig("/dev/ttyACM0"))

	require.NoError(t, typer.Disconnect())
	require.NoError(t, typer.Disconnect())
}

func TestSerialTyper_MarkLostIdempotent(t *testing.T) {
	typer := NewSerialTyper(newTestTyperConfig("/dev/ttyACM0"))

	calls := 0
	typer.SetOnDisconnect(func(err error) {
		calls++
	})

	// 未连接时不触发回调
	typer.markLost(errors.New(errors.ErrDeviceLost, "设备节点已消失"))
	assert.Zero(t, calls)
}
