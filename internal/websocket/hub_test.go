package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/r41nm4k3r/AutopassGui/internal/config"
	"github.com/r41nm4k3r/AutopassGui/internal/hardware"
	"github.com/r41nm4k3r/AutopassGui/internal/models"
)

// startTestHub 启动测试Hub和升级服务器
func startTestHub(t *testing.T) (*Hub, *httptest.Server) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, 0)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))

	t.Cleanup(func() {
		server.Close()
		hub.Stop()
	})
	return hub, server
}

// dialTestHub 连接测试服务器
func dialTestHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// envelopeReader 读取消息信封，一帧可能包含多条换行分隔的消息
type envelopeReader struct {
	conn  *websocket.Conn
	queue []*Message
}

func (r *envelopeReader) next(t *testing.T) *Message {
	t.Helper()
	for len(r.queue) == 0 {
		r.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := r.conn.ReadMessage()
		if err != nil {
			t.Fatalf("read message failed: %v", err)
		}
		for _, raw := range bytes.Split(frame, []byte{'\n'}) {
			if len(raw) == 0 {
				continue
			}
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("unmarshal message failed: %v", err)
			}
			r.queue = append(r.queue, &msg)
		}
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg
}

// nextOfType 跳过其他消息直到读到指定类型
func (r *envelopeReader) nextOfType(t *testing.T, msgType string) *Message {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := r.next(t)
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("message of type %s not received", msgType)
	return nil
}

// waitFor 轮询等待条件成立
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHubClientLifecycle(t *testing.T) {
	hub, server := startTestHub(t)

	conn := dialTestHub(t, server)
	reader := &envelopeReader{conn: conn}

	// 注册后收到连接成功消息
	hello := reader.next(t)
	if hello.Type != MessageTypeConnected {
		t.Errorf("expected connected message, got %s", hello.Type)
	}

	waitFor(t, 2*time.Second, func() bool { return hub.GetOnlineCount() == 1 })

	// 断开后客户端被注销
	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return hub.GetOnlineCount() == 0 })
}

func TestHubBroadcast(t *testing.T) {
	hub, server := startTestHub(t)

	first := &envelopeReader{conn: dialTestHub(t, server)}
	second := &envelopeReader{conn: dialTestHub(t, server)}
	first.nextOfType(t, MessageTypeConnected)
	second.nextOfType(t, MessageTypeConnected)

	waitFor(t, 2*time.Second, func() bool { return hub.GetOnlineCount() == 2 })

	hub.Broadcast(&Message{
		Type:      MessageTypeDeviceStatus,
		Data:      json.RawMessage(`{"connected":true,"port":"/dev/ttyUSB0"}`),
		Timestamp: time.Now().Unix(),
	})

	for _, reader := range []*envelopeReader{first, second} {
		msg := reader.nextOfType(t, MessageTypeDeviceStatus)
		var payload map[string]interface{}
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			t.Fatalf("unmarshal payload failed: %v", err)
		}
		if payload["port"] != "/dev/ttyUSB0" {
			t.Errorf("expected port /dev/ttyUSB0, got %v", payload["port"])
		}
	}
}

func TestClientPingPong(t *testing.T) {
	_, server := startTestHub(t)

	conn := dialTestHub(t, server)
	reader := &envelopeReader{conn: conn}
	reader.nextOfType(t, MessageTypeConnected)

	if err := conn.WriteJSON(&Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping failed: %v", err)
	}

	reader.nextOfType(t, MessageTypePong)
}

func TestClientRejectsUnknownType(t *testing.T) {
	_, server := startTestHub(t)

	conn := dialTestHub(t, server)
	reader := &envelopeReader{conn: conn}
	reader.nextOfType(t, MessageTypeConnected)

	if err := conn.WriteJSON(&Message{Type: "spin"}); err != nil {
		t.Fatalf("write message failed: %v", err)
	}

	msg := reader.nextOfType(t, MessageTypeError)
	if !bytes.Contains(msg.Data, []byte("不支持")) {
		t.Errorf("expected unsupported type error, got %s", msg.Data)
	}
}

func TestClientSurvivesMalformedJSON(t *testing.T) {
	_, server := startTestHub(t)

	conn := dialTestHub(t, server)
	reader := &envelopeReader{conn: conn}
	reader.nextOfType(t, MessageTypeConnected)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write message failed: %v", err)
	}
	reader.nextOfType(t, MessageTypeError)

	// 连接保持可用
	if err := conn.WriteJSON(&Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping failed: %v", err)
	}
	reader.nextOfType(t, MessageTypePong)
}

func TestSendToClientNotFound(t *testing.T) {
	hub, _ := startTestHub(t)

	err := hub.SendToClient("no-such-client", &Message{Type: MessageTypePing})
	if err != ErrClientNotFound {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub, server := startTestHub(t)

	conn := dialTestHub(t, server)
	reader := &envelopeReader{conn: conn}
	reader.nextOfType(t, MessageTypeConnected)

	hub.Stop()

	// 客户端收到关闭帧
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if hub.GetOnlineCount() != 0 {
		t.Errorf("expected 0 clients after stop, got %d", hub.GetOnlineCount())
	}
}

func TestStatusNotifier(t *testing.T) {
	hub, server := startTestHub(t)

	device := hardware.NewDeviceManager(&config.SerialConfig{
		MockMode: true,
		BaudRate: 9600,
	})
	t.Cleanup(func() { device.Close() })

	notifier := NewStatusNotifier(hub, device, zap.NewNop())
	notifier.Start()

	conn := dialTestHub(t, server)
	reader := &envelopeReader{conn: conn}
	reader.nextOfType(t, MessageTypeConnected)

	// 设备连接触发状态推送
	ctx := context.Background()
	if err := device.Connect(ctx, "mock"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	msg := reader.nextOfType(t, MessageTypeDeviceStatus)
	var status hardware.DeviceSnapshot
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatalf("unmarshal status failed: %v", err)
	}
	if !status.Connected {
		t.Error("expected connected status")
	}
	if status.Port != "mock" {
		t.Errorf("expected port mock, got %s", status.Port)
	}

	// 发送命令后快照计数更新
	if err := device.SendCommand(ctx, "password1"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	sent := reader.nextOfType(t, MessageTypeDeviceStatus)
	var afterSend hardware.DeviceSnapshot
	if err := json.Unmarshal(sent.Data, &afterSend); err != nil {
		t.Fatalf("unmarshal status failed: %v", err)
	}
	if afterSend.SendCount != 1 {
		t.Errorf("expected send count 1, got %d", afterSend.SendCount)
	}
	if afterSend.LastCommand != "password1" {
		t.Errorf("expected last command password1, got %s", afterSend.LastCommand)
	}

	// 槽位重置通知
	notifier.NotifySlotsReset([]*models.PasswordSlot{
		{SlotNo: 1, Label: "Send Password 1", Sequence: "password1"},
	})

	reset := reader.nextOfType(t, MessageTypeSlotsReset)
	if !bytes.Contains(reset.Data, []byte("password1")) {
		t.Errorf("expected slot payload, got %s", reset.Data)
	}

	// 断开触发状态推送
	if err := device.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	disconnected := reader.nextOfType(t, MessageTypeDeviceStatus)
	if err := json.Unmarshal(disconnected.Data, &status); err != nil {
		t.Fatalf("unmarshal status failed: %v", err)
	}
	if status.Connected {
		t.Error("expected disconnected status")
	}
}
