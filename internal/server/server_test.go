package server

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-sketch/internal/config"
	"realtime-sketch/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            ":0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     30 * time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
		WebSocket: config.WebSocketConfig{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			WriteTimeout:    2 * time.Second,
			MaxMessageSize:  1 << 20,
			SendBufferSize:  64,
		},
		CORS: config.CORSConfig{AllowOrigins: "*", AllowHeaders: "Origin, Content-Type, Accept"},
		Registry: config.RegistryConfig{
			Enabled:        true,
			CreateLimit:    10,
			CreateInterval: time.Minute,
		},
		Presence: config.PresenceConfig{
			ServerID:          "test",
			MirrorTTL:         time.Minute,
			HeartbeatSchedule: "@every 30s",
		},
	}
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	s := New(testConfig(), nil, nil)
	s.SetupMiddleware()
	s.SetupRoutes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown() })

	return s, "ws://" + ln.Addr().String() + "/ws"
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dialPeer(t *testing.T, url string) *wsPeer {
	t.Helper()

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 3*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.Close() })

	p := &wsPeer{t: t, conn: conn}
	env := p.expect(model.EventConnected)
	var connected model.ConnectedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &connected))
	require.NotEmpty(t, connected.ID)
	p.id = connected.ID
	return p
}

func (p *wsPeer) send(event model.Event, payload any) {
	p.t.Helper()
	data, err := model.EncodeEnvelope(event, payload)
	require.NoError(p.t, err)
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, data))
}

// expect 원하는 이벤트가 올 때까지 읽음 (다른 이벤트는 건너뜀)
func (p *wsPeer) expect(event model.Event) *model.Envelope {
	p.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(p.t, p.conn.SetReadDeadline(deadline))
		_, data, err := p.conn.ReadMessage()
		require.NoError(p.t, err, "waiting for %s", event)
		env, err := model.DecodeEnvelope(data)
		require.NoError(p.t, err)
		if env.Type == event {
			return env
		}
	}
}

func TestDrawingRelayScenario(t *testing.T) {
	_, url := startTestServer(t)

	a := dialPeer(t, url)
	b := dialPeer(t, url)

	a.send(model.EventJoinRoom, "ABCD12")
	a.expect(model.EventParticipants)
	b.send(model.EventJoinRoom, "ABCD12")
	b.expect(model.EventParticipants)

	a.send(model.EventIntroduce, model.IntroducePayload{RoomID: "ABCD12", Name: "Alice", Color: "#f43f5e"})
	env := b.expect(model.EventParticipants)
	var list []model.Participant
	require.NoError(t, json.Unmarshal(env.Payload, &list))
	require.Len(t, list, 1)
	assert.Equal(t, a.id, list[0].ID)

	joined := b.expect(model.EventChatMessage)
	var chat model.ChatMessage
	require.NoError(t, json.Unmarshal(joined.Payload, &chat))
	assert.Equal(t, "Alice joined the room", chat.Username+" "+chat.Message)

	a.send(model.EventDrawingData, map[string]any{
		"roomId": "ABCD12", "id": "s1", "type": "rect", "left": 10, "top": 20, "width": 30, "height": 40, "fill": "#ff0000",
	})
	drawn := b.expect(model.EventDrawingData)
	assert.JSONEq(t, `{"id":"s1","type":"rect","left":10,"top":20,"width":30,"height":40,"fill":"#ff0000"}`, string(drawn.Payload))

	a.send(model.EventDeleteObject, map[string]string{"roomId": "ABCD12", "id": "s1"})
	deleted := b.expect(model.EventDeleteObject)
	assert.JSONEq(t, `{"id":"s1"}`, string(deleted.Payload))
}

func TestDisconnectBroadcast(t *testing.T) {
	_, url := startTestServer(t)

	a := dialPeer(t, url)
	b := dialPeer(t, url)
	a.send(model.EventJoinRoom, "ROOM42")
	a.expect(model.EventParticipants)
	b.send(model.EventJoinRoom, "ROOM42")
	b.expect(model.EventParticipants)
	a.send(model.EventIntroduce, model.IntroducePayload{RoomID: "ROOM42", Name: "Alice"})
	b.expect(model.EventChatMessage)

	require.NoError(t, a.conn.Close())

	env := b.expect(model.EventUserDisconnected)
	var gone model.DisconnectedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &gone))
	assert.Equal(t, a.id, gone.ParticipantID)

	left := b.expect(model.EventChatMessage)
	var chat model.ChatMessage
	require.NoError(t, json.Unmarshal(left.Payload, &chat))
	assert.Equal(t, "Alice", chat.Username)
	assert.Equal(t, model.SystemLeftMessage, chat.Message)
}

func TestPingPong(t *testing.T) {
	_, url := startTestServer(t)

	a := dialPeer(t, url)
	a.send(model.EventPing, nil)
	a.expect(model.EventPong)
}

func TestHTTPRoutes(t *testing.T) {
	s := New(testConfig(), nil, nil)
	s.SetupMiddleware()
	s.SetupRoutes()

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	// DB 없이 레지스트리는 비활성
	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/room-lookup?room_id=ABCD12", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStartBackgroundRejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	s := New(cfg, nil, nil)
	// 미러가 없으면 heartbeat 스케줄은 사용되지 않음
	cfg.Presence.HeartbeatSchedule = "not a schedule"
	require.NoError(t, s.StartBackground())
	s.scheduler.Stop()
}
