package handler

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-sketch/internal/model"
	"realtime-sketch/internal/presence"
	"realtime-sketch/internal/session"
)

func newTestHub() *SessionHub {
	h := NewSessionHub(presence.NewDirectory(nil), nil)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return h
}

func connect(t *testing.T, h *SessionHub, id string) *session.Session {
	t.Helper()
	s := session.NewWithID(id, 64)
	h.Register(s)
	got := drain(s)
	require.Len(t, got, 1)
	require.Equal(t, model.EventConnected, got[0].Type)
	return s
}

// drain 큐에 쌓인 메시지를 모두 꺼냄
func drain(s *session.Session) []*model.Envelope {
	var out []*model.Envelope
	for {
		select {
		case data := <-s.Outbound():
			env, err := model.DecodeEnvelope(data)
			if err != nil {
				panic(err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func frame(t *testing.T, event model.Event, payload any) []byte {
	t.Helper()
	data, err := model.EncodeEnvelope(event, payload)
	require.NoError(t, err)
	return data
}

func types(envs []*model.Envelope) []model.Event {
	out := make([]model.Event, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}

func TestRegisterSendsConnectionID(t *testing.T) {
	h := newTestHub()
	s := session.NewWithID("conn-1", 8)
	h.Register(s)

	got := drain(s)
	require.Len(t, got, 1)
	var p model.ConnectedPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &p))
	assert.Equal(t, "conn-1", p.ID)
}

func TestJoinValidatesRoomID(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")

	for _, bad := range []string{"", "abc", "abcd12", "ABC", "ABCDEFGHIJK", "AB-12"} {
		t.Run(bad, func(t *testing.T) {
			assert.False(t, h.Join(a, bad))
		})
	}
	assert.Empty(t, drain(a))
	assert.Empty(t, a.Rooms())

	assert.True(t, h.Join(a, "ABCD12"))
	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, model.EventParticipants, got[0].Type)
	assert.JSONEq(t, `[]`, string(got[0].Payload))
}

func TestJoinDoesNotBroadcastPresence(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	h.Join(a, "ROOM1")
	drain(a)
	h.Join(b, "ROOM1")

	assert.Empty(t, drain(a))
	assert.Equal(t, []model.Event{model.EventParticipants}, types(drain(b)))
}

func TestIdentifyBroadcastsListAndSystemMessage(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	h.Join(a, "ROOM1")
	h.Join(b, "ROOM1")
	drain(a)
	drain(b)

	require.True(t, h.Identify(a, model.IntroducePayload{RoomID: "ROOM1", Name: "Alice", Color: "#f00"}))

	gotA := drain(a)
	gotB := drain(b)
	assert.Equal(t, []model.Event{model.EventParticipants}, types(gotA))
	assert.Equal(t, []model.Event{model.EventParticipants, model.EventChatMessage}, types(gotB))

	var list []model.Participant
	require.NoError(t, json.Unmarshal(gotA[0].Payload, &list))
	assert.Equal(t, []model.Participant{{ID: "a", Name: "Alice", Color: "#f00"}}, list)

	var chat model.ChatMessage
	require.NoError(t, json.Unmarshal(gotB[1].Payload, &chat))
	assert.Equal(t, "Alice", chat.Username)
	assert.Equal(t, model.SystemJoinedMessage, chat.Message)
	assert.Equal(t, model.ChatTypeSystem, chat.Type)
	assert.Equal(t, "09:30", chat.Timestamp)
	assert.Equal(t, fmt.Sprintf("%d-a", h.now().UnixMilli()), chat.ID)
}

func TestIdentifyDefaultsAndReintroduce(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	h.Join(a, "ROOM1")
	h.Identify(a, model.IntroducePayload{RoomID: "ROOM1"})

	p, ok := h.Directory().Get("ROOM1", "a")
	require.True(t, ok)
	assert.Equal(t, model.DefaultParticipantName, p.Name)
	assert.Equal(t, model.DefaultParticipantColor, p.Color)

	h.Identify(a, model.IntroducePayload{RoomID: "ROOM1", Name: "  Alice  ", Color: "#123"})
	list := h.Directory().List("ROOM1")
	require.Len(t, list, 1)
	assert.Equal(t, "Alice", list[0].Name)
}

func TestIdentifyRequiresMembership(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	h.Join(b, "ROOM1")
	drain(b)

	assert.False(t, h.Identify(a, model.IntroducePayload{RoomID: "ROOM1", Name: "Mallory"}))
	assert.False(t, h.Identify(a, model.IntroducePayload{RoomID: "NOROOM", Name: "Mallory"}))
	assert.Empty(t, h.Directory().List("ROOM1"))
	assert.Empty(t, drain(b))
}

func TestRelayExcludesSenderAndStripsRoomID(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	c := connect(t, h, "c")
	h.Join(a, "ABCD12")
	h.Join(b, "ABCD12")
	h.Join(c, "OTHER1")
	drain(a)
	drain(b)
	drain(c)

	raw := json.RawMessage(`{"roomId":"ABCD12","id":"s1","type":"rect","left":10,"fill":"#ff0000"}`)
	require.True(t, h.Relay(a, model.EventDrawingData, raw))

	assert.Empty(t, drain(a))
	assert.Empty(t, drain(c))
	got := drain(b)
	require.Len(t, got, 1)
	assert.Equal(t, model.EventDrawingData, got[0].Type)
	assert.JSONEq(t, `{"id":"s1","type":"rect","left":10,"fill":"#ff0000"}`, string(got[0].Payload))
}

func TestRelayDeleteObject(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	h.Join(a, "ABCD12")
	h.Join(b, "ABCD12")
	drain(a)
	drain(b)

	require.True(t, h.Relay(a, model.EventDeleteObject, json.RawMessage(`{"roomId":"ABCD12","id":"s1","extra":true}`)))
	got := drain(b)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"id":"s1"}`, string(got[0].Payload))

	assert.False(t, h.Relay(a, model.EventDeleteObject, json.RawMessage(`{"roomId":"ABCD12","id":42}`)))
	assert.Empty(t, drain(b))
}

func TestRelayCursorStampsSender(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	h.Join(a, "ABCD12")
	h.Join(b, "ABCD12")
	drain(a)
	drain(b)

	h.Relay(a, model.EventCursorMove, json.RawMessage(`{"roomId":"ABCD12","x":1.5,"y":2,"color":"#0f0","userId":"b"}`))

	got := drain(b)
	require.Len(t, got, 1)
	var cm model.CursorMove
	require.NoError(t, json.Unmarshal(got[0].Payload, &cm))
	assert.Equal(t, "a", cm.UserID)
	assert.Equal(t, 1.5, cm.X)
	assert.Equal(t, "#0f0", cm.Color)
}

func TestRelayDropsMalformedPayloads(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	h.Join(a, "ABCD12")
	h.Join(b, "ABCD12")
	drain(b)

	cases := map[string]string{
		"not object":      `"hello"`,
		"null":            `null`,
		"numeric room":    `{"roomId":12345,"id":"x"}`,
		"missing room":    `{"id":"x"}`,
		"lowercase room":  `{"roomId":"abcd12","id":"x"}`,
		"broken json":     `{"roomId":`,
		"array":           `[1,2,3]`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, h.Relay(a, model.EventDrawingData, json.RawMessage(payload)))
		})
	}
	assert.Empty(t, drain(b))
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	h.Join(a, "ROOM1")
	h.Join(b, "ROOM1")
	h.Identify(a, model.IntroducePayload{RoomID: "ROOM1", Name: "Alice"})
	h.Identify(b, model.IntroducePayload{RoomID: "ROOM1", Name: "Bob"})
	drain(a)
	drain(b)

	h.Disconnect(a)

	got := drain(b)
	assert.Equal(t, []model.Event{
		model.EventParticipants,
		model.EventUserDisconnected,
		model.EventChatMessage,
	}, types(got))

	var list []model.Participant
	require.NoError(t, json.Unmarshal(got[0].Payload, &list))
	assert.Equal(t, []model.Participant{{ID: "b", Name: "Bob", Color: model.DefaultParticipantColor}}, list)

	var gone model.DisconnectedPayload
	require.NoError(t, json.Unmarshal(got[1].Payload, &gone))
	assert.Equal(t, "a", gone.ParticipantID)

	var chat model.ChatMessage
	require.NoError(t, json.Unmarshal(got[2].Payload, &chat))
	assert.Equal(t, "Alice", chat.Username)
	assert.Equal(t, model.SystemLeftMessage, chat.Message)
	assert.Equal(t, fmt.Sprintf("%d-a-left", h.now().UnixMilli()), chat.ID)

	assert.Equal(t, []string{"b"}, h.RoomMembers("ROOM1"))
}

func TestDisconnectWithoutIntroduce(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	h.Join(a, "ROOM1")
	h.Join(b, "ROOM1")
	drain(b)

	h.Disconnect(a)

	got := drain(b)
	assert.Equal(t, []model.Event{model.EventUserDisconnected, model.EventChatMessage}, types(got))
	var chat model.ChatMessage
	require.NoError(t, json.Unmarshal(got[1].Payload, &chat))
	assert.Equal(t, model.DefaultParticipantName, chat.Username)
}

func TestDisconnectRemovesEmptyRooms(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	h.Join(a, "ROOM1")
	h.Join(a, "ROOM2")
	h.Identify(a, model.IntroducePayload{RoomID: "ROOM1", Name: "Alice"})

	conns, rooms := h.Stats()
	assert.Equal(t, 1, conns)
	assert.Equal(t, 2, rooms)

	h.Disconnect(a)
	h.Disconnect(a)

	conns, rooms = h.Stats()
	assert.Zero(t, conns)
	assert.Zero(t, rooms)
	assert.Empty(t, h.Directory().Rooms())
}

func TestDispatch(t *testing.T) {
	h := newTestHub()
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	t.Run("join with bare string", func(t *testing.T) {
		h.Dispatch(a, frame(t, model.EventJoinRoom, "ABCD12"))
		assert.True(t, a.InRoom("ABCD12"))
	})

	t.Run("join with object", func(t *testing.T) {
		h.Dispatch(b, frame(t, model.EventJoinRoom, map[string]string{"roomId": "ABCD12"}))
		assert.True(t, b.InRoom("ABCD12"))
	})

	drain(a)
	drain(b)

	t.Run("introduce", func(t *testing.T) {
		h.Dispatch(a, frame(t, model.EventIntroduce, model.IntroducePayload{RoomID: "ABCD12", Name: "Alice", Color: "#f00"}))
		assert.Len(t, h.Directory().List("ABCD12"), 1)
		drain(a)
		drain(b)
	})

	t.Run("ping", func(t *testing.T) {
		h.Dispatch(a, frame(t, model.EventPing, nil))
		assert.Equal(t, []model.Event{model.EventPong}, types(drain(a)))
	})

	t.Run("malformed frames are dropped", func(t *testing.T) {
		assert.NotPanics(t, func() {
			h.Dispatch(a, []byte(`not json`))
			h.Dispatch(a, []byte(`{"payload":{}}`))
			h.Dispatch(a, []byte(`{"type":"introduce","payload":"oops"}`))
			h.Dispatch(a, []byte(`{"type":"unknown-event"}`))
		})
		assert.Empty(t, drain(a))
		assert.Empty(t, drain(b))
	})

	t.Run("chat relay", func(t *testing.T) {
		h.Dispatch(a, frame(t, model.EventChatMessage, map[string]any{
			"roomId": "ABCD12", "id": "m1", "username": "Alice", "message": "hi", "timestamp": "09:30", "type": "text",
		}))
		got := drain(b)
		require.Len(t, got, 1)
		assert.JSONEq(t, `{"id":"m1","username":"Alice","message":"hi","timestamp":"09:30","type":"text"}`, string(got[0].Payload))
	})
}

func TestConcurrentIdentifyAndDisconnect(t *testing.T) {
	h := newTestHub()

	sessions := make([]*session.Session, 20)
	for i := range sessions {
		sessions[i] = session.NewWithID(fmt.Sprintf("c%02d", i), 512)
		h.Register(sessions[i])
		h.Join(sessions[i], "ROOM1")
	}

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *session.Session) {
			defer wg.Done()
			h.Identify(s, model.IntroducePayload{RoomID: "ROOM1", Name: fmt.Sprintf("user%d", i)})
			if i%2 == 0 {
				h.Disconnect(s)
			}
		}(i, s)
	}
	wg.Wait()

	list := h.Directory().List("ROOM1")
	assert.Len(t, list, 10)
	assert.Len(t, h.RoomMembers("ROOM1"), 10)
	for _, p := range list {
		assert.True(t, sessions[0].ID != p.ID)
	}
}
