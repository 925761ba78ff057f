package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"realtime-sketch/internal/metrics"
	"realtime-sketch/internal/model"
	"realtime-sketch/internal/presence"
	"realtime-sketch/internal/roomcode"
	"realtime-sketch/internal/session"
)

// =============================================================================
// Session Hub - 방 단위 이벤트 중계 (드로잉 데이터는 저장하지 않음)
// =============================================================================

// SessionHub 연결과 방 멤버십 관리
type SessionHub struct {
	rooms     map[string]*HubRoom
	sessions  map[string]*session.Session
	mu        sync.RWMutex
	directory *presence.Directory
	metrics   *metrics.Metrics
	now       func() time.Time
}

// HubRoom 방 하나의 구독자 집합
type HubRoom struct {
	ID      string
	members map[string]*session.Session
	mu      sync.RWMutex
}

// NewSessionHub 생성자 (metrics는 nil 가능)
func NewSessionHub(directory *presence.Directory, m *metrics.Metrics) *SessionHub {
	if directory == nil {
		directory = presence.NewDirectory(nil)
	}
	return &SessionHub{
		rooms:     make(map[string]*HubRoom),
		sessions:  make(map[string]*session.Session),
		directory: directory,
		metrics:   m,
		now:       time.Now,
	}
}

// Directory presence 디렉터리 반환
func (h *SessionHub) Directory() *presence.Directory {
	return h.directory
}

// Register 새 연결 등록 후 연결 ID 전달
func (h *SessionHub) Register(s *session.Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	h.metrics.Connected()
	h.send(s, model.EventConnected, model.ConnectedPayload{ID: s.ID})
	log.Printf("[SessionHub] 🔌 Connected: %s", s.ID)
}

// Join 방 구독 (형식이 틀린 방 코드는 조용히 무시)
func (h *SessionHub) Join(s *session.Session, roomID string) bool {
	if !roomcode.Valid(roomID) {
		h.metrics.Dropped("invalid_room")
		return false
	}

	h.mu.Lock()
	if _, registered := h.sessions[s.ID]; !registered {
		h.mu.Unlock()
		return false
	}

	room, exists := h.rooms[roomID]
	if !exists {
		room = &HubRoom{
			ID:      roomID,
			members: make(map[string]*session.Session),
		}
		h.rooms[roomID] = room
		h.metrics.RoomOpened()
		log.Printf("[SessionHub] Created room: %s", roomID)
	}

	room.mu.Lock()
	room.members[s.ID] = s
	s.AddRoom(roomID)
	// 새로 들어온 연결에만 현재 참여자 목록 전달
	h.send(s, model.EventParticipants, h.directory.List(roomID))
	count := len(room.members)
	room.mu.Unlock()
	h.mu.Unlock()

	log.Printf("[Room %s] ➕ %s joined (members=%d)", roomID, s.ID, count)
	return true
}

// Identify 참여자 등록/갱신
// 전체 목록은 보낸 사람 포함 모두에게, 입장 메시지는 보낸 사람 제외
func (h *SessionHub) Identify(s *session.Session, intro model.IntroducePayload) bool {
	if !roomcode.Valid(intro.RoomID) {
		h.metrics.Dropped("invalid_room")
		return false
	}

	room := h.room(intro.RoomID)
	if room == nil {
		h.metrics.Dropped("not_member")
		return false
	}

	name := model.TrimDisplayName(intro.Name)
	if name == "" {
		name = model.DefaultParticipantName
	}
	color := strings.TrimSpace(intro.Color)
	if color == "" {
		color = model.DefaultParticipantColor
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if _, ok := room.members[s.ID]; !ok {
		h.metrics.Dropped("not_member")
		return false
	}

	list := h.directory.Upsert(room.ID, model.Participant{ID: s.ID, Name: name, Color: color})
	h.broadcastLocked(room, model.EventParticipants, list, "")

	at := h.now()
	h.broadcastLocked(room, model.EventChatMessage, model.NewSystemMessage(
		fmt.Sprintf("%d-%s", at.UnixMilli(), s.ID),
		name,
		model.SystemJoinedMessage,
		at,
	), s.ID)

	log.Printf("[Room %s] 👤 %s introduced as %q", room.ID, s.ID, name)
	return true
}

// Relay 방의 다른 멤버에게 이벤트 전달
// payload는 해석하지 않고 roomId만 꺼내서 제거
func (h *SessionHub) Relay(s *session.Session, event model.Event, payload json.RawMessage) bool {
	if !event.IsRelay() {
		return false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		h.metrics.Dropped("malformed")
		return false
	}

	var roomID string
	if err := json.Unmarshal(fields["roomId"], &roomID); err != nil || !roomcode.Valid(roomID) {
		h.metrics.Dropped("invalid_room")
		return false
	}
	delete(fields, "roomId")

	var out any = fields
	switch event {
	case model.EventDeleteObject:
		var id string
		if err := json.Unmarshal(fields["id"], &id); err != nil || id == "" {
			h.metrics.Dropped("malformed")
			return false
		}
		out = model.DeletePayload{ID: id}
	case model.EventCursorMove:
		// 커서 주인은 항상 보낸 연결
		stamped, _ := json.Marshal(s.ID)
		fields["userId"] = stamped
	}

	room := h.room(roomID)
	if room == nil {
		return false
	}

	room.mu.RLock()
	h.broadcastLocked(room, event, out, s.ID)
	room.mu.RUnlock()
	return true
}

// Disconnect 연결 종료 처리 (참여한 모든 방에 대해)
func (h *SessionHub) Disconnect(s *session.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.ID]; !ok {
		return
	}
	delete(h.sessions, s.ID)

	for _, roomID := range s.Rooms() {
		room, exists := h.rooms[roomID]
		if !exists {
			continue
		}

		room.mu.Lock()
		delete(room.members, s.ID)

		name := model.DefaultParticipantName
		if p, had, list := h.directory.Remove(roomID, s.ID); had {
			if p.Name != "" {
				name = p.Name
			}
			h.broadcastLocked(room, model.EventParticipants, list, "")
		}
		h.broadcastLocked(room, model.EventUserDisconnected, model.DisconnectedPayload{ParticipantID: s.ID}, "")

		at := h.now()
		h.broadcastLocked(room, model.EventChatMessage, model.NewSystemMessage(
			fmt.Sprintf("%d-%s-left", at.UnixMilli(), s.ID),
			name,
			model.SystemLeftMessage,
			at,
		), "")

		empty := len(room.members) == 0
		room.mu.Unlock()

		if empty {
			delete(h.rooms, roomID)
			h.directory.Drop(roomID)
			h.metrics.RoomClosed()
			log.Printf("[SessionHub] Removed room: %s", roomID)
		}
	}

	h.metrics.Disconnected()
	log.Printf("[SessionHub] 🔌 Disconnected: %s (%s)", s.ID, s.Duration().Round(time.Second))
}

// Dispatch 수신 메시지 하나 처리
// 잘못된 메시지는 버리고, 처리 중 panic은 해당 메시지에서만 복구
func (h *SessionHub) Dispatch(s *session.Session, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.Dropped("panic")
			log.Printf("[SessionHub] ⚠️ recovered while handling message from %s: %v", s.ID, r)
		}
	}()

	env, err := model.DecodeEnvelope(raw)
	if err != nil {
		h.metrics.Dropped("malformed")
		log.Printf("[SessionHub] ⚠️ dropped malformed message from %s: %v", s.ID, err)
		return
	}

	switch env.Type {
	case model.EventJoinRoom:
		h.Join(s, parseJoinPayload(env.Payload))
	case model.EventIntroduce:
		var intro model.IntroducePayload
		if err := json.Unmarshal(env.Payload, &intro); err != nil {
			h.metrics.Dropped("malformed")
			return
		}
		h.Identify(s, intro)
	case model.EventDrawingData, model.EventDeleteObject, model.EventCursorMove, model.EventChatMessage:
		h.Relay(s, env.Type, env.Payload)
	case model.EventPing:
		h.send(s, model.EventPong, nil)
	default:
		h.metrics.Dropped("unknown_event")
	}
}

// Stats 현재 연결/방 수
func (h *SessionHub) Stats() (connections, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions), len(h.rooms)
}

// RoomMembers 방 멤버 연결 ID 목록
func (h *SessionHub) RoomMembers(roomID string) []string {
	room := h.room(roomID)
	if room == nil {
		return nil
	}

	room.mu.RLock()
	defer room.mu.RUnlock()

	ids := make([]string, 0, len(room.members))
	for id := range room.members {
		ids = append(ids, id)
	}
	return ids
}

func (h *SessionHub) room(roomID string) *HubRoom {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.rooms[roomID]
}

// send 단일 연결로 전송 (큐가 가득 차면 버림)
func (h *SessionHub) send(s *session.Session, event model.Event, payload any) {
	data, err := model.EncodeEnvelope(event, payload)
	if err != nil {
		log.Printf("[SessionHub] ❌ encode %s failed: %v", event, err)
		return
	}
	if !s.Enqueue(data) {
		h.metrics.Dropped("queue_full")
	}
}

// broadcastLocked 방 멤버에게 전송 (room.mu 보유 상태에서 호출)
func (h *SessionHub) broadcastLocked(room *HubRoom, event model.Event, payload any, exclude string) {
	data, err := model.EncodeEnvelope(event, payload)
	if err != nil {
		log.Printf("[Room %s] ❌ encode %s failed: %v", room.ID, event, err)
		return
	}

	delivered := 0
	for id, member := range room.members {
		if id == exclude {
			continue
		}
		if member.Enqueue(data) {
			delivered++
		} else {
			h.metrics.Dropped("queue_full")
		}
	}
	h.metrics.Relayed(event.String(), delivered)
}

// parseJoinPayload join-room 페이로드: 문자열 또는 {roomId}
func parseJoinPayload(raw json.RawMessage) string {
	var roomID string
	if err := json.Unmarshal(raw, &roomID); err == nil {
		return roomID
	}

	var obj struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.RoomID
	}
	return ""
}
