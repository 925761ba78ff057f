package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope WebSocket 메시지 (양방향 공통)
type Envelope struct {
	Type    Event           `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope payload를 직렬화하여 Envelope 생성
func NewEnvelope(event Event, payload any) (*Envelope, error) {
	env := &Envelope{Type: event}
	if payload == nil {
		return env, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env.Payload = raw
	return env, nil
}

// EncodeEnvelope Envelope 생성 후 바로 바이트로 직렬화
func EncodeEnvelope(event Event, payload any) ([]byte, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeEnvelope 수신 바이트를 Envelope로 파싱
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &env, nil
}

// ConnectedPayload 연결 직후 서버가 보내는 연결 정보
type ConnectedPayload struct {
	ID string `json:"id"`
}

// IntroducePayload 참가자 식별 페이로드
type IntroducePayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// DeletePayload 오브젝트 삭제 페이로드
type DeletePayload struct {
	ID string `json:"id"`
}

// CursorMove 커서 이동 페이로드 (수신 시 UserID는 서버가 채움)
type CursorMove struct {
	UserID string  `json:"userId,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
}

// DisconnectedPayload 참가자 연결 해제 알림
type DisconnectedPayload struct {
	ParticipantID string `json:"participantId"`
}

// ChatMessage 채팅 메시지 (text | system)
type ChatMessage struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
	Type      ChatType `json:"type"`
	IsMe      bool     `json:"-"`
}

// NewSystemMessage 입장/퇴장 시스템 메시지 생성
func NewSystemMessage(id, username, message string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        id,
		Username:  username,
		Message:   message,
		Timestamp: FormatChatTime(at),
		Type:      ChatTypeSystem,
	}
}

// FormatChatTime 채팅 타임스탬프 포맷 (HH:MM)
func FormatChatTime(t time.Time) string {
	return t.Format("15:04")
}
