package model

// Event 전송 채널 메시지 타입
type Event string

const (
	EventConnected        Event = "connected"         // 서버 -> 클라이언트, 연결 ID 통보
	EventJoinRoom         Event = "join-room"         // 클라이언트 -> 서버
	EventIntroduce        Event = "introduce"         // 클라이언트 -> 서버, presence 갱신 트리거
	EventParticipants     Event = "participants"      // 서버 -> 클라이언트, 전체 목록 교체
	EventChatMessage      Event = "chat-message"      // 양방향 relay
	EventDrawingData      Event = "drawing-data"      // 양방향 upsert
	EventDeleteObject     Event = "delete-object"     // 양방향 delete
	EventCursorMove       Event = "cursor-move"       // 양방향, 서버가 userId 스탬프
	EventUserDisconnected Event = "user-disconnected" // 서버 -> 클라이언트
	EventPing             Event = "ping"
	EventPong             Event = "pong"
)

func (e Event) String() string {
	return string(e)
}

// IsRelay 서버가 payload를 해석하지 않고 중계하는 이벤트인지 여부
func (e Event) IsRelay() bool {
	switch e {
	case EventDrawingData, EventDeleteObject, EventCursorMove, EventChatMessage:
		return true
	}
	return false
}

// ChatType 채팅 메시지 타입
type ChatType string

const (
	ChatTypeText   ChatType = "text"
	ChatTypeSystem ChatType = "system"
)

func (c ChatType) String() string {
	return string(c)
}

const (
	// DefaultParticipantName introduce에 이름이 없을 때 서버가 채우는 이름
	DefaultParticipantName = "Guest"
	// DefaultParticipantColor introduce에 색상이 없을 때 서버가 채우는 색상
	DefaultParticipantColor = "#60a5fa"
	// PlaceholderHostName 레지스트리를 사용할 수 없을 때의 호스트 이름
	PlaceholderHostName = "Guest Room"
	// MaxDisplayNameLength 표시 이름 최대 길이 (클라이언트 기준)
	MaxDisplayNameLength = 24

	SystemJoinedMessage = "joined the room"
	SystemLeftMessage   = "left the room"
)
