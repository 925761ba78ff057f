package session

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State WebSocket 연결 상태
type State int

const (
	StateConnected State = iota // 연결됨, 방 미참여
	StateJoined                 // 하나 이상의 방 참여
	StateClosed                 // 연결 종료
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Writer 송신 펌프가 쓰는 연결 동작 (websocket.Conn 호환)
type Writer interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
}

// TextMessage websocket 텍스트 프레임 타입
const TextMessage = 1

// Session 클라이언트 연결 세션 (Thread-Safe)
type Session struct {
	ID          string
	ConnectedAt time.Time

	mu    sync.RWMutex
	state State
	rooms map[string]struct{}

	send    chan []byte
	dropped atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
}

// New 새 세션 생성 (bufferSize: 송신 큐 길이)
func New(bufferSize int) *Session {
	return NewWithID(uuid.New().String(), bufferSize)
}

// NewWithID ID를 지정해 세션 생성 (테스트용)
func NewWithID(id string, bufferSize int) *Session {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		state:       StateConnected,
		rooms:       make(map[string]struct{}),
		send:        make(chan []byte, bufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Context 세션 컨텍스트 반환
func (s *Session) Context() context.Context {
	return s.ctx
}

// Enqueue 송신 큐에 메시지 추가 (블로킹 없음)
// 큐가 가득 찼거나 세션이 닫혔으면 false
func (s *Session) Enqueue(data []byte) bool {
	if s.ctx.Err() != nil {
		return false
	}

	select {
	case s.send <- data:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Outbound 송신 큐 채널
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Dropped 큐 초과로 버려진 메시지 수
func (s *Session) Dropped() uint64 {
	return s.dropped.Load()
}

// WritePump 송신 큐를 연결에 순서대로 기록
// 세션 종료 또는 쓰기 실패 시 반환
func (s *Session) WritePump(w Writer, timeout time.Duration) error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case data := <-s.send:
			if timeout > 0 {
				_ = w.SetWriteDeadline(time.Now().Add(timeout))
			}
			if err := w.WriteMessage(TextMessage, data); err != nil {
				return err
			}
		}
	}
}

// AddRoom 참여 방 추가
// 새로 추가된 경우 true
func (s *Session) AddRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	if _, ok := s.rooms[roomID]; ok {
		return false
	}
	s.rooms[roomID] = struct{}{}
	s.state = StateJoined
	return true
}

// InRoom 방 참여 여부
func (s *Session) InRoom(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.rooms[roomID]
	return ok
}

// Rooms 참여 중인 방 목록 (정렬됨)
func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetState 현재 상태 조회
func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Duration 연결 유지 시간
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

// Close 세션 정리
// 송신 채널은 닫지 않음 (다른 goroutine의 Enqueue와 경쟁 방지)
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	s.state = StateClosed
	s.cancel()
}

// IsClosed 세션 종료 여부 확인
func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateClosed
}
