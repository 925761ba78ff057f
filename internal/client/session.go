// Package client 방 하나에 접속한 드로잉 클라이언트.
// 장면, 히스토리, 커서 추적기는 이벤트 루프 고루틴 하나가 소유하고
// 네트워크 수신과 타이머는 루프에 클로저를 넘긴다.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"realtime-sketch/internal/config"
	"realtime-sketch/internal/cursor"
	"realtime-sketch/internal/engine"
	"realtime-sketch/internal/history"
	"realtime-sketch/internal/model"
	"realtime-sketch/internal/registry"
	"realtime-sketch/internal/roomcode"
	"realtime-sketch/internal/scene"
)

const (
	// MaxChatMessages 보관하는 채팅 메시지 수
	MaxChatMessages = 200

	loopBufferSize = 256
)

// Options 세션 옵션
type Options struct {
	Retryer  Retryer
	Registry *registry.Client // nil이면 기본 호스트 이름 사용
}

// Session 방 접속 세션
type Session struct {
	cfg       config.ClientConfig
	roomID    string
	transport *Transport
	registry  *registry.Client

	// 이벤트 루프 소유
	scene    *scene.Scene
	history  *history.Manager
	engine   *engine.Engine
	tracker  *cursor.Tracker
	chat     []model.ChatMessage
	selfID   string
	name     string
	hostName string

	onChat  []func(model.ChatMessage)
	onEvent []func(model.Event)

	loop   chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Join 방 접속
// 방 코드가 잘못되면 연결하지 않음
func Join(ctx context.Context, cfg config.ClientConfig, roomID string, opts Options) (*Session, error) {
	id, err := roomcode.Parse(roomID)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		roomID:    id,
		transport: NewTransport(cfg.ServerURL, opts.Retryer),
		registry:  opts.Registry,
		name:      model.TrimDisplayName(cfg.Name),
		hostName:  model.PlaceholderHostName,
		loop:      make(chan func(), loopBufferSize),
		ctx:       loopCtx,
		cancel:    cancel,
	}

	s.scene = scene.New()
	s.history = history.New(s.scene)
	s.engine = engine.New(s.scene, s.history, s)
	s.tracker = cursor.NewTrackerWithInterval(s.scene, s, s.post, cfg.CursorInterval)
	s.tracker.SetSelf("", s.name, cfg.Color)

	s.transport.OnConnect = s.rejoin
	s.transport.OnMessage = s.receive

	s.wg.Add(1)
	go s.run()

	if err := s.transport.Connect(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if s.registry != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			name := s.registry.HostName(id)
			s.post(func() { s.hostName = name })
		}()
	}

	log.Printf("[Client %s] 🏠 Joining as %q", id, s.name)
	return s, nil
}

// run 이벤트 루프
func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.loop:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

// post 루프에 클로저 전달 (닫힌 뒤에는 버림)
func (s *Session) post(fn func()) {
	select {
	case s.loop <- fn:
	case <-s.ctx.Done():
	}
}

// do 루프에서 fn을 실행하고 끝날 때까지 대기
// 구독 콜백 안에서 호출하면 안 됨
func (s *Session) do(fn func()) error {
	done := make(chan struct{})
	select {
	case s.loop <- func() { fn(); close(done) }:
	case <-s.ctx.Done():
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	}
}

// rejoin (재)연결 직후 방 입장과 참가자 식별
func (s *Session) rejoin() {
	name := ""
	_ = s.do(func() { name = s.name })

	if err := s.transport.Send(model.EventJoinRoom, s.roomID); err != nil {
		log.Printf("[Client %s] ⚠️ join-room failed: %v", s.roomID, err)
		return
	}
	if err := s.transport.Send(model.EventIntroduce, model.IntroducePayload{
		RoomID: s.roomID,
		Name:   name,
		Color:  s.cfg.Color,
	}); err != nil {
		log.Printf("[Client %s] ⚠️ introduce failed: %v", s.roomID, err)
	}
}

// Emit 나가는 이벤트에 roomId를 붙여 전송
func (s *Session) Emit(event model.Event, payload any) error {
	fields, err := withRoomID(s.roomID, payload)
	if err != nil {
		return err
	}
	return s.transport.Send(event, fields)
}

func withRoomID(roomID string, payload any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	fields["roomId"] = roomID
	return fields, nil
}

// receive 읽기 고루틴에서 호출, 파싱 후 루프로 전달
func (s *Session) receive(data []byte) {
	env, err := model.DecodeEnvelope(data)
	if err != nil {
		log.Printf("[Client %s] ⚠️ Dropped malformed message: %v", s.roomID, err)
		return
	}
	s.post(func() { s.handle(env) })
}

// handle 수신 이벤트 처리 (루프에서 실행)
func (s *Session) handle(env *model.Envelope) {
	switch env.Type {
	case model.EventConnected:
		var p model.ConnectedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.dropped(env.Type, err)
			return
		}
		s.selfID = p.ID
		s.tracker.SetSelf(p.ID, s.name, s.cfg.Color)

	case model.EventParticipants:
		var list []model.Participant
		if err := json.Unmarshal(env.Payload, &list); err != nil {
			s.dropped(env.Type, err)
			return
		}
		s.tracker.OnParticipants(list)

	case model.EventChatMessage:
		var msg model.ChatMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			s.dropped(env.Type, err)
			return
		}
		s.appendChat(msg)

	case model.EventDrawingData:
		var attrs map[string]any
		if err := json.Unmarshal(env.Payload, &attrs); err != nil {
			s.dropped(env.Type, err)
			return
		}
		delete(attrs, "roomId")
		if err := s.engine.ApplyRemoteUpsert(attrs); err != nil {
			s.dropped(env.Type, err)
			return
		}

	case model.EventDeleteObject:
		id, ok := parseID(env.Payload, "id")
		if !ok {
			s.dropped(env.Type, fmt.Errorf("missing id"))
			return
		}
		s.engine.ApplyRemoteDelete(id)

	case model.EventCursorMove:
		var m model.CursorMove
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			s.dropped(env.Type, err)
			return
		}
		s.tracker.OnCursorMove(m)

	case model.EventUserDisconnected:
		id, ok := parseID(env.Payload, "participantId")
		if !ok {
			s.dropped(env.Type, fmt.Errorf("missing participant id"))
			return
		}
		s.tracker.OnUserDisconnected(id)

	case model.EventPong:
		return

	default:
		return
	}

	s.notify(env.Type)
}

// parseID 문자열 그대로 또는 {key: "..."} 형태 모두 허용
func parseID(raw json.RawMessage, key string) (string, bool) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, id != ""
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	id, _ = obj[key].(string)
	return id, id != ""
}

func (s *Session) dropped(event model.Event, err error) {
	log.Printf("[Client %s] ⚠️ Dropped %s: %v", s.roomID, event, err)
}

func (s *Session) appendChat(msg model.ChatMessage) {
	s.chat = append(s.chat, msg)
	if over := len(s.chat) - MaxChatMessages; over > 0 {
		s.chat = append([]model.ChatMessage(nil), s.chat[over:]...)
	}
	for _, fn := range s.onChat {
		fn(msg)
	}
}

func (s *Session) notify(event model.Event) {
	for _, fn := range s.onEvent {
		fn(event)
	}
}

// OnChat 채팅 수신 콜백 등록 (루프에서 호출됨)
func (s *Session) OnChat(fn func(model.ChatMessage)) {
	_ = s.do(func() { s.onChat = append(s.onChat, fn) })
}

// OnParticipants 참가자 목록 콜백 등록 (익명 참가자 제외)
func (s *Session) OnParticipants(fn func([]model.Participant)) {
	_ = s.do(func() { s.tracker.Subscribe(fn) })
}

// OnEvent 수신 이벤트 처리 후 콜백
func (s *Session) OnEvent(fn func(model.Event)) {
	_ = s.do(func() { s.onEvent = append(s.onEvent, fn) })
}

// RoomID 방 코드
func (s *Session) RoomID() string {
	return s.roomID
}

// SelfID 서버가 부여한 연결 ID
func (s *Session) SelfID() string {
	var id string
	_ = s.do(func() { id = s.selfID })
	return id
}

// HostName 방 호스트 이름
func (s *Session) HostName() string {
	name := model.PlaceholderHostName
	_ = s.do(func() { name = s.hostName })
	return name
}

// Name 로컬 표시 이름
func (s *Session) Name() string {
	var name string
	_ = s.do(func() { name = s.name })
	return name
}

// SendChat 채팅 전송
func (s *Session) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sendErr error
	err := s.do(func() {
		msg := model.ChatMessage{
			ID:        uuid.NewString(),
			Username:  s.name,
			Message:   text,
			Timestamp: model.FormatChatTime(time.Now()),
			Type:      model.ChatTypeText,
		}
		sendErr = s.Emit(model.EventChatMessage, msg)
		msg.IsMe = true
		s.appendChat(msg)
	})
	if err != nil {
		return err
	}
	return sendErr
}

// Rename 표시 이름 변경 후 다시 식별
func (s *Session) Rename(name string) error {
	var sendErr error
	err := s.do(func() {
		s.name = model.TrimDisplayName(name)
		s.tracker.SetLocalName(s.name)
		sendErr = s.transport.Send(model.EventIntroduce, model.IntroducePayload{
			RoomID: s.roomID,
			Name:   s.name,
			Color:  s.cfg.Color,
		})
	})
	if err != nil {
		return err
	}
	return sendErr
}

// Draw 로컬 오브젝트 추가/수정 (id가 없으면 새로 생성)
func (s *Session) Draw(attrs map[string]any) (string, error) {
	fields := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		fields[k] = v
	}
	if id, _ := fields["id"].(string); id == "" {
		fields["id"] = uuid.NewString()
	}

	var (
		id      string
		drawErr error
	)
	err := s.do(func() {
		o, err := s.engine.ApplyLocalOperation(fields)
		if err != nil {
			drawErr = err
			return
		}
		id = o.ID
	})
	if err != nil {
		return "", err
	}
	return id, drawErr
}

// Delete 로컬 삭제
func (s *Session) Delete(id string) bool {
	var ok bool
	_ = s.do(func() { ok = s.engine.DeleteLocal(id) })
	return ok
}

// Erase 설정된 지우개 크기로 한 번 지움
func (s *Session) Erase(x, y float64) engine.EraseResult {
	var res engine.EraseResult
	_ = s.do(func() { res = s.engine.EraseAtPoint(x, y, float64(s.cfg.EraserSize)/2) })
	return res
}

// MoveCursor 로컬 커서 이동 (50ms 안의 이동은 버림)
func (s *Session) MoveCursor(x, y float64) bool {
	var sent bool
	_ = s.do(func() { sent = s.tracker.MoveLocal(x, y) })
	return sent
}

// Locate 참가자 위치 표시
func (s *Session) Locate(participantID string) bool {
	var ok bool
	_ = s.do(func() { ok = s.tracker.Locate(participantID) })
	return ok
}

// Undo 실행 취소 (로컬 전용)
func (s *Session) Undo() bool {
	var ok bool
	_ = s.do(func() { ok = s.engine.Undo() })
	return ok
}

// Redo 다시 실행 (로컬 전용)
func (s *Session) Redo() bool {
	var ok bool
	_ = s.do(func() { ok = s.engine.Redo() })
	return ok
}

// SetTool 도구 변경
func (s *Session) SetTool(t engine.Tool) {
	_ = s.do(func() { s.engine.SetTool(t) })
}

// Snapshot 현재 장면 JSON (커서 제외)
func (s *Session) Snapshot() ([]byte, error) {
	var (
		data    []byte
		snapErr error
	)
	if err := s.do(func() { data, snapErr = s.scene.Snapshot() }); err != nil {
		return nil, err
	}
	return data, snapErr
}

// Object 오브젝트 속성 복사본
func (s *Session) Object(id string) (map[string]any, bool) {
	var (
		attrs map[string]any
		ok    bool
	)
	_ = s.do(func() {
		var o *scene.Object
		if o, ok = s.scene.Get(id); ok {
			attrs = o.Map()
		}
	})
	return attrs, ok
}

// Objects 장면 오브젝트 수
func (s *Session) Objects() int {
	var n int
	_ = s.do(func() { n = s.scene.Len() })
	return n
}

// Participants 참가자 목록 (익명 제외)
func (s *Session) Participants() []model.Participant {
	var list []model.Participant
	_ = s.do(func() { list = s.tracker.Participants() })
	return list
}

// Cursor 원격 참가자 커서
func (s *Session) Cursor(participantID string) (scene.Overlay, bool) {
	var (
		ov scene.Overlay
		ok bool
	)
	_ = s.do(func() { ov, ok = s.tracker.Cursor(participantID) })
	return ov, ok
}

// Chat 채팅 기록 복사본
func (s *Session) Chat() []model.ChatMessage {
	var msgs []model.ChatMessage
	_ = s.do(func() { msgs = append([]model.ChatMessage(nil), s.chat...) })
	return msgs
}

// Connected 전송 채널 연결 여부
func (s *Session) Connected() bool {
	return s.transport.State() == StateConnected
}

// Close 전송 채널과 타이머 정리
func (s *Session) Close() {
	s.once.Do(func() {
		_ = s.do(func() { s.tracker.Close() })
		_ = s.transport.Close()
		s.cancel()
		s.wg.Wait()
		log.Printf("[Client %s] 👋 Left", s.roomID)
	})
}
