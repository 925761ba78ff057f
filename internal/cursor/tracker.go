// Package cursor 원격 참가자 커서와 참가자 목록을 관리한다.
// 커서는 장면의 오버레이 레이어에만 존재하며 히스토리에 포함되지 않는다.
// Tracker는 클라이언트 이벤트 루프 고루틴에서만 사용해야 하며,
// 타이머는 dispatch로 클로저를 루프에 넘긴다.
package cursor

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"realtime-sketch/internal/engine"
	"realtime-sketch/internal/model"
	"realtime-sketch/internal/scene"
)

const (
	// ThrottleInterval 로컬 커서 전송 최소 간격
	ThrottleInterval = 50 * time.Millisecond
	// BlinkInterval 위치 표시 마커 깜빡임 간격
	BlinkInterval = 200 * time.Millisecond
	// BlinkDuration 위치 표시 마커 유지 시간
	BlinkDuration = 2 * time.Second

	cursorKeyPrefix = "cursor:"
	markerKeyPrefix = "marker:"
)

// CursorKey 참가자 커서 오버레이 키
func CursorKey(participantID string) string {
	return cursorKeyPrefix + participantID
}

// MarkerKey 참가자 위치 표시 마커 키
func MarkerKey(participantID string) string {
	return markerKeyPrefix + participantID
}

// Tracker 커서 & 참가자 추적기
type Tracker struct {
	scene    *scene.Scene
	emitter  engine.Emitter
	dispatch func(func())
	now      func() time.Time

	selfID    string
	selfName  string
	selfColor string

	participants map[string]model.Participant
	list         []model.Participant
	subscribers  []func([]model.Participant)

	limiter *rate.Limiter
	markers map[string]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTracker 생성자
// dispatch는 타이머 고루틴에서 이벤트 루프로 클로저를 넘길 때 사용
func NewTracker(sc *scene.Scene, emitter engine.Emitter, dispatch func(func())) *Tracker {
	return NewTrackerWithInterval(sc, emitter, dispatch, ThrottleInterval)
}

// NewTrackerWithInterval 전송 간격 지정
func NewTrackerWithInterval(sc *scene.Scene, emitter engine.Emitter, dispatch func(func()), interval time.Duration) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = ThrottleInterval
	}
	return &Tracker{
		scene:        sc,
		emitter:      emitter,
		dispatch:     dispatch,
		now:          time.Now,
		participants: make(map[string]model.Participant),
		limiter:      rate.NewLimiter(rate.Every(interval), 1),
		markers:      make(map[string]context.CancelFunc),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetSelf 로컬 참가자 정보 설정 (connected 수신 후)
func (t *Tracker) SetSelf(id, name, color string) {
	t.selfID = id
	t.selfName = name
	t.selfColor = color
}

// SetLocalName 로컬 표시 이름 변경
func (t *Tracker) SetLocalName(name string) {
	t.selfName = name
}

// SelfID 로컬 연결 ID
func (t *Tracker) SelfID() string {
	return t.selfID
}

// Subscribe 참가자 목록 구독 (익명 참가자는 제외된 목록을 받음)
func (t *Tracker) Subscribe(fn func([]model.Participant)) {
	t.subscribers = append(t.subscribers, fn)
}

// Participants UI에 노출되는 참가자 목록
func (t *Tracker) Participants() []model.Participant {
	return model.VisibleParticipants(t.list)
}

// resolveName 참가자 이름 조회 (목록에 없으면 로컬 사용자만 로컬 이름으로 대체)
func (t *Tracker) resolveName(id string) string {
	if p, ok := t.participants[id]; ok {
		return p.Name
	}
	if id != "" && id == t.selfID {
		return t.selfName
	}
	return ""
}

// OnParticipants 참가자 목록 전체 교체
func (t *Tracker) OnParticipants(list []model.Participant) {
	t.participants = make(map[string]model.Participant, len(list))
	t.list = make([]model.Participant, 0, len(list))
	for _, p := range list {
		if _, dup := t.participants[p.ID]; !dup {
			t.list = append(t.list, p)
		}
		t.participants[p.ID] = p
	}

	// 익명이 된 참가자 커서 제거, 나머지는 라벨 갱신
	for _, ov := range t.scene.Overlays() {
		if ov.Kind != scene.OverlayCursor {
			continue
		}
		name := t.resolveName(ov.ParticipantID)
		if model.IsAnonymous(name) {
			t.scene.RemoveOverlay(ov.Key)
			continue
		}
		if ov.Label != name {
			ov.Label = name
			t.scene.PutOverlay(ov)
		}
	}

	visible := t.Participants()
	for _, fn := range t.subscribers {
		fn(visible)
	}
}

// OnCursorMove 원격 커서 이동 반영
func (t *Tracker) OnCursorMove(m model.CursorMove) {
	if m.UserID == "" {
		return
	}
	key := CursorKey(m.UserID)

	name := t.resolveName(m.UserID)
	if model.IsAnonymous(name) {
		t.scene.RemoveOverlay(key)
		return
	}

	color := m.Color
	if color == "" {
		color = t.participants[m.UserID].Color
	}
	t.scene.PutOverlay(scene.Overlay{
		Key:           key,
		Kind:          scene.OverlayCursor,
		ParticipantID: m.UserID,
		X:             m.X,
		Y:             m.Y,
		Color:         color,
		Label:         name,
		Visible:       true,
	})
}

// OnUserDisconnected 연결 해제된 참가자의 커서와 마커 제거
func (t *Tracker) OnUserDisconnected(participantID string) {
	t.scene.RemoveOverlay(CursorKey(participantID))
	t.stopMarker(participantID)
}

// Cursor 참가자 커서 조회
func (t *Tracker) Cursor(participantID string) (scene.Overlay, bool) {
	return t.scene.Overlay(CursorKey(participantID))
}

// MoveLocal 로컬 커서 위치 전송
// 간격 안에 들어온 이동은 버림 (대기열에 쌓지 않음)
func (t *Tracker) MoveLocal(x, y float64) bool {
	if t.ctx.Err() != nil {
		return false
	}
	if !t.limiter.AllowN(t.now(), 1) {
		return false
	}
	if t.emitter == nil {
		return true
	}
	if err := t.emitter.Emit(model.EventCursorMove, model.CursorMove{X: x, Y: y, Color: t.selfColor}); err != nil {
		log.Printf("[Cursor] ⚠️ cursor-move emit failed: %v", err)
		return false
	}
	return true
}

// Locate 참가자의 마지막 커서 위치에 깜빡이는 마커 표시
// 커서가 없으면 false
func (t *Tracker) Locate(participantID string) bool {
	if t.ctx.Err() != nil {
		return false
	}
	cur, ok := t.Cursor(participantID)
	if !ok {
		return false
	}

	t.stopMarker(participantID)

	key := MarkerKey(participantID)
	t.scene.PutOverlay(scene.Overlay{
		Key:           key,
		Kind:          scene.OverlayMarker,
		ParticipantID: participantID,
		X:             cur.X,
		Y:             cur.Y,
		Color:         cur.Color,
		Label:         cur.Label,
		Visible:       true,
	})

	ctx, cancel := context.WithCancel(t.ctx)
	t.markers[participantID] = cancel
	go t.blink(ctx, participantID, key)
	return true
}

// blink 타이머 고루틴: 상태 변경은 dispatch로 이벤트 루프에서 실행
func (t *Tracker) blink(ctx context.Context, participantID, key string) {
	ticker := time.NewTicker(BlinkInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(BlinkDuration)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.post(ctx, func() {
				if ov, ok := t.scene.Overlay(key); ok {
					ov.Visible = !ov.Visible
					t.scene.PutOverlay(ov)
				}
			})
		case <-deadline.C:
			t.post(ctx, func() {
				t.stopMarker(participantID)
			})
			return
		}
	}
}

// post 취소되지 않았을 때만 실행되는 클로저를 루프에 전달
func (t *Tracker) post(ctx context.Context, fn func()) {
	if t.dispatch == nil {
		return
	}
	t.dispatch(func() {
		if ctx.Err() != nil {
			return
		}
		fn()
	})
}

// stopMarker 마커 타이머 취소 및 오버레이 제거
func (t *Tracker) stopMarker(participantID string) {
	if cancel, ok := t.markers[participantID]; ok {
		cancel()
		delete(t.markers, participantID)
	}
	t.scene.RemoveOverlay(MarkerKey(participantID))
}

// ActiveMarkers 진행 중인 마커 수
func (t *Tracker) ActiveMarkers() int {
	return len(t.markers)
}

// Close 모든 타이머 취소 (이후 도착하는 클로저는 아무것도 하지 않음)
func (t *Tracker) Close() {
	t.cancel()
	for id := range t.markers {
		t.stopMarker(id)
	}
}
