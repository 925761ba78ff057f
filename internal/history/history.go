// Package history 장면 스냅샷 기반 실행 취소/다시 실행.
package history

import (
	"log"

	"realtime-sketch/internal/scene"
)

// DefaultLimit 보관하는 최대 스냅샷 수
const DefaultLimit = 50

// State 히스토리 상태
type State int

const (
	StateIdle      State = iota // 대기
	StateCapturing              // 스냅샷 저장 중
	StateRestoring              // 스냅샷 적용 중 (또는 외부 변경 적용 중)
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// Manager 선형 스냅샷 스택
type Manager struct {
	scene     *scene.Scene
	snapshots [][]byte
	step      int
	state     State
	limit     int
}

// New 생성자 (현재 장면을 첫 스냅샷으로 저장)
func New(sc *scene.Scene) *Manager {
	return NewWithLimit(sc, DefaultLimit)
}

// NewWithLimit 최대 스냅샷 수 지정
func NewWithLimit(sc *scene.Scene, limit int) *Manager {
	if limit < 1 {
		limit = 1
	}
	m := &Manager{scene: sc, step: -1, limit: limit}
	m.Capture()
	return m
}

// transition from 상태일 때만 to로 전환
func (m *Manager) transition(from, to State) bool {
	if m.state != from {
		return false
	}
	m.state = to
	return true
}

// Capture 현재 장면 저장
// 복원 중이거나 이미 저장 중이면 무시
func (m *Manager) Capture() bool {
	if !m.transition(StateIdle, StateCapturing) {
		return false
	}
	defer m.transition(StateCapturing, StateIdle)

	data, err := m.scene.Snapshot()
	if err != nil {
		log.Printf("[History] ⚠️ snapshot failed: %v", err)
		return false
	}

	// 되돌린 상태에서 새로 저장하면 redo 구간 삭제
	m.snapshots = append(m.snapshots[:m.step+1], data)
	m.step++

	if len(m.snapshots) > m.limit {
		m.snapshots = m.snapshots[1:]
		m.step--
	}
	return true
}

// Hold 캡처를 막은 상태로 fn 실행 (원격 변경 적용 등)
// 이미 복원 중이면 그대로 실행
func (m *Manager) Hold(fn func()) {
	if !m.transition(StateIdle, StateRestoring) {
		fn()
		return
	}
	defer m.transition(StateRestoring, StateIdle)
	fn()
}

// Undo 이전 스냅샷으로 (처음이면 무시)
func (m *Manager) Undo() bool {
	if m.step <= 0 {
		return false
	}
	return m.restore(m.step - 1)
}

// Redo 다음 스냅샷으로 (마지막이면 무시)
func (m *Manager) Redo() bool {
	if m.step >= len(m.snapshots)-1 {
		return false
	}
	return m.restore(m.step + 1)
}

// restore 스냅샷 적용 (오버레이는 유지)
func (m *Manager) restore(target int) bool {
	if !m.transition(StateIdle, StateRestoring) {
		return false
	}
	defer m.transition(StateRestoring, StateIdle)

	overlays := m.scene.Overlays()
	if err := m.scene.Load(m.snapshots[target]); err != nil {
		log.Printf("[History] ❌ restore step %d failed: %v", target, err)
		return false
	}
	for _, ov := range overlays {
		m.scene.PutOverlay(ov)
	}

	m.step = target
	return true
}

// CanUndo 실행 취소 가능 여부
func (m *Manager) CanUndo() bool {
	return m.step > 0
}

// CanRedo 다시 실행 가능 여부
func (m *Manager) CanRedo() bool {
	return m.step < len(m.snapshots)-1
}

// Len 저장된 스냅샷 수
func (m *Manager) Len() int {
	return len(m.snapshots)
}

// Step 현재 스냅샷 위치
func (m *Manager) Step() int {
	return m.step
}

// State 현재 상태
func (m *Manager) State() State {
	return m.state
}
