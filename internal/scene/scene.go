// Package scene 클라이언트 로컬 장면 상태.
// 드로잉 오브젝트(id 유일, 순서 유지)와 커서/마커 오버레이 레이어를 분리해서 관리한다.
// 단일 이벤트 루프에서만 접근한다고 가정하므로 잠금이 없다.
package scene

import (
	"encoding/json"
	"fmt"
)

// OverlayKind 오버레이 종류
type OverlayKind string

const (
	OverlayCursor OverlayKind = "cursor"
	OverlayMarker OverlayKind = "marker"
)

// Overlay 장면에 표시되지만 저장/히스토리에 포함되지 않는 엔티티
type Overlay struct {
	Key           string
	Kind          OverlayKind
	ParticipantID string
	X, Y          float64
	Color         string
	Label         string
	Visible       bool
}

// Scene 드로잉 오브젝트 + 오버레이
type Scene struct {
	objects []*Object
	index   map[string]*Object

	overlays     map[string]Overlay
	overlayOrder []string

	onInsert func(*Object)
}

// New 빈 장면 생성
func New() *Scene {
	return &Scene{
		index:    make(map[string]*Object),
		overlays: make(map[string]Overlay),
	}
}

// SetInsertHook 오브젝트가 추가/병합될 때마다 호출 (도구 규칙 적용용)
func (s *Scene) SetInsertHook(fn func(*Object)) {
	s.onInsert = fn
}

// Put id 기준 upsert
// 없으면 새로 추가, 있으면 속성만 덮어쓰고 경계 재계산
func (s *Scene) Put(attrs map[string]any) (*Object, bool, error) {
	id, _ := attrs["id"].(string)
	if id == "" {
		return nil, false, ErrMissingID
	}

	if existing, ok := s.index[id]; ok {
		existing.merge(attrs)
		s.applyHook(existing)
		return existing, false, nil
	}

	o, err := NewObject(attrs)
	if err != nil {
		return nil, false, err
	}
	s.objects = append(s.objects, o)
	s.index[id] = o
	s.applyHook(o)
	return o, true, nil
}

func (s *Scene) applyHook(o *Object) {
	if s.onInsert != nil {
		s.onInsert(o)
	}
}

// Remove id로 삭제 (없으면 false)
func (s *Scene) Remove(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, o := range s.objects {
		if o.ID == id {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			break
		}
	}
	return true
}

// Get id로 조회
func (s *Scene) Get(id string) (*Object, bool) {
	o, ok := s.index[id]
	return o, ok
}

// Objects 그리기 순서대로 오브젝트 목록 (아래 → 위)
func (s *Scene) Objects() []*Object {
	out := make([]*Object, len(s.objects))
	copy(out, s.objects)
	return out
}

// Len 오브젝트 수
func (s *Scene) Len() int {
	return len(s.objects)
}

// Snapshot 오브젝트만 JSON으로 직렬화 (오버레이 제외)
func (s *Scene) Snapshot() ([]byte, error) {
	return json.Marshal(s.objects)
}

// Load 스냅샷으로 장면 교체 (오버레이도 비움)
func (s *Scene) Load(data []byte) error {
	var list []map[string]any
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("load scene: %w", err)
	}

	objects := make([]*Object, 0, len(list))
	index := make(map[string]*Object, len(list))
	for _, attrs := range list {
		o, err := NewObject(attrs)
		if err != nil {
			return fmt.Errorf("load scene: %w", err)
		}
		if _, dup := index[o.ID]; dup {
			continue
		}
		objects = append(objects, o)
		index[o.ID] = o
	}

	s.objects = objects
	s.index = index
	s.overlays = make(map[string]Overlay)
	s.overlayOrder = nil

	for _, o := range s.objects {
		s.applyHook(o)
	}
	return nil
}

// PutOverlay 오버레이 추가/갱신
func (s *Scene) PutOverlay(ov Overlay) {
	if _, ok := s.overlays[ov.Key]; !ok {
		s.overlayOrder = append(s.overlayOrder, ov.Key)
	}
	s.overlays[ov.Key] = ov
}

// RemoveOverlay 오버레이 제거
func (s *Scene) RemoveOverlay(key string) bool {
	if _, ok := s.overlays[key]; !ok {
		return false
	}
	delete(s.overlays, key)
	for i, k := range s.overlayOrder {
		if k == key {
			s.overlayOrder = append(s.overlayOrder[:i], s.overlayOrder[i+1:]...)
			break
		}
	}
	return true
}

// Overlay 키로 오버레이 조회
func (s *Scene) Overlay(key string) (Overlay, bool) {
	ov, ok := s.overlays[key]
	return ov, ok
}

// Overlays 추가 순서대로 오버레이 목록
func (s *Scene) Overlays() []Overlay {
	out := make([]Overlay, 0, len(s.overlayOrder))
	for _, k := range s.overlayOrder {
		out = append(out, s.overlays[k])
	}
	return out
}
