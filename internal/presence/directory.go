package presence

import (
	"sync"

	"realtime-sketch/internal/model"
)

// Mirror 방 참여자 목록을 외부 저장소에 복제 (Redis 등)
type Mirror interface {
	Publish(roomID string, participants []model.Participant)
	Forget(roomID string)
}

// roster 방 하나의 참여자 목록 (입장 순서 유지)
type roster struct {
	mu    sync.RWMutex
	byID  map[string]model.Participant
	order []string
}

func newRoster() *roster {
	return &roster{byID: make(map[string]model.Participant)}
}

func (r *roster) snapshot() []model.Participant {
	list := make([]model.Participant, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.byID[id])
	}
	return list
}

// Directory 방별 참여자 디렉터리
type Directory struct {
	rooms  map[string]*roster
	mu     sync.RWMutex
	mirror Mirror
}

// NewDirectory 생성자 (mirror는 nil 가능)
func NewDirectory(mirror Mirror) *Directory {
	return &Directory{
		rooms:  make(map[string]*roster),
		mirror: mirror,
	}
}

// Upsert 참여자 등록/갱신 후 현재 목록 반환
// 이미 있는 참여자는 순서를 유지한 채 이름/색상만 바뀜
func (d *Directory) Upsert(roomID string, p model.Participant) []model.Participant {
	d.mu.Lock()
	r, ok := d.rooms[roomID]
	if !ok {
		r = newRoster()
		d.rooms[roomID] = r
	}
	d.mu.Unlock()

	r.mu.Lock()
	if _, exists := r.byID[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
	list := r.snapshot()
	r.mu.Unlock()

	if d.mirror != nil {
		d.mirror.Publish(roomID, list)
	}
	return list
}

// Remove 참여자 제거
// 반환: 제거된 참여자, 존재 여부, 남은 목록
func (d *Directory) Remove(roomID, participantID string) (model.Participant, bool, []model.Participant) {
	d.mu.Lock()
	r, ok := d.rooms[roomID]
	if !ok {
		d.mu.Unlock()
		return model.Participant{}, false, nil
	}

	r.mu.Lock()
	p, exists := r.byID[participantID]
	if exists {
		delete(r.byID, participantID)
		for i, id := range r.order {
			if id == participantID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	list := r.snapshot()
	empty := len(r.order) == 0
	r.mu.Unlock()

	if empty {
		delete(d.rooms, roomID)
	}
	d.mu.Unlock()

	if exists && d.mirror != nil {
		if empty {
			d.mirror.Forget(roomID)
		} else {
			d.mirror.Publish(roomID, list)
		}
	}
	return p, exists, list
}

// List 방 참여자 목록 (입장 순서)
func (d *Directory) List(roomID string) []model.Participant {
	d.mu.RLock()
	r, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return []model.Participant{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot()
}

// Get 참여자 조회
func (d *Directory) Get(roomID, participantID string) (model.Participant, bool) {
	d.mu.RLock()
	r, ok := d.rooms[roomID]
	d.mu.RUnlock()
	if !ok {
		return model.Participant{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.byID[participantID]
	return p, exists
}

// Drop 방 전체 제거
func (d *Directory) Drop(roomID string) {
	d.mu.Lock()
	_, ok := d.rooms[roomID]
	delete(d.rooms, roomID)
	d.mu.Unlock()

	if ok && d.mirror != nil {
		d.mirror.Forget(roomID)
	}
}

// Rooms 참여자가 있는 방 ID 목록
func (d *Directory) Rooms() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.rooms))
	for id := range d.rooms {
		ids = append(ids, id)
	}
	return ids
}
