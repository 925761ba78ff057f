package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"realtime-sketch/internal/model"
)

// UpdatesChannel presence 변경 pub/sub 채널
const UpdatesChannel = "presence_updates"

// Store RedisMirror가 쓰는 저장소 동작 (cache.RedisClient가 구현)
type Store interface {
	ReplaceHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	Publish(ctx context.Context, channel string, message []byte) error
}

// Entry Redis 해시에 저장되는 참여자 데이터
type Entry struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Order int    `json:"order"`
}

// Update presence_updates 채널로 발행되는 메시지
type Update struct {
	ServerID     string              `json:"server_id"`
	RoomID       string              `json:"room_id"`
	Participants []model.Participant `json:"participants"`
	UpdatedAt    int64               `json:"updated_at"`
}

// RedisMirror 참여자 목록을 Redis에 비동기로 복제
// 작업은 큐 순서대로 하나의 워커가 처리하고, 큐가 가득 차면 버림
type RedisMirror struct {
	store    Store
	serverID string
	ttl      time.Duration

	jobs chan func(ctx context.Context)
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	rooms map[string]struct{} // 미러 중인 방
}

// NewRedisMirror 생성자
func NewRedisMirror(store Store, serverID string, ttl time.Duration, queueSize int) *RedisMirror {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &RedisMirror{
		store:    store,
		serverID: serverID,
		ttl:      ttl,
		jobs:     make(chan func(ctx context.Context), queueSize),
		done:     make(chan struct{}),
		rooms:    make(map[string]struct{}),
	}
}

// RoomKey 방 presence 해시 키
func RoomKey(roomID string) string {
	return fmt.Sprintf("presence:room:%s", roomID)
}

func (m *RedisMirror) serverKey() string {
	return fmt.Sprintf("presence:server:%s:rooms", m.serverID)
}

// Run 워커 루프 (ctx 취소 또는 Close 시 종료)
func (m *RedisMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case job := <-m.jobs:
			jobCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			job(jobCtx)
			cancel()
		}
	}
}

// Close 워커 종료
func (m *RedisMirror) Close() {
	m.once.Do(func() { close(m.done) })
}

func (m *RedisMirror) enqueue(kind, roomID string, job func(ctx context.Context)) {
	select {
	case m.jobs <- job:
	default:
		log.Printf("[Presence] ⚠️ mirror queue full, dropping %s for room %s", kind, roomID)
	}
}

// Publish 방 목록 복제 (비동기)
func (m *RedisMirror) Publish(roomID string, participants []model.Participant) {
	list := make([]model.Participant, len(participants))
	copy(list, participants)

	m.mu.Lock()
	m.rooms[roomID] = struct{}{}
	m.mu.Unlock()

	m.enqueue("publish", roomID, func(ctx context.Context) {
		if err := m.write(ctx, roomID, list); err != nil {
			log.Printf("[Presence] ❌ mirror write failed for room %s: %v", roomID, err)
		}
	})
}

// Forget 방 복제 제거 (비동기)
func (m *RedisMirror) Forget(roomID string) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()

	m.enqueue("forget", roomID, func(ctx context.Context) {
		if err := m.remove(ctx, roomID); err != nil {
			log.Printf("[Presence] ❌ mirror delete failed for room %s: %v", roomID, err)
		}
	})
}

func (m *RedisMirror) write(ctx context.Context, roomID string, list []model.Participant) error {
	fields := make(map[string]string, len(list))
	for i, p := range list {
		data, err := json.Marshal(Entry{Name: p.Name, Color: p.Color, Order: i})
		if err != nil {
			return err
		}
		fields[p.ID] = string(data)
	}

	if err := m.store.ReplaceHash(ctx, RoomKey(roomID), fields, m.ttl); err != nil {
		return err
	}
	if err := m.store.SAdd(ctx, m.serverKey(), roomID); err != nil {
		return err
	}
	return m.publish(ctx, roomID, list)
}

func (m *RedisMirror) remove(ctx context.Context, roomID string) error {
	if err := m.store.Delete(ctx, RoomKey(roomID)); err != nil {
		return err
	}
	if err := m.store.SRem(ctx, m.serverKey(), roomID); err != nil {
		return err
	}
	return m.publish(ctx, roomID, []model.Participant{})
}

func (m *RedisMirror) publish(ctx context.Context, roomID string, list []model.Participant) error {
	data, err := json.Marshal(Update{
		ServerID:     m.serverID,
		RoomID:       roomID,
		Participants: list,
		UpdatedAt:    time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return m.store.Publish(ctx, UpdatesChannel, data)
}

// Refresh 미러 중인 방들의 TTL 연장 (cron heartbeat)
func (m *RedisMirror) Refresh() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	m.enqueue("refresh", "*", func(ctx context.Context) {
		for _, id := range ids {
			if err := m.store.Expire(ctx, RoomKey(id), m.ttl); err != nil {
				log.Printf("[Presence] ⚠️ heartbeat failed for room %s: %v", id, err)
			}
		}
		if err := m.store.Expire(ctx, m.serverKey(), m.ttl); err != nil {
			log.Printf("[Presence] ⚠️ heartbeat failed for server %s: %v", m.serverID, err)
		}
	})
}

// Snapshot Redis에 복제된 방 참여자 목록 조회 (입장 순서)
func (m *RedisMirror) Snapshot(ctx context.Context, roomID string) ([]model.Participant, error) {
	fields, err := m.store.HGetAll(ctx, RoomKey(roomID))
	if err != nil {
		return nil, err
	}

	type ordered struct {
		p     model.Participant
		order int
	}
	entries := make([]ordered, 0, len(fields))
	for id, raw := range fields {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, ordered{
			p:     model.Participant{ID: id, Name: e.Name, Color: e.Color},
			order: e.Order,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	list := make([]model.Participant, len(entries))
	for i, e := range entries {
		list[i] = e.p
	}
	return list, nil
}
