package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"realtime-sketch/internal/model"
)

// ErrRoomNotFound 등록되지 않은 방
var ErrRoomNotFound = errors.New("room not found")

// RoomRepository 방 코드 → 호스트 이름 레지스트리
type RoomRepository struct {
	db *gorm.DB
}

// NewRoomRepository 생성자
func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// FindRoom 방 조회 (없으면 ErrRoomNotFound)
func (r *RoomRepository) FindRoom(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room %s: %w", roomID, err)
	}
	return &room, nil
}

// UpsertRoom 방 등록 (이미 있으면 호스트 이름 갱신)
func (r *RoomRepository) UpsertRoom(ctx context.Context, roomID, hostName string) (*model.Room, error) {
	now := time.Now()
	room := model.Room{
		RoomID:    roomID,
		HostName:  hostName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"host_name", "updated_at"}),
	}).Create(&room).Error
	if err != nil {
		return nil, fmt.Errorf("upsert room %s: %w", roomID, err)
	}
	return &room, nil
}

// CountRooms 등록된 방 수
func (r *RoomRepository) CountRooms(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Room{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return count, nil
}
