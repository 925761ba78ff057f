package model

import (
	"time"
)

// Room 방 레지스트리 (방 코드 -> 호스트 이름)
type Room struct {
	RoomID    string    `gorm:"primaryKey;type:varchar(10)" json:"room_id"`
	HostName  string    `gorm:"type:varchar(100);not null" json:"host_name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomLookupResponse GET /room-lookup 응답
type RoomLookupResponse struct {
	Status   string `json:"status"`
	Exists   bool   `json:"exists"`
	HostName string `json:"host_name,omitempty"`
	Message  string `json:"message,omitempty"`
}

// RoomCreateRequest POST /room-create 요청 (JSON 또는 form)
type RoomCreateRequest struct {
	RoomID   string `json:"room_id" form:"room_id"`
	HostName string `json:"host_name" form:"host_name"`
}

// RoomCreateResponse POST /room-create 응답
type RoomCreateResponse struct {
	Status  string `json:"status"`
	RoomID  string `json:"room_id,omitempty"`
	Host    string `json:"host,omitempty"`
	Message string `json:"message,omitempty"`
}
