package handler

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"realtime-sketch/internal/database"
	"realtime-sketch/internal/model"
	"realtime-sketch/internal/roomcode"
)

// maxHostNameLength rooms.host_name 컬럼 길이
const maxHostNameLength = 100

// RoomStore 방 레지스트리 저장소
type RoomStore interface {
	FindRoom(ctx context.Context, roomID string) (*model.Room, error)
	UpsertRoom(ctx context.Context, roomID, hostName string) (*model.Room, error)
}

// RoomHandler 방 레지스트리 HTTP 핸들러
type RoomHandler struct {
	store RoomStore
}

// NewRoomHandler 생성자 (store가 nil이면 503 응답)
func NewRoomHandler(store RoomStore) *RoomHandler {
	return &RoomHandler{store: store}
}

// Lookup 방 존재 여부 확인
// GET /room-lookup?room_id=X
func (h *RoomHandler) Lookup(c *fiber.Ctx) error {
	if h.store == nil {
		return registryDisabled(c)
	}

	roomID := roomcode.Normalize(c.Query("room_id"))
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.RoomLookupResponse{
			Status:  "error",
			Message: "No Room ID provided",
		})
	}
	if !roomcode.Valid(roomID) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(model.RoomLookupResponse{
			Status:  "error",
			Message: "Invalid room code",
		})
	}

	room, err := h.store.FindRoom(c.UserContext(), roomID)
	if errors.Is(err, database.ErrRoomNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(model.RoomLookupResponse{
			Status:  "success",
			Exists:  false,
			Message: "Room not found",
		})
	}
	if err != nil {
		log.Printf("[Registry] ❌ lookup %s failed: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(model.RoomLookupResponse{
			Status:  "error",
			Message: "Lookup failed",
		})
	}

	return c.JSON(model.RoomLookupResponse{
		Status:   "success",
		Exists:   true,
		HostName: room.HostName,
	})
}

// Create 방 등록 또는 호스트 이름 갱신
// POST /room-create (JSON 또는 form)
func (h *RoomHandler) Create(c *fiber.Ctx) error {
	if h.store == nil {
		return registryDisabled(c)
	}

	var req model.RoomCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.RoomCreateResponse{
			Status:  "error",
			Message: "Invalid request body",
		})
	}

	roomID := roomcode.Normalize(req.RoomID)
	hostName := strings.TrimSpace(req.HostName)
	if roomID == "" || hostName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(model.RoomCreateResponse{
			Status:  "error",
			Message: "Incomplete data",
		})
	}
	if !roomcode.Valid(roomID) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(model.RoomCreateResponse{
			Status:  "error",
			Message: "Invalid room code",
		})
	}
	if runes := []rune(hostName); len(runes) > maxHostNameLength {
		hostName = string(runes[:maxHostNameLength])
	}

	if _, err := h.store.UpsertRoom(c.UserContext(), roomID, hostName); err != nil {
		log.Printf("[Registry] ❌ create %s failed: %v", roomID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(model.RoomCreateResponse{
			Status:  "error",
			Message: "Create failed",
		})
	}

	log.Printf("[Registry] ✅ Room %s registered (host=%q)", roomID, hostName)
	return c.JSON(model.RoomCreateResponse{
		Status: "success",
		RoomID: roomID,
		Host:   hostName,
	})
}

func registryDisabled(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"status":  "error",
		"message": "room registry is not configured",
	})
}
