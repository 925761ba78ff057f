// Package registry 방 레지스트리 HTTP 클라이언트.
// 레지스트리는 호스트 이름 표시에만 쓰이므로 실패해도 입장을 막지 않는다.
package registry

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"realtime-sketch/internal/model"
	"realtime-sketch/internal/roomcode"
)

// DefaultTimeout 레지스트리 요청 타임아웃
const DefaultTimeout = 3 * time.Second

var (
	// ErrRoomNotFound 등록되지 않은 방
	ErrRoomNotFound = errors.New("room not registered")
	// ErrUnavailable 레지스트리 응답 실패
	ErrUnavailable = errors.New("room registry unavailable")
)

// Client 레지스트리 클라이언트
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient 생성자
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// Lookup 방 조회
func (c *Client) Lookup(roomID string) (*model.RoomLookupResponse, error) {
	id, err := roomcode.Parse(roomID)
	if err != nil {
		return nil, err
	}

	var resp model.RoomLookupResponse
	agent := fiber.Get(c.baseURL + "/room-lookup").
		QueryString("room_id=" + url.QueryEscape(id)).
		Timeout(c.timeout)

	code, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: lookup %s: %w", ErrUnavailable, id, errors.Join(errs...))
	}

	switch {
	case code == fiber.StatusNotFound:
		return nil, ErrRoomNotFound
	case code != fiber.StatusOK:
		return nil, fmt.Errorf("%w: lookup %s: status %d (%s)", ErrUnavailable, id, code, resp.Message)
	case !resp.Exists:
		return nil, ErrRoomNotFound
	}
	return &resp, nil
}

// Create 방 등록 (이미 있으면 호스트 이름 갱신)
func (c *Client) Create(roomID, hostName string) (*model.RoomCreateResponse, error) {
	id, err := roomcode.Parse(roomID)
	if err != nil {
		return nil, err
	}

	var resp model.RoomCreateResponse
	agent := fiber.Post(c.baseURL + "/room-create").
		JSON(model.RoomCreateRequest{RoomID: id, HostName: hostName}).
		Timeout(c.timeout)

	code, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: create %s: %w", ErrUnavailable, id, errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("%w: create %s: status %d (%s)", ErrUnavailable, id, code, resp.Message)
	}
	return &resp, nil
}

// HostName 방 호스트 이름 (어떤 실패든 기본 이름으로 대체)
func (c *Client) HostName(roomID string) string {
	resp, err := c.Lookup(roomID)
	if err != nil {
		if !errors.Is(err, ErrRoomNotFound) {
			log.Printf("[Registry] ⚠️ host lookup %s failed: %v", roomID, err)
		}
		return model.PlaceholderHostName
	}

	name := model.TrimDisplayName(resp.HostName)
	if name == "" {
		return model.PlaceholderHostName
	}
	return name
}
