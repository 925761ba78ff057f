package handler

import (
	"log"

	"github.com/gofiber/contrib/websocket"

	"realtime-sketch/internal/config"
	"realtime-sketch/internal/session"
)

// SessionWSHandler 드로잉 세션 WebSocket 핸들러
type SessionWSHandler struct {
	hub *SessionHub
	cfg config.WebSocketConfig
}

// NewSessionWSHandler 생성자
func NewSessionWSHandler(hub *SessionHub, cfg config.WebSocketConfig) *SessionWSHandler {
	return &SessionWSHandler{hub: hub, cfg: cfg}
}

// HandleWebSocket 연결 하나 처리 (읽기는 현재 goroutine, 쓰기는 write pump)
func (h *SessionWSHandler) HandleWebSocket(c *websocket.Conn) {
	sess := session.New(h.cfg.SendBufferSize)
	if h.cfg.MaxMessageSize > 0 {
		c.SetReadLimit(h.cfg.MaxMessageSize)
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		if err := sess.WritePump(c, h.cfg.WriteTimeout); err != nil {
			log.Printf("⚠️ [%s] Write error: %v", sess.ID, err)
			// 읽기 루프도 종료시킴
			_ = c.Close()
		}
	}()

	h.hub.Register(sess)

	defer func() {
		h.hub.Disconnect(sess)
		sess.Close()
		<-pumpDone
		_ = c.Close()
	}()

	h.receiveLoop(c, sess)
}

// receiveLoop 메시지 수신 후 허브로 전달
func (h *SessionWSHandler) receiveLoop(c *websocket.Conn, sess *session.Session) {
	for {
		messageType, msg, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ℹ️ [%s] Client disconnected normally", sess.ID)
			} else if websocket.IsUnexpectedCloseError(err) {
				log.Printf("⚠️ [%s] Unexpected disconnect: %v", sess.ID, err)
			} else {
				log.Printf("❌ [%s] Read error: %v", sess.ID, err)
			}
			return
		}

		if messageType != websocket.TextMessage || len(msg) == 0 {
			continue
		}

		h.hub.Dispatch(sess, msg)
	}
}
