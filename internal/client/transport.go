package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"realtime-sketch/internal/model"
)

var (
	// ErrNotConnected 연결이 끊긴 상태에서 전송 시도
	ErrNotConnected = errors.New("transport not connected")
	// ErrClosed 이미 닫힌 전송 채널
	ErrClosed = errors.New("transport closed")
)

const writeTimeout = 5 * time.Second

// State 전송 채널 상태
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport 자동 재연결 WebSocket 전송 채널
type Transport struct {
	url     string
	dialer  *websocket.Dialer
	retryer Retryer

	// 콜백은 모두 읽기 고루틴에서 호출됨
	OnMessage    func(data []byte)
	OnConnect    func()
	OnDisconnect func(err error)

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewTransport 생성자 (retryer가 nil이면 기본 지수 백오프)
func NewTransport(url string, retryer Retryer) *Transport {
	if retryer == nil {
		retryer = NewExponentialBackoffRetryer()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		url:     url,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		retryer: retryer,
		state:   StateDisconnected,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// State 현재 상태
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateClosed {
		return false
	}
	t.state = s
	return true
}

// Connect 최초 연결 후 읽기/재연결 루프 시작
// 최초 연결 실패는 재시도하지 않고 그대로 반환
func (t *Transport) Connect(ctx context.Context) error {
	if !t.setState(StateConnecting) {
		return ErrClosed
	}

	conn, err := t.dial(ctx)
	if err != nil {
		t.setState(StateDisconnected)
		return err
	}

	started := false
	t.once.Do(func() {
		started = true
		go t.run(conn)
	})
	if !started {
		conn.Close()
		return fmt.Errorf("transport already started")
	}
	return nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}

	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	t.conn = conn
	t.state = StateConnected
	t.mu.Unlock()

	log.Printf("[Transport] 🔌 Connected to %s", t.url)
	return conn, nil
}

// run 연결이 끊길 때마다 백오프 후 재연결
func (t *Transport) run(conn *websocket.Conn) {
	defer close(t.done)

	for {
		if t.OnConnect != nil {
			t.OnConnect()
		}

		err := t.readLoop(conn)
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
		conn.Close()

		if t.ctx.Err() != nil {
			return
		}
		t.setState(StateDisconnected)
		log.Printf("[Transport] ⚠️ Connection lost: %v", err)
		if t.OnDisconnect != nil {
			t.OnDisconnect(err)
		}

		conn = t.reconnect(err)
		if conn == nil {
			return
		}
	}
}

func (t *Transport) readLoop(conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if t.OnMessage != nil {
			t.OnMessage(data)
		}
	}
}

// reconnect 성공한 연결을 반환, 닫히거나 재시도 한도에 도달하면 nil
func (t *Transport) reconnect(lastErr error) *websocket.Conn {
	for attempt := 0; ; attempt++ {
		delay, ok := t.retryer.NextDelay(attempt, lastErr)
		if !ok {
			log.Printf("[Transport] ❌ Giving up after %d attempts: %v", attempt, lastErr)
			t.setState(StateDisconnected)
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-t.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if !t.setState(StateConnecting) {
			return nil
		}
		conn, err := t.dial(t.ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || t.ctx.Err() != nil {
				return nil
			}
			t.setState(StateDisconnected)
			lastErr = err
			log.Printf("[Transport] 🔄 Reconnect attempt %d failed: %v", attempt+1, err)
			continue
		}

		t.retryer.Reset()
		return conn
	}
}

// Send 이벤트 전송
func (t *Transport) Send(event model.Event, payload any) error {
	data, err := model.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	t.mu.Lock()
	conn, state := t.conn, t.state
	t.mu.Unlock()

	switch {
	case state == StateClosed:
		return ErrClosed
	case conn == nil || state != StateConnected:
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return nil
}

// Drop 현재 연결만 끊음 (재연결 루프는 유지)
func (t *Transport) Drop() {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Close 연결 종료 후 루프가 끝날 때까지 대기
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = StateClosed
	conn := t.conn
	t.mu.Unlock()

	t.cancel()

	started := true
	t.once.Do(func() {
		started = false
		close(t.done)
	})

	if conn != nil {
		t.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		conn.Close()
	}

	if started {
		<-t.done
	}
	log.Printf("[Transport] 👋 Closed")
	return nil
}
