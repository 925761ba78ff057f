package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 세션 허브 지표
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	MessagesRelayed   *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

// New 프로세스 전역 지표 (한 번만 등록)
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sketch_hub_active_connections",
				Help: "Current number of connected sessions",
			}),
			ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sketch_hub_active_rooms",
				Help: "Current number of rooms with at least one member",
			}),
			MessagesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sketch_hub_messages_relayed_total",
				Help: "Total number of messages relayed to room members",
			}, []string{"event"}),
			MessagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sketch_hub_messages_dropped_total",
				Help: "Total number of inbound or outbound messages dropped",
			}, []string{"reason"}),
		}
	})
	return metricsInstance
}

func (m *Metrics) Connected() {
	if m == nil || m.ActiveConnections == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *Metrics) Disconnected() {
	if m == nil || m.ActiveConnections == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) RoomOpened() {
	if m == nil || m.ActiveRooms == nil {
		return
	}
	m.ActiveRooms.Inc()
}

func (m *Metrics) RoomClosed() {
	if m == nil || m.ActiveRooms == nil {
		return
	}
	m.ActiveRooms.Dec()
}

// Relayed 중계된 메시지 수 (수신자 기준)
func (m *Metrics) Relayed(event string, recipients int) {
	if m == nil || m.MessagesRelayed == nil || recipients <= 0 {
		return
	}
	m.MessagesRelayed.WithLabelValues(event).Add(float64(recipients))
}

// Dropped reason: malformed, invalid_room, queue_full, not_member
func (m *Metrics) Dropped(reason string) {
	if m == nil || m.MessagesDropped == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}
