package client

import (
	"math"
	"math/rand"
	"time"
)

// Retryer 재연결 대기 전략
type Retryer interface {
	// NextDelay attempt는 0부터 시작, false면 재시도 중단
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset 연결 성공 시 호출
	Reset()
}

// ExponentialBackoffRetryer 지수 백오프 + 지터
type ExponentialBackoffRetryer struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   int // 0이면 무제한
	Jitter       bool
	JitterFactor float64 // 0.0 ~ 1.0
}

// NewExponentialBackoffRetryer 기본값: 1s 시작, 최대 30s, 2배, ±30% 지터
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		JitterFactor: 0.3,
	}
}

// NextDelay Retryer 구현
func (r *ExponentialBackoffRetryer) NextDelay(attempt int, _ error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}

	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter && r.JitterFactor > 0 {
		delay += delay * r.JitterFactor * (2*rand.Float64() - 1)
		if delay < 0 {
			delay = float64(r.InitialDelay)
		}
	}

	return time.Duration(delay), true
}

// Reset Retryer 구현 (상태 없음)
func (r *ExponentialBackoffRetryer) Reset() {}
