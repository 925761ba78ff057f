package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Pinger 상태 확인 대상 (cache.RedisClient 등)
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	db    *gorm.DB
	redis Pinger
	hub   *SessionHub
}

// NewHealthHandler HealthHandler 생성 (db, redis는 nil 가능)
func NewHealthHandler(db *gorm.DB, redis Pinger, hub *SessionHub) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, hub: hub}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status      string                    `json:"status"`
	Timestamp   string                    `json:"timestamp"`
	Connections int                       `json:"connections"`
	Rooms       int                       `json:"rooms"`
	Checks      map[string]ComponentCheck `json:"checks"`
}

// Check 전체 상태 확인 (DB + Redis)
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}
	if h.hub != nil {
		response.Connections, response.Rooms = h.hub.Stats()
	}

	// 1. Database 체크 (레지스트리)
	if h.db != nil {
		dbStart := time.Now()
		if err := h.pingDB(); err != nil {
			response.Status = "unhealthy"
			response.Checks["database"] = ComponentCheck{
				Status: "unhealthy",
				Error:  "database ping failed",
			}
		} else {
			response.Checks["database"] = ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(dbStart).String(),
			}
		}
	} else {
		response.Checks["database"] = ComponentCheck{Status: "not_configured"}
	}

	// 2. Redis 체크 (presence 미러, 실패해도 중계는 동작)
	if h.redis != nil {
		redisStart := time.Now()
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		err := h.redis.Health(ctx)
		cancel()
		if err != nil {
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
			response.Checks["redis"] = ComponentCheck{
				Status: "degraded",
				Error:  "redis unreachable",
			}
		} else {
			response.Checks["redis"] = ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(redisStart).String(),
			}
		}
	} else {
		response.Checks["redis"] = ComponentCheck{Status: "not_configured"}
	}

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(response)
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness K8s readiness probe용 (DB가 설정된 경우에만 DB 체크)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if h.db != nil {
		if err := h.pingDB(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
		}
	}
	return c.SendString("READY")
}

func (h *HealthHandler) pingDB() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
