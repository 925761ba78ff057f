package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"realtime-sketch/internal/cache"
	"realtime-sketch/internal/config"
	"realtime-sketch/internal/database"
	"realtime-sketch/internal/handler"
	"realtime-sketch/internal/metrics"
	"realtime-sketch/internal/presence"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Server Fiber 서버 래퍼
type Server struct {
	app           *fiber.App
	cfg           *config.Config
	db            *gorm.DB
	redis         *cache.RedisClient
	hub           *handler.SessionHub
	mirror        *presence.RedisMirror
	wsHandler     *handler.SessionWSHandler
	roomHandler   *handler.RoomHandler
	healthHandler *handler.HealthHandler
	scheduler     *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// New 새 서버 인스턴스 생성 (db, redis는 nil 가능)
func New(cfg *config.Config, db *gorm.DB, redis *cache.RedisClient) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Realtime Sketch Relay",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())

	// presence 미러 (Redis 설정 시)
	var mirror *presence.RedisMirror
	var dirMirror presence.Mirror
	var pinger handler.Pinger
	if redis != nil {
		mirror = presence.NewRedisMirror(redis, cfg.Presence.ServerID, cfg.Presence.MirrorTTL, cfg.Presence.QueueSize)
		dirMirror = mirror
		pinger = redis
	} else {
		log.Println("ℹ️ Redis not configured (presence mirror disabled)")
	}

	hub := handler.NewSessionHub(presence.NewDirectory(dirMirror), metrics.New())

	// 방 레지스트리 (DB 설정 시)
	var roomStore handler.RoomStore
	if db != nil && cfg.Registry.Enabled {
		roomStore = database.NewRoomRepository(db)
	} else {
		log.Println("ℹ️ Room registry not configured (/room-lookup, /room-create return 503)")
	}

	return &Server{
		app:           app,
		cfg:           cfg,
		db:            db,
		redis:         redis,
		hub:           hub,
		mirror:        mirror,
		wsHandler:     handler.NewSessionWSHandler(hub, cfg.WebSocket),
		roomHandler:   handler.NewRoomHandler(roomStore),
		healthHandler: handler.NewHealthHandler(db, pinger, hub),
		scheduler:     cron.New(cron.WithParser(cronParser)),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// App fiber 앱 반환
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub 세션 허브 반환
func (s *Server) Hub() *handler.SessionHub {
	return s.hub
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		Next: func(c *fiber.Ctx) bool {
			// 헬스체크/메트릭 스크래핑은 로그 생략
			switch c.Path() {
			case "/health/live", "/health/ready", "/metrics":
				return true
			}
			return false
		},
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORS.AllowOrigins,
		AllowHeaders: s.cfg.CORS.AllowHeaders,
		AllowMethods: "GET, POST, OPTIONS",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Realtime Sketch Relay Running")
	})

	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Prometheus
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Rate Limiter 설정 (방 등록 남용 방지)
	createLimiter := limiter.New(limiter.Config{
		Max:        s.cfg.Registry.CreateLimit,
		Expiration: s.cfg.Registry.CreateInterval,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // IP 기반 제한
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status":  "error",
				"message": "too many requests, please try again later",
			})
		},
	})

	// 방 레지스트리
	s.app.Get("/room-lookup", s.roomHandler.Lookup)
	s.app.Post("/room-create", createLimiter, s.roomHandler.Create)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// 드로잉 세션 엔드포인트
	s.app.Get("/ws", websocket.New(s.wsHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// StartBackground presence 미러 워커 및 cron 작업 시작
func (s *Server) StartBackground() error {
	if s.mirror != nil {
		go s.mirror.Run(s.ctx)

		if _, err := s.scheduler.AddFunc(s.cfg.Presence.HeartbeatSchedule, s.mirror.Refresh); err != nil {
			return fmt.Errorf("invalid presence heartbeat schedule %q: %w", s.cfg.Presence.HeartbeatSchedule, err)
		}
	}

	if _, err := s.scheduler.AddFunc("@every 1m", s.logStats); err != nil {
		return fmt.Errorf("schedule stats job: %w", err)
	}

	s.scheduler.Start()
	return nil
}

func (s *Server) logStats() {
	conns, rooms := s.hub.Stats()
	log.Printf("[SessionHub] 📊 connections=%d rooms=%d", conns, rooms)
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	if err := s.StartBackground(); err != nil {
		return err
	}

	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 Realtime Sketch Relay starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Serve 주어진 리스너로 서버 실행 (테스트용)
func (s *Server) Serve(ln net.Listener) error {
	if err := s.StartBackground(); err != nil {
		return err
	}
	return s.app.Listener(ln)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	stopCtx := s.scheduler.Stop()
	<-stopCtx.Done()

	if s.mirror != nil {
		s.mirror.Close()
	}
	s.cancel()

	return s.app.ShutdownWithTimeout(s.cfg.Server.ShutdownTimeout)
}
