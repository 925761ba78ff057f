package main

import (
	"log"

	"gorm.io/gorm"

	"realtime-sketch/internal/cache"
	"realtime-sketch/internal/config"
	"realtime-sketch/internal/database"
	"realtime-sketch/internal/server"
)

func main() {
	// 설정 로드
	cfg := config.Load()

	// 데이터베이스 연결 (방 레지스트리, 실패해도 중계는 동작)
	var db *gorm.DB
	if cfg.Registry.Enabled {
		conn, err := database.ConnectDB()
		if err != nil {
			log.Printf("⚠️ Database connection failed: %v (room registry disabled)", err)
		} else if err := database.Ping(); err != nil {
			log.Printf("⚠️ Database ping failed: %v (room registry disabled)", err)
			_ = database.Close()
		} else {
			db = conn
			defer database.Close()
			log.Printf("✅ Database connected successfully")
		}
	}

	// Redis 연결 (presence 미러)
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("⚠️ Redis connection failed: %v (presence mirror disabled)", err)
		} else {
			redisClient = rc
			defer redisClient.Close()
		}
	}

	// 서버 생성 및 설정
	srv := server.New(cfg, db, redisClient)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
