package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Registry  RegistryConfig
	Presence  PresenceConfig
}

// RedisConfig Redis 설정 (presence 미러)
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// RegistryConfig 방 레지스트리 설정
type RegistryConfig struct {
	Enabled        bool
	CreateLimit    int
	CreateInterval time.Duration
}

// PresenceConfig presence 미러 설정
type PresenceConfig struct {
	ServerID          string
	MirrorTTL         time.Duration
	HeartbeatSchedule string // cron 표현식
	QueueSize         int
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	WriteTimeout    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int // 연결당 송신 큐 길이
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	loadDotEnv()

	hostname, _ := os.Hostname()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":3001"),
			ReadTimeout:     getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize: getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
			WriteTimeout:    getDuration("WS_WRITE_TIMEOUT", 5*time.Second),
			MaxMessageSize:  int64(getInt("WS_MAX_MESSAGE_SIZE", 4*1024*1024)), // 이미지 오브젝트 포함
			SendBufferSize:  getInt("WS_SEND_BUFFER_SIZE", 256),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Registry: RegistryConfig{
			Enabled:        getBool("REGISTRY_ENABLED", true),
			CreateLimit:    getInt("REGISTRY_CREATE_LIMIT", 10),
			CreateInterval: getDuration("REGISTRY_CREATE_INTERVAL", 1*time.Minute),
		},
		Presence: PresenceConfig{
			ServerID:          getEnv("SERVER_ID", hostname),
			MirrorTTL:         getDuration("PRESENCE_TTL", 60*time.Second),
			HeartbeatSchedule: getEnv("PRESENCE_HEARTBEAT", "@every 30s"),
			QueueSize:         getInt("PRESENCE_QUEUE_SIZE", 256),
		},
	}
}

// ClientConfig 헤드리스 클라이언트(sketchctl) 기본 설정
type ClientConfig struct {
	ServerURL       string
	RegistryURL     string
	Name            string
	Color           string
	RegistryTimeout time.Duration
	CursorInterval  time.Duration
	EraserSize      int
}

// LoadClient 환경 변수에서 클라이언트 설정 로드 (플래그로 덮어씀)
func LoadClient() *ClientConfig {
	loadDotEnv()

	return &ClientConfig{
		ServerURL:       getEnv("SKETCH_SERVER_URL", "ws://localhost:3001/ws"),
		RegistryURL:     getEnv("SKETCH_REGISTRY_URL", "http://localhost:3001"),
		Name:            getEnv("SKETCH_NAME", ""),
		Color:           getEnv("SKETCH_COLOR", ""),
		RegistryTimeout: getDuration("SKETCH_REGISTRY_TIMEOUT", 3*time.Second),
		CursorInterval:  getDuration("SKETCH_CURSOR_INTERVAL", 50*time.Millisecond),
		EraserSize:      getInt("SKETCH_ERASER_SIZE", 30),
	}
}

// loadDotEnv .env 파일 로드 (없어도 에러 무시)
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getBool 불리언 환경 변수 조회
func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
