package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient presence 미러에서 쓰는 Redis 래퍼
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient Redis 연결 생성 (Ping 실패 시 에러)
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &RedisClient{client: client}, nil
}

// NewFromClient 이미 만들어진 클라이언트로 래퍼 생성
func NewFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// ReplaceHash 해시 전체를 교체하고 TTL 설정
func (r *RedisClient) ReplaceHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		values := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			values[k] = v
		}
		pipe.HSet(ctx, key, values)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// HGetAll 해시 전체 조회
func (r *RedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.client.HGetAll(ctx, key).Result()
}

// Expire TTL 연장
func (r *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// Delete 키 삭제
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// SAdd 집합에 멤버 추가
func (r *RedisClient) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SAdd(ctx, key, args...).Err()
}

// SRem 집합에서 멤버 제거
func (r *RedisClient) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.client.SRem(ctx, key, args...).Err()
}

// SMembers 집합 조회
func (r *RedisClient) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.client.SMembers(ctx, key).Result()
}

// Publish 채널 발행
func (r *RedisClient) Publish(ctx context.Context, channel string, message []byte) error {
	return r.client.Publish(ctx, channel, message).Err()
}

// Subscribe 채널 구독
func (r *RedisClient) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, channel)
}

// Health 연결 상태 확인
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 연결 종료
func (r *RedisClient) Close() error {
	return r.client.Close()
}
