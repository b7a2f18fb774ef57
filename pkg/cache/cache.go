package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL 상수 정의
const (
	TTLDraft    = 1 * time.Minute  // 초안 본문 (자주 갱신)
	TTLVersions = 5 * time.Minute  // 버전 목록
	TTLPresence = 30 * time.Second // 접속 세션 표시 (하트비트로 연장)
	TTLDefault  = 5 * time.Minute  // 기본값
)

// 캐시 키 접두사
const (
	PrefixDraft    = "draft:"
	PrefixVersions = "draft:versions:"
	PrefixPresence = "draft:presence:"
)

// Service Redis 캐시 서비스 인터페이스
type Service interface {
	// 기본 캐시 연산
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// 초안 캐시
	GetDraft(ctx context.Context, caseID string) ([]byte, error)
	SetDraft(ctx context.Context, caseID string, data interface{}) error
	InvalidateDraft(ctx context.Context, caseID string) error

	// 접속 세션 (peer is editing 표시용)
	MarkPresence(ctx context.Context, caseID, clientID string) error
	ListPresence(ctx context.Context, caseID string) ([]string, error)
	ClearPresence(ctx context.Context, caseID, clientID string) error

	// 유틸리티
	IsAvailable() bool
	Ping(ctx context.Context) error
}

// redisCache Redis 기반 캐시 구현
type redisCache struct {
	client *redis.Client
}

// NewService 새로운 캐시 서비스 생성
func NewService(client *redis.Client) Service {
	return &redisCache{client: client}
}

// IsAvailable Redis 연결 가능 여부
func (c *redisCache) IsAvailable() bool {
	return c.client != nil
}

// Ping Redis 연결 테스트
func (c *redisCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return c.client.Ping(ctx).Err()
}

// Get 캐시에서 값 조회
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return fmt.Errorf("redis not available")
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

// Set 캐시에 값 저장
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil // Redis 없으면 무시
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Delete 캐시 삭제
func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// ========================================
// 초안 캐시
// ========================================

func (c *redisCache) draftKey(caseID string) string {
	return PrefixDraft + caseID
}

func (c *redisCache) GetDraft(ctx context.Context, caseID string) ([]byte, error) {
	if c.client == nil {
		return nil, fmt.Errorf("redis not available")
	}
	return c.client.Get(ctx, c.draftKey(caseID)).Bytes()
}

func (c *redisCache) SetDraft(ctx context.Context, caseID string, data interface{}) error {
	if c.client == nil {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.draftKey(caseID), jsonData, TTLDraft).Err()
}

func (c *redisCache) InvalidateDraft(ctx context.Context, caseID string) error {
	return c.Delete(ctx, c.draftKey(caseID), PrefixVersions+caseID)
}

// ========================================
// 접속 세션 (동일 문서를 열어둔 세션 표시)
// ========================================

func (c *redisCache) presenceKey(caseID, clientID string) string {
	return PrefixPresence + caseID + ":" + clientID
}

// MarkPresence 하트비트마다 호출되어 TTL을 연장한다
func (c *redisCache) MarkPresence(ctx context.Context, caseID, clientID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, c.presenceKey(caseID, clientID), time.Now().UnixMilli(), TTLPresence).Err()
}

func (c *redisCache) ListPresence(ctx context.Context, caseID string) ([]string, error) {
	if c.client == nil {
		return nil, nil
	}

	prefix := PrefixPresence + caseID + ":"
	var clients []string
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		clients = append(clients, iter.Val()[len(prefix):])
	}
	return clients, iter.Err()
}

func (c *redisCache) ClearPresence(ctx context.Context, caseID, clientID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.presenceKey(caseID, clientID)).Err()
}
