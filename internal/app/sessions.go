package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/labsync/internal/models"
)

const (
	timeFormat     = "2006-01-02 15:04:05"
	sessionKeyTpl  = "session:%s" // session:${token}
	tokenPrefix    = "sk-labsync-"
	tokenByteCount = 24
)

var ErrSessionNotFound = errors.New("session not found")

type Sessions interface {
	Create(ctx context.Context, email, role string) (*models.Session, error)
	Lookup(ctx context.Context, token string) (*models.Session, error)
	Revoke(ctx context.Context, token string) error
	Close() error
}

func generateToken() (string, error) {
	randomBytes := make([]byte, tokenByteCount)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return tokenPrefix + hex.EncodeToString(randomBytes), nil
}

// RedisSessions keeps one hash per token that expires with the session.
type RedisSessions struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisSessions(ctx context.Context, url string, ttl time.Duration) (*RedisSessions, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSessions{redis: client, ttl: ttl}, nil
}

func (rs *RedisSessions) Create(ctx context.Context, email, role string) (*models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now().UTC()
	key := fmt.Sprintf(sessionKeyTpl, token)

	pipe := rs.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"email":            email,
		"role":             role,
		"created_dttm_utc": now.Format(timeFormat),
	})
	pipe.Expire(ctx, key, rs.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{Token: token, Email: email, Role: role, CreatedAt: now}, nil
}

func (rs *RedisSessions) Lookup(ctx context.Context, token string) (*models.Session, error) {
	key := fmt.Sprintf(sessionKeyTpl, token)

	values, err := rs.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}

	createdTime, _ := time.Parse(timeFormat, values["created_dttm_utc"])

	return &models.Session{
		Token:     token,
		Email:     values["email"],
		Role:      values["role"],
		CreatedAt: createdTime,
	}, nil
}

func (rs *RedisSessions) Revoke(ctx context.Context, token string) error {
	return rs.redis.Del(ctx, fmt.Sprintf(sessionKeyTpl, token)).Err()
}

func (rs *RedisSessions) Close() error {
	if rs.redis != nil {
		return rs.redis.Close()
	}
	return nil
}

// MemorySessions is used when no redis_url is configured. Sessions do not
// survive a restart.
type MemorySessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]models.Session
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]models.Session),
	}
}

func (ms *MemorySessions) Create(_ context.Context, email, role string) (*models.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := ms.now()
	session := models.Session{Token: token, Email: email, Role: role, CreatedAt: now.UTC()}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	for t, s := range ms.sessions {
		if now.Sub(s.CreatedAt) > ms.ttl {
			delete(ms.sessions, t)
		}
	}
	ms.sessions[token] = session

	return &session, nil
}

func (ms *MemorySessions) Lookup(_ context.Context, token string) (*models.Session, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	session, ok := ms.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if ms.now().Sub(session.CreatedAt) > ms.ttl {
		delete(ms.sessions, token)
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

func (ms *MemorySessions) Revoke(_ context.Context, token string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.sessions, token)
	return nil
}

func (ms *MemorySessions) Close() error {
	return nil
}
