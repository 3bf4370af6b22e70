package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type entry struct {
	code    string
	expires time.Time
}

// MemoryStore keeps one pending code per email until it expires or is used.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]entry
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]entry), Now: time.Now}
}

func (s *MemoryStore) SaveOTP(_ context.Context, email, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[strings.ToLower(email)] = entry{code: code, expires: s.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) VerifyOTP(_ context.Context, email, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	e, ok := s.m[key]
	if !ok {
		return false, nil
	}
	if s.Now().After(e.expires) {
		delete(s.m, key)
		return false, nil
	}
	if e.code != code {
		return false, nil
	}
	delete(s.m, key)
	return true, nil
}

// Commands is the part of the redis API the store needs. *redis.Client
// satisfies it.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps codes under otp:<email> with the code's TTL.
type RedisStore struct {
	client Commands
}

// NewRedisClient accepts either a redis:// URL or a bare host:port.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func NewRedisStore(client Commands) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(email string) string {
	return fmt.Sprintf("otp:%s", strings.ToLower(email))
}

func (s *RedisStore) SaveOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(email), code, ttl).Err()
}

func (s *RedisStore) VerifyOTP(ctx context.Context, email, code string) (bool, error) {
	key := s.key(email)
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != code {
		return false, nil
	}
	// Only the caller whose delete removed the key wins the code.
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
