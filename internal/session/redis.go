package session

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport failure of the store.
var ErrRedisUnavailable = errors.New("redis unavailable")

const defaultPrefix = "vidtube:session"

// KEYS[1] session key; ARGV[1] expected hash, ARGV[2] next hash, ARGV[3] ttl in ms.
const rotateScript = `
local current = redis.call("GET", KEYS[1])
if not current or current ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// RedisStore keeps one refresh session per user under <prefix>:<userID>.
// Only a SHA-256 of the token is stored; the key expires with the token.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{redis: client, prefix: prefix, now: time.Now}
}

// Open parses a redis:// URL and checks the server answers.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return client, nil
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":" + userID
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *RedisStore) Persist(ctx context.Context, userID, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 || token == "" {
		return s.Invalidate(ctx, userID)
	}
	if err := s.redis.Set(ctx, s.key(userID), hashToken(token), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Validate(ctx context.Context, userID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	stored, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(hashToken(token))) == 1, nil
}

// Rotate replaces previous with next atomically. It reports false when the
// stored value changed or expired in the meantime.
func (s *RedisStore) Rotate(ctx context.Context, userID, previous, next string, expiresAt time.Time) (bool, error) {
	if previous == "" || next == "" {
		return false, nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return false, nil
	}
	res, err := rotateLua.Run(ctx, s.redis,
		[]string{s.key(userID)},
		hashToken(previous),
		hashToken(next),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

// Invalidate is idempotent.
func (s *RedisStore) Invalidate(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time availability check and latency.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
