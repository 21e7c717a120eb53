package verification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// consumeScript reads the token record, checks its purpose, and deletes it
// only on a match. Returns the stored value on success, "mismatch" when the
// purpose differs, or false when the key is gone.
const consumeScript = `
local val = redis.call("GET", KEYS[1])
if not val then
	return false
end
local sep = string.find(val, "|", 1, true)
if string.sub(val, 1, sep - 1) ~= ARGV[1] then
	return "mismatch"
end
redis.call("DEL", KEYS[1])
return val
`

var consumeCmd = redis.NewScript(consumeScript)

// RedisStore keeps tokens in Redis with a server-side TTL so abandoned
// tokens age out without a sweeper.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a RedisStore keyed under prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ac"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + ":v:" + token
}

// Issue implements Store. The record carries its own expiry alongside the
// Redis TTL so a clock skewed backend cannot stretch a token's lifetime.
func (s *RedisStore) Issue(ctx context.Context, userID, typ string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	exp := s.now().Add(ttl)
	val := typ + "|" + strconv.FormatInt(exp.Unix(), 10) + "|" + userID

	if err := s.rdb.Set(ctx, s.key(token), val, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return token, nil
}

// Consume implements Store.
func (s *RedisStore) Consume(ctx context.Context, token, typ string) (string, error) {
	res, err := consumeCmd.Run(ctx, s.rdb, []string{s.key(token)}, typ).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	val, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected script reply %T", ErrUnavailable, res)
	}
	if val == "mismatch" {
		return "", ErrTypeMismatch
	}

	parts := strings.SplitN(val, "|", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: corrupt token record", ErrUnavailable)
	}
	expUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: corrupt token record", ErrUnavailable)
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", ErrExpired
	}
	return parts[2], nil
}
