package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// revokeScript performs the compare-and-set revoke: it reads the revoked
// flag and flips it in one server-side step. Returns -1 when the row is
// missing, 0 when it was already revoked, 1 when this call won.
const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if redis.call("HGET", KEYS[1], "revoked") == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
if redis.call("HGET", KEYS[1], "rotated_at") == "0" then
  redis.call("HSET", KEYS[1], "rotated_at", ARGV[1])
end
return 1
`

// revokeAllScript walks the user's session index and revokes every row
// that is still active. Safe to re-run; already-revoked rows are skipped.
const revokeAllScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local n = 0
for _, id in ipairs(ids) do
  local key = ARGV[2] .. id
  if redis.call("EXISTS", key) == 1 and redis.call("HGET", key, "revoked") ~= "1" then
    redis.call("HSET", key, "revoked", "1")
    if redis.call("HGET", key, "rotated_at") == "0" then
      redis.call("HSET", key, "rotated_at", ARGV[1])
    end
    n = n + 1
  end
end
return n
`

var (
	revokeLua    = redis.NewScript(revokeScript)
	revokeAllLua = redis.NewScript(revokeAllScript)
)

// RedisRegistry stores Session rows as Redis hashes with a per-user index
// set. Rows carry no TTL: revoked sessions stay behind as reuse-detection
// history.
type RedisRegistry struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRegistry returns a RedisRegistry keyed under prefix.
func NewRedisRegistry(rdb *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = "ac"
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix}
}

func (r *RedisRegistry) sessionKey(id string) string {
	return r.prefix + ":s:" + id
}

func (r *RedisRegistry) userKey(userID string) string {
	return r.prefix + ":u:" + userID
}

// Create implements Registry.
func (r *RedisRegistry) Create(ctx context.Context, userID, parentID string) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ParentID:  parentID,
		CreatedAt: time.Now().UTC(),
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.sessionKey(sess.ID),
		"user", sess.UserID,
		"parent", sess.ParentID,
		"revoked", "0",
		"created_at", strconv.FormatInt(sess.CreatedAt.Unix(), 10),
		"rotated_at", "0",
	)
	pipe.SAdd(ctx, r.userKey(userID), sess.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return sess, nil
}

// Get implements Registry.
func (r *RedisRegistry) Get(ctx context.Context, sessionID string) (*Session, error) {
	fields, err := r.rdb.HGetAll(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return decodeSessionHash(sessionID, fields)
}

// Revoke implements Registry via the CAS Lua script.
func (r *RedisRegistry) Revoke(ctx context.Context, sessionID string) (bool, error) {
	now := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	res, err := revokeLua.Run(ctx, r.rdb, []string{r.sessionKey(sessionID)}, now).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch res {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, ErrNotFound
	}
}

// RevokeAllForUser implements Registry.
func (r *RedisRegistry) RevokeAllForUser(ctx context.Context, userID string) error {
	now := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	err := revokeAllLua.Run(
		ctx,
		r.rdb,
		[]string{r.userKey(userID)},
		now,
		r.prefix+":s:",
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func decodeSessionHash(id string, fields map[string]string) (*Session, error) {
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt created_at for %s", ErrUnavailable, id)
	}

	sess := &Session{
		ID:        id,
		UserID:    fields["user"],
		ParentID:  fields["parent"],
		Revoked:   fields["revoked"] == "1",
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}

	if raw := fields["rotated_at"]; raw != "" && raw != "0" {
		rotatedAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt rotated_at for %s", ErrUnavailable, id)
		}
		sess.RotatedAt = time.Unix(rotatedAt, 0).UTC()
	}

	return sess, nil
}
