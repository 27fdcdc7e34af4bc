package verification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "verification:"

	// Keys outlive the code so a late lookup still reports Expired
	// instead of NotFound.
	redisExpiredGrace = 24 * time.Hour
)

// checkScript looks up, compares and optionally deletes in one atomic step.
// ARGV: submitted code, now in unix millis, "1" to consume.
var checkScript = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'code', 'subject_id', 'expires_at')
if not fields[1] then
  return {'not_found', ''}
end
if tonumber(ARGV[2]) > tonumber(fields[3]) then
  redis.call('DEL', KEYS[1])
  return {'expired', ''}
end
if fields[1] ~= ARGV[1] then
  return {'invalid', ''}
end
if ARGV[3] == '1' then
  redis.call('DEL', KEYS[1])
end
return {'valid', fields[2]}
`)

// RedisStore shares codes between processes through Redis.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now, ttl: CodeTTL}
}

// WithClock replaces the time source. Tests only.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) Issue(ctx context.Context, email string, subjectID string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}

	key := redisKey(email)
	expiresAt := s.now().Add(s.ttl)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "code", code, "subject_id", subjectID, "expires_at", expiresAt.UnixMilli())
		pipe.PExpire(ctx, key, s.ttl+redisExpiredGrace)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}

	return code, nil
}

func (s *RedisStore) Peek(ctx context.Context, email string, code string) (Result, error) {
	return s.check(ctx, email, code, false)
}

func (s *RedisStore) Consume(ctx context.Context, email string, code string) (Result, error) {
	return s.check(ctx, email, code, true)
}

func (s *RedisStore) check(ctx context.Context, email string, code string, consume bool) (Result, error) {
	flag := "0"
	if consume {
		flag = "1"
	}

	now := strconv.FormatInt(s.now().UnixMilli(), 10)
	reply, err := checkScript.Run(ctx, s.client, []string{redisKey(email)}, code, now, flag).StringSlice()
	if err != nil {
		return Result{}, fmt.Errorf("check verification code: %w", err)
	}
	if len(reply) != 2 {
		return Result{}, fmt.Errorf("check verification code: unexpected reply %v", reply)
	}

	switch reply[0] {
	case "valid":
		return Result{Outcome: Valid, SubjectID: reply[1]}, nil
	case "invalid":
		return Result{Outcome: Invalid}, nil
	case "expired":
		return Result{Outcome: Expired}, nil
	default:
		return Result{Outcome: NotFound}, nil
	}
}

func redisKey(email string) string {
	return redisKeyPrefix + email
}
