package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

// Purpose namespaces challenges so a code issued for one flow can never
// be replayed against another.
const PurposeTicketLookup = "ticket-lookup"

// ErrInvalid is returned when no live challenge exists for the target
// or the supplied code does not match. The two cases are deliberately
// indistinguishable to the caller.
var ErrInvalid = errors.New("invalid or expired code")

// ErrTooManyAttempts is returned once the per-challenge attempt budget
// is exhausted; the challenge is dead until it expires.
var ErrTooManyAttempts = errors.New("too many attempts")

// ErrUnavailable is returned when no Redis client is configured. The
// challenge store is mandatory for the guest lookup flow, unlike the
// rate limiter and response cache which degrade silently.
var ErrUnavailable = errors.New("otp store unavailable")

// Store issues and verifies OTP challenges in Redis. Both operations
// run as Lua scripts so the check-attempts/compare/consume sequence is
// atomic per key; two concurrent verifies of the same target cannot
// both consume the challenge.
type Store struct {
	rdb         *redis.Client
	ttl         time.Duration
	maxAttempts int
}

// NewStore returns a challenge store with the given code lifetime and
// attempt budget. rdb may be nil, in which case all operations return
// ErrUnavailable.
func NewStore(rdb *redis.Client, ttl time.Duration, maxAttempts int) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxAttempts < 1 {
		maxAttempts = 5
	}
	return &Store{rdb: rdb, ttl: ttl, maxAttempts: maxAttempts}
}

func key(purpose string, t Target) string {
	return fmt.Sprintf("otp:%s:%s:%s", purpose, t.Kind, t.Value)
}

// issueScript stores the code and resets the attempt counter in one
// step. Overwriting any previous value enforces the one-active-
// challenge-per-target invariant: requesting a new code invalidates
// the old one.
var issueScript = redis.NewScript(`
    local key = KEYS[1]
    local code = ARGV[1]
    local ttl = tonumber(ARGV[2])
    redis.call('HSET', key, 'code', code, 'attempts', 0)
    redis.call('EXPIRE', key, ttl)
    return 1
`)

// verifyScript increments the attempt counter first, so a flood of
// wrong codes burns the budget even when interleaved. Return values:
// 1 match (challenge consumed), 0 mismatch or missing, -1 over budget.
var verifyScript = redis.NewScript(`
    local key = KEYS[1]
    local code = ARGV[1]
    local max_attempts = tonumber(ARGV[2])

    local stored = redis.call('HGET', key, 'code')
    if not stored then
        return 0
    end
    local attempts = redis.call('HINCRBY', key, 'attempts', 1)
    if attempts > max_attempts then
        return -1
    end
    if stored == code then
        redis.call('DEL', key)
        return 1
    end
    return 0
`)

// GenerateCode returns a 6-digit numeric code drawn from crypto/rand.
// Leading zeros are preserved.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue creates (or replaces) the challenge for a target and returns
// the code to hand to the notification collaborator together with the
// challenge TTL. The code is never returned to the requesting client.
func (s *Store) Issue(ctx context.Context, t Target) (code string, ttl time.Duration, err error) {
	if s.rdb == nil {
		return "", 0, ErrUnavailable
	}
	code, err = GenerateCode()
	if err != nil {
		return "", 0, err
	}
	err = issueScript.Run(ctx, s.rdb, []string{key(PurposeTicketLookup, t)},
		code, int64(s.ttl/time.Second)).Err()
	if err != nil {
		return "", 0, err
	}
	return code, s.ttl, nil
}

// Verify checks a submitted code against the live challenge for the
// target. On match the challenge is consumed and cannot be reused; on
// mismatch the attempt counter advances toward ErrTooManyAttempts.
func (s *Store) Verify(ctx context.Context, t Target, code string) error {
	if s.rdb == nil {
		return ErrUnavailable
	}
	res, err := verifyScript.Run(ctx, s.rdb, []string{key(PurposeTicketLookup, t)},
		code, s.maxAttempts).Int64()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrTooManyAttempts
	default:
		return ErrInvalid
	}
}
