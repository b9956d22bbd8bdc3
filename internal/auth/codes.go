package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CodeLength is the number of digits in a one-time passcode.
	CodeLength = 6
	// MaxAttempts bounds wrong guesses before a code is discarded.
	MaxAttempts = 3

	// PurposeRegistration scopes codes that verify a new account's email.
	PurposeRegistration = "registration"
	// PurposeLogin scopes codes that complete a two-factor login.
	PurposeLogin = "login"

	codePrefix = "otp:v1:"
)

var (
	ErrCodeNotFound    = errors.New("verification code expired or not found")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrTooManyAttempts = errors.New("too many failed attempts, request a new code")
)

// CodeStore issues and checks one-time passcodes keyed by purpose and email.
type CodeStore interface {
	Issue(ctx context.Context, purpose, email string) (string, error)
	Verify(ctx context.Context, purpose, email, code string) error
}

type memoryCode struct {
	code      string
	expiresAt time.Time
	attempts  int
}

// MemoryCodeStore keeps codes in process memory.
type MemoryCodeStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	codes map[string]*memoryCode
	now   func() time.Time
}

// NewMemoryCodeStore builds an in-memory code store whose codes expire after ttl.
func NewMemoryCodeStore(ttl time.Duration) *MemoryCodeStore {
	return &MemoryCodeStore{ttl: ttl, codes: make(map[string]*memoryCode), now: time.Now}
}

// Issue replaces any previous code for the key with a fresh one.
func (s *MemoryCodeStore) Issue(_ context.Context, purpose, email string) (string, error) {
	code, err := generateCode(CodeLength)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, c := range s.codes {
		if now.After(c.expiresAt) {
			delete(s.codes, k)
		}
	}
	s.codes[codeKey(purpose, email)] = &memoryCode{code: code, expiresAt: now.Add(s.ttl)}
	return code, nil
}

// Verify consumes the code on success.
func (s *MemoryCodeStore) Verify(_ context.Context, purpose, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := codeKey(purpose, email)
	c, ok := s.codes[key]
	if !ok {
		return ErrCodeNotFound
	}
	if s.now().After(c.expiresAt) {
		delete(s.codes, key)
		return ErrCodeNotFound
	}
	if c.attempts >= MaxAttempts {
		delete(s.codes, key)
		return ErrTooManyAttempts
	}
	if c.code != code {
		c.attempts++
		return ErrInvalidCode
	}
	delete(s.codes, key)
	return nil
}

// RedisCodeStore keeps codes in Redis so several stub replicas share them.
type RedisCodeStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// NewRedisCodeStore builds a Redis-backed code store.
func NewRedisCodeStore(cache *redis.Client, ttl time.Duration) *RedisCodeStore {
	return &RedisCodeStore{cache: cache, ttl: ttl}
}

// Issue stores a fresh code and resets the attempt counter.
func (s *RedisCodeStore) Issue(ctx context.Context, purpose, email string) (string, error) {
	code, err := generateCode(CodeLength)
	if err != nil {
		return "", err
	}
	key := codeKey(purpose, email)
	pipe := s.cache.TxPipeline()
	pipe.Set(ctx, key, code, s.ttl)
	pipe.Del(ctx, attemptsKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return code, nil
}

// Verify consumes the code on success and counts failed guesses.
func (s *RedisCodeStore) Verify(ctx context.Context, purpose, email, code string) error {
	key := codeKey(purpose, email)
	stored, err := s.cache.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrCodeNotFound
	}
	if err != nil {
		return err
	}

	attempts, err := s.cache.Get(ctx, attemptsKey(key)).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if attempts >= MaxAttempts {
		s.cache.Del(ctx, key, attemptsKey(key))
		return ErrTooManyAttempts
	}

	if stored != code {
		n, err := s.cache.Incr(ctx, attemptsKey(key)).Result()
		if err == nil && n == 1 {
			s.cache.Expire(ctx, attemptsKey(key), s.ttl)
		}
		return ErrInvalidCode
	}

	s.cache.Del(ctx, key, attemptsKey(key))
	return nil
}

func codeKey(purpose, email string) string {
	return codePrefix + purpose + ":" + email
}

func attemptsKey(key string) string {
	return key + ":attempts"
}

func generateCode(length int) (string, error) {
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code[i] = strconv.Itoa(int(n.Int64()))[0]
	}
	return string(code), nil
}
