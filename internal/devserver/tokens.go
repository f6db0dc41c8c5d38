package devserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errInvalidToken = errors.New("invalid sdk token")

// TokenStore issues and validates SDK tokens. Backed by Redis when
// configured so tokens survive restarts; otherwise an in-process map.
type TokenStore struct {
	redis *redis.Client
	ttl   time.Duration
	rate  int

	mu     sync.Mutex
	tokens map[string]memToken
	counts map[string]rateWindow
}

type memToken struct {
	userID  string
	expires time.Time
}

type rateWindow struct {
	count int
	reset time.Time
}

func NewTokenStore(cfg RedisConfig, ttl time.Duration, requestsPerSecond int) *TokenStore {
	var client *redis.Client
	if cfg.Addr != "" {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}
	return &TokenStore{
		redis:  client,
		ttl:    ttl,
		rate:   requestsPerSecond,
		tokens: make(map[string]memToken),
		counts: make(map[string]rateWindow),
	}
}

// Issue mints an SDK token and user id for a device. The token is
// derived from the app and device identity plus a random component, so
// re-validation of the same device yields a fresh token.
func (t *TokenStore) Issue(ctx context.Context, appID, deviceUUID string) (token, userID string, err error) {
	sum := sha256.Sum256([]byte(appID + ":" + deviceUUID + ":" + uuid.NewString()))
	token = hex.EncodeToString(sum[:])
	userID = uuid.NewString()

	if t.redis != nil {
		if err := t.redis.Set(ctx, "sdktoken:"+token, userID, t.ttl).Err(); err != nil {
			return "", "", err
		}
		return token, userID, nil
	}

	t.mu.Lock()
	t.tokens[token] = memToken{userID: userID, expires: time.Now().Add(t.ttl)}
	t.mu.Unlock()
	return token, userID, nil
}

// Validate resolves a token to its user id.
func (t *TokenStore) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errInvalidToken
	}

	if t.redis != nil {
		userID, err := t.redis.Get(ctx, "sdktoken:"+token).Result()
		if err != nil {
			return "", errInvalidToken
		}
		return userID, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.tokens[token]
	if !ok || time.Now().After(rec.expires) {
		delete(t.tokens, token)
		return "", errInvalidToken
	}
	return rec.userID, nil
}

// Allow applies a per-app fixed-window rate limit. Zero configured
// rate means unlimited. Errors on the Redis path fail open.
func (t *TokenStore) Allow(ctx context.Context, appID string) bool {
	if t.rate <= 0 {
		return true
	}

	if t.redis != nil {
		key := "ratelimit:" + appID
		count, err := t.redis.Incr(ctx, key).Result()
		if err != nil {
			return true
		}
		if count == 1 {
			t.redis.Expire(ctx, key, time.Second)
		}
		return count <= int64(t.rate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.counts[appID]
	if time.Now().After(w.reset) {
		w = rateWindow{reset: time.Now().Add(time.Second)}
	}
	w.count++
	t.counts[appID] = w
	return w.count <= t.rate
}

func (t *TokenStore) Close() error {
	if t.redis != nil {
		return t.redis.Close()
	}
	return nil
}
