package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

// TokenBlacklist remembers revoked tokens until they expire naturally. It
// uses Redis when given a client and an in-process map otherwise.
type TokenBlacklist struct {
	rc  *redis.Client
	mu  sync.RWMutex
	mem map[string]time.Time
	now func() time.Time
}

func NewTokenBlacklist(rc *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rc: rc, mem: map[string]time.Time{}, now: time.Now}
}

// Revoke stores a token until expiresAt to support logout semantics.
func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return
	}
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := b.rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err()
		if err == nil {
			return
		}
		Logger.Warn("token revoke via redis failed, keeping it in memory", zap.Error(err))
	}
	b.mu.Lock()
	b.mem[token] = expiresAt
	b.sweepLocked()
	b.mu.Unlock()
}

// IsRevoked checks if a token was revoked before natural expiration.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) bool {
	if b.rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := b.rc.Exists(ctx, blacklistPrefix+token).Result()
		if err == nil && n > 0 {
			return true
		}
		if err != nil {
			// Fail open to avoid locking everybody out when Redis is down.
			Logger.Warn("token blacklist lookup failed", zap.Error(err))
		}
	}
	b.mu.RLock()
	exp, ok := b.mem[token]
	b.mu.RUnlock()
	return ok && b.now().Before(exp)
}

func (b *TokenBlacklist) sweepLocked() {
	now := b.now()
	for tok, exp := range b.mem {
		if !now.Before(exp) {
			delete(b.mem, tok)
		}
	}
}
