package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/acc"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/cache"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/logger"
)

// Operator is the authenticated Autodesk user. UserID scopes every stored
// document.
type Operator struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// ProfileFunc fetches the profile of the token's owner. It is
// acc.Client.WithToken(token).Me in production.
type ProfileFunc func(ctx context.Context, token string) (*acc.Profile, error)

// ProfileFromClient adapts an API client template to a ProfileFunc.
func ProfileFromClient(client *acc.Client) ProfileFunc {
	return func(ctx context.Context, token string) (*acc.Profile, error) {
		return client.WithToken(token).Me(ctx)
	}
}

// IdentityCache remembers resolved operators by token fingerprint.
type IdentityCache interface {
	Get(ctx context.Context, key string) (Operator, bool)
	Set(ctx context.Context, key string, op Operator, expiry time.Time)
}

// Resolver turns bearer tokens into operators.
type Resolver struct {
	profile ProfileFunc
	cache   IdentityCache
	ttl     time.Duration
	now     func() time.Time
}

func NewResolver(profile ProfileFunc, identities IdentityCache, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	if identities == nil {
		identities = NewMemoryIdentityCache(cache.NewTTL[Operator]())
	}
	return &Resolver{profile: profile, cache: identities, ttl: ttl, now: time.Now}
}

// Resolve returns the operator owning token. A token whose exp claim has
// passed is rejected without a network call. On a cache miss the profile
// API decides; when the token is a JWT its userid claim must match.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Operator, error) {
	claims, _ := PeekClaims(token)
	now := r.now()
	exp, hasExp := claims.Expiry()
	if hasExp && !now.Before(exp) {
		return nil, apperrors.Expired(msgTokenExpired)
	}

	key := TokenFingerprint(token)
	if op, ok := r.cache.Get(ctx, key); ok {
		return &op, nil
	}

	profile, err := r.profile(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) || errors.Is(err, apperrors.ErrForbidden) {
			return nil, apperrors.Unauthorized(msgInvalidOrExpiredToken)
		}
		return nil, fmt.Errorf(errProfileFmt, msgProfileUnavailable, err)
	}
	if claims != nil && claims.UserID != "" && claims.UserID != profile.UserID {
		return nil, apperrors.Unauthorized(msgIdentityMismatch)
	}

	op := Operator{
		UserID: profile.UserID,
		Email:  profile.Email,
		Name:   strings.TrimSpace(profile.FirstName + " " + profile.LastName),
	}
	if op.Name == "" {
		op.Name = profile.UserName
	}

	expiry := now.Add(r.ttl)
	if hasExp && exp.Before(expiry) {
		expiry = exp
	}
	r.cache.Set(ctx, key, op, expiry)
	return &op, nil
}

// MemoryIdentityCache keeps identities in process.
type MemoryIdentityCache struct {
	ttl *cache.TTL[Operator]
}

func NewMemoryIdentityCache(c *cache.TTL[Operator]) *MemoryIdentityCache {
	return &MemoryIdentityCache{ttl: c}
}

func (m *MemoryIdentityCache) Get(_ context.Context, key string) (Operator, bool) {
	return m.ttl.Get(key)
}

func (m *MemoryIdentityCache) Set(_ context.Context, key string, op Operator, expiry time.Time) {
	m.ttl.Set(key, op, expiry)
}

// Clear drops expired identities.
func (m *MemoryIdentityCache) Clear() {
	m.ttl.Clear()
}

// RedisIdentityCache shares identities between backend processes. Redis
// failures degrade to a cache miss.
type RedisIdentityCache struct {
	redis  *cache.RedisCache
	logger *log.Logger
}

func NewRedisIdentityCache(rc *cache.RedisCache, l *log.Logger) *RedisIdentityCache {
	if l == nil {
		l = log.Default()
	}
	return &RedisIdentityCache{redis: rc, logger: l}
}

func (r *RedisIdentityCache) Get(ctx context.Context, key string) (Operator, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	raw, found, err := r.redis.Get(ctx, identityKey(key))
	if err != nil {
		r.logger.Printf("identity cache: %s", logger.SanitizeLogMessage(err.Error()))
		return Operator{}, false
	}
	if !found {
		return Operator{}, false
	}
	var op Operator
	if err := json.Unmarshal([]byte(raw), &op); err != nil || op.UserID == "" {
		return Operator{}, false
	}
	return op, true
}

func (r *RedisIdentityCache) Set(ctx context.Context, key string, op Operator, expiry time.Time) {
	raw, err := json.Marshal(op)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := r.redis.Set(ctx, identityKey(key), string(raw), time.Until(expiry)); err != nil {
		r.logger.Printf("identity cache: %s", logger.SanitizeLogMessage(err.Error()))
	}
}

func identityKey(fingerprint string) string {
	return cache.BuildCacheKey("identity", fingerprint)
}
