package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"tradefeed/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	ownerCacheVersionKey = "tradefeed:owners:version"
	ownerCacheKeyPrefix  = "tradefeed:owners:v"
	defaultCacheTTL      = time.Hour
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedRepository wraps the MySQL store with a Redis read-through cache for
// wallet-to-owner lookups, the hot path of every by-address request and of
// each streamed wallet. Upserts bump a version key so stale entries are
// never served.
type CachedRepository struct {
	*Repository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedRepository(base *Repository, cfg CacheConfig) (*CachedRepository, error) {
	if base == nil {
		return nil, errors.New("base repository is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedRepository{Repository: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &CachedRepository{Repository: base, cache: client, ttl: cfg.TTL}, nil
}

type cachedOwner struct {
	User  domain.UserProfile `json:"user"`
	Found bool               `json:"found"`
}

func (r *CachedRepository) UserByWallet(ctx context.Context, address string) (domain.UserProfile, bool, error) {
	if r.cache == nil {
		return r.Repository.UserByWallet(ctx, address)
	}
	version, ok := r.cacheVersion(ctx)
	if !ok {
		return r.Repository.UserByWallet(ctx, address)
	}
	key := ownerCacheKey(version, address)
	if cached, err := r.cache.Get(ctx, key).Result(); err == nil {
		var owner cachedOwner
		if err := json.Unmarshal([]byte(cached), &owner); err == nil {
			return owner.User, owner.Found, nil
		}
	}

	user, found, err := r.Repository.UserByWallet(ctx, address)
	if err != nil {
		return domain.UserProfile{}, false, err
	}
	if payload, err := json.Marshal(cachedOwner{User: user, Found: found}); err == nil {
		_ = r.cache.Set(ctx, key, payload, r.ttl).Err()
	}
	return user, found, nil
}

func (r *CachedRepository) UpsertUsers(ctx context.Context, users []domain.UserProfile) error {
	if err := r.Repository.UpsertUsers(ctx, users); err != nil {
		return err
	}
	r.invalidateOwnerCache(ctx)
	return nil
}

func (r *CachedRepository) UpsertWallets(ctx context.Context, wallets []domain.Wallet) error {
	if err := r.Repository.UpsertWallets(ctx, wallets); err != nil {
		return err
	}
	r.invalidateOwnerCache(ctx)
	return nil
}

func (r *CachedRepository) Close() error {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	return r.Repository.Close()
}

func (r *CachedRepository) cacheVersion(ctx context.Context) (string, bool) {
	version, err := r.cache.Get(ctx, ownerCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (r *CachedRepository) invalidateOwnerCache(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Incr(ctx, ownerCacheVersionKey).Err()
}

func ownerCacheKey(version, address string) string {
	return ownerCacheKeyPrefix + version + ":addr=" + strings.ToLower(address)
}
