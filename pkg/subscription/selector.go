// Package subscription decides which subscriptions are on the V2
// diagnostic settings pipeline and should be reconciled.
package subscription

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	lru "github.com/hashicorp/golang-lru"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	ModeAll   = "all"
	ModeList  = "list"
	ModeRedis = "redis"
)

const defaultCacheSize = 4096

// Selector reports whether a subscription is on V2.
type Selector interface {
	IsV2Subscription(ctx context.Context, subscriptionID string) (bool, error)
}

// SetMembership is the part of the redis client the redis selector uses.
type SetMembership interface {
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

type Config struct {
	Mode          string
	Subscriptions []string
	RedisKey      string
	CacheTTL      time.Duration
}

// New builds the selector for the configured mode. members may be nil unless
// the mode is redis.
func New(cfg Config, members SetMembership, logger ectologger.Logger) (Selector, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", ModeAll:
		return AllSelector{}, nil
	case ModeList:
		return NewListSelector(cfg.Subscriptions), nil
	case ModeRedis:
		if members == nil {
			return nil, fmt.Errorf("subscription mode %q requires redis", cfg.Mode)
		}
		return NewRedisSelector(members, cfg.RedisKey, cfg.CacheTTL, logger)
	default:
		return nil, fmt.Errorf("unknown subscription mode %q", cfg.Mode)
	}
}

// AllSelector treats every subscription as V2.
type AllSelector struct{}

func (AllSelector) IsV2Subscription(context.Context, string) (bool, error) {
	return true, nil
}

// ListSelector allows a fixed set of subscriptions.
type ListSelector struct {
	subscriptions map[string]struct{}
}

func NewListSelector(subscriptions []string) *ListSelector {
	ids := ectolinq.Filter(ectolinq.Map(subscriptions, normalize), func(id string) bool {
		return id != ""
	})
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &ListSelector{subscriptions: set}
}

func (s *ListSelector) IsV2Subscription(_ context.Context, subscriptionID string) (bool, error) {
	_, ok := s.subscriptions[normalize(subscriptionID)]
	return ok, nil
}

type cached struct {
	isV2    bool
	expires time.Time
}

// RedisSelector checks membership of a redis set, caching answers for ttl.
type RedisSelector struct {
	members SetMembership
	key     string
	ttl     time.Duration
	cache   *lru.Cache
	now     func() time.Time
	logger  ectologger.Logger
}

func NewRedisSelector(members SetMembership, key string, ttl time.Duration, logger ectologger.Logger) (*RedisSelector, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &RedisSelector{
		members: members,
		key:     key,
		ttl:     ttl,
		cache:   cache,
		now:     time.Now,
		logger:  logger,
	}, nil
}

func (s *RedisSelector) IsV2Subscription(ctx context.Context, subscriptionID string) (bool, error) {
	id := normalize(subscriptionID)
	if id == "" {
		return false, nil
	}

	if v, ok := s.cache.Get(id); ok {
		entry := v.(cached)
		if s.now().Before(entry.expires) {
			return entry.isV2, nil
		}
		s.cache.Remove(id)
	}

	ctx, span := tracing.StartSpan(ctx, "subscription.RedisSelector.IsV2Subscription")
	defer span.End()

	isV2, err := s.members.SIsMember(ctx, s.key, id)
	if err != nil {
		tracing.RecordError(span, err)
		return false, fmt.Errorf("failed to check subscription %s: %w", id, err)
	}

	if s.ttl > 0 {
		s.cache.Add(id, cached{isV2: isV2, expires: s.now().Add(s.ttl)})
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"subscription_id": id,
		"is_v2":           isV2,
	}).Debug("Resolved subscription version")
	return isV2, nil
}

func normalize(subscriptionID string) string {
	return strings.ToLower(strings.TrimSpace(subscriptionID))
}
