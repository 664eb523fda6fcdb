package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
	"telegram-group-paywall/internal/infra/metrics"
	red "telegram-group-paywall/internal/infra/redis"
)

var _ repository.GroupRepository = (*groupRepoCacheDecorator)(nil)

// groupRepoCacheDecorator caches single-group lookups, which the access path
// performs for every join request and denial message.
type groupRepoCacheDecorator struct {
	repository.GroupRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewGroupRepoCacheDecorator(inner repository.GroupRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.GroupRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "GroupCache").Logger()
	return &groupRepoCacheDecorator{GroupRepository: inner, cache: cache, ttl: ttl, log: &l}
}

func groupKey(id string) string { return fmt.Sprintf("group:%s", id) }

func (d *groupRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, groupID string) (*model.Group, error) {
	if tx == nil {
		val, err := d.cache.Get(ctx, groupKey(groupID))
		if err == nil {
			var g model.Group
			if json.Unmarshal([]byte(val), &g) == nil {
				metrics.IncCacheRequest("group", "hit")
				return &g, nil
			}
		} else if err != red.Nil {
			d.log.Warn().Err(err).Str("group_id", groupID).Msg("group cache read failed")
		}
	}

	metrics.IncCacheRequest("group", "miss")
	g, err := d.GroupRepository.FindByID(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(g); err == nil {
		_ = d.cache.Set(ctx, groupKey(groupID), b, d.ttl)
	}
	return g, nil
}

// Writes go through and drop the cached entry.

func (d *groupRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, g *model.Group) error {
	d.invalidate(ctx, g.GroupID)
	return d.GroupRepository.Upsert(ctx, tx, g)
}

func (d *groupRepoCacheDecorator) SetActive(ctx context.Context, tx repository.Tx, groupID string, active bool) error {
	d.invalidate(ctx, groupID)
	return d.GroupRepository.SetActive(ctx, tx, groupID, active)
}

func (d *groupRepoCacheDecorator) AddSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	d.invalidate(ctx, groupID)
	return d.GroupRepository.AddSubscriber(ctx, tx, groupID, subjectID)
}

func (d *groupRepoCacheDecorator) RemoveSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	d.invalidate(ctx, groupID)
	return d.GroupRepository.RemoveSubscriber(ctx, tx, groupID, subjectID)
}

func (d *groupRepoCacheDecorator) invalidate(ctx context.Context, groupID string) {
	if err := d.cache.Del(ctx, groupKey(groupID)); err != nil {
		d.log.Warn().Err(err).Str("group_id", groupID).Msg("group cache invalidation failed")
		return
	}
	metrics.IncCacheInvalidation("group")
}
