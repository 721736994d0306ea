package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"habitlog-api/domain"
)

type backend interface {
	Open(ctx context.Context) error
	GetByDate(ctx context.Context, date string) (domain.DayRecord, bool, error)
	Put(ctx context.Context, rec domain.DayRecord) error
	GetAll(ctx context.Context) ([]domain.DayRecord, error)
	GetAllExcluding(ctx context.Context, date string) ([]domain.DayRecord, error)
}

// Cache wraps a Store with Redis-backed caching for read operations.
// Synthesized defaults are never cached: only persisted records enter Redis,
// so reads of an unsaved date always reach the backing store.
type Cache struct {
	*Store
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Store wrapper using the provided Redis client
// and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}

	c := &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
	if s, ok := base.(*Store); ok {
		c.Store = s
	}
	return c
}

func (c *Cache) Open(ctx context.Context) error {
	return c.base.Open(ctx)
}

func (c *Cache) GetByDate(ctx context.Context, date string) (domain.DayRecord, bool, error) {
	if rec, ok := c.loadRecordFromCache(ctx, date); ok {
		return rec, true, nil
	}

	rec, persisted, err := c.base.GetByDate(ctx, date)
	if err != nil {
		return domain.DayRecord{}, false, err
	}
	if persisted {
		c.storeRecord(ctx, rec)
	}
	return rec, persisted, nil
}

func (c *Cache) Put(ctx context.Context, rec domain.DayRecord) error {
	if err := c.base.Put(ctx, rec); err != nil {
		return err
	}

	c.evict(ctx, rec.Date)
	return nil
}

func (c *Cache) GetAll(ctx context.Context) ([]domain.DayRecord, error) {
	if records, ok := c.loadAllFromCache(ctx); ok {
		return records, nil
	}

	records, err := c.base.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	c.storeAll(ctx, records)
	return records, nil
}

func (c *Cache) GetAllExcluding(ctx context.Context, date string) ([]domain.DayRecord, error) {
	records, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return excludeAndSort(records, date), nil
}

func (c *Cache) loadRecordFromCache(ctx context.Context, date string) (domain.DayRecord, bool) {
	if c.redis == nil {
		return domain.DayRecord{}, false
	}
	data, err := c.redis.Get(ctx, recordCacheKey(date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, recordCacheKey(date)).Err()
		}
		return domain.DayRecord{}, false
	}
	var rec domain.DayRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = c.redis.Del(ctx, recordCacheKey(date)).Err()
		return domain.DayRecord{}, false
	}
	return rec, true
}

func (c *Cache) loadAllFromCache(ctx context.Context) ([]domain.DayRecord, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, allRecordsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, allRecordsCacheKey).Err()
		}
		return nil, false
	}
	var records []domain.DayRecord
	if err := json.Unmarshal(data, &records); err != nil {
		_ = c.redis.Del(ctx, allRecordsCacheKey).Err()
		return nil, false
	}
	return records, true
}

func (c *Cache) storeRecord(ctx context.Context, rec domain.DayRecord) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, recordCacheKey(rec.Date), data, c.ttl).Err()
}

func (c *Cache) storeAll(ctx context.Context, records []domain.DayRecord) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, allRecordsCacheKey, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, date string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, recordCacheKey(date), allRecordsCacheKey).Result()
}

const allRecordsCacheKey = "days:all"

func recordCacheKey(date string) string {
	return "day:" + date
}
