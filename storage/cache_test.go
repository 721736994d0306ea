package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"habitlog-api/domain"
)

type stubBackend struct {
	openFn            func(ctx context.Context) error
	getByDateFn       func(ctx context.Context, date string) (domain.DayRecord, bool, error)
	putFn             func(ctx context.Context, rec domain.DayRecord) error
	getAllFn          func(ctx context.Context) ([]domain.DayRecord, error)
	getAllExcludingFn func(ctx context.Context, date string) ([]domain.DayRecord, error)
}

func (s *stubBackend) Open(ctx context.Context) error {
	if s.openFn == nil {
		return nil
	}
	return s.openFn(ctx)
}

func (s *stubBackend) GetByDate(ctx context.Context, date string) (domain.DayRecord, bool, error) {
	if s.getByDateFn == nil {
		return domain.DayRecord{}, false, errors.New("unexpected GetByDate call")
	}
	return s.getByDateFn(ctx, date)
}

func (s *stubBackend) Put(ctx context.Context, rec domain.DayRecord) error {
	if s.putFn == nil {
		return errors.New("unexpected Put call")
	}
	return s.putFn(ctx, rec)
}

func (s *stubBackend) GetAll(ctx context.Context) ([]domain.DayRecord, error) {
	if s.getAllFn == nil {
		return nil, errors.New("unexpected GetAll call")
	}
	return s.getAllFn(ctx)
}

func (s *stubBackend) GetAllExcluding(ctx context.Context, date string) ([]domain.DayRecord, error) {
	if s.getAllExcludingFn == nil {
		return nil, errors.New("unexpected GetAllExcluding call")
	}
	return s.getAllExcludingFn(ctx, date)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheGetByDateMissThenHit(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	date := "2025-01-15"
	persisted := domain.NewDayRecord(date)
	persisted.Tasks[1] = domain.TaskEntry{Completed: true, Note: "ran 5k"}

	var calls int
	cache := NewCache(&stubBackend{
		getByDateFn: func(ctx context.Context, d string) (domain.DayRecord, bool, error) {
			calls++
			if d != date {
				t.Fatalf("unexpected date: %s", d)
			}
			return persisted.Clone(), true, nil
		},
	}, client, time.Minute)

	rec, ok, err := cache.GetByDate(ctx, date)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !ok {
		t.Fatalf("expected persisted record")
	}
	if !reflect.DeepEqual(rec, persisted) {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
	if ttl := mr.TTL(recordCacheKey(date)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	cached, ok, err := cache.GetByDate(ctx, date)
	if err != nil {
		t.Fatalf("get cached record: %v", err)
	}
	if !ok {
		t.Fatalf("expected cached record flagged as persisted")
	}
	if !reflect.DeepEqual(cached, persisted) {
		t.Fatalf("unexpected cached record: %#v", cached)
	}
	if calls != 1 {
		t.Fatalf("expected cached fetch to avoid backend, calls=%d", calls)
	}
}

func TestCacheNeverStoresSynthesizedDefaults(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	date := "2025-03-01"

	var calls int
	cache := NewCache(&stubBackend{
		getByDateFn: func(ctx context.Context, d string) (domain.DayRecord, bool, error) {
			calls++
			return domain.NewDayRecord(d), false, nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		rec, ok, err := cache.GetByDate(ctx, date)
		if err != nil {
			t.Fatalf("get record: %v", err)
		}
		if ok {
			t.Fatalf("synthesized default reported as persisted")
		}
		if len(rec.Tasks) != domain.TaskCount {
			t.Fatalf("default missing task entries: %d", len(rec.Tasks))
		}
	}

	if calls != 2 {
		t.Fatalf("expected every read of an unsaved date to resynthesize, calls=%d", calls)
	}
	if mr.Exists(recordCacheKey(date)) {
		t.Fatalf("synthesized default leaked into the cache")
	}
}

func TestCachePutEvicts(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	date := "2025-01-15"
	stored := domain.NewDayRecord(date)

	var puts int
	cache := NewCache(&stubBackend{
		getByDateFn: func(ctx context.Context, d string) (domain.DayRecord, bool, error) {
			return stored.Clone(), true, nil
		},
		getAllFn: func(ctx context.Context) ([]domain.DayRecord, error) {
			return []domain.DayRecord{stored.Clone()}, nil
		},
		putFn: func(ctx context.Context, rec domain.DayRecord) error {
			puts++
			return nil
		},
	}, client, time.Minute)

	if _, _, err := cache.GetByDate(ctx, date); err != nil {
		t.Fatalf("warm record cache: %v", err)
	}
	if _, err := cache.GetAll(ctx); err != nil {
		t.Fatalf("warm list cache: %v", err)
	}
	if !mr.Exists(recordCacheKey(date)) || !mr.Exists(allRecordsCacheKey) {
		t.Fatalf("expected caches warmed")
	}

	updated := stored.Clone()
	updated.Tasks[2] = domain.TaskEntry{Completed: true}
	if err := cache.Put(ctx, updated); err != nil {
		t.Fatalf("put: %v", err)
	}
	if puts != 1 {
		t.Fatalf("expected 1 backend put, got %d", puts)
	}
	if mr.Exists(recordCacheKey(date)) || mr.Exists(allRecordsCacheKey) {
		t.Fatalf("expected caches evicted after put")
	}
}

func TestCachePutFailureDoesNotEvict(t *testing.T) {
	mr, client := newTestRedis(t)

	ctx := context.Background()
	date := "2025-01-15"
	stored := domain.NewDayRecord(date)

	cache := NewCache(&stubBackend{
		getByDateFn: func(ctx context.Context, d string) (domain.DayRecord, bool, error) {
			return stored.Clone(), true, nil
		},
		putFn: func(ctx context.Context, rec domain.DayRecord) error {
			return domain.ErrStorageWrite
		},
	}, client, time.Minute)

	if _, _, err := cache.GetByDate(ctx, date); err != nil {
		t.Fatalf("warm record cache: %v", err)
	}

	err := cache.Put(ctx, stored.Clone())
	if !errors.Is(err, domain.ErrStorageWrite) {
		t.Fatalf("expected write error, got %v", err)
	}
	if !mr.Exists(recordCacheKey(date)) {
		t.Fatalf("failed put must not evict the prior cached record")
	}
}

func TestCacheGetAllExcludingDerivedFromCachedList(t *testing.T) {
	_, client := newTestRedis(t)

	ctx := context.Background()
	records := []domain.DayRecord{
		domain.NewDayRecord("2025-01-01"),
		domain.NewDayRecord("2025-01-02"),
		domain.NewDayRecord("2025-01-03"),
	}

	var listCalls int
	cache := NewCache(&stubBackend{
		getAllFn: func(ctx context.Context) ([]domain.DayRecord, error) {
			listCalls++
			out := make([]domain.DayRecord, 0, len(records))
			for _, rec := range records {
				out = append(out, rec.Clone())
			}
			return out, nil
		},
	}, client, time.Minute)

	got, err := cache.GetAllExcluding(ctx, "2025-01-03")
	if err != nil {
		t.Fatalf("get excluding: %v", err)
	}
	if len(got) != 2 || got[0].Date != "2025-01-02" || got[1].Date != "2025-01-01" {
		t.Fatalf("unexpected result: %#v", got)
	}

	if _, err := cache.GetAllExcluding(ctx, "2025-01-02"); err != nil {
		t.Fatalf("get excluding cached: %v", err)
	}
	if listCalls != 1 {
		t.Fatalf("expected second call served from cache, listCalls=%d", listCalls)
	}
}

func TestCacheFallsBackWhenRedisDown(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	ctx := context.Background()
	date := "2025-01-15"
	persisted := domain.NewDayRecord(date)

	var calls int
	cache := NewCache(&stubBackend{
		getByDateFn: func(ctx context.Context, d string) (domain.DayRecord, bool, error) {
			calls++
			return persisted.Clone(), true, nil
		},
	}, client, time.Minute)

	rec, ok, err := cache.GetByDate(ctx, date)
	if err != nil {
		t.Fatalf("expected fallback to backend, got %v", err)
	}
	if !ok || rec.Date != date {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if calls != 1 {
		t.Fatalf("expected backend call, got %d", calls)
	}
}
