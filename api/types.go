package api

import (
	"context"

	"habitlog-api/domain"
)

// RecordStore abstracts persistence for handlers. GetByDate reports whether
// the returned record was persisted or synthesized on the fly.
type RecordStore interface {
	GetByDate(ctx context.Context, date string) (domain.DayRecord, bool, error)
	Put(ctx context.Context, rec domain.DayRecord) error
	GetAll(ctx context.Context) ([]domain.DayRecord, error)
	GetAllExcluding(ctx context.Context, date string) ([]domain.DayRecord, error)
}
