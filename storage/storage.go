package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"habitlog-api/domain"
)

// recordPartition is the fixed partition key of the daily record table. The
// store holds exactly one user's data, so a single partition keyed by date
// keeps lookups and scans trivial.
const recordPartition = "dailyData"

// Store provides durable, date-keyed storage of daily records.
type Store struct {
	table  *aztables.Client
	opened atomic.Bool
}

// New creates a Store from the given connection string. The connection is
// not exercised until Open is called.
func New(connStr, tableName string) (*Store, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return &Store{table: svc.NewClient(tableName)}, nil
}

// Open provisions the record table if it does not exist yet. It is
// idempotent; repeated calls after a successful open are no-ops.
func (s *Store) Open(ctx context.Context) error {
	if s.opened.Load() {
		return nil
	}
	if _, err := s.table.CreateTable(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
	}
	s.opened.Store(true)
	return nil
}

type dayEntity struct {
	aztables.Entity
	Tasks string `json:"Tasks"`
}

func encodeDayEntity(rec domain.DayRecord) ([]byte, error) {
	tasks, err := json.Marshal(rec.Tasks)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dayEntity{
		Entity: aztables.Entity{PartitionKey: recordPartition, RowKey: rec.Date},
		Tasks:  string(tasks),
	})
}

func decodeDayEntity(data []byte) (domain.DayRecord, error) {
	var ent dayEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.DayRecord{}, err
	}
	rec := domain.DayRecord{Date: ent.RowKey, Tasks: map[int]domain.TaskEntry{}}
	if ent.Tasks != "" {
		if err := json.Unmarshal([]byte(ent.Tasks), &rec.Tasks); err != nil {
			return domain.DayRecord{}, err
		}
	}
	rec.Normalize()
	return rec, nil
}

// GetByDate returns the persisted record for the date, or a freshly
// synthesized default when none exists. The returned bool reports whether
// the record was actually persisted; synthesized defaults are never written
// back, so repeated reads of an unsaved date resynthesize.
func (s *Store) GetByDate(ctx context.Context, date string) (domain.DayRecord, bool, error) {
	ent, err := s.table.GetEntity(ctx, recordPartition, date, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return domain.NewDayRecord(date), false, nil
		}
		return domain.DayRecord{}, false, fmt.Errorf("%w: get %s: %v", domain.ErrStorageRead, date, err)
	}
	rec, err := decodeDayEntity(ent.Value)
	if err != nil {
		return domain.DayRecord{}, false, fmt.Errorf("%w: decode %s: %v", domain.ErrStorageRead, date, err)
	}
	return rec, true, nil
}

// Put upserts the full record keyed by its date, overwriting any existing
// record. The record is normalized before persistence.
func (s *Store) Put(ctx context.Context, rec domain.DayRecord) error {
	rec.Normalize()
	payload, err := encodeDayEntity(rec)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrStorageWrite, rec.Date, err)
	}
	if _, err := s.table.UpsertEntity(ctx, payload, nil); err != nil {
		return fmt.Errorf("%w: put %s: %v", domain.ErrStorageWrite, rec.Date, err)
	}
	return nil
}

// GetAll returns every persisted record, unordered as stored.
func (s *Store) GetAll(ctx context.Context) ([]domain.DayRecord, error) {
	filter := "PartitionKey eq '" + recordPartition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	records := []domain.DayRecord{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list: %v", domain.ErrStorageRead, err)
		}
		for _, e := range resp.Entities {
			rec, err := decodeDayEntity(e)
			if err != nil {
				return nil, fmt.Errorf("%w: decode: %v", domain.ErrStorageRead, err)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// GetAllExcluding returns all persisted records except the one for the
// given date, most recent first.
func (s *Store) GetAllExcluding(ctx context.Context, date string) ([]domain.DayRecord, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return excludeAndSort(records, date), nil
}

// excludeAndSort filters out the excluded date and sorts descending by the
// date key. Lexicographic order equals chronological order because the date
// format is zero-padded and fixed-width.
func excludeAndSort(records []domain.DayRecord, date string) []domain.DayRecord {
	out := make([]domain.DayRecord, 0, len(records))
	for _, rec := range records {
		if rec.Date == date {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}
