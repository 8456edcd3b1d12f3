package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
)

const (
	jobKeyPrefix = "job:"

	// 楽観ロックの再試行回数
	maxUpdateRetries = 10
)

// ErrJobNotFound は更新対象のジョブが存在しないことを表します。
var ErrJobNotFound = errors.New("job not found")

// recordStore はジョブ状態の保存先です。テストではメモリ実装に差し替えます。
type recordStore interface {
	Get(ctx context.Context, jobID string) (*Record, error)
	Upsert(ctx context.Context, record *Record) error
	MarkRunning(ctx context.Context, jobID string) error
	MarkDone(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error
}

// Store はジョブ状態を Redis に保存します。
type Store struct {
	rdb   redis.UniversalClient
	ttl   time.Duration
	clock clock.Clock
}

// NewStore は Store を作成します。
func NewStore(rdb redis.UniversalClient, ttl time.Duration, c clock.Clock) *Store {
	if c == nil {
		c = clock.Real{}
	}
	return &Store{
		rdb:   rdb,
		ttl:   ttl,
		clock: c,
	}
}

// Get はジョブ情報を取得します。存在しない場合は nil を返します。
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert はジョブ情報を保存します（存在しない場合は作成）。
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	stamp(record, s.clock.Now().UTC(), s.ttl)

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(record.JobID), payload, s.ttl).Err()
}

// MarkRunning は実行開始を記録し、試行回数を増やします。
func (s *Store) MarkRunning(ctx context.Context, jobID string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = StatusRunning
		record.Attempts++
	})
}

// MarkDone はジョブ完了を記録します。
func (s *Store) MarkDone(ctx context.Context, jobID string) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = StatusSucceeded
		record.Error = nil
	})
}

// MarkFailed はジョブ失敗時の情報を保存します。
func (s *Store) MarkFailed(ctx context.Context, jobID string, errInfo *ErrorInfo) error {
	return s.updatePartial(ctx, jobID, func(record *Record) {
		record.Status = StatusFailed
		if errInfo != nil {
			record.Error = errInfo
		}
	})
}

// updatePartial は WATCH を使った楽観ロックで読み込み・更新・書き戻しを行います。
func (s *Store) updatePartial(ctx context.Context, jobID string, mutate func(*Record)) error {
	key := jobKey(jobID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
			}
			return err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		mutate(&record)
		record.UpdatedAt = s.clock.Now().UTC()
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("job %s: too many concurrent updates", jobID)
}

// stamp は作成・更新・期限の各時刻を設定します。
func stamp(record *Record, now time.Time, ttl time.Duration) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.ExpiresAt.IsZero() && ttl > 0 {
		record.ExpiresAt = record.CreatedAt.Add(ttl)
	}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
