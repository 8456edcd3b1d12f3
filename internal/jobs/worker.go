// Package jobs はアセット削除などの非同期ジョブを Asynq で処理します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/storage"
)

// Worker はキューから取り出したタスクを実行します。
type Worker struct {
	assets storage.AssetStore
	store  recordStore
	log    zerolog.Logger
}

// NewWorker は Worker を作成します。
func NewWorker(assets storage.AssetStore, store recordStore, log zerolog.Logger) *Worker {
	return &Worker{
		assets: assets,
		store:  store,
		log:    log,
	}
}

// HandleDestroy は asset:destroy タスクを処理します。
// アセットが既に存在しない場合も成功として扱うため、再実行しても結果は変わりません。
func (w *Worker) HandleDestroy(ctx context.Context, task *asynq.Task) error {
	var payload DestroyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid destroy payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" || payload.AssetID == "" {
		return fmt.Errorf("destroy payload is missing ids: %w", asynq.SkipRetry)
	}

	if err := w.store.MarkRunning(ctx, payload.JobID); err != nil {
		if !errors.Is(err, ErrJobNotFound) {
			return err
		}
		// 状態が期限切れで消えていても削除自体は続ける
		if err := w.store.Upsert(ctx, &Record{
			JobID:     payload.JobID,
			Operation: operationDestroy,
			AssetID:   payload.AssetID,
			Status:    StatusRunning,
			Attempts:  1,
		}); err != nil {
			return err
		}
	}

	err := w.assets.Destroy(ctx, payload.AssetID)
	switch {
	case err == nil:
		w.log.Info().Str("job", payload.JobID).Str("asset", payload.AssetID).Msg("asset destroyed")
	case errors.Is(err, storage.ErrNotFound):
		w.log.Info().Str("job", payload.JobID).Str("asset", payload.AssetID).Msg("asset already gone")
	default:
		if finalAttempt(ctx) {
			if markErr := w.store.MarkFailed(ctx, payload.JobID, &ErrorInfo{
				Code:    "destroy_failed",
				Message: err.Error(),
			}); markErr != nil {
				w.log.Error().Err(markErr).Str("job", payload.JobID).Msg("failed to record job failure")
			}
		}
		return err
	}
	return w.store.MarkDone(ctx, payload.JobID)
}

// finalAttempt はこれ以上再試行されない実行かどうかを返します。
// Asynq の外から呼ばれた場合は最終回として扱います。
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}
