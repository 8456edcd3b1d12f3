package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/config"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/logger"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/storage"
)

// 削除タスクの最大再試行回数
const destroyMaxRetry = 3

// enqueuer は asynq.Client のうち Manager が使う部分です。
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Manager はジョブの投入と状態管理を担います。
type Manager struct {
	client enqueuer
	server *asynq.Server
	mux    *asynq.ServeMux
	store  recordStore
	log    zerolog.Logger
	newID  func() string
}

// NewManager は Manager を初期化します。ワーカーは StartWorkers で起動します。
func NewManager(cfg *config.Config, assets storage.AssetStore, store *Store, log zerolog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if assets == nil {
		return nil, errors.New("asset store is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	log = log.With().Str("component", "jobs").Logger()
	worker := NewWorker(assets, store, log)

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				Queue: 1,
			},
			Logger: logger.Asynq(log),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Warn().Err(err).Str("task", task.Type()).Msg("task failed")
			}),
		},
	)

	m := newManager(asynq.NewClient(opt), store, log)
	m.server = server
	m.mux = asynq.NewServeMux()
	m.mux.HandleFunc(TaskTypeDestroy, worker.HandleDestroy)
	return m, nil
}

func newManager(client enqueuer, store recordStore, log zerolog.Logger) *Manager {
	return &Manager{
		client: client,
		store:  store,
		log:    log,
		newID:  uuid.NewString,
	}
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() error {
	if m.server == nil {
		return errors.New("worker server is not configured")
	}
	return m.server.Start(m.mux)
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown() error {
	if m.server != nil {
		m.server.Shutdown()
	}
	return m.client.Close()
}

// ScheduleDestroy はアセット削除ジョブを作成してキューに投入し、ジョブ ID を返します。
func (m *Manager) ScheduleDestroy(ctx context.Context, assetID string) (string, error) {
	if assetID == "" {
		return "", fmt.Errorf("assetID is required")
	}
	jobID := m.newID()

	record := &Record{
		JobID:     jobID,
		Operation: operationDestroy,
		AssetID:   assetID,
		Status:    StatusQueued,
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return "", err
	}

	body, err := json.Marshal(DestroyPayload{JobID: jobID, AssetID: assetID})
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TaskTypeDestroy, body)
	if _, err := m.client.EnqueueContext(ctx, task,
		asynq.Queue(Queue),
		asynq.MaxRetry(destroyMaxRetry),
		asynq.TaskID(jobID),
	); err != nil {
		if markErr := m.store.MarkFailed(ctx, jobID, &ErrorInfo{
			Code:    "enqueue_failed",
			Message: "ジョブの投入に失敗しました。",
		}); markErr != nil {
			m.log.Error().Err(markErr).Str("job", jobID).Msg("failed to record enqueue failure")
		}
		return "", fmt.Errorf("failed to enqueue destroy task: %w", err)
	}

	m.log.Info().Str("job", jobID).Str("asset", assetID).Msg("destroy task enqueued")
	return jobID, nil
}

// GetRecord はジョブ情報を取得します。存在しない場合は nil を返します。
func (m *Manager) GetRecord(ctx context.Context, jobID string) (*Record, error) {
	return m.store.Get(ctx, jobID)
}
