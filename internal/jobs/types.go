package jobs

import "time"

const (
	// TaskTypeDestroy はアセット削除タスクの種別です。
	TaskTypeDestroy = "asset:destroy"
	// Queue はアセット関連タスクのキュー名です。
	Queue = "assets"

	operationDestroy = "asset.destroy"
)

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "done"
	StatusFailed    Status = "error"
)

// ErrorInfo はジョブ失敗時のエラー情報を保持します。
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record はジョブの現在状態を表します。
type Record struct {
	JobID     string     `json:"jobId"`
	Operation string     `json:"operation"`
	AssetID   string     `json:"assetId"`
	Status    Status     `json:"status"`
	Attempts  int        `json:"attempts"`
	Error     *ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// DestroyPayload はアセット削除タスクのペイロードです。
type DestroyPayload struct {
	JobID   string `json:"jobId"`
	AssetID string `json:"assetId"`
}
