// Package audit はセキュリティ上重要な出来事（ログイン、CSRF 拒否など）を記録します。
// パスワードやトークンの生値は決して記録しません。
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// Topic は監査イベントの発行先トピックです。
const Topic = "admin.audit"

// EventType は監査イベントの種別です。
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventLogout         EventType = "logout"
	EventRateLimited    EventType = "rate_limited"
	EventCSRFRejected   EventType = "csrf_rejected"
	EventSessionInvalid EventType = "session_invalid"
)

// Event は監査イベントです。
type Event struct {
	Type     EventType `json:"type"`
	Action   string    `json:"action,omitempty"`
	ClientID string    `json:"clientId,omitempty"`
	Subject  string    `json:"subject,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Rejection は拒否を表すイベントかどうかを返します。
func (e Event) Rejection() bool {
	switch e.Type {
	case EventLoginSucceeded, EventLogout:
		return false
	default:
		return true
	}
}

// Recorder はイベントをログに出力し、publisher があれば発行します。
type Recorder struct {
	log       zerolog.Logger
	publisher message.Publisher
}

// NewRecorder は Recorder を作成します。publisher は nil でも構いません。
func NewRecorder(log zerolog.Logger, publisher message.Publisher) *Recorder {
	return &Recorder{
		log:       log.With().Str("component", "audit").Logger(),
		publisher: publisher,
	}
}

// Record はイベントを記録します。発行の失敗はログに残すだけで呼び出し側には返しません。
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	entry := r.log.Info()
	if ev.Rejection() {
		entry = r.log.Warn()
	}
	entry.
		Str("event", string(ev.Type)).
		Str("action", ev.Action).
		Str("client", ev.ClientID).
		Str("subject", ev.Subject).
		Str("reason", ev.Reason).
		Msg("audit")

	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to marshal audit event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := r.publisher.Publish(Topic, msg); err != nil {
		r.log.Error().Err(err).Str("event", string(ev.Type)).Msg("failed to publish audit event")
	}
}
