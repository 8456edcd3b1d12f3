// Package ratelimit はアクション×クライアント単位の固定ウィンドウ型レート制限を提供します。
//
// 状態はプロセス内のみで保持します。複数インスタンスで動かす場合、
// 実効上限はインスタンスごとに limit 回になります。
package ratelimit

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
)

// DefaultIdleTTL は、アクセスの途絶えたバケットを破棄するまでの既定時間です。
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	windowStart time.Time
	count       int
}

// Decision は Check の詳細な判定結果です。
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter は now から見てウィンドウがリセットされるまでの時間を返します。
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.IsZero() || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter はキーごとの固定ウィンドウカウンタです。
type Limiter struct {
	clock   clock.Clock
	idleTTL time.Duration

	lock    sync.Mutex
	buckets *ttlcache.Cache[string, *bucket]

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

// Option は Limiter の設定を変更します。
type Option func(*Limiter)

// WithIdleTTL はバケットの破棄までの時間を設定します。
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.idleTTL = d
		}
	}
}

// New は Limiter を作成します。c が nil の場合はシステム時刻を使います。
func New(c clock.Clock, opts ...Option) *Limiter {
	if c == nil {
		c = clock.Real{}
	}
	l := &Limiter{
		clock:   c,
		idleTTL: DefaultIdleTTL,
		buckets: ttlcache.New[string, *bucket](
			ttlcache.WithDisableTouchOnHit[string, *bucket](),
		),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key はアクション名とクライアント識別子からバケットキーを組み立てます。
func Key(action, client string) string {
	return action + ":" + client
}

// Check は key に対する呼び出しを 1 回数え、許可されるかどうかを返します。
func (l *Limiter) Check(key string, limit int, window time.Duration) bool {
	return l.Decide(key, limit, window).Allowed
}

// Decide は Check と同じ判定を行い、残り回数とリセット時刻も返します。
// limit か window が 0 以下の場合は常に拒否します。
func (l *Limiter) Decide(key string, limit int, window time.Duration) Decision {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: false, Limit: limit}
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.clock.Now()
	var b *bucket
	if item := l.buckets.Get(key); item != nil {
		b = item.Value()
	}
	if b == nil || now.Sub(b.windowStart) >= window {
		b = &bucket{windowStart: now}
		l.buckets.Set(key, b, l.evictAfter(window))
	}

	b.count++
	remaining := limit - b.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   b.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   b.windowStart.Add(window),
	}
}

// ウィンドウ途中でバケットが消えるとカウントがリセットされてしまうため、
// 破棄までの時間は必ずウィンドウ長以上にする。
// 破棄は ttlcache の実時間で判定され、注入した clock.Clock は使われない。
func (l *Limiter) evictAfter(window time.Duration) time.Duration {
	if l.idleTTL < window {
		return window
	}
	return l.idleTTL
}

// Len は保持しているバケット数を返します。
func (l *Limiter) Len() int {
	return l.buckets.Len()
}

// Start は期限切れバケットを破棄するバックグラウンド処理を開始します。
func (l *Limiter) Start() {
	l.startOnce.Do(func() {
		l.lock.Lock()
		l.started = true
		l.lock.Unlock()
		go l.buckets.Start()
	})
}

// Close はバックグラウンド処理を停止します。Start を呼んでいない場合は何もしません。
func (l *Limiter) Close() {
	l.lock.Lock()
	started := l.started
	l.lock.Unlock()
	if !started {
		return
	}
	l.stopOnce.Do(l.buckets.Stop)
}

// Prune は期限切れバケットを即座に破棄します。
func (l *Limiter) Prune() {
	l.buckets.DeleteExpired()
}
