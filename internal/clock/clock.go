// Package clock は現在時刻の取得を抽象化し、テストで時刻を差し替えられるようにします。
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返します。
type Clock interface {
	Now() time.Time
}

// Real はシステム時刻を返す Clock です。
type Real struct{}

// Now は time.Now を返します。
func (Real) Now() time.Time {
	return time.Now()
}

// Manual は手動で進める Clock です。テストで使用します。
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual は指定時刻から始まる Manual を作成します。
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now は現在の設定時刻を返します。
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance は時刻を d だけ進めます。
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set は時刻を t に設定します。
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// UnixMilli は Clock の現在時刻をミリ秒のエポック値で返します。
func UnixMilli(c Clock) int64 {
	return c.Now().UnixMilli()
}
