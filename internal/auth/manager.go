// Package auth は認証・認可機能を提供します。
//
// 管理APIの前段で、レート制限・CSRF 検証・セッション検証の順に
// リクエストを受け付けるかどうかを判定します。
package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/audit"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/ratelimit"
)

// ハンドラー間で検証済みのセッション情報を共有するためのキーです。
const (
	ContextUserKey     = "auth.user"
	ContextIssuedAtKey = "auth.iat"
)

// Options は Manager の依存関係です。
type Options struct {
	Sessions          *SessionManager
	CSRF              *CSRFGuard
	Limiter           *ratelimit.Limiter
	Verifier          Verifier // nil の場合、ログインは 500 を返す
	Cookies           CookieOptions
	TrustForwardedFor bool
	Audit             *audit.Recorder
	Logger            zerolog.Logger
	Clock             clock.Clock
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	sessions       *SessionManager
	csrf           *CSRFGuard
	limiter        *ratelimit.Limiter
	verifier       Verifier
	cookies        CookieOptions
	trustForwarded bool
	audit          *audit.Recorder
	log            zerolog.Logger
	clock          clock.Clock
}

// NewManager は認証マネージャーを作成します。
func NewManager(opts Options) *Manager {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = NewSessionManager(PlainCodec{}, c)
	}
	guard := opts.CSRF
	if guard == nil {
		guard = NewCSRFGuard()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New(c)
	}
	return &Manager{
		sessions:       sessions,
		csrf:           guard,
		limiter:        limiter,
		verifier:       opts.Verifier,
		cookies:        opts.Cookies,
		trustForwarded: opts.TrustForwardedFor,
		audit:          opts.Audit,
		log:            opts.Logger.With().Str("component", "auth").Logger(),
		clock:          c,
	}
}

// Sessions は SessionManager を返します。
func (m *Manager) Sessions() *SessionManager {
	return m.sessions
}

// CurrentUser は検証済みのセッションの subject を返します。
func CurrentUser(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return "", false
	}
	user, ok := v.(string)
	return user, ok
}

func (m *Manager) clientID(c *gin.Context) string {
	return ClientID(c.Request, m.trustForwarded)
}
