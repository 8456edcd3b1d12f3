package auth

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/apierror"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/audit"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/ratelimit"
)

// Policy はエンドポイントごとの受け付け条件です。
type Policy struct {
	// Action はレート制限のキーに使うアクション名です。空の場合はレート制限を行いません。
	Action string
	Limit  int
	Window time.Duration

	// StateChanging が true の場合は CSRF トークンを検証します。
	StateChanging bool
	// Protected が true の場合は有効なセッションを要求します。
	Protected bool
}

// Admit はレート制限 → CSRF → セッションの順に検証するミドルウェアを返します。
// いずれかで拒否した時点で中断し、後続の検証もハンドラーも実行しません。
func (m *Manager) Admit(p Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := m.clientID(c)

		if p.Action != "" {
			decision := m.limiter.Decide(ratelimit.Key(p.Action, client), p.Limit, p.Window)
			if !decision.Allowed {
				if wait := decision.RetryAfter(m.clock.Now()); wait > 0 {
					c.Header("Retry-After", strconv.FormatInt(int64(math.Ceil(wait.Seconds())), 10))
				}
				m.audit.Record(c.Request.Context(), audit.Event{
					Type:     audit.EventRateLimited,
					Action:   p.Action,
					ClientID: client,
				})
				apierror.Respond(c, m.log, apierror.RateLimited())
				return
			}
		}

		if p.StateChanging {
			if ok, reason := m.csrf.Check(c.Request); !ok {
				m.audit.Record(c.Request.Context(), audit.Event{
					Type:     audit.EventCSRFRejected,
					Action:   p.Action,
					ClientID: client,
					Reason:   reason,
				})
				apierror.Respond(c, m.log, apierror.Forbidden(apierror.CodeCSRF))
				return
			}
		}

		if p.Protected {
			v, reason := m.validateRequest(c)
			if !v.Valid {
				m.audit.Record(c.Request.Context(), audit.Event{
					Type:     audit.EventSessionInvalid,
					Action:   p.Action,
					ClientID: client,
					Reason:   reason,
				})
				apierror.Respond(c, m.log, apierror.Auth(apierror.CodeUnauthorized))
				return
			}
			c.Set(ContextUserKey, v.Subject)
			c.Set(ContextIssuedAtKey, v.IssuedAt)
		}

		c.Next()
	}
}

// validateRequest はセッションクッキーを検証し、拒否理由を返します。
func (m *Manager) validateRequest(c *gin.Context) (Validation, string) {
	token, err := c.Cookie(SessionCookieName)
	if err != nil || token == "" {
		return Validation{}, "missing_session"
	}
	v := m.sessions.Validate(token)
	switch {
	case v.Valid:
		return v, ""
	case v.Expired:
		return v, "expired"
	default:
		return v, "invalid_session"
	}
}
