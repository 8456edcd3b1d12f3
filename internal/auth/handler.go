package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/apierror"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/audit"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login は /api/auth/login のハンドラーです。
// セッション発行前なので CSRF 検証は行いません。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.Respond(c, m.log, apierror.Validation(apierror.CodeInvalidJSON))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		apierror.Respond(c, m.log, apierror.Validation(apierror.CodeMissingCredentials))
		return
	}

	if m.verifier == nil {
		apierror.Respond(c, m.log, apierror.Internal(ErrNoCredentials))
		return
	}

	client := m.clientID(c)
	if !m.verifier.Verify(email, req.Password) {
		m.audit.Record(c.Request.Context(), audit.Event{
			Type:     audit.EventLoginFailed,
			Action:   "login",
			ClientID: client,
			Subject:  email,
		})
		apierror.Respond(c, m.log, apierror.Auth(apierror.CodeInvalidCredentials))
		return
	}

	token, err := m.sessions.Issue(email)
	if err != nil {
		apierror.Respond(c, m.log, apierror.Internal(err))
		return
	}
	csrfToken, err := GenerateCSRFToken()
	if err != nil {
		apierror.Respond(c, m.log, apierror.Internal(err))
		return
	}

	SetSessionCookie(c.Writer, token, m.cookies)
	SetCSRFCookie(c.Writer, csrfToken, m.cookies)
	c.Header(CSRFHeader, csrfToken)

	m.audit.Record(c.Request.Context(), audit.Event{
		Type:     audit.EventLoginSucceeded,
		Action:   "login",
		ClientID: client,
		Subject:  email,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Logout は /api/auth/logout のハンドラーです。
// クッキーを削除するだけで、発行済みトークン自体は期限まで有効なままです。
func (m *Manager) Logout(c *gin.Context) {
	var subject string
	if token, err := c.Cookie(SessionCookieName); err == nil {
		if v := m.sessions.Validate(token); v.Valid {
			subject = v.Subject
		}
	}

	ClearSessionCookie(c.Writer, m.cookies)
	ClearCSRFCookie(c.Writer, m.cookies)

	m.audit.Record(c.Request.Context(), audit.Event{
		Type:     audit.EventLogout,
		Action:   "logout",
		ClientID: m.clientID(c),
		Subject:  subject,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Session は /api/auth/session のハンドラーです。
// クッキーがない・壊れている場合もエラーにはせず 200 {ok:false} を返します。
func (m *Manager) Session(c *gin.Context) {
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			c.JSON(http.StatusOK, gin.H{"ok": false})
			return
		}
		apierror.Respond(c, m.log, apierror.Internal(err))
		return
	}

	v := m.sessions.Validate(token)
	switch {
	case v.Valid:
	case v.Expired:
		c.JSON(http.StatusOK, gin.H{"ok": false, "expired": true})
		return
	default:
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": apierror.CodeInvalidSession})
		return
	}

	// CSRF クッキーを失ったクライアントには再発行する
	if existing, err := c.Cookie(CSRFCookieName); err != nil || existing == "" {
		csrfToken, err := GenerateCSRFToken()
		if err != nil {
			apierror.Respond(c, m.log, apierror.Internal(err))
			return
		}
		SetCSRFCookie(c.Writer, csrfToken, m.cookies)
		c.Header(CSRFHeader, csrfToken)
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "user": v.Subject, "iat": v.IssuedAt})
}
