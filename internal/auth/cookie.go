package auth

import (
	"net/http"
)

// SessionCookieName はセッショントークンを保持するクッキー名です。
const SessionCookieName = "session"

// CookieOptions はクッキー発行時の共通設定です。
type CookieOptions struct {
	Secure bool   // 本番相当の環境でのみ有効にする
	Domain string // 通常は空
}

func (o CookieOptions) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetSessionCookie はセッションクッキーを発行します。
func SetSessionCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	http.SetCookie(w, opts.cookie(SessionCookieName, token, SessionMaxAgeSeconds(), true))
}

// ClearSessionCookie はセッションクッキーを削除します（空値 + Max-Age=0）。
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	// net/http では負の MaxAge が "Max-Age=0" として送出される
	http.SetCookie(w, opts.cookie(SessionCookieName, "", -1, true))
}

// SetCSRFCookie は CSRF トークンのクッキーを発行します。フロントエンドが読めるよう HttpOnly にはしません。
func SetCSRFCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	http.SetCookie(w, opts.cookie(CSRFCookieName, token, SessionMaxAgeSeconds(), false))
}

// ClearCSRFCookie は CSRF トークンのクッキーを削除します。
func ClearCSRFCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, opts.cookie(CSRFCookieName, "", -1, false))
}
