// Package apierror は API のエラー分類と HTTP レスポンスへの変換を提供します。
package apierror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Kind はエラーの分類です。
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindRateLimited
	KindNotFound
)

// 共通のエラーコード
const (
	CodeInvalidJSON        = "invalid_json"
	CodeMissingCredentials = "missing_credentials"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidSession     = "invalid_session"
	CodeCSRF               = "csrf_mismatch"
	CodeRateLimited        = "rate_limited"
	CodeNotFound           = "not_found"
	CodeServerError        = "server_error"

	CodeInvalidProject   = "invalid_project"
	CodeInvalidUpload    = "invalid_upload"
	CodeUnsupportedMedia = "unsupported_media"
	CodeFileTooLarge     = "file_too_large"
)

// Error は分類とコードを持つ API エラーです。
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status は分類に対応する HTTP ステータスを返します。
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func Validation(code string) *Error { return &Error{Kind: KindValidation, Code: code} }

func Auth(code string) *Error { return &Error{Kind: KindAuth, Code: code} }

func Forbidden(code string) *Error { return &Error{Kind: KindForbidden, Code: code} }

func RateLimited() *Error { return &Error{Kind: KindRateLimited, Code: CodeRateLimited} }

func NotFound() *Error { return &Error{Kind: KindNotFound, Code: CodeNotFound} }

// Internal は予期しない失敗を包みます。原因はログにのみ出力されます。
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeServerError, Err: err}
}

// Respond は err を {error: code} 形式で返し、後続のハンドラーを中断します。
// *Error 以外のエラーと Internal は 500 server_error として扱い、原因をログに残します。
func Respond(c *gin.Context, log zerolog.Logger, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal(err)
	}

	if apiErr.Kind == KindInternal {
		log.Error().
			Err(apiErr.Err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": CodeServerError})
		return
	}

	c.AbortWithStatusJSON(apiErr.Status(), gin.H{"error": apiErr.Code})
}
