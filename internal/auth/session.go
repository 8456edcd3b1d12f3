package auth

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
)

// SessionMaxAge はセッショントークンの有効期間です。
const SessionMaxAge = 8 * time.Hour

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(SessionMaxAge.Seconds())
}

// ErrInvalidSubject は subject が正しい UTF-8 でない場合に返されます。
var ErrInvalidSubject = errors.New("session subject is not valid UTF-8")

// Claims はセッショントークンに含まれる情報です。IssuedAt はミリ秒のエポック値です。
type Claims struct {
	Subject  string
	IssuedAt int64
}

// Codec は Claims とトークン文字列を相互変換します。
// Decode は不正な入力に対してエラーを返し、panic してはいけません。
type Codec interface {
	Encode(claims Claims) (string, error)
	Decode(token string) (Claims, error)
}

// Validation はトークン検証の結果です。Valid が false の場合、他のフィールドは
// Expired を除き意味を持ちません。
type Validation struct {
	Valid    bool
	Expired  bool
	Subject  string
	IssuedAt int64
}

// SessionManager はセッショントークンの発行と検証を行います。
//
// サーバー側に失効リストは持たないため、ログアウト後も発行済みトークンは
// 期限切れまで有効です。
type SessionManager struct {
	codec  Codec
	clock  clock.Clock
	maxAge time.Duration
}

// NewSessionManager は SessionManager を作成します。
func NewSessionManager(codec Codec, c clock.Clock) *SessionManager {
	if codec == nil {
		codec = PlainCodec{}
	}
	if c == nil {
		c = clock.Real{}
	}
	return &SessionManager{
		codec:  codec,
		clock:  c,
		maxAge: SessionMaxAge,
	}
}

// Issue は subject のトークンを現在時刻で発行します。
// トークンは JSON で表現されるため、UTF-8 として不正な subject は受け付けません。
func (m *SessionManager) Issue(subject string) (string, error) {
	if !utf8.ValidString(subject) {
		return "", ErrInvalidSubject
	}
	return m.codec.Encode(Claims{
		Subject:  subject,
		IssuedAt: clock.UnixMilli(m.clock),
	})
}

// Validate はトークンを検証します。デコードできないトークンも含め、
// 失敗は常に Valid=false として返します。
func (m *SessionManager) Validate(token string) Validation {
	if token == "" {
		return Validation{}
	}
	claims, err := m.codec.Decode(token)
	if err != nil {
		return Validation{}
	}
	age := clock.UnixMilli(m.clock) - claims.IssuedAt
	if age > m.maxAge.Milliseconds() {
		return Validation{Expired: true}
	}
	return Validation{
		Valid:    true,
		Subject:  claims.Subject,
		IssuedAt: claims.IssuedAt,
	}
}
