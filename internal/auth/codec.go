package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/securecookie"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/config"
)

// ErrMalformedToken はトークンをデコードできないことを表します。
var ErrMalformedToken = errors.New("malformed session token")

// NewCodec は設定名に対応する Codec を返します。
func NewCodec(name, secret string) (Codec, error) {
	switch name {
	case "", config.SessionCodecPlain:
		return PlainCodec{}, nil
	case config.SessionCodecJWT:
		return NewJWTCodec([]byte(secret))
	case config.SessionCodecSecureCookie:
		return NewSecureCookieCodec([]byte(secret))
	default:
		return nil, fmt.Errorf("unknown session codec %q", name)
	}
}

type plainPayload struct {
	Sub *string `json:"sub"`
	Iat *int64  `json:"iat"`
}

// PlainCodec は Claims を JSON にして base64url でエンコードします。
// 署名も暗号化もしないため、形式を知っていれば誰でもトークンを作れます。
type PlainCodec struct{}

func (PlainCodec) Encode(claims Claims) (string, error) {
	data, err := json.Marshal(plainPayload{Sub: &claims.Subject, Iat: &claims.IssuedAt})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func (PlainCodec) Decode(token string) (Claims, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrMalformedToken
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p plainPayload
	if err := dec.Decode(&p); err != nil {
		return Claims{}, ErrMalformedToken
	}
	if dec.More() {
		return Claims{}, ErrMalformedToken
	}
	if p.Sub == nil || p.Iat == nil {
		return Claims{}, ErrMalformedToken
	}
	return Claims{Subject: *p.Sub, IssuedAt: *p.Iat}, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	IssuedAtMs *int64 `json:"iat_ms"`
}

// JWTCodec は HS256 で署名した JWT として Claims を扱います。
// 有効期限の判定は SessionManager が行うため、ここでは署名と形式のみ検証します。
type JWTCodec struct {
	key    []byte
	parser *jwt.Parser
}

// NewJWTCodec は JWTCodec を作成します。
func NewJWTCodec(key []byte) (*JWTCodec, error) {
	if len(key) == 0 {
		return nil, errors.New("jwt codec requires a secret")
	}
	return &JWTCodec{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

func (c *JWTCodec) Encode(claims Claims) (string, error) {
	iat := claims.IssuedAt
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: claims.Subject},
		IssuedAtMs:       &iat,
	})
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (c *JWTCodec) Decode(token string) (Claims, error) {
	var claims jwtClaims
	if _, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	}); err != nil {
		return Claims{}, ErrMalformedToken
	}
	if claims.IssuedAtMs == nil {
		return Claims{}, ErrMalformedToken
	}
	return Claims{Subject: claims.Subject, IssuedAt: *claims.IssuedAtMs}, nil
}

const secureCookieName = "session"

// SecureCookieCodec は gorilla/securecookie の HMAC で Claims を保護します。
type SecureCookieCodec struct {
	sc *securecookie.SecureCookie
}

// NewSecureCookieCodec は secret から HMAC 鍵を導出して SecureCookieCodec を作成します。
func NewSecureCookieCodec(secret []byte) (*SecureCookieCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("securecookie codec requires a secret")
	}
	hashKey := sha256.Sum256(secret)
	sc := securecookie.New(hashKey[:], nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// 有効期限は SessionManager 側で判定する
	sc.MaxAge(0)
	return &SecureCookieCodec{sc: sc}, nil
}

func (c *SecureCookieCodec) Encode(claims Claims) (string, error) {
	return c.sc.Encode(secureCookieName, plainPayload{Sub: &claims.Subject, Iat: &claims.IssuedAt})
}

func (c *SecureCookieCodec) Decode(token string) (Claims, error) {
	var p plainPayload
	if err := c.sc.Decode(secureCookieName, token, &p); err != nil {
		return Claims{}, ErrMalformedToken
	}
	if p.Sub == nil || p.Iat == nil {
		return Claims{}, ErrMalformedToken
	}
	return Claims{Subject: *p.Sub, IssuedAt: *p.Iat}, nil
}
