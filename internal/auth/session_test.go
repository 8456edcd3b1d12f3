package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
)

var testStart = time.UnixMilli(1_700_000_000_123)

func testCodecs(t *testing.T) map[string]Codec {
	t.Helper()
	jwtCodec, err := NewJWTCodec([]byte("jwt-secret"))
	require.NoError(t, err)
	scCodec, err := NewSecureCookieCodec([]byte("cookie-secret"))
	require.NoError(t, err)
	return map[string]Codec{
		"plain":        PlainCodec{},
		"jwt":          jwtCodec,
		"securecookie": scCodec,
	}
}

func TestIssueValidateRoundTrip(t *testing.T) {
	subjects := []string{"admin@example.com", "", "ユーザー", `quote"and\slash`, "a:b:c"}

	for name, codec := range testCodecs(t) {
		t.Run(name, func(t *testing.T) {
			c := clock.NewManual(testStart)
			m := NewSessionManager(codec, c)
			for _, subject := range subjects {
				token, err := m.Issue(subject)
				require.NoError(t, err)

				v := m.Validate(token)
				assert.True(t, v.Valid, subject)
				assert.Equal(t, subject, v.Subject)
				assert.Equal(t, testStart.UnixMilli(), v.IssuedAt)
			}
		})
	}
}

func TestIssueRejectsInvalidUTF8Subject(t *testing.T) {
	for name, codec := range testCodecs(t) {
		t.Run(name, func(t *testing.T) {
			m := NewSessionManager(codec, clock.NewManual(testStart))
			token, err := m.Issue("adm\xffin")
			assert.ErrorIs(t, err, ErrInvalidSubject)
			assert.Empty(t, token)
		})
	}
}

func TestIssueIsDeterministic(t *testing.T) {
	m := NewSessionManager(PlainCodec{}, clock.NewManual(testStart))
	a, err := m.Issue("admin@example.com")
	require.NoError(t, err)
	b, err := m.Issue("admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestValidateExpiry(t *testing.T) {
	for name, codec := range testCodecs(t) {
		t.Run(name, func(t *testing.T) {
			c := clock.NewManual(testStart)
			m := NewSessionManager(codec, c)
			token, err := m.Issue("admin@example.com")
			require.NoError(t, err)

			c.Set(testStart.Add(SessionMaxAge - time.Millisecond))
			assert.True(t, m.Validate(token).Valid)

			c.Set(testStart.Add(SessionMaxAge))
			assert.True(t, m.Validate(token).Valid, "age equal to max age is still valid")

			c.Set(testStart.Add(SessionMaxAge + time.Millisecond))
			v := m.Validate(token)
			assert.False(t, v.Valid)
			assert.True(t, v.Expired)
			assert.Empty(t, v.Subject)
		})
	}
}

func TestValidateMalformed(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	garbage := []string{
		"",
		"not-a-token",
		"%%%%",
		"a.b.c",
		enc("null"),
		enc("[]"),
		enc(`"admin"`),
		enc(`{}`),
		enc(`{"sub":"admin"}`),
		enc(`{"iat":1700000000000}`),
		enc(`{"sub":1,"iat":1700000000000}`),
		enc(`{"sub":"admin","iat":"yesterday"}`),
		enc(`{"sub":"admin","iat":1.5}`),
		enc(`{"sub":"admin","iat":1,"role":"root"}`),
		enc(`{"sub":"admin","iat":1}{}`),
		enc("\x00\xff\xfe"),
		base64.StdEncoding.EncodeToString([]byte(`{"sub":"admin","iat":1}`)) + "==",
	}

	for name, codec := range testCodecs(t) {
		t.Run(name, func(t *testing.T) {
			m := NewSessionManager(codec, clock.NewManual(testStart))
			for _, token := range garbage {
				assert.NotPanics(t, func() {
					v := m.Validate(token)
					assert.False(t, v.Valid, "%q", token)
					assert.False(t, v.Expired, "%q", token)
				})
			}
		})
	}
}

func TestSignedCodecsRejectForeignTokens(t *testing.T) {
	plainToken, err := PlainCodec{}.Encode(Claims{Subject: "admin@example.com", IssuedAt: testStart.UnixMilli()})
	require.NoError(t, err)

	codecs := testCodecs(t)
	for _, name := range []string{"jwt", "securecookie"} {
		_, err := codecs[name].Decode(plainToken)
		assert.ErrorIs(t, err, ErrMalformedToken, name)
	}

	other, err := NewJWTCodec([]byte("another-secret"))
	require.NoError(t, err)
	forged, err := other.Encode(Claims{Subject: "admin@example.com", IssuedAt: testStart.UnixMilli()})
	require.NoError(t, err)
	_, err = codecs["jwt"].Decode(forged)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestPlainTokenIsForgeable(t *testing.T) {
	// 署名なしのエンコードでは、形式さえ分かれば有効なトークンを作れてしまう
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"mallory","iat":1700000000000}`))
	m := NewSessionManager(PlainCodec{}, clock.NewManual(time.UnixMilli(1_700_000_000_000)))
	v := m.Validate(forged)
	assert.True(t, v.Valid)
	assert.Equal(t, "mallory", v.Subject)
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec("", "")
	require.NoError(t, err)
	assert.IsType(t, PlainCodec{}, c)

	c, err = NewCodec("jwt", "secret")
	require.NoError(t, err)
	assert.IsType(t, &JWTCodec{}, c)

	c, err = NewCodec("securecookie", "secret")
	require.NoError(t, err)
	assert.IsType(t, &SecureCookieCodec{}, c)

	_, err = NewCodec("jwt", "")
	assert.Error(t, err)
	_, err = NewCodec("rot13", "secret")
	assert.Error(t, err)
}

func TestSessionMaxAgeSeconds(t *testing.T) {
	assert.Equal(t, 28800, SessionMaxAgeSeconds())
}
