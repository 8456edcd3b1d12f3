package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoCredentials は管理者の認証情報が設定されていないことを表します。
var ErrNoCredentials = errors.New("admin credentials are not configured")

// Verifier はログイン時の認証情報を検証します。
type Verifier interface {
	Verify(email, password string) bool
}

// StaticVerifier は設定された平文の認証情報と比較します。
type StaticVerifier struct {
	Email    string
	Password string
}

func (v StaticVerifier) Verify(email, password string) bool {
	emailOK := constantTimeEqual(normalizeEmail(email), normalizeEmail(v.Email))
	passOK := constantTimeEqual(password, v.Password)
	return emailOK && passOK && v.Password != ""
}

// BcryptVerifier は bcrypt ハッシュと比較します。
type BcryptVerifier struct {
	Email string
	Hash  []byte
}

func (v BcryptVerifier) Verify(email, password string) bool {
	emailOK := constantTimeEqual(normalizeEmail(email), normalizeEmail(v.Email))
	// メールアドレスが一致しなくてもハッシュ比較を行い、応答時間を揃える
	passOK := bcrypt.CompareHashAndPassword(v.Hash, []byte(password)) == nil
	return emailOK && passOK
}

// NewVerifier は設定から Verifier を選びます。ハッシュが設定されていればそちらを優先します。
func NewVerifier(email, password, passwordHash string) (Verifier, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrNoCredentials
	}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, err
		}
		return BcryptVerifier{Email: email, Hash: []byte(passwordHash)}, nil
	}
	if password != "" {
		return StaticVerifier{Email: email, Password: password}, nil
	}
	return nil, ErrNoCredentials
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
