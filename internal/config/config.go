// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 利用可能なセッションエンコード方式
const (
	SessionCodecPlain        = "plain"
	SessionCodecJWT          = "jwt"
	SessionCodecSecureCookie = "securecookie"
)

// EnvProduction は本番環境を表す APP_ENV の値です。
const EnvProduction = "production"

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)
	AppEnv  string // 実行環境 (development, production)

	// 管理者認証
	AdminEmail        string // 管理者のメールアドレス（セッションの subject）
	AdminPassword     string // 平文比較用のパスワード
	AdminPasswordHash string // bcryptでハッシュ化されたパスワード（設定時はこちらを優先）
	SessionCodec      string // セッショントークンのエンコード方式
	SessionSecret     string // jwt / securecookie 方式の署名鍵

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// レート制限
	TrustForwardedFor    bool  // X-Forwarded-For をクライアント識別に使うか
	LoginRateLimit       int
	LoginRateWindowMs    int64
	WriteRateLimit       int
	WriteRateWindowMs    int64
	RateLimitIdleTTLSecs int64 // 使われなくなったバケットを破棄するまでの秒数

	// データ
	ProjectsFile  string // プロジェクト情報のJSONファイル
	UploadDir     string // アップロード画像の保存先
	MaxUploadSize int64  // アップロード1件の最大サイズ（バイト）

	// ジョブ/キュー設定
	QueueRedisURL    string // Asynq用Redis接続URL（空なら同期処理）
	JobExpireMinutes int    // ジョブ状態の保持期間（分）

	// ログ
	LogLevel  string
	LogPretty bool
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AdminEmail:        getEnv("ADMIN_EMAIL", ""),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		SessionCodec:      strings.ToLower(getEnv("SESSION_CODEC", SessionCodecPlain)),
		SessionSecret:     getEnv("SESSION_SECRET", ""),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		TrustForwardedFor:    getEnvAsBool("TRUST_FORWARDED_FOR", true),
		LoginRateLimit:       getEnvAsInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindowMs:    getEnvAsInt64("LOGIN_RATE_WINDOW_MS", 60000),
		WriteRateLimit:       getEnvAsInt("WRITE_RATE_LIMIT", 30),
		WriteRateWindowMs:    getEnvAsInt64("WRITE_RATE_WINDOW_MS", 60000),
		RateLimitIdleTTLSecs: getEnvAsInt64("RATE_LIMIT_IDLE_TTL_SECONDS", 600),

		ProjectsFile:  getEnv("PROJECTS_FILE", filepath.Join("data", "projects.json")),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB

		QueueRedisURL:    getEnv("QUEUE_REDIS_URL", ""),
		JobExpireMinutes: getEnvAsInt("JOB_EXPIRE_MINUTES", 60),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.SessionCodec {
	case SessionCodecPlain:
	case SessionCodecJWT, SessionCodecSecureCookie:
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required for SESSION_CODEC=%s", c.SessionCodec)
		}
	default:
		return fmt.Errorf("unknown SESSION_CODEC %q", c.SessionCodec)
	}

	if c.LoginRateLimit <= 0 || c.LoginRateWindowMs <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW_MS must be positive")
	}
	if c.WriteRateLimit <= 0 || c.WriteRateWindowMs <= 0 {
		return fmt.Errorf("WRITE_RATE_LIMIT and WRITE_RATE_WINDOW_MS must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}

	// ローカル開発では認証設定は任意
	if c.IsProduction() {
		if c.AdminEmail == "" {
			return fmt.Errorf("ADMIN_EMAIL is required in production")
		}
		if c.AdminPasswordHash == "" && c.AdminPassword == "" {
			return fmt.Errorf("ADMIN_PASSWORD_HASH or ADMIN_PASSWORD is required in production")
		}
	}

	return nil
}

// IsProduction は本番相当の環境かどうかを返します。Secure クッキーの判定に使います。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// LoginRateWindow はログインのレート制限ウィンドウです。
func (c *Config) LoginRateWindow() time.Duration {
	return time.Duration(c.LoginRateWindowMs) * time.Millisecond
}

// WriteRateWindow は更新系APIのレート制限ウィンドウです。
func (c *Config) WriteRateWindow() time.Duration {
	return time.Duration(c.WriteRateWindowMs) * time.Millisecond
}

// RateLimitIdleTTL はバケット破棄までの時間です。
func (c *Config) RateLimitIdleTTL() time.Duration {
	return time.Duration(c.RateLimitIdleTTLSecs) * time.Second
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
