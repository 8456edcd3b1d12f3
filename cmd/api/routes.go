package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/apierror"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/audit"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/auth"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/config"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/jobs"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/projects"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/ratelimit"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/storage"
)

// app はサーバーが使う依存関係をまとめたものです。
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	auth      *auth.Manager
	limiter   *ratelimit.Limiter
	projects  projects.Store
	assets    *storage.LocalStore
	jobs      *jobs.Manager // キュー未設定時は nil
	publisher message.Publisher
	redis     *redis.Client // キュー未設定時は nil
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	clk := clock.Real{}

	codec, err := auth.NewCodec(cfg.SessionCodec, cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(cfg.AdminEmail, cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		if !errors.Is(err, auth.ErrNoCredentials) {
			return nil, err
		}
		log.Warn().Msg("admin credentials are not configured; login is disabled")
	}

	assets, err := storage.NewLocalStore(cfg.UploadDir, "/uploads", cfg.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		limiter:  ratelimit.New(clk, ratelimit.WithIdleTTL(cfg.RateLimitIdleTTL())),
		projects: projects.NewFileStore(cfg.ProjectsFile, clk),
		assets:   assets,
	}

	if cfg.QueueRedisURL != "" {
		rdb, manager, err := setupJobs(cfg, assets, log)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
		a.jobs = manager
		a.publisher, err = audit.NewPublisher(rdb)
		if err != nil {
			a.close()
			return nil, err
		}
	} else {
		a.publisher, err = audit.NewPublisher(nil)
		if err != nil {
			return nil, err
		}
	}

	a.auth = auth.NewManager(auth.Options{
		Sessions:          auth.NewSessionManager(codec, clk),
		CSRF:              auth.NewCSRFGuard(),
		Limiter:           a.limiter,
		Verifier:          verifier,
		Cookies:           auth.CookieOptions{Secure: cfg.IsProduction()},
		TrustForwardedFor: cfg.TrustForwardedFor,
		Audit:             audit.NewRecorder(log, a.publisher),
		Logger:            log,
		Clock:             clk,
	})

	a.limiter.Start()
	if a.jobs != nil {
		if err := a.jobs.StartWorkers(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// close はバックグラウンド処理と外部接続を閉じます。
func (a *app) close() {
	if a.jobs != nil {
		if err := a.jobs.Shutdown(); err != nil {
			a.log.Error().Err(err).Msg("failed to stop job workers")
		}
	}
	a.limiter.Close()
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close audit publisher")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close redis client")
		}
	}
}

// router は Gin ルーターを組み立てます。
func (a *app) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.log))
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		apierror.Respond(c, a.log, apierror.NotFound())
	})
	router.NoMethod(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "method_not_allowed"})
	})

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = a.cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		auth.CSRFHeader, // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーから CSRF トークンを読み取れるように公開
	corsConfig.ExposeHeaders = []string{auth.CSRFHeader, "Retry-After"}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, a)
	return router
}

// setupRoutes は API グループと受け付け条件の配線を行います。
func setupRoutes(router *gin.Engine, a *app) {
	router.GET("/health", handleHealth)
	router.Static("/uploads", a.assets.Dir())

	loginPolicy := auth.Policy{
		Action: "login",
		Limit:  a.cfg.LoginRateLimit,
		Window: a.cfg.LoginRateWindow(),
	}
	writePolicy := auth.Policy{
		Action:        "write",
		Limit:         a.cfg.WriteRateLimit,
		Window:        a.cfg.WriteRateWindow(),
		StateChanging: true,
		Protected:     true,
	}
	// ログアウトは冪等なのでセッションは要求しない
	logoutPolicy := writePolicy
	logoutPolicy.Protected = false

	api := router.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			// ログイン時はセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/login", a.auth.Admit(loginPolicy), a.auth.Login)
			authRoutes.POST("/logout", a.auth.Admit(logoutPolicy), a.auth.Logout)
			authRoutes.GET("/session", a.auth.Session)
		}

		api.GET("/projects", projects.ListHandler(a.projects, a.log))
		api.GET("/projects/:id", projects.GetHandler(a.projects, a.log))

		protected := api.Group("")
		protected.Use(a.auth.Admit(writePolicy))
		{
			protected.PUT("/projects/:id", projects.UpdateHandler(a.projects, a.log))
			protected.POST("/uploads", storage.UploadHandler(a.assets, a.cfg.MaxUploadSize, a.log))

			var scheduler storage.DestroyScheduler
			if a.jobs != nil {
				scheduler = a.jobs
			}
			protected.DELETE("/uploads/:id", storage.DeleteHandler(a.assets, scheduler, a.log))
		}

		if a.jobs != nil {
			api.GET("/jobs/:id", a.auth.Admit(auth.Policy{Protected: true}), jobStatusHandler(a.jobs, a.log))
		}
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "cityexperts-admin-api",
	})
}

// requestLogger はアクセスログを zerolog に出力するミドルウェアです。
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client", c.ClientIP()).
			Msg("request")
	}
}
