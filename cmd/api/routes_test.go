package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/auth"
	"github.com/reddomeuk/cityexperts-website-sub001/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	projectsFile := filepath.Join(dir, "projects.json")
	require.NoError(t, os.WriteFile(projectsFile, []byte(`[{"id":"p1","title":"Harbour View"}]`), 0o644))

	return &config.Config{
		Port:               "0",
		GinMode:            gin.TestMode,
		AppEnv:             "development",
		AdminEmail:         "admin@example.com",
		AdminPassword:      "s3cret",
		SessionCodec:       config.SessionCodecPlain,
		CORSAllowedOrigins: "http://localhost:5173",
		LoginRateLimit:     5,
		LoginRateWindowMs:  60000,
		WriteRateLimit:     30,
		WriteRateWindowMs:  60000,
		ProjectsFile:       projectsFile,
		UploadDir:          filepath.Join(dir, "uploads"),
		MaxUploadSize:      1 << 20,
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a, err := newApp(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a.router()
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestUnknownRoutesAndMethods(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"method_not_allowed"}`, rec.Body.String())

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, rec.Body.String())
}

func TestJobsRouteAbsentWithoutQueue(t *testing.T) {
	r := newTestRouter(t)
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminFlow(t *testing.T) {
	r := newTestRouter(t)

	// 未ログイン
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.JSONEq(t, `{"ok":false}`, rec.Body.String())

	// ログイン
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"admin@example.com","password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session, csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case auth.SessionCookieName:
			session = c
		case auth.CSRFCookieName:
			csrf = c
		}
	}
	require.NotNil(t, session)
	require.NotNil(t, csrf)

	withCookies := func(req *http.Request) *http.Request {
		req.AddCookie(&http.Cookie{Name: session.Name, Value: session.Value})
		req.AddCookie(&http.Cookie{Name: csrf.Name, Value: csrf.Value})
		return req
	}

	rec = serve(r, withCookies(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)))
	assert.Contains(t, rec.Body.String(), `"user":"admin@example.com"`)

	// CSRF ヘッダーなしの更新は拒否され、内容は変わらない
	req = withCookies(httptest.NewRequest(http.MethodPut, "/api/projects/p1", strings.NewReader(`{"title":"Changed"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(r, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/projects/p1", nil))
	assert.Contains(t, rec.Body.String(), `"title":"Harbour View"`)

	// CSRF ヘッダー付きなら更新できる
	req = withCookies(httptest.NewRequest(http.MethodPut, "/api/projects/p1", strings.NewReader(`{"title":"Changed"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.CSRFHeader, csrf.Value)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"title":"Changed"`)

	// ログアウト
	req = withCookies(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	req.Header.Set(auth.CSRFHeader, csrf.Value)
	rec = serve(r, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestLoginRateLimitedThroughRouter(t *testing.T) {
	r := newTestRouter(t)

	login := func(password string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"admin@example.com","password":"`+password+`"}`))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req).Code
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusUnauthorized, login("wrong"))
	}
	assert.Equal(t, http.StatusTooManyRequests, login("s3cret"))
}
