package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/user-auth/internal/config"
	"github.com/iliyamo/user-auth/internal/model"
	"github.com/iliyamo/user-auth/internal/utils"
)

const secret = "test-secret"

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func sessionToken(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewSessionToken(secret, model.PublicUser{ID: 5, Email: "a@x.com", Role: role}, time.Hour)
	require.NoError(t, err)
	return tok.Token
}

// --- Session ---

func TestSession_Cookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: utils.TokenCookieName, Value: sessionToken(t, model.RoleUser)})
	c, rec := newContext(req)

	var gotID uint64
	var gotRole string
	err := Session(secret)(func(c echo.Context) error {
		gotID, _ = UserID(c)
		gotRole, _ = Role(c)
		return okHandler(c)
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(5), gotID)
	assert.Equal(t, model.RoleUser, gotRole)
}

func TestSession_Bearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, model.RoleAdmin))
	c, rec := newContext(req)

	require.NoError(t, Session(secret)(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSession_Missing(t *testing.T) {
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	require.NoError(t, Session(secret)(okHandler)(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
}

func TestSession_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: utils.TokenCookieName, Value: "garbage"})
	c, rec := newContext(req)

	require.NoError(t, Session(secret)(okHandler)(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
}

// --- RequireRole ---

func TestRequireRole(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{model.RoleAdmin, http.StatusOK},
		{model.RoleUser, http.StatusForbidden},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: utils.TokenCookieName, Value: sessionToken(t, tc.role)})
		c, rec := newContext(req)

		h := Session(secret)(RequireRole(model.RoleAdmin)(okHandler))
		require.NoError(t, h(c))
		assert.Equal(t, tc.want, rec.Code, "role %s", tc.role)
	}
}

func TestRequireRole_NoSession(t *testing.T) {
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/admin", nil))

	require.NoError(t, RequireRole(model.RoleUser)(okHandler)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// --- NewTokenBucket ---

// fakeScripter answers EvalSha with a canned result. Other Scripter methods
// are not used by Script.Run on the success path.
type fakeScripter struct {
	redis.Scripter
	result interface{}
	err    error
	keys   []string
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, _ ...interface{}) *redis.Cmd {
	f.keys = append(f.keys, keys...)
	return redis.NewCmdResult(f.result, f.err)
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true, Capacity: 10, RefillTokens: 1,
		RefillInterval: 6 * time.Second, TTL: time.Minute,
		KeyStrategy: "ip_route", Prefix: "auth:rl",
	}
}

func signInContext() (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c, rec := newContext(req)
	c.SetPath("/api/auth/sign-in")
	return c, rec
}

func TestTokenBucket_Allowed(t *testing.T) {
	rdb := &fakeScripter{result: []interface{}{int64(1), int64(9), int64(0)}}
	c, rec := signInContext()

	require.NoError(t, NewTokenBucket(rateCfg(), rdb, nil)(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, []string{"auth:rl:ip:10.0.0.1:route:POST /api/auth/sign-in"}, rdb.keys)
}

func TestTokenBucket_Blocked(t *testing.T) {
	rdb := &fakeScripter{result: []interface{}{int64(0), int64(0), int64(4200)}}
	c, rec := signInContext()

	require.NoError(t, NewTokenBucket(rateCfg(), rdb, nil)(okHandler)(c))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests","retry_after":5}`, rec.Body.String())
}

func TestTokenBucket_RedisErrorFailsOpen(t *testing.T) {
	rdb := &fakeScripter{err: errors.New("connection refused")}
	c, rec := signInContext()

	require.NoError(t, NewTokenBucket(rateCfg(), rdb, nil)(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucket_Disabled(t *testing.T) {
	cfg := rateCfg()
	cfg.Enabled = false
	rdb := &fakeScripter{result: []interface{}{int64(0), int64(0), int64(1000)}}
	c, rec := signInContext()

	require.NoError(t, NewTokenBucket(cfg, rdb, nil)(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rdb.keys)

	c, rec = signInContext()
	require.NoError(t, NewTokenBucket(rateCfg(), nil, nil)(okHandler)(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
	}{
		{"ip", "auth:rl:ip:10.0.0.1"},
		{"route", "auth:rl:route:POST /api/auth/sign-in"},
		{"ip_user", "auth:rl:ip:10.0.0.1:user:anon"},
		{"ip_user_route", "auth:rl:ip:10.0.0.1:user:anon:route:POST /api/auth/sign-in"},
		{"", "auth:rl:ip:10.0.0.1:route:POST /api/auth/sign-in"},
	}
	for _, tc := range tests {
		cfg := rateCfg()
		cfg.KeyStrategy = tc.strategy
		c, _ := signInContext()
		assert.Equal(t, tc.want, buildRateKey(cfg, c), "strategy %q", tc.strategy)
	}
}

func TestParseBucketResult(t *testing.T) {
	res, ok := parseBucketResult([]interface{}{int64(1), "3", int64(-5)})
	require.True(t, ok)
	assert.True(t, res.allowed)
	assert.Equal(t, int64(3), res.remaining)
	assert.Zero(t, res.retry)

	_, ok = parseBucketResult("nope")
	assert.False(t, ok)
}
