package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/session"
	"github.com/your-org/storefront/internal/pkg/auth"
	"github.com/your-org/storefront/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	store := &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	r := gin.New()
	r.Use(RateLimit(2, store, logger.Discard()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, store.expires, 1, "expiry is set once per window")

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimitFailsOpen(t *testing.T) {
	store := &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}, err: errors.New("connection refused")}
	r := gin.New()
	r.Use(RateLimit(1, store, logger.Discard()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

type recordingSessions struct {
	states map[string]*session.State
	saves  int
}

func (r *recordingSessions) Load(_ context.Context, id string) (*session.State, error) {
	if st, ok := r.states[id]; ok {
		return st, nil
	}
	return &session.State{}, nil
}

func (r *recordingSessions) Save(_ context.Context, id string, st *session.State) error {
	r.saves++
	r.states[id] = st
	return nil
}

func TestSessionMintsCookieAndSavesChanges(t *testing.T) {
	store := &recordingSessions{states: map[string]*session.State{}}
	cfg := config.SessionConfig{CookieName: "session_id", TTL: time.Hour}

	r := gin.New()
	r.Use(Session(store, cfg, logger.Discard()))
	r.GET("/read", func(c *gin.Context) { c.String(http.StatusOK, GetSessionState(c).OwnerKey) })
	r.POST("/write", func(c *gin.Context) {
		GetSessionState(c).SetOwnerKey("anon-1")
		c.Status(http.StatusNoContent)
	})

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/read", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 0, store.saves, "unchanged state is not written")

	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.AddCookie(cookies[0])
	serve(r, req)
	assert.Equal(t, 1, store.saves)

	req = httptest.NewRequest(http.MethodGet, "/read", nil)
	req.AddCookie(cookies[0])
	rec = serve(r, req)
	assert.Equal(t, "anon-1", rec.Body.String())
}

func TestSessionReplacesForgedCookie(t *testing.T) {
	store := &recordingSessions{states: map[string]*session.State{}}
	r := gin.New()
	r.Use(Session(store, config.SessionConfig{CookieName: "session_id", TTL: time.Hour}, logger.Discard()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "../../etc"})
	rec := serve(r, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "../../etc", cookies[0].Value)
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager(config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef"})
	token, err := jwtManager.GenerateAccessToken("ada@example.com", "ada@example.com", false, time.Minute)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/required", AuthMiddleware(jwtManager, logger.Discard()), func(c *gin.Context) {
		principal, _ := GetPrincipalFromContext(c)
		c.String(http.StatusOK, principal)
	})
	r.GET("/optional", OptionalAuthMiddleware(jwtManager), func(c *gin.Context) {
		principal, ok := GetPrincipalFromContext(c)
		if !ok {
			principal = "anonymous"
		}
		c.String(http.StatusOK, principal)
	})
	r.GET("/admin", AuthMiddleware(jwtManager, logger.Discard()), AdminMiddleware(logger.Discard()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	withToken := func(path, tok string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		return serve(r, req)
	}

	assert.Equal(t, http.StatusUnauthorized, withToken("/required", "").Code)
	assert.Equal(t, http.StatusUnauthorized, withToken("/required", "nope").Code)

	rec := withToken("/required", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", rec.Body.String())

	assert.Equal(t, "anonymous", withToken("/optional", "nope").Body.String())
	assert.Equal(t, "ada@example.com", withToken("/optional", token).Body.String())

	assert.Equal(t, http.StatusForbidden, withToken("/admin", token).Code)
}

func TestRequestSizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimit(8, logger.Discard()))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too long")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"https://shop.example.com", "*.example.org"}
	assert.True(t, isOriginAllowed("https://shop.example.com", allowed))
	assert.True(t, isOriginAllowed("https://a.example.org", allowed))
	assert.False(t, isOriginAllowed("https://evilexample.org", allowed))
	assert.False(t, isOriginAllowed("https://other.com", allowed))
}
