package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/heartline/backend/internal/config"
	"github.com/heartline/backend/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	token string
	id    uuid.UUID
}

func (r staticResolver) ResolveIdentity(ctx context.Context, token string) (uuid.UUID, error) {
	if token != r.token {
		return uuid.Nil, services.ErrInvalidToken
	}
	return r.id, nil
}

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := uuid.New()
	r := gin.New()
	r.GET("/me", Auth(staticResolver{token: "good", id: id}), func(c *gin.Context) {
		v, _ := c.Get("userID")
		c.String(http.StatusOK, v.(uuid.UUID).String())
	})

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, `{"ok":false,"error":"Authentication required"}`},
		{"Bearer bad", http.StatusUnauthorized, `{"ok":false,"error":"Invalid or expired session"}`},
		{"Bearer good", http.StatusOK, ""},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		r.ServeHTTP(w, req)
		require.Equal(t, tc.status, w.Code, tc.header)
		if tc.body != "" {
			require.JSONEq(t, tc.body, w.Body.String())
		} else {
			require.Equal(t, id.String(), w.Body.String())
		}
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: "production", AllowedOrigins: []string{"https://app.example/"}}
	r := gin.New()
	r.Use(CORS(cfg))
	r.POST("/phone/start", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/phone/start", nil)
	req.Header.Set("Origin", "https://app.example")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/phone/start", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiters_FailOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		RateLimitRequests: 1,
		RateLimitDuration: time.Minute,
		VerifyStartLimit:  1,
		VerifyStartWindow: time.Minute,
	}
	unreachable := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = unreachable.Close() })

	for _, rdb := range []*redis.Client{nil, unreachable} {
		r := gin.New()
		r.Use(RateLimiter(rdb, cfg))
		r.POST("/phone/start", VerificationStartLimit(rdb, cfg), func(c *gin.Context) { c.Status(http.StatusOK) })

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/phone/start", nil))
			require.Equal(t, http.StatusOK, w.Code)
		}
	}
}

func newLimitedRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(RateLimiter(rdb, cfg))
	r.GET("/phone/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/phone/start", VerificationStartLimit(rdb, cfg), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, mr
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	cfg := &config.Config{
		RateLimitRequests: 2,
		RateLimitDuration: time.Minute,
	}
	r, mr := newLimitedRouter(t, cfg)

	for i, remaining := range []string{"1", "0"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/phone/status", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		require.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, remaining, w.Header().Get("X-RateLimit-Remaining"))
		require.Empty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/phone/status", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))

	body := decodeBody(t, w)
	require.Equal(t, false, body["ok"])
	require.Equal(t, "Too many requests", body["error"])
	require.Equal(t, float64(60), body["retry_after"])

	// The window is counted from the first hit.
	require.Equal(t, time.Minute, mr.TTL("rate_limit:192.0.2.1"))

	mr.FastForward(time.Minute)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/phone/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestVerificationStartLimit_RejectsOverLimit(t *testing.T) {
	cfg := &config.Config{
		RateLimitRequests: 100,
		RateLimitDuration: time.Minute,
		VerifyStartLimit:  2,
		VerifyStartWindow: 15 * time.Minute,
	}
	r, mr := newLimitedRouter(t, cfg)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/phone/start", nil))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/phone/start", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeBody(t, w)
	require.Equal(t, false, body["ok"])
	require.Equal(t, "Too many verification requests. Please try again later.", body["error"])
	require.Equal(t, float64(15), body["retry_after_minutes"])

	// Status reads do not count against the start budget.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/phone/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	hits, err := mr.Get("verify_start:192.0.2.1")
	require.NoError(t, err)
	require.Equal(t, "3", hits)
}
