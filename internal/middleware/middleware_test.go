package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminOnly(t *testing.T) {
	gen := jwt.NewGenerator("secret", "coaching", "admin", time.Hour)
	auth := NewAuthMiddleware(jwt.NewVerifier("secret", "coaching", "admin"), zap.NewNop())

	r := gin.New()
	r.GET("/admin", append(auth.AdminOnly(), func(c *gin.Context) {
		subject, _ := GetSubject(c)
		c.String(http.StatusOK, subject)
	})...)

	w := perform(r, http.MethodGet, "/admin", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	member, _, err := gen.Generate("member-1", "", []string{"member"})
	require.NoError(t, err)
	w = perform(r, http.MethodGet, "/admin", "", map[string]string{"Authorization": "Bearer " + member})
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, _, err := gen.Generate("admin-1", "", []string{jwt.RoleAdmin})
	require.NoError(t, err)
	w = perform(r, http.MethodGet, "/admin", "", map[string]string{"Authorization": "bearer " + admin})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", w.Body.String())
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	r := gin.New()
	r.Use(LoggingMiddleware(zap.NewNop()))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := perform(r, http.MethodGet, "/ping", "", map[string]string{HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "abc-123", w.Body.String())

	w = perform(r, http.MethodGet, "/ping", "", nil)
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 26)
	assert.Equal(t, generated, w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := perform(r, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestRecoveryMiddleware_ReportsRequestID(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core)

	r := gin.New()
	r.Use(LoggingMiddleware(zap.NewNop()), RecoveryMiddleware(logger))
	r.GET("/subscriptions/user/:userId", func(c *gin.Context) { panic("nil plan") })

	w := perform(r, http.MethodGet, "/subscriptions/user/u1", "", map[string]string{HeaderRequestID: "req-42"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error","details":{"requestId":"req-42"}}`, w.Body.String())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "req-42", entry.ContextMap()["request_id"])
	assert.Equal(t, "/subscriptions/user/:userId", entry.ContextMap()["route"])
	assert.Equal(t, "nil plan", entry.ContextMap()["panic"])
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://only-you-coaching.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := perform(r, http.MethodOptions, "/x", "", map[string]string{"Origin": "https://only-you-coaching.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://only-you-coaching.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = perform(r, http.MethodGet, "/x", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

type countingLimiter struct {
	counts map[string]int64
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, endpoint, subject string, max int64, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[endpoint+"|"+subject]++
	return l.counts[endpoint+"|"+subject] <= max, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &countingLimiter{counts: map[string]int64{}}

	r := gin.New()
	r.POST("/checkout", RateLimit(limiter, "checkout", 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})

	payload := `{"userId":"user-1","planId":"pro"}`
	for i := 0; i < 2; i++ {
		w := perform(r, http.MethodPost, "/checkout", payload, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, payload, w.Body.String(), "body restored for handler")
	}

	w := perform(r, http.MethodPost, "/checkout", payload, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = perform(r, http.MethodPost, "/checkout", `{"userId":"user-2"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, limiter.counts, "checkout|user:user-1")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}

	r := gin.New()
	r.POST("/checkout", RateLimit(limiter, "checkout", 1, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := perform(r, http.MethodPost, "/checkout", `{}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
