package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/recoverly/progress-hub/internal/domain/shared"
	"github.com/recoverly/progress-hub/pkg/logger"
)

func TestRateLimiter_PerKeyBuckets(t *testing.T) {
	rl := newRateLimiter(1, 2)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_ExpiresIdleBuckets(t *testing.T) {
	rl := newRateLimiter(1, 1)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	require.Len(t, rl.buckets, 2)

	now = now.Add(10 * time.Minute)
	rl.Allow("c")
	assert.Len(t, rl.buckets, 1)
}

func TestRequestID_ReusesCallerHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, requestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rec.Body.String(), 36)
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(timeoutMiddleware(50 * time.Millisecond))

	var hasDeadline bool
	r.GET("/", func(c *gin.Context) {
		_, hasDeadline = c.Request.Context().Deadline()
		c.Status(http.StatusNoContent)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, hasDeadline)
}

func TestRecovery_WritesInternalEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestIDMiddleware(), recoveryMiddleware(logger.Nop()))
	r.GET("/", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), string(shared.KindInternal))
}

func TestTokenVerifier(t *testing.T) {
	v := NewTokenVerifier(testSecret, "recoverly")
	now := time.Now()

	tok, err := v.Issue("u1", time.Hour, now)
	require.NoError(t, err)
	sub, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)

	expired, err := v.Issue("u1", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err)

	wrongIssuer, err := NewTokenVerifier(testSecret, "someone-else").Issue("u1", time.Hour, now)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.Error(t, err)

	noSubject, err := v.Issue("", time.Hour, now)
	require.NoError(t, err)
	_, err = v.Verify(noSubject)
	assert.Error(t, err)
}

func TestAdminKeys(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("k1"), bcrypt.MinCost)
	require.NoError(t, err)

	keys := NewAdminKeys([]string{"", string(hash), "  "})
	assert.True(t, keys.Valid("k1"))
	assert.False(t, keys.Valid("k2"))
	assert.False(t, keys.Valid(""))
	assert.False(t, NewAdminKeys(nil).Valid("k1"))
}
