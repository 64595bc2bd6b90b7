package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newMiddlewareRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestRateLimiterAllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.2.3.4"), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow("1.2.3.4"), "burst exhausted")

	// Other clients are tracked independently.
	assert.True(t, rl.Allow("5.6.7.8"))
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newMiddlewareRouter(RateLimitMiddleware(NewRateLimiter(2)))

	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RecoveryMiddleware(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestCORSMiddlewareAllowAll(t *testing.T) {
	r := newMiddlewareRouter(CORSMiddleware([]string{"*"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Origin", "https://example.com")
	r.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewareSpecificOrigin(t *testing.T) {
	r := newMiddlewareRouter(CORSMiddleware([]string{"https://panel.example.com"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Origin", "https://panel.example.com")
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://panel.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	r := newMiddlewareRouter(CORSMiddleware([]string{"*"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/ping", nil)
	req.Header.Set("Origin", "https://example.com")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
