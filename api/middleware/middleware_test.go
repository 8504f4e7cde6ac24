package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quizwalker/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		id, _ := c.Get(identityKey)
		s, _ := id.(string)
		c.String(http.StatusOK, s)
	})
	return r
}

func get(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"key-1", "key-2"}))

	tests := []struct {
		name    string
		headers map[string]string
		want    int
		body    string
	}{
		{"no key", nil, http.StatusUnauthorized, ""},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, ""},
		{"x-api-key", map[string]string{"X-API-Key": "key-1"}, http.StatusOK, "key-1"},
		{"bearer", map[string]string{"Authorization": "Bearer key-2"}, http.StatusOK, "key-2"},
		{"basic is ignored", map[string]string{"Authorization": "Basic key-2"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.headers)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != tt.body {
				t.Errorf("identity = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth([]string{""}))
	if w := get(r, nil); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	for i := 0; i < 2; i++ {
		if w := get(r, map[string]string{"X-API-Key": "a"}); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	if w := get(r, map[string]string{"X-API-Key": "a"}); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", w.Code)
	}
	// Buckets are per identity.
	if w := get(r, map[string]string{"X-API-Key": "b"}); w.Code != http.StatusOK {
		t.Errorf("other key: status = %d, want 200", w.Code)
	}
}

func TestLimiterSet_EvictIdle(t *testing.T) {
	set := newLimiterSet(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	set.get("old")
	set.limiters["old"].lastSeen = time.Now().Add(-2 * time.Hour)
	set.get("new")

	set.evictIdle(time.Now().Add(-time.Hour))

	if _, ok := set.limiters["old"]; ok {
		t.Error("idle identity not evicted")
	}
	if _, ok := set.limiters["new"]; !ok {
		t.Error("active identity evicted")
	}
}
