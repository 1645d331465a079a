package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/suitelabs/conductor/internal/config"
)

func newAuthRouter(envCfg *config.EnvConfig, arl *AuthFailureRateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(AuthMiddleware(envCfg, arl))
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/api/goals", func(c *gin.Context) { c.String(http.StatusOK, "goals") })
	return router
}

func doRequest(router *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthAllowsHealthWithoutKey(t *testing.T) {
	router := newAuthRouter(&config.EnvConfig{AccessKey: "secret"}, nil)

	if w := doRequest(router, "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthRejectsMissingKey(t *testing.T) {
	router := newAuthRouter(&config.EnvConfig{AccessKey: "secret"}, nil)

	if w := doRequest(router, "/api/goals", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthRejectsWrongKey(t *testing.T) {
	router := newAuthRouter(&config.EnvConfig{AccessKey: "secret"}, nil)

	if w := doRequest(router, "/api/goals", "not-secret"); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthAcceptsValidKey(t *testing.T) {
	router := newAuthRouter(&config.EnvConfig{AccessKey: "secret"}, nil)

	if w := doRequest(router, "/api/goals", "secret"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthAcceptsBearerToken(t *testing.T) {
	router := newAuthRouter(&config.EnvConfig{AccessKey: "secret"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/goals", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthOpenWhenNoKeyConfigured(t *testing.T) {
	router := newAuthRouter(&config.EnvConfig{AccessKey: ""}, nil)

	if w := doRequest(router, "/api/goals", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAuthFailuresTriggerBlock(t *testing.T) {
	arl := NewAuthFailureRateLimiterWithConfig(config.AuthFailureConfig{
		Enabled: true,
		Thresholds: []config.AuthFailureThreshold{
			{Failures: 2, BlockMinutes: 1},
		},
	})
	defer arl.Stop()

	router := newAuthRouter(&config.EnvConfig{AccessKey: "secret"}, arl)

	doRequest(router, "/api/goals", "wrong")
	doRequest(router, "/api/goals", "wrong")

	// The IP is now blocked even with a valid key
	if w := doRequest(router, "/api/goals", "secret"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") {
		t.Error("equal strings should compare true")
	}
	if secureCompare("abc", "abd") {
		t.Error("different strings should compare false")
	}
	if secureCompare("", "") {
		t.Error("empty strings should compare false")
	}
}
