package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/twilio"
)

func signedRouter(env *testEnv) http.Handler {
	verify := TwilioSignature(twilio.NewValidator("test-token"), "https://barback.example.com", true)
	guard, err := NewSearchGuard(config.SearchConfig{APIKey: "search-key"}, nil)
	if err != nil {
		panic(err)
	}
	return SetupRoutes(env.handlers, verify, guard)
}

func TestTwilioSignatureAcceptsValid(t *testing.T) {
	env := newTestEnv()
	router := signedRouter(env)

	form := smsForm("SM300", "+15551234567", "hello")
	validator := twilio.NewValidator("test-token")
	signature := validator.Sign("https://barback.example.com/webhook/sms", form)

	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", signature)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.pipeline.processed, 1)
}

func TestTwilioSignatureRejectsInvalid(t *testing.T) {
	env := newTestEnv()
	router := signedRouter(env)

	form := smsForm("SM301", "+15551234567", "hello")
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.pipeline.processed)
}

func TestTwilioSignatureRejectsMissing(t *testing.T) {
	env := newTestEnv()
	router := signedRouter(env)

	rec := postForm(t, router, "/webhook/sms", smsForm("SM302", "+15551234567", "hello"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTwilioSignatureDisabledPassesThrough(t *testing.T) {
	env := newTestEnv()

	rec := postForm(t, env.router(), "/webhook/sms", smsForm("SM303", "+15551234567", "hello"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.pipeline.processed, 1)
}

func TestSearchGuardRequiresAPIKey(t *testing.T) {
	env := newTestEnv()
	router := env.router()

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=june", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/search?q=june", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchGuardUnconfiguredKeyLocksOut(t *testing.T) {
	env := newTestEnv()
	guard, err := NewSearchGuard(config.SearchConfig{}, nil)
	require.NoError(t, err)
	verify := TwilioSignature(twilio.NewValidator("test-token"), "https://barback.example.com", false)
	router := SetupRoutes(env.handlers, verify, guard)

	req := httptest.NewRequest(http.MethodGet, "/api/search?q=june", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchGuardCIDRAllowlist(t *testing.T) {
	env := newTestEnv()
	guard, err := NewSearchGuard(config.SearchConfig{
		APIKey:       "search-key",
		AllowedCIDRs: []string{"10.0.0.0/8"},
	}, nil)
	require.NoError(t, err)
	verify := TwilioSignature(twilio.NewValidator("test-token"), "https://barback.example.com", false)
	router := SetupRoutes(env.handlers, verify, guard)

	req := searchRequest("/api/search?q=june")
	req.RemoteAddr = "192.0.2.10:4444"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = searchRequest("/api/search?q=june")
	req.RemoteAddr = "10.4.5.6:4444"
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchGuardRejectsBadCIDRConfig(t *testing.T) {
	_, err := NewSearchGuard(config.SearchConfig{
		APIKey:       "search-key",
		AllowedCIDRs: []string{"not-a-network"},
	}, nil)
	assert.Error(t, err)
}

func TestRateLimiterFixedWindow(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(client, 2)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "search"))
	assert.True(t, limiter.Allow(ctx, "search"))
	assert.False(t, limiter.Allow(ctx, "search"))

	// Separate callers get separate windows.
	assert.True(t, limiter.Allow(ctx, "other"))
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	limiter := NewRateLimiter(client, 1)
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "search"))
	assert.True(t, limiter.Allow(ctx, "search"))
}

func TestRateLimiterDisabled(t *testing.T) {
	ctx := context.Background()

	assert.True(t, NewRateLimiter(nil, 5).Allow(ctx, "search"))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.True(t, NewRateLimiter(client, 0).Allow(ctx, "search"))
}

func TestSearchGuardRateLimits(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	env := newTestEnv()
	guard, err := NewSearchGuard(config.SearchConfig{APIKey: "search-key", RatePerMinute: 1}, NewRateLimiter(client, 1))
	require.NoError(t, err)
	verify := TwilioSignature(twilio.NewValidator("test-token"), "https://barback.example.com", false)
	router := SetupRoutes(env.handlers, verify, guard)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, searchRequest("/api/search?q=june"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, searchRequest("/api/search?q=june"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRemoteIPParsing(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"10.1.2.3:9000", "10.1.2.3"},
		{"10.1.2.3", "10.1.2.3"},
		{"[2001:db8::1]:443", "2001:db8::1"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		got := remoteIP(req)
		require.NotNil(t, got, "remoteAddr %q", tt.remoteAddr)
		assert.Equal(t, tt.want, got.String())
	}
}
