package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/talktome/internal/model"
)

func newTestRateLimiter(t *testing.T, config RateLimiterConfig) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(config)
	t.Cleanup(rl.Stop)
	return rl
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	ctx := ContextWithSession(req.Context(), &model.Session{Token: "tok", UserID: userID})
	return req.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// バースト以内のリクエストが許可されることを検証
func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralBurst = 3
	rl := newTestRateLimiter(t, config)
	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("u1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}

// バースト超過で429とRetry-Afterが返ることを検証
func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralRate = rate.Limit(0.001)
	config.GeneralBurst = 1
	rl := newTestRateLimiter(t, config)
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}
}

// ユーザーごとに独立したリミッターが使われることを検証
func TestRateLimiter_IsolatesUsers(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.GeneralRate = rate.Limit(0.001)
	config.GeneralBurst = 1
	rl := newTestRateLimiter(t, config)
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u1"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("u1 second request: status = %d, want 429", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u2"))
	if w.Code != http.StatusOK {
		t.Errorf("u2 must not be affected by u1's limit, status = %d", w.Code)
	}
}

// メッセージ用リミッターがAPI全般とは独立であることを検証
func TestRateLimiter_MessageBucketIsIndependent(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.MessageRate = rate.Limit(0.001)
	config.MessageBurst = 1
	rl := newTestRateLimiter(t, config)
	general := rl.GeneralMiddleware()(okHandler())
	message := rl.MessageMiddleware()(okHandler())

	w := httptest.NewRecorder()
	message.ServeHTTP(w, authedRequest("u1"))
	w = httptest.NewRecorder()
	message.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("message bucket should be exhausted, status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusOK {
		t.Errorf("general bucket must not be affected, status = %d", w.Code)
	}
}

// 未認証コンテキストで401になることを検証
func TestRateLimiter_RequiresSession(t *testing.T) {
	rl := newTestRateLimiter(t, DefaultRateLimiterConfig())
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// 古いエントリがクリーンアップされることを検証
func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	config := DefaultRateLimiterConfig()
	config.CleanupInterval = time.Millisecond
	rl := newTestRateLimiter(t, config)
	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u1"))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.GeneralLimiterCount())
	}

	// lastAccessがTTL（CleanupInterval*2）を超えるまで待つ
	time.Sleep(20 * time.Millisecond)

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("stale limiter should be cleaned up, count = %d", rl.GeneralLimiterCount())
	}
}
