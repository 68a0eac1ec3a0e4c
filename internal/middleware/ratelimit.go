package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はユーザー単位レートリミットの設定。
type RateLimiterConfig struct {
	// GeneralRate は一般APIの秒あたり許容リクエスト数。
	GeneralRate rate.Limit
	// GeneralBurst は一般APIのバースト許容量。
	GeneralBurst int
	// VerifyStartRate は検証開始APIの秒あたり許容リクエスト数。
	// 外部プラットフォームへの誘発リクエストを抑えるため一般より厳しく設定する。
	VerifyStartRate rate.Limit
	// VerifyStartBurst は検証開始APIのバースト許容量。
	VerifyStartBurst int
}

// DefaultRateLimiterConfig は既定のレートリミット設定を返す。
// 一般APIは毎分120回、検証開始は毎分10回まで。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:      rate.Limit(2),
		GeneralBurst:     10,
		VerifyStartRate:  rate.Limit(10.0 / 60.0),
		VerifyStartBurst: 3,
	}
}

// userLimiter はユーザーごとのリミッターと最終アクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はユーザー単位のトークンバケットを管理する。
type RateLimiter struct {
	config RateLimiterConfig

	mu          sync.Mutex
	general     map[string]*userLimiter
	verifyStart map[string]*userLimiter
	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewRateLimiter はRateLimiterを生成し、古いエントリの掃除ループを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:      config,
		general:     make(map[string]*userLimiter),
		verifyStart: make(map[string]*userLimiter),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop は掃除ループを停止する。
func (rl *RateLimiter) Stop() {
	rl.cleanupOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-30 * time.Minute))
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(olderThan time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for userID, ul := range rl.general {
		if ul.lastAccess.Before(olderThan) {
			delete(rl.general, userID)
		}
	}
	for userID, ul := range rl.verifyStart {
		if ul.lastAccess.Before(olderThan) {
			delete(rl.verifyStart, userID)
		}
	}
}

func (rl *RateLimiter) limiterFor(limiters map[string]*userLimiter, userID string, limit rate.Limit, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	ul, ok := limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(limit, burst)}
		limiters[userID] = ul
	}
	ul.lastAccess = time.Now()
	return ul.limiter
}

// GeneralMiddleware は一般APIのレートリミットを適用する。
// セッションミドルウェアの後段に置くこと。
func (rl *RateLimiter) GeneralMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limiter := rl.limiterFor(rl.general, userID, rl.config.GeneralRate, rl.config.GeneralBurst)
		if !limiter.Allow() {
			writeRateLimitResponse(w, limiter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// VerifyStartMiddleware は検証開始APIの厳しいレートリミットを適用する。
func (rl *RateLimiter) VerifyStartMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		limiter := rl.limiterFor(rl.verifyStart, userID, rl.config.VerifyStartRate, rl.config.VerifyStartBurst)
		if !limiter.Allow() {
			writeRateLimitResponse(w, limiter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeRateLimitResponse(w http.ResponseWriter, limiter *rate.Limiter) {
	reservation := limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	retryAfter := int(delay.Seconds()) + 1
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	WriteErrorResponse(w, http.StatusTooManyRequests,
		"RATE_LIMIT_EXCEEDED",
		"リクエストが多すぎます",
		fmt.Sprintf("%d秒後に再度お試しください", retryAfter),
	)
}
