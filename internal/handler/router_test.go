package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/statly/internal/middleware"
	"github.com/hitoshi/statly/internal/model"
)

type staticSessionFinder struct {
	session *model.Session
}

func (f *staticSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if f.session != nil && f.session.ID == id {
		return f.session, nil
	}
	return nil, nil
}

func newTestRouter(t *testing.T, service PlatformServiceInterface) (http.Handler, *middleware.RateLimiter) {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:      rate.Limit(100),
		GeneralBurst:     100,
		VerifyStartRate:  rate.Limit(100),
		VerifyStartBurst: 100,
	})
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		SessionFinder: &staticSessionFinder{
			session: &model.Session{
				ID:        "session-ok",
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
		CORSAllowedOrigins: []string{"https://app.example.com"},
		CSRFConfig:         middleware.CSRFConfig{},
		RateLimiter:        rl,
		Logger:             slog.New(slog.NewJSONHandler(io.Discard, nil)),
		PlatformService:    service,
	})
	return router, rl
}

func doRequest(router http.Handler, method, target string, body []byte, authenticated bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if authenticated {
		req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-ok"})
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "csrf-abc"})
		req.Header.Set("X-CSRF-Token", "csrf-abc")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, &mockPlatformService{})

	rec := doRequest(router, http.MethodGet, "/health", nil, false)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_RequiresSession(t *testing.T) {
	router, _ := newTestRouter(t, &mockPlatformService{})

	rec := doRequest(router, http.MethodGet, "/api/platforms", nil, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_RequiresCSRFTokenOnMutation(t *testing.T) {
	router, _ := newTestRouter(t, &mockPlatformService{})

	req := httptest.NewRequest(http.MethodPost, "/api/platforms/verify/complete", bytes.NewReader([]byte(`{"platform":"github"}`)))
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-ok"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRouter_PlatformRoutes(t *testing.T) {
	var refreshPlatform, disconnectPlatform model.PlatformID
	service := &mockPlatformService{
		refreshStatsFn: func(ctx context.Context, userID string, platformID model.PlatformID) (*model.PlatformBinding, error) {
			refreshPlatform = platformID
			return &model.PlatformBinding{
				PlatformID: platformID,
				Status:     model.BindingStatusVerified,
				Stats:      &model.PlatformStats{ProblemRatings: map[string]int{}},
			}, nil
		},
		disconnectFn: func(ctx context.Context, userID string, platformID model.PlatformID) error {
			disconnectPlatform = platformID
			return nil
		},
	}
	router, _ := newTestRouter(t, service)

	rec := doRequest(router, http.MethodGet, "/api/platforms/supported", nil, true)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/platforms/supported: status = %d", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/api/platforms", nil, true)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/platforms: status = %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPost, "/api/platforms/verify/start", []byte(`{"platform":"github","username":"kenji"}`), true)
	if rec.Code != http.StatusOK {
		t.Errorf("POST /api/platforms/verify/start: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodPut, "/api/platforms/leetcode/refresh", nil, true)
	if rec.Code != http.StatusOK {
		t.Errorf("PUT refresh: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if refreshPlatform != model.PlatformLeetCode {
		t.Errorf("refresh platform = %q, want leetcode", refreshPlatform)
	}

	rec = doRequest(router, http.MethodDelete, "/api/platforms/github", nil, true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE: status = %d", rec.Code)
	}
	if disconnectPlatform != model.PlatformGitHub {
		t.Errorf("disconnect platform = %q, want github", disconnectPlatform)
	}
}

func TestRouter_VerifyStartRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:      rate.Limit(100),
		GeneralBurst:     100,
		VerifyStartRate:  rate.Limit(0.001),
		VerifyStartBurst: 1,
	})
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		SessionFinder: &staticSessionFinder{
			session: &model.Session{
				ID:        "session-ok",
				UserID:    "user-1",
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
		CORSAllowedOrigins: []string{"https://app.example.com"},
		RateLimiter:        rl,
		Logger:             slog.New(slog.NewJSONHandler(io.Discard, nil)),
		PlatformService:    &mockPlatformService{},
	})

	body := []byte(`{"platform":"github","username":"kenji"}`)
	rec := doRequest(router, http.MethodPost, "/api/platforms/verify/start", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPost, "/api/platforms/verify/start", body, true)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", rec.Code)
	}

	// 一般ルートは専用制限の影響を受けない
	rec = doRequest(router, http.MethodGet, "/api/platforms", nil, true)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/platforms: status = %d, want 200", rec.Code)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t, &mockPlatformService{})

	rec := doRequest(router, http.MethodGet, "/health", nil, false)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
