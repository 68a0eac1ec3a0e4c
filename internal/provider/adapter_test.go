package provider

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/statly/internal/security"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// allowAllValidator はテスト用のURL検証スタブ。
// httptestサーバーはループバックアドレスで待ち受けるため、
// 実際のガードを使うとテストリクエストが拒否されてしまう。
type allowAllValidator struct{}

func (allowAllValidator) ValidateURL(rawURL string) error { return nil }

func newTestDefaultRegistry(t *testing.T) *Registry {
	t.Helper()
	var buf bytes.Buffer
	return NewDefaultRegistry(
		http.DefaultClient,
		newTestLogger(&buf),
		allowAllValidator{},
		security.NewProfileSanitizer(),
		"Statly/1.0 Profile Tracker",
		"Mozilla/5.0 test",
	)
}

func TestAdapter_RejectsUnsafeEndpointBeforeSending(t *testing.T) {
	handlerCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Write([]byte(`{"status":"OK","result":[]}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	a := NewCodeforcesAdapter(server.Client(), newTestLogger(&buf), security.NewSSRFGuard(), "ua")
	a.userInfoEndpoint = server.URL + "/api/user.info"
	a.userStatusEndpoint = server.URL + "/api/user.status"
	a.userRatingEndpoint = server.URL + "/api/user.rating"

	if _, err := a.FetchStats(context.Background(), "tourist"); err == nil {
		t.Fatal("FetchStats: ループバックエンドポイントでエラーが返りませんでした")
	}
	if handlerCalled {
		t.Error("リクエストが送信前に拒否されるべきところ、ハンドラが呼ばれました")
	}
}
