package provider

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/statly/internal/model"
	"github.com/hitoshi/statly/internal/security"
)

const gfgPracticeHTML = `<html><body>
<div class="profile_name">yuki A1B2C3</div>
<div class="tabs tabs-fixed-width links">
  <a href="#solved">Problems Solved (167)</a>
  <a href="#school">School (12)</a>
</div>
</body></html>`

// newGFGTestServer は練習ページを模擬するサーバーを起動する。
func newGFGTestServer(t *testing.T, html string) *GeeksforGeeksAdapter {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/yuki/practice" {
			t.Errorf("パス = %s, want /user/yuki/practice", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	a := NewGeeksforGeeksAdapter(server.Client(), newTestLogger(&buf), allowAllValidator{}, security.NewProfileSanitizer(), "Mozilla/5.0 test")
	a.userBase = server.URL + "/user"
	return a
}

func TestGeeksforGeeksAdapter_FetchStats(t *testing.T) {
	a := newGFGTestServer(t, gfgPracticeHTML)

	stats, err := a.FetchStats(context.Background(), "yuki")
	if err != nil {
		t.Fatalf("FetchStats がエラーを返した: %v", err)
	}
	if stats.ProblemsSolved != 167 {
		t.Errorf("ProblemsSolved = %d, want 167（先頭タブの数字）", stats.ProblemsSolved)
	}
}

func TestGeeksforGeeksAdapter_FetchStats_TabWithoutNumber(t *testing.T) {
	// タブはあるがラベルに数字がない場合は0とする
	html := `<html><body>
	<div class="tabs tabs-fixed-width links"><a href="#solved">Problems Solved</a></div>
	</body></html>`

	a := newGFGTestServer(t, html)

	stats, err := a.FetchStats(context.Background(), "yuki")
	if err != nil {
		t.Fatalf("FetchStats がエラーを返した: %v", err)
	}
	if stats.ProblemsSolved != 0 {
		t.Errorf("ProblemsSolved = %d, want 0", stats.ProblemsSolved)
	}
}

func TestGeeksforGeeksAdapter_FetchStats_MissingTabs(t *testing.T) {
	// 統計タブ自体がない場合はページ構造が想定外のため上流エラー
	html := `<html><body><p>page not found</p></body></html>`

	a := newGFGTestServer(t, html)

	_, err := a.FetchStats(context.Background(), "yuki")
	if err == nil {
		t.Fatal("統計タブがないページはエラーになるべき")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("APIError が返るべき: %T", err)
	}
	if apiErr.Code != model.ErrCodeUpstreamError {
		t.Errorf("エラーコード = %s, want %s", apiErr.Code, model.ErrCodeUpstreamError)
	}
}

func TestGeeksforGeeksAdapter_CheckOwnership(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{
			name: "表示名にコードがある",
			html: gfgPracticeHTML,
			want: true,
		},
		{
			name: "表示名にコードがない",
			html: `<html><body><div class="profile_name">yuki</div></body></html>`,
			want: false,
		},
		{
			name: "表示名要素がない",
			html: `<html><body><p>hello</p></body></html>`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newGFGTestServer(t, tt.html)

			got, err := a.CheckOwnership(context.Background(), "yuki", "A1B2C3")
			if err != nil {
				t.Fatalf("CheckOwnership がエラーを返した: %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckOwnership = %v, want %v", got, tt.want)
			}
		})
	}
}
