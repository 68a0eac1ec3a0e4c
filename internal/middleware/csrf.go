package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfTokenBytes = 32
)

// CSRFConfig はCSRF保護の設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// NewCSRFMiddleware はdouble-submit cookie方式のCSRF保護ミドルウェアを返す。
// 状態を変更するメソッドに対し、Cookieとヘッダーのトークン一致を要求する。
func NewCSRFMiddleware(cfg CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(csrfCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusForbidden,
					"CSRF_TOKEN_MISSING",
					"CSRFトークンがありません",
					"トークンを取得してから再度お試しください",
				)
				return
			}

			header := r.Header.Get(csrfHeaderName)
			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
				WriteErrorResponse(w, http.StatusForbidden,
					"CSRF_TOKEN_INVALID",
					"CSRFトークンが一致しません",
					"トークンを再取得してから再度お試しください",
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はCSRFトークンを発行するハンドラを返す。
// トークンはJavaScriptから読める必要があるためHttpOnlyにしない。
func NewCSRFTokenHandler(cfg CSRFConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := generateCSRFToken()
		if err != nil {
			WriteInternalServerError(w)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			Domain:   cfg.CookieDomain,
			Secure:   cfg.CookieSecure,
			HttpOnly: false,
			SameSite: http.SameSiteStrictMode,
		})
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"csrf_token":"` + token + `"}`))
	}
}

func generateCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
