package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponseBody はAPIが返すエラーレスポンスのJSONボディ。
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail はエラーの詳細情報。
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// WriteErrorResponse は構造化されたエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, code, message, action string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	body := ErrorResponseBody{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Action:  action,
		},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode error response",
			slog.String("error", err.Error()),
		)
	}
}

// WriteInternalServerError は詳細を隠した500エラーレスポンスを書き込む。
// 内部エラーの内容をクライアントに漏らさない。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"内部エラーが発生しました",
		"時間をおいて再度お試しください",
	)
}
