// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/statly/internal/middleware"
	"github.com/hitoshi/statly/internal/model"
)

// PlatformServiceInterface はプラットフォーム連携ハンドラーが必要とする
// サービスインターフェース。
type PlatformServiceInterface interface {
	// SupportedPlatforms は対応プラットフォーム一覧を返す。
	SupportedPlatforms() []model.PlatformID
	// ListBindings はユーザーの全連携状態を返す。
	ListBindings(ctx context.Context, userID string) ([]*model.PlatformBinding, error)
	// StartVerification は検証を開始し、確認コードを返す。
	StartVerification(ctx context.Context, userID string, platformID model.PlatformID, externalUsername string) (string, error)
	// CompleteVerification はプロフィール上の確認コードを照合し検証を完了する。
	CompleteVerification(ctx context.Context, userID string, platformID model.PlatformID) (*model.PlatformBinding, error)
	// RefreshStats は検証済み連携の統計を再取得する。
	RefreshStats(ctx context.Context, userID string, platformID model.PlatformID) (*model.PlatformBinding, error)
	// Disconnect は連携を解除する。
	Disconnect(ctx context.Context, userID string, platformID model.PlatformID) error
}

// PlatformHandler はプラットフォーム連携のHTTPハンドラー。
type PlatformHandler struct {
	service PlatformServiceInterface
}

// NewPlatformHandler はPlatformHandlerを生成する。
func NewPlatformHandler(service PlatformServiceInterface) *PlatformHandler {
	return &PlatformHandler{service: service}
}

// verifyStartRequest は検証開始リクエストのボディ。
type verifyStartRequest struct {
	Platform string `json:"platform"`
	Username string `json:"username"`
}

// verifyCompleteRequest は検証完了リクエストのボディ。
type verifyCompleteRequest struct {
	Platform string `json:"platform"`
}

// verifyStartResponse は検証開始レスポンス。
type verifyStartResponse struct {
	Platform         string `json:"platform"`
	Username         string `json:"username"`
	VerificationCode string `json:"verification_code"`
}

// bindingResponse は連携状態のAPIレスポンス。
type bindingResponse struct {
	Platform      string               `json:"platform"`
	Username      string               `json:"username"`
	Status        string               `json:"status"`
	Stats         *model.PlatformStats `json:"stats,omitempty"`
	LastFetchedAt *time.Time           `json:"last_fetched_at,omitempty"`
}

// platformListResponse は対応プラットフォーム一覧レスポンス。
type platformListResponse struct {
	Platforms []string `json:"platforms"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// ListPlatforms は対応プラットフォーム一覧を返す。
// GET /api/platforms/supported
func (h *PlatformHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	ids := h.service.SupportedPlatforms()
	platforms := make([]string, 0, len(ids))
	for _, id := range ids {
		platforms = append(platforms, string(id))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(platformListResponse{Platforms: platforms})
}

// ListBindings はユーザーの全連携状態を返す。
// GET /api/platforms
func (h *PlatformHandler) ListBindings(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	bindings, err := h.service.ListBindings(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]bindingResponse, 0, len(bindings))
	for _, b := range bindings {
		responses = append(responses, toBindingResponse(b))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// StartVerification は検証フローを開始する。
// POST /api/platforms/verify/start
func (h *PlatformHandler) StartVerification(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req verifyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.Platform == "" || req.Username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "platformとusernameは必須です。",
			Category: "validation",
			Action:   "platformとusernameを指定してください。",
		})
		return
	}

	code, err := h.service.StartVerification(r.Context(), userID, model.PlatformID(req.Platform), req.Username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verifyStartResponse{
		Platform:         req.Platform,
		Username:         req.Username,
		VerificationCode: code,
	})
}

// CompleteVerification は検証を完了し、初回統計を取得する。
// POST /api/platforms/verify/complete
func (h *PlatformHandler) CompleteVerification(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req verifyCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.Platform == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "platformは必須です。",
			Category: "validation",
			Action:   "platformを指定してください。",
		})
		return
	}

	binding, err := h.service.CompleteVerification(r.Context(), userID, model.PlatformID(req.Platform))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBindingResponse(binding))
}

// RefreshStats は検証済み連携の統計を再取得する。
// PUT /api/platforms/{platform}/refresh
func (h *PlatformHandler) RefreshStats(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	platformID := model.PlatformID(chi.URLParam(r, "platform"))

	binding, err := h.service.RefreshStats(r.Context(), userID, platformID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBindingResponse(binding))
}

// Disconnect は連携を解除する。
// DELETE /api/platforms/{platform}
func (h *PlatformHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	platformID := model.PlatformID(chi.URLParam(r, "platform"))

	if err := h.service.Disconnect(r.Context(), userID, platformID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toBindingResponse はmodel.PlatformBindingからAPIレスポンスに変換する。
// 確認コードと内部IDはレスポンスに含めない。
func toBindingResponse(b *model.PlatformBinding) bindingResponse {
	return bindingResponse{
		Platform:      string(b.PlatformID),
		Username:      b.ExternalUsername,
		Status:        string(b.Status),
		Stats:         b.Stats,
		LastFetchedAt: b.LastFetchedAt,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

func writeInvalidRequest(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnsupportedPlatform, model.ErrCodeInvalidExternalUsername:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeVerificationNotStarted, model.ErrCodePlatformNotVerified:
		return http.StatusConflict
	case model.ErrCodeVerificationMismatch:
		return http.StatusUnprocessableEntity
	case model.ErrCodeUpstreamError:
		return http.StatusBadGateway
	case model.ErrCodePersistenceError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
