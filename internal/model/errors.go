// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, platform, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnsupportedPlatform     = "UNSUPPORTED_PLATFORM"
	ErrCodeVerificationNotStarted  = "VERIFICATION_NOT_STARTED"
	ErrCodeVerificationMismatch    = "VERIFICATION_MISMATCH"
	ErrCodePlatformNotVerified     = "PLATFORM_NOT_VERIFIED"
	ErrCodeUpstreamError           = "UPSTREAM_ERROR"
	ErrCodePersistenceError        = "PERSISTENCE_ERROR"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeInvalidExternalUsername = "INVALID_EXTERNAL_USERNAME"
)

// NewUnsupportedPlatformError は未対応プラットフォームエラーを生成する。
// 全エントリポイントでネットワーク呼び出し前に返される。
func NewUnsupportedPlatformError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedPlatform,
		Message:  fmt.Sprintf("対応していないプラットフォームです: %s", platform),
		Category: "validation",
		Action:   "対応プラットフォーム（codeforces, github, leetcode, codechef, geeksforgeeks）のいずれかを指定してください。",
	}
}

// NewVerificationNotStartedError は検証未開始エラーを生成する。
func NewVerificationNotStartedError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeVerificationNotStarted,
		Message:  fmt.Sprintf("このプラットフォームの検証が開始されていません: %s", platform),
		Category: "platform",
		Action:   "先に検証の開始を実行し、発行されたコードをプロフィールに設定してください。",
	}
}

// NewVerificationMismatchError は所有権検証失敗エラーを生成する。
// 束縛はpendingのまま維持され、同じコードで再試行できる。
func NewVerificationMismatchError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeVerificationMismatch,
		Message:  "検証コードがプロフィールから見つかりませんでした。",
		Category: "platform",
		Action:   fmt.Sprintf("%s の公開プロフィール（自己紹介・名前・所属欄）に検証コードを設定し、反映後に再試行してください。", platform),
	}
}

// NewPlatformNotVerifiedError は未検証プラットフォームへの更新要求エラーを生成する。
func NewPlatformNotVerifiedError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodePlatformNotVerified,
		Message:  fmt.Sprintf("このプラットフォームは検証済みではありません: %s", platform),
		Category: "platform",
		Action:   "統計の更新は検証済みの連携に対してのみ実行できます。先に検証を完了してください。",
	}
}

// NewUpstreamError は外部プラットフォーム呼び出し失敗エラーを生成する。
// ネットワーク障害・タイムアウト・想定外のレスポンス形状を含む。
func NewUpstreamError(platform string, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  fmt.Sprintf("%s からのデータ取得に失敗しました: %s", platform, reason),
		Category: "upstream",
		Action:   "ユーザー名が正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewPersistenceError はストレージコラボレータの失敗エラーを生成する。
func NewPersistenceError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceError,
		Message:  fmt.Sprintf("データの保存・読み込みに失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidExternalUsernameError は外部ユーザー名が不正な場合のエラーを生成する。
func NewInvalidExternalUsernameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidExternalUsername,
		Message:  fmt.Sprintf("外部アカウント名が不正です: %s", reason),
		Category: "validation",
		Action:   "連携先プラットフォームでのアカウント名をそのまま入力してください。",
	}
}
