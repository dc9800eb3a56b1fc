// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, search, library, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeCompletionFailed   = "COMPLETION_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	ErrCodeIdentityFailed     = "IDENTITY_FAILED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeHistoryNotFound    = "HISTORY_NOT_FOUND"
	ErrCodeBookmarkNotFound   = "BOOKMARK_NOT_FOUND"
	ErrCodeNoAnswer           = "NO_ANSWER"
	ErrCodeInvalidPassword    = "INVALID_PASSWORD"
	ErrCodeInvalidName        = "INVALID_NAME"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeForbidden          = "FORBIDDEN"
)

// NewMissingFieldsError は必須項目未入力エラーを生成する。
func NewMissingFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  "Query and location are required",
		Category: "validation",
		Action:   "Enter both a location and a question.",
	}
}

// NewCompletionFailedError は回答生成失敗エラーを生成する。
// 上流の詳細は含めず、ログにのみ記録する。
func NewCompletionFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCompletionFailed,
		Message:  "An error occurred while processing your request",
		Category: "search",
		Action:   "Please wait a moment and try again.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Not authenticated",
		Category: "auth",
		Action:   "Please sign in.",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワード不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password. Please check your credentials and try again.",
		Category: "auth",
		Action:   "Check your email address and password.",
	}
}

// NewEmailNotConfirmedError はメールアドレス未確認エラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotConfirmed,
		Message:  "Please check your email and click the confirmation link before signing in.",
		Category: "auth",
		Action:   "Open the confirmation email and follow the link.",
	}
}

// NewIdentityFailedError はIdP呼び出し失敗エラーを生成する。
func NewIdentityFailedError(message string) *APIError {
	if message == "" {
		message = "The authentication service could not complete the request."
	}
	return &APIError{
		Code:     ErrCodeIdentityFailed,
		Message:  message,
		Category: "auth",
		Action:   "Please wait a moment and try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewHistoryNotFoundError は履歴が見つからない場合のエラーを生成する。
func NewHistoryNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeHistoryNotFound,
		Message:  fmt.Sprintf("Search history item not found: %s", id),
		Category: "library",
		Action:   "Reload the page to refresh your history.",
	}
}

// NewBookmarkNotFoundError はブックマークが見つからない場合のエラーを生成する。
func NewBookmarkNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeBookmarkNotFound,
		Message:  fmt.Sprintf("Bookmark not found: %s", id),
		Category: "library",
		Action:   "Reload the page to refresh your bookmarks.",
	}
}

// NewNoAnswerError は保存対象の回答が存在しない場合のエラーを生成する。
func NewNoAnswerError() *APIError {
	return &APIError{
		Code:     ErrCodeNoAnswer,
		Message:  "There is no answer to bookmark yet.",
		Category: "validation",
		Action:   "Ask a question first, then save the answer.",
	}
}

// NewInvalidPasswordError はパスワード要件を満たさない場合のエラーを生成する。
func NewInvalidPasswordError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPassword,
		Message:  reason,
		Category: "validation",
		Action:   "Choose a password of at least 6 characters and type it twice.",
	}
}

// NewInvalidNameError は表示名が長すぎる場合のエラーを生成する。
func NewInvalidNameError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidName,
		Message:  fmt.Sprintf("Name must be at most %d characters", max),
		Category: "validation",
		Action:   "Enter a shorter name.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "system",
		Action:   "Please wait a minute and try again.",
	}
}

// NewForbiddenError はアクセス禁止パスへのリクエストに対するエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Access denied",
		Category: "system",
		Action:   "This resource is not available.",
	}
}

// NewCSRFFailedError はCSRFトークン検証に失敗したリクエストに対するエラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}
