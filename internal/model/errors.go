// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, connection, message, practice, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeConflict            = "CONFLICT"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeInvalidSession      = "INVALID_SESSION"
	ErrCodeAlreadyConnected    = "ALREADY_CONNECTED"
	ErrCodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	ErrCodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	ErrCodeFeedbackFailed      = "FEEDBACK_FAILED"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewConflictError はユーザー名またはメールアドレスの重複エラーを生成する。
func NewConflictError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  fmt.Sprintf("この%sは既に使用されています。", field),
		Category: "validation",
		Action:   "別の値を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザー名またはIDを確認してください。",
	}
}

// NewInvalidCredentialsError はパスワード不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidSessionError は無効なセッションエラーを生成する。
func NewInvalidSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSession,
		Message:  "セッションが無効または期限切れです。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewAlreadyConnectedError は既に接続済みの相手への接続エラーを生成する。
func NewAlreadyConnectedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyConnected,
		Message:  "このユーザーとは既に接続されています。",
		Category: "connection",
		Action:   "接続一覧を確認してください。",
	}
}

// NewUnsupportedFormatError は音声フォーマット非対応エラーを生成する。
func NewUnsupportedFormatError(format string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedFormat,
		Message:  fmt.Sprintf("サポートされていない音声フォーマットです: %s", format),
		Category: "practice",
		Action:   "flac, m4a, mp3, mp4, mpeg, mpga, oga, ogg, wav, webm のいずれかの形式でアップロードしてください。",
	}
}

// NewTranscriptionFailedError は文字起こし失敗エラーを生成する。
// 上流サービスのエラー詳細はログのみに記録し、レスポンスには含めない。
func NewTranscriptionFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeTranscriptionFailed,
		Message:  "音声の文字起こしに失敗しました。",
		Category: "practice",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewFeedbackFailedError はフィードバック生成失敗エラーを生成する。
// 上流サービスのエラー詳細はログのみに記録し、レスポンスには含めない。
func NewFeedbackFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedbackFailed,
		Message:  "フィードバックの生成に失敗しました。",
		Category: "practice",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は認証必須エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
