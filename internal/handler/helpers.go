// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/talktome/internal/middleware"
	"github.com/hitoshi/talktome/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。パスワードは構造上含められない。
type userResponse struct {
	ID                string   `json:"id"`
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	Role              string   `json:"role"`
	LearningLanguages []string `json:"learningLanguages"`
	TeachingLanguages []string `json:"teachingLanguages"`
}

// messageResponse はメッセージのAPIレスポンス。
type messageResponse struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	Read        bool   `json:"read"`
	CreatedAt   string `json:"createdAt"`
}

// toUserResponse はPublicUserをAPIレスポンス型に変換する。
func toUserResponse(u model.PublicUser) userResponse {
	return userResponse{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              string(u.Role),
		LearningLanguages: emptyIfNil(u.LearningLanguages),
		TeachingLanguages: emptyIfNil(u.TeachingLanguages),
	}
}

// toUserResponses はPublicUserスライスをAPIレスポンス型に変換する。
// nilスライスもJSONでは空配列として返す。
func toUserResponses(users []model.PublicUser) []userResponse {
	results := make([]userResponse, len(users))
	for i, u := range users {
		results[i] = toUserResponse(u)
	}
	return results
}

// toMessageResponse はMessageをAPIレスポンス型に変換する。
func toMessageResponse(m *model.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		Read:        m.Read,
		CreatedAt:   m.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// toMessageResponses はMessageスライスをAPIレスポンス型に変換する。
func toMessageResponses(messages []*model.Message) []messageResponse {
	results := make([]messageResponse, len(messages))
	for i, m := range messages {
		results[i] = toMessageResponse(m)
	}
	return results
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeInvalidBodyResponse はリクエストボディの解析失敗レスポンスを書き込む。
func writeInvalidBodyResponse(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest,
		model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeConflict, model.ErrCodeAlreadyConnected:
		return http.StatusConflict
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidCredentials, model.ErrCodeInvalidSession, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case model.ErrCodeTranscriptionFailed, model.ErrCodeFeedbackFailed:
		return http.StatusBadGateway
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
