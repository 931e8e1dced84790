package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/talktome/internal/directory"
	"github.com/hitoshi/talktome/internal/middleware"
	"github.com/hitoshi/talktome/internal/model"
)

// DirectoryServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type DirectoryServiceInterface interface {
	// GetUser は指定IDのユーザーを公開プロジェクションで返す。
	GetUser(ctx context.Context, userID string) (*model.PublicUser, error)
	// FindTutors はチューター一覧を返す。languageで絞り込み可能。
	FindTutors(ctx context.Context, language string) ([]model.PublicUser, error)
	// FindStudents は学習者一覧を返す。languageで絞り込み可能。
	FindStudents(ctx context.Context, language string) ([]model.PublicUser, error)
	// UpdateProfile はプロフィールを部分更新する。
	UpdateProfile(ctx context.Context, userID string, input directory.UpdateInput) (*model.PublicUser, error)
}

// UserHandler はユーザーディレクトリのHTTPハンドラー。
type UserHandler struct {
	service DirectoryServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service DirectoryServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateProfileRequest struct {
	Username          *string  `json:"username"`
	Email             *string  `json:"email"`
	LearningLanguages []string `json:"learningLanguages"`
	TeachingLanguages []string `json:"teachingLanguages"`
}

// Me は認証済みユーザー自身の情報を返す。
// GET /api/user
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetUser(r.Context(), session.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponse(*user))
}

// UpdateProfile はプロフィールの部分更新を処理する。
// PUT /api/user/update
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), session.UserID, directory.UpdateInput{
		Username:          req.Username,
		Email:             req.Email,
		LearningLanguages: req.LearningLanguages,
		TeachingLanguages: req.TeachingLanguages,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponse(*user))
}

// ListTutors はチューター一覧を返す。
// GET /api/tutors?language=
func (h *UserHandler) ListTutors(w http.ResponseWriter, r *http.Request) {
	tutors, err := h.service.FindTutors(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponses(tutors))
}

// ListStudents は学習者一覧を返す。
// GET /api/students?language=
func (h *UserHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.FindStudents(r.Context(), r.URL.Query().Get("language"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponses(students))
}
