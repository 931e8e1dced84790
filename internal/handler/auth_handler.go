package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/talktome/internal/auth"
	"github.com/hitoshi/talktome/internal/middleware"
	"github.com/hitoshi/talktome/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Signup は新規ユーザーを登録し、ユーザーIDを返す。
	Signup(ctx context.Context, input auth.SignupInput) (string, error)
	// Login は資格情報を検証し、新しいセッションを発行する。
	Login(ctx context.Context, username, password string) (*model.Session, error)
	// Logout はセッションを失効させる。
	Logout(ctx context.Context, token string) error
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	Username          string   `json:"username"`
	Email             string   `json:"email"`
	Password          string   `json:"password"`
	Role              string   `json:"role"`
	LearningLanguages []string `json:"learningLanguages"`
	TeachingLanguages []string `json:"teachingLanguages"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// logoutRequest はログアウトリクエストのボディ。
type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

// Signup はユーザー登録を処理する。
// POST /api/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	userID, err := h.service.Signup(r.Context(), auth.SignupInput{
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		Role:              model.Role(req.Role),
		LearningLanguages: req.LearningLanguages,
		TeachingLanguages: req.TeachingLanguages,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, map[string]string{"userId": userID})
}

// Login はログインを処理する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"sessionId": session.Token,
		"userId":    session.UserID,
		"role":      string(session.Role),
	})
}

// Logout はログアウトを処理する。
// トークンはボディのsessionIdまたはX-Session-Idヘッダーで受け取る。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	// ボディなしのログアウトも許容する
	_ = json.NewDecoder(r.Body).Decode(&req)

	token := req.SessionID
	if token == "" {
		token = r.Header.Get(middleware.SessionHeaderName)
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "ログアウトしました。"})
}
