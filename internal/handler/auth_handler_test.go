package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/talktome/internal/auth"
	"github.com/hitoshi/talktome/internal/model"
)

type mockAuthService struct {
	signupFn func(ctx context.Context, input auth.SignupInput) (string, error)
	loginFn  func(ctx context.Context, username, password string) (*model.Session, error)
	logoutFn func(ctx context.Context, token string) error
}

func (m *mockAuthService) Signup(ctx context.Context, input auth.SignupInput) (string, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, input)
	}
	return "", nil
}
func (m *mockAuthService) Login(ctx context.Context, username, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil
}
func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

// サインアップ成功で201とuserIdが返ることを検証
func TestAuthHandler_Signup_Success(t *testing.T) {
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, input auth.SignupInput) (string, error) {
			if input.Username != "alice" || input.Role != model.RoleStudent {
				t.Errorf("unexpected input: %+v", input)
			}
			return "new-user-id", nil
		},
	}
	h := NewAuthHandler(svc)

	body := `{"username":"alice","email":"alice@example.com","password":"pw","role":"student","learningLanguages":["fr"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["userId"] != "new-user-id" {
		t.Errorf("userId = %q", resp["userId"])
	}
}

// 重複サインアップが409になることを検証
func TestAuthHandler_Signup_Conflict(t *testing.T) {
	svc := &mockAuthService{
		signupFn: func(ctx context.Context, input auth.SignupInput) (string, error) {
			return "", model.NewConflictError("ユーザー名")
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader(`{"username":"alice"}`))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["code"] != model.ErrCodeConflict {
		t.Errorf("code = %q", resp["code"])
	}
}

// 不正なJSONボディが400になることを検証
func TestAuthHandler_Signup_InvalidBody(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/signup", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Signup(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ログイン成功でsessionIdとroleが返ることを検証
func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			return &model.Session{Token: "tok-123", UserID: "u1", Role: model.RoleTutor}, nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice","password":"pw"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["sessionId"] != "tok-123" || resp["role"] != "tutor" || resp["userId"] != "u1" {
		t.Errorf("unexpected response: %v", resp)
	}
}

// パスワード不一致が401になることを検証
func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice","password":"bad"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ボディのsessionIdでログアウトできることを検証
func TestAuthHandler_Logout_BodyToken(t *testing.T) {
	var gotToken string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			gotToken = token
			return nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", strings.NewReader(`{"sessionId":"tok-123"}`))
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotToken != "tok-123" {
		t.Errorf("token = %q", gotToken)
	}
}

// ボディ省略時にヘッダーのトークンが使われることを検証
func TestAuthHandler_Logout_HeaderFallback(t *testing.T) {
	var gotToken string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			gotToken = token
			return nil
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("X-Session-Id", "header-tok")
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if gotToken != "header-tok" {
		t.Errorf("token = %q", gotToken)
	}
}

// 未知トークンのログアウトが401になることを検証
func TestAuthHandler_Logout_UnknownToken(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, token string) error {
			return model.NewInvalidSessionError()
		},
	}
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/logout", strings.NewReader(`{"sessionId":"bogus"}`))
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
