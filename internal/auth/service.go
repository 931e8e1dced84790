// Package auth はサインアップ、ログイン、セッション認証を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/repository"
	"github.com/hitoshi/talktome/internal/session"
)

// SignupInput はサインアップ操作の入力。
type SignupInput struct {
	Username          string
	Email             string
	Password          string
	Role              model.Role
	LearningLanguages []string
	TeachingLanguages []string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	sessions session.Store
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, sessions session.Store) *Service {
	return &Service{
		userRepo: userRepo,
		sessions: sessions,
	}
}

// Signup は新規ユーザーを登録し、ユーザーIDを返す。
// ユーザー名またはメールアドレスが既に使用されている場合はConflictを返す。
// パスワードはbcryptでハッシュ化し、平文は永続化もログ出力もしない。
func (s *Service) Signup(ctx context.Context, input SignupInput) (string, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return "", model.NewInvalidRequestError("ユーザー名、メールアドレス、パスワードは必須です")
	}
	if !input.Role.IsValid() {
		return "", model.NewInvalidRequestError("roleはstudent、tutor、bothのいずれかを指定してください")
	}

	// 事前チェック。レースはINSERT時の一意制約が最終的に防ぐ。
	existing, err := s.userRepo.FindByUsernameOrEmail(ctx, input.Username, input.Email)
	if err != nil {
		return "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		if existing.Username == input.Username {
			return "", model.NewConflictError("ユーザー名")
		}
		return "", model.NewConflictError("メールアドレス")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:                uuid.New().String(),
		Username:          input.Username,
		Email:             input.Email,
		PasswordHash:      string(hash),
		Role:              input.Role,
		LearningLanguages: input.LearningLanguages,
		TeachingLanguages: input.TeachingLanguages,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return "", model.NewConflictError("ユーザー名またはメールアドレス")
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)

	return user.ID, nil
}

// Login はユーザー名とパスワードを検証し、セッショントークンを発行する。
// ユーザーが存在しない場合はNotFound、パスワード不一致はInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Session, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	sess := &model.Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return sess, nil
}

// Logout はセッションを破棄する。トークンが未知の場合はInvalidSessionを返す。
func (s *Service) Logout(ctx context.Context, token string) error {
	deleted, err := s.sessions.Delete(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return model.NewInvalidSessionError()
	}

	slog.Info("user logged out")
	return nil
}

// Authenticate はトークンをアイデンティティに解決する。
// セッションが存在してもユーザーがディレクトリから消えている場合は
// InvalidSessionを返す（削除済みユーザーのセッションを黙って通さない）。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, model.NewInvalidSessionError()
	}

	sess, err := s.sessions.Find(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if sess == nil {
		return nil, model.NewInvalidSessionError()
	}

	user, err := s.userRepo.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to revalidate user: %w", err)
	}
	if user == nil {
		// セッションの持ち主が削除されている。セッションも破棄する。
		s.sessions.Delete(ctx, token)
		return nil, model.NewInvalidSessionError()
	}

	return sess, nil
}

// generateToken は暗号的に安全な256ビットのセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
