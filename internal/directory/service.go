// Package directory はユーザーディレクトリの検索とプロフィール更新を提供する。
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/repository"
	"github.com/hitoshi/talktome/internal/session"
)

// UpdateInput はプロフィール部分更新の入力。
// nilのフィールドは変更しない。
type UpdateInput struct {
	Username          *string
	Email             *string
	LearningLanguages []string
	TeachingLanguages []string
}

// Service はユーザーディレクトリのビジネスロジックを提供する。
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

// GetUser は指定IDのユーザーを公開プロジェクションで返す。
// 見つからない場合はNotFoundを返す。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.PublicUser, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	pub := user.Public()
	return &pub, nil
}

// FindTutors はroleがtutorまたはbothのユーザー一覧を返す。
// languageが空でない場合はteachingLanguagesに含まれるユーザーに限定する。
// パスワードハッシュは結果に含まれない。
func (s *Service) FindTutors(ctx context.Context, language string) ([]model.PublicUser, error) {
	tutors, err := s.userRepo.ListTutors(ctx, language)
	if err != nil {
		return nil, fmt.Errorf("failed to list tutors: %w", err)
	}
	return tutors, nil
}

// FindStudents はroleがstudentまたはbothのユーザー一覧を返す。
// languageが空でない場合はlearningLanguagesに含まれるユーザーに限定する。
func (s *Service) FindStudents(ctx context.Context, language string) ([]model.PublicUser, error) {
	students, err := s.userRepo.ListStudents(ctx, language)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// UpdateProfile はユーザー名、メールアドレス、言語セットを部分更新する。
// ユーザー名が変わった場合はアクティブセッションのアイデンティティにも伝播させる。
// 更新後のユーザー名またはメールアドレスが他ユーザーと衝突する場合はConflictを返す。
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateInput) (*model.PublicUser, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	oldUsername := user.Username

	if input.Username != nil && *input.Username != "" {
		user.Username = *input.Username
	}
	if input.Email != nil && *input.Email != "" {
		user.Email = *input.Email
	}
	if input.LearningLanguages != nil {
		user.LearningLanguages = input.LearningLanguages
	}
	if input.TeachingLanguages != nil {
		user.TeachingLanguages = input.TeachingLanguages
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, model.NewConflictError("ユーザー名またはメールアドレス")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if user.Username != oldUsername {
		if err := s.sessions.RenameUser(ctx, userID, user.Username); err != nil {
			// セッション側の反映失敗は更新自体を失敗にしない。次回ログインで解消する。
			slog.Warn("failed to propagate username change to sessions",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		slog.Info("username changed",
			slog.String("user_id", userID),
			slog.String("new_username", user.Username),
		)
	}

	pub := user.Public()
	return &pub, nil
}
