// Package connection はチューターと学習者の相互関係の確立と参照を提供する。
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/repository"
)

// ConnectInput は接続確立の入力。
// TutorIDとStudentIDはどちらか一方のみを指定する。
// TutorIDが指定された場合は呼び出し主が学習者側、
// StudentIDが指定された場合は呼び出し主がチューター側として扱われる。
type ConnectInput struct {
	TutorID   string
	StudentID string
}

// Connections はあるユーザーの接続一覧。
type Connections struct {
	Tutors   []model.PublicUser
	Students []model.PublicUser
}

// Service は接続関係のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	connRepo repository.ConnectionRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, connRepo repository.ConnectionRepository) *Service {
	return &Service{
		userRepo: userRepo,
		connRepo: connRepo,
	}
}

// Connect はinitiatorと相手の間の関係を確立する。
// どちらの側が操作しているかは入力のどちらのIDが埋まっているかで決まる。
// 存在しないユーザーはNotFound、（向きを問わず）既存の関係はAlreadyConnectedを返す。
// 登録は単一トランザクションで行われるため、片側だけ適用された状態は発生しない。
func (s *Service) Connect(ctx context.Context, initiatorID string, input ConnectInput) error {
	var tutorID, studentID string

	switch {
	case input.TutorID != "" && input.StudentID != "":
		return model.NewInvalidRequestError("tutorIdとstudentIdは同時に指定できません")
	case input.TutorID != "":
		tutorID = input.TutorID
		studentID = initiatorID
	case input.StudentID != "":
		tutorID = initiatorID
		studentID = input.StudentID
	default:
		return model.NewInvalidRequestError("tutorIdまたはstudentIdを指定してください")
	}

	if tutorID == studentID {
		return model.NewInvalidRequestError("自分自身とは接続できません")
	}

	for _, id := range []string{tutorID, studentID} {
		user, err := s.userRepo.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return model.NewUserNotFoundError()
		}
	}

	// 事前チェック。同時登録のレースはINSERT時の一意制約が最終的に防ぐ。
	exists, err := s.connRepo.Exists(ctx, tutorID, studentID)
	if err != nil {
		return fmt.Errorf("failed to check existing connection: %w", err)
	}
	if exists {
		return model.NewAlreadyConnectedError()
	}

	if err := s.connRepo.Establish(ctx, tutorID, studentID); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return model.NewAlreadyConnectedError()
		}
		return fmt.Errorf("failed to establish connection: %w", err)
	}

	slog.Info("connection established",
		slog.String("tutor_id", tutorID),
		slog.String("student_id", studentID),
	)

	return nil
}

// ListConnections は指定ユーザーのチューター一覧と学習者一覧を返す。
// 相手方は公開フィールドのみのプロジェクションで返す。
func (s *Service) ListConnections(ctx context.Context, userID string) (*Connections, error) {
	tutors, err := s.connRepo.ListTutorsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tutors: %w", err)
	}

	students, err := s.connRepo.ListStudentsOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	return &Connections{
		Tutors:   tutors,
		Students: students,
	}, nil
}
