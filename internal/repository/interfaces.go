// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/talktome/internal/model"
)

// ErrDuplicateKey は一意制約違反を示すセンチネルエラー。
// サービス層でConflict/AlreadyConnectedへのマッピングに使用する。
var ErrDuplicateKey = errors.New("duplicate key")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。username/emailの一意制約違反はErrDuplicateKeyを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// FindByUsernameOrEmail はユーザー名またはメールアドレスが一致するユーザーを検索する。
	// サインアップ時の重複チェックに使用する。見つからない場合はnilを返す。
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error)

	// Update はユーザーのプロフィール項目を更新する。
	// username/emailの一意制約違反はErrDuplicateKeyを返す。
	Update(ctx context.Context, user *model.User) error

	// ListTutors はrole がtutorまたはbothのユーザーを公開プロジェクションで返す。
	// languageが空でない場合はteaching_languagesに含まれるユーザーに限定する。
	ListTutors(ctx context.Context, language string) ([]model.PublicUser, error)

	// ListStudents はrole がstudentまたはbothのユーザーを公開プロジェクションで返す。
	// languageが空でない場合はlearning_languagesに含まれるユーザーに限定する。
	ListStudents(ctx context.Context, language string) ([]model.PublicUser, error)
}

// ConnectionRepository はチューター・学習者関係の永続化インターフェース。
type ConnectionRepository interface {
	// Establish は関係を単一INSERTで登録する。
	// 同一ペアが（向きを問わず）既に存在する場合はErrDuplicateKeyを返す。
	// 部分適用状態は発生しない。
	Establish(ctx context.Context, tutorID, studentID string) error

	// Exists は2者間の関係が向きを問わず存在するかを返す。
	Exists(ctx context.Context, tutorID, studentID string) (bool, error)

	// ListTutorsOf は指定学習者のチューター一覧を公開プロジェクションで返す。
	ListTutorsOf(ctx context.Context, studentID string) ([]model.PublicUser, error)

	// ListStudentsOf は指定チューターの学習者一覧を公開プロジェクションで返す。
	ListStudentsOf(ctx context.Context, tutorID string) ([]model.PublicUser, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// Create はメッセージを未読状態で作成する。
	Create(ctx context.Context, message *model.Message) error

	// ListInvolving はユーザーが送信または受信したメッセージを新しい順で返す。
	ListInvolving(ctx context.Context, userID string, limit int) ([]*model.Message, error)

	// ListBetween は2者間のメッセージを古い順で返す。
	ListBetween(ctx context.Context, userID, counterpartID string, limit int) ([]*model.Message, error)

	// MarkRead は指定送信者から指定受信者への未読メッセージを既読にする。冪等。
	MarkRead(ctx context.Context, recipientID, senderID string) error

	// CountUnreadBySender は指定受信者宛ての未読メッセージ数を送信者ID別に集計して返す。
	CountUnreadBySender(ctx context.Context, recipientID string) (map[string]int, error)
}
