package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/talktome/internal/model"
)

// PostgresConnectionRepo はPostgreSQLを使用した接続関係リポジトリ。
type PostgresConnectionRepo struct {
	db *sql.DB
}

// NewPostgresConnectionRepo はPostgresConnectionRepoを生成する。
func NewPostgresConnectionRepo(db *sql.DB) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

// Establish は関係を単一INSERTで登録する。
// 同じ向きの重複は主キー、逆向きの重複はLEAST/GREATESTの正規化ペアに
// 張った一意インデックスが拒否するため、並行登録でもどちらか一方しか
// 成功せず、いずれの場合もErrDuplicateKeyを返す。
func (r *PostgresConnectionRepo) Establish(ctx context.Context, tutorID, studentID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connections (tutor_id, student_id) VALUES ($1, $2)`,
		tutorID, studentID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

// Exists は2者間の関係が向きを問わず存在するかを返す。
func (r *PostgresConnectionRepo) Exists(ctx context.Context, tutorID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM connections
			WHERE (tutor_id = $1 AND student_id = $2)
			   OR (tutor_id = $2 AND student_id = $1)
		)`,
		tutorID, studentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check connection: %w", err)
	}
	return exists, nil
}

// ListTutorsOf は指定学習者のチューター一覧を公開プロジェクションで返す。
func (r *PostgresConnectionRepo) ListTutorsOf(ctx context.Context, studentID string) ([]model.PublicUser, error) {
	return r.listCounterparts(ctx,
		`SELECT u.id, u.username, u.email, u.role, u.learning_languages, u.teaching_languages
		 FROM connections c
		 JOIN users u ON u.id = c.tutor_id
		 WHERE c.student_id = $1
		 ORDER BY c.created_at`,
		studentID,
	)
}

// ListStudentsOf は指定チューターの学習者一覧を公開プロジェクションで返す。
func (r *PostgresConnectionRepo) ListStudentsOf(ctx context.Context, tutorID string) ([]model.PublicUser, error) {
	return r.listCounterparts(ctx,
		`SELECT u.id, u.username, u.email, u.role, u.learning_languages, u.teaching_languages
		 FROM connections c
		 JOIN users u ON u.id = c.student_id
		 WHERE c.tutor_id = $1
		 ORDER BY c.created_at`,
		tutorID,
	)
}

func (r *PostgresConnectionRepo) listCounterparts(ctx context.Context, query, id string) ([]model.PublicUser, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	users := []model.PublicUser{}
	for rows.Next() {
		var u model.PublicUser
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &role,
			pq.Array(&u.LearningLanguages), pq.Array(&u.TeachingLanguages)); err != nil {
			return nil, fmt.Errorf("failed to scan connection row: %w", err)
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connection rows: %w", err)
	}
	return users, nil
}

// compile-time interface check
var _ ConnectionRepository = (*PostgresConnectionRepo)(nil)
