package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/talktome/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成する。username/emailの一意制約違反はErrDuplicateKeyを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, role,
		                    learning_languages, teaching_languages, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role),
		pq.Array(user.LearningLanguages), pq.Array(user.TeachingLanguages),
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `WHERE username = $1`, username)
}

// FindByUsernameOrEmail はユーザー名またはメールアドレスが一致するユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsernameOrEmail(ctx context.Context, username, email string) (*model.User, error) {
	return r.findOne(ctx, `WHERE username = $1 OR email = $2`, username, email)
}

// findOne は単一ユーザー取得の共通実装。
func (r *PostgresUserRepo) findOne(ctx context.Context, where string, args ...interface{}) (*model.User, error) {
	user := &model.User{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role,
		        learning_languages, teaching_languages, created_at, updated_at
		 FROM users `+where,
		args...,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role,
		pq.Array(&user.LearningLanguages), pq.Array(&user.TeachingLanguages),
		&user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.Role = model.Role(role)
	return user, nil
}

// Update はユーザーのプロフィール項目を更新する。
// username/emailの一意制約違反はErrDuplicateKeyを返す。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET username = $2, email = $3, learning_languages = $4,
		     teaching_languages = $5, updated_at = $6
		 WHERE id = $1`,
		user.ID, user.Username, user.Email,
		pq.Array(user.LearningLanguages), pq.Array(user.TeachingLanguages),
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// ListTutors はrole がtutorまたはbothのユーザーを公開プロジェクションで返す。
func (r *PostgresUserRepo) ListTutors(ctx context.Context, language string) ([]model.PublicUser, error) {
	query := `SELECT id, username, email, role, learning_languages, teaching_languages
	          FROM users WHERE role IN ('tutor', 'both')`
	args := []interface{}{}
	if language != "" {
		query += ` AND $1 = ANY(teaching_languages)`
		args = append(args, language)
	}
	query += ` ORDER BY username`
	return r.listPublic(ctx, query, args...)
}

// ListStudents はrole がstudentまたはbothのユーザーを公開プロジェクションで返す。
func (r *PostgresUserRepo) ListStudents(ctx context.Context, language string) ([]model.PublicUser, error) {
	query := `SELECT id, username, email, role, learning_languages, teaching_languages
	          FROM users WHERE role IN ('student', 'both')`
	args := []interface{}{}
	if language != "" {
		query += ` AND $1 = ANY(learning_languages)`
		args = append(args, language)
	}
	query += ` ORDER BY username`
	return r.listPublic(ctx, query, args...)
}

// listPublic はパスワードハッシュを含まないユーザー一覧取得の共通実装。
func (r *PostgresUserRepo) listPublic(ctx context.Context, query string, args ...interface{}) ([]model.PublicUser, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.PublicUser{}
	for rows.Next() {
		var u model.PublicUser
		var role string
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &role,
			pq.Array(&u.LearningLanguages), pq.Array(&u.TeachingLanguages)); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

// isUniqueViolation はPostgreSQLの一意制約違反（SQLSTATE 23505）かどうかを判定する。
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
