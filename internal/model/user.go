// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleStudent は学習者を示す。
	RoleStudent Role = "student"
	// RoleTutor はチューターを示す。
	RoleTutor Role = "tutor"
	// RoleBoth は学習者とチューターの両方を示す。
	RoleBoth Role = "both"
)

// IsValid は既知の役割かどうかを返す。
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleBoth:
		return true
	}
	return false
}

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュのみを保持し、平文パスワードは一切持たない。
type User struct {
	ID                string
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	LearningLanguages []string
	TeachingLanguages []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PublicUser はAPIレスポンスに載せてよいユーザーの公開フィールドのみを持つ。
// パスワードハッシュは構造上含められない。
type PublicUser struct {
	ID                string
	Username          string
	Email             string
	Role              Role
	LearningLanguages []string
	TeachingLanguages []string
}

// Public はUserから公開プロジェクションを生成する。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              u.Role,
		LearningLanguages: u.LearningLanguages,
		TeachingLanguages: u.TeachingLanguages,
	}
}
