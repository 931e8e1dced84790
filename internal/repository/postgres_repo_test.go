package repository

import (
	"testing"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresConnectionRepoはConnectionRepositoryインターフェースを満たすことを検証
func TestPostgresConnectionRepo_ImplementsInterface(t *testing.T) {
	var _ ConnectionRepository = (*PostgresConnectionRepo)(nil)
}

// PostgresMessageRepoはMessageRepositoryインターフェースを満たすことを検証
func TestPostgresMessageRepo_ImplementsInterface(t *testing.T) {
	var _ MessageRepository = (*PostgresMessageRepo)(nil)
}

// 各コンストラクタが正しく初期化されることを検証
func TestNewRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil {
		t.Fatal("expected non-nil user repo")
	}
	if NewPostgresConnectionRepo(nil) == nil {
		t.Fatal("expected non-nil connection repo")
	}
	if NewPostgresMessageRepo(nil) == nil {
		t.Fatal("expected non-nil message repo")
	}
}

// isUniqueViolationがnilエラーでfalseを返すことを検証
func TestIsUniqueViolation_NilError(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Error("isUniqueViolation(nil) should be false")
	}
}
