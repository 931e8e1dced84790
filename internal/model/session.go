package model

import "time"

// Session はログインセッションを表す。
// プロセス内のセッションストアのみに保持され、永続化されない。
// Usernameはプロフィール更新時のリネーム伝播のために保持する。
type Session struct {
	Token     string
	UserID    string
	Username  string
	Role      Role
	ExpiresAt time.Time
	CreatedAt time.Time
}
