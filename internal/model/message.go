package model

import "time"

// Message はユーザー間のメッセージを表す。
// 作成後はReadフラグ以外イミュータブル。存在の制御は送信者のsend操作のみが持つ。
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Content     string
	Read        bool
	CreatedAt   time.Time
}

// Connection はチューターと学習者の相互関係を表す。
// 1行で双方向の関係を表現するため、対称性はスキーマ上保証される。
type Connection struct {
	TutorID   string
	StudentID string
	CreatedAt time.Time
}
