// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー投稿のメッセージ本文をサニタイズし、
// XSS攻撃などのセキュリティリスクから受信者を保護する。
// bluemondayライブラリの厳格ポリシーで全HTMLタグを除去し、
// プレーンテキストのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はメッセージ本文のサニタイズ機能のインターフェースを定義する。
// メッセージの保存前およびリアルタイム配信前に使用される。
type ContentSanitizerService interface {
	// Sanitize はメッセージ本文から全HTMLタグを除去してプレーンテキストを返す。
	// メッセージはクライアント側でテキストとして描画される想定のため、
	// 許可タグは存在しない。前後の空白もトリムする。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// メッセージ本文にHTMLを許可しないため、全タグを除去するStrictPolicyを使用する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメッセージ本文から全HTMLタグを除去してプレーンテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
