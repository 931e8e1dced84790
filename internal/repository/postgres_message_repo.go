package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/talktome/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用したメッセージリポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// Create はメッセージを未読状態で作成する。
func (r *PostgresMessageRepo) Create(ctx context.Context, message *model.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, content, read, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		message.ID, message.SenderID, message.RecipientID, message.Content, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// ListInvolving はユーザーが送信または受信したメッセージを新しい順で返す。
func (r *PostgresMessageRepo) ListInvolving(ctx context.Context, userID string, limit int) ([]*model.Message, error) {
	return r.list(ctx,
		`SELECT id, sender_id, recipient_id, content, read, created_at
		 FROM messages
		 WHERE sender_id = $1 OR recipient_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
}

// ListBetween は2者間のメッセージを古い順で返す。
func (r *PostgresMessageRepo) ListBetween(ctx context.Context, userID, counterpartID string, limit int) ([]*model.Message, error) {
	return r.list(ctx,
		`SELECT id, sender_id, recipient_id, content, read, created_at
		 FROM messages
		 WHERE (sender_id = $1 AND recipient_id = $2)
		    OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY created_at ASC
		 LIMIT $3`,
		userID, counterpartID, limit,
	)
}

func (r *PostgresMessageRepo) list(ctx context.Context, query string, args ...interface{}) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		m := &model.Message{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}

// MarkRead は指定送信者から指定受信者への未読メッセージを既読にする。冪等。
func (r *PostgresMessageRepo) MarkRead(ctx context.Context, recipientID, senderID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read = TRUE
		 WHERE recipient_id = $1 AND sender_id = $2 AND read = FALSE`,
		recipientID, senderID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// CountUnreadBySender は指定受信者宛ての未読メッセージ数を送信者ID別に集計して返す。
func (r *PostgresMessageRepo) CountUnreadBySender(ctx context.Context, recipientID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sender_id, COUNT(*)
		 FROM messages
		 WHERE recipient_id = $1 AND read = FALSE
		 GROUP BY sender_id`,
		recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var senderID string
		var count int
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count row: %w", err)
		}
		counts[senderID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unread count rows: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
