// Package messaging はユーザー間メッセージの送受信とリアルタイム配信を提供する。
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/talktome/internal/metrics"
	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/repository"
	"github.com/hitoshi/talktome/internal/security"
)

// historyLimit は履歴系クエリの最大取得件数。
const historyLimit = 50

// Service はメッセージのビジネスロジックを提供する。
type Service struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	hub         *Hub
	sanitizer   security.ContentSanitizerService
	collector   metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	hub *Hub,
	sanitizer security.ContentSanitizerService,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		hub:         hub,
		sanitizer:   sanitizer,
		collector:   collector,
	}
}

// Send は送信者から受信者へメッセージを送信する。
// 本文はサニタイズ後に保存され、空になった場合はInvalidRequestを返す。
// 保存成功後、受信者のアクティブな購読へnew-messageイベントを配信する。
// 配信はベストエフォートで、購読者不在や取りこぼしは送信の成否に影響しない。
func (s *Service) Send(ctx context.Context, senderID, recipientID, content string) (*model.Message, error) {
	if recipientID == "" {
		return nil, model.NewInvalidRequestError("recipientIdを指定してください")
	}
	if recipientID == senderID {
		return nil, model.NewInvalidRequestError("自分自身にはメッセージを送信できません")
	}

	clean := s.sanitizer.Sanitize(content)
	if clean == "" {
		return nil, model.NewInvalidRequestError("メッセージ本文を入力してください")
	}

	recipient, err := s.userRepo.FindByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to find recipient: %w", err)
	}
	if recipient == nil {
		return nil, model.NewUserNotFoundError()
	}

	message := &model.Message{
		ID:          uuid.New().String(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     clean,
		Read:        false,
		CreatedAt:   time.Now(),
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordMessageSent()
	}

	s.hub.Publish(recipientID, Event{Type: EventNewMessage, Message: message})

	slog.Info("message sent",
		slog.String("message_id", message.ID),
		slog.String("sender_id", senderID),
		slog.String("recipient_id", recipientID),
	)

	return message, nil
}

// History はユーザーが送信または受信したメッセージを新しい順で返す。
func (s *Service) History(ctx context.Context, userID string) ([]*model.Message, error) {
	messages, err := s.messageRepo.ListInvolving(ctx, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// Conversation は2者間のメッセージを古い順で返す。
// 取得と同時に、相手からユーザー宛ての未読メッセージを既読にする。
// ユーザーが送った側のメッセージの既読状態は変更しない。
func (s *Service) Conversation(ctx context.Context, userID, counterpartID string) ([]*model.Message, error) {
	messages, err := s.messageRepo.ListBetween(ctx, userID, counterpartID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}

	if err := s.messageRepo.MarkRead(ctx, userID, counterpartID); err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	return messages, nil
}

// UnreadCounts はユーザー宛ての未読メッセージ数を送信者ID別に集計して返す。
// 未読がない送信者はマップに含まれない。
func (s *Service) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	counts, err := s.messageRepo.CountUnreadBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return counts, nil
}
