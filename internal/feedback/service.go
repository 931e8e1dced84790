// Package feedback は会話トランスクリプトへの学習フィードバック生成を提供する。
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/talktome/internal/metrics"
	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/openai"
)

// systemPromptFormat はフィードバック生成の指示文。%sには練習対象の言語が入る。
const systemPromptFormat = "You are an expert language tutor for %s. " +
	"Review the student's conversation transcript and give constructive feedback on " +
	"sentence structure, grammar, vocabulary, and tone. " +
	"Be encouraging and specific, citing phrases from the transcript where helpful."

// responseLanguagePromptFormat は応答言語の指示文。
// モデルが無視しやすいため独立したシステムメッセージで念押しする。
const responseLanguagePromptFormat = "It is very important that you write " +
	"your entire response in %s and no other language."

// ChatCompleter はフィードバック生成バックエンドのインターフェース。
// テスト時にモックに差し替え可能。
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, messages []openai.ChatMessage) (string, error)
}

// Service はフィードバック生成のビジネスロジックを提供する。
type Service struct {
	chat      ChatCompleter
	collector metrics.MetricsCollector
	timeout   time.Duration
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(chat ChatCompleter, collector metrics.MetricsCollector, timeout time.Duration) *Service {
	return &Service{
		chat:      chat,
		collector: collector,
		timeout:   timeout,
	}
}

// Generate はトランスクリプトへの学習フィードバックを生成する。
// subjectLanguageは練習対象の言語で、プロンプトでモデルに評価対象として伝える。
// feedbackLanguageは応答言語の名称またはコードで、空の場合はEnglishを使用する。
// 外部APIの失敗は詳細を伏せたFeedbackFailedとして返す（詳細はログ参照）。
func (s *Service) Generate(ctx context.Context, transcript, subjectLanguage, feedbackLanguage string) (string, error) {
	if transcript == "" {
		return "", model.NewInvalidRequestError("トランスクリプトを指定してください")
	}
	if subjectLanguage == "" {
		subjectLanguage = "the language of the transcript"
	}
	if feedbackLanguage == "" {
		feedbackLanguage = "English"
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []openai.ChatMessage{
		{Role: "system", Content: fmt.Sprintf(systemPromptFormat, subjectLanguage)},
		{Role: "system", Content: fmt.Sprintf(responseLanguagePromptFormat, feedbackLanguage)},
		{Role: "user", Content: transcript},
	}

	start := time.Now()
	result, err := s.chat.CreateChatCompletion(ctx, messages)
	if s.collector != nil {
		s.collector.RecordPracticeLatency("feedback", time.Since(start))
		s.collector.RecordFeedback(err == nil)
	}
	if err != nil {
		slog.Error("feedback generation failed",
			slog.String("subject_language", subjectLanguage),
			slog.String("feedback_language", feedbackLanguage),
			slog.String("error", err.Error()),
		)
		return "", model.NewFeedbackFailedError()
	}

	return result, nil
}
