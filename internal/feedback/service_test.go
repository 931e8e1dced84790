package feedback

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/openai"
)

type mockChat struct {
	createFn func(ctx context.Context, messages []openai.ChatMessage) (string, error)
}

func (m *mockChat) CreateChatCompletion(ctx context.Context, messages []openai.ChatMessage) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, messages)
	}
	return "", nil
}

// 指示文に評価観点と練習対象言語、応答言語の指定が含まれることを検証
func TestService_Generate_PromptContents(t *testing.T) {
	var gotMessages []openai.ChatMessage
	chat := &mockChat{
		createFn: func(ctx context.Context, messages []openai.ChatMessage) (string, error) {
			gotMessages = messages
			return "¡Buen trabajo!", nil
		},
	}
	svc := NewService(chat, nil, time.Minute)

	result, err := svc.Generate(context.Background(), "Speaker 1: hola", "Spanish", "English")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if result != "¡Buen trabajo!" {
		t.Errorf("result = %q", result)
	}

	if len(gotMessages) != 3 {
		t.Fatalf("messages = %d, want 3", len(gotMessages))
	}
	system := gotMessages[0]
	if system.Role != "system" {
		t.Errorf("first message role = %q, want system", system.Role)
	}
	for _, aspect := range []string{"structure", "grammar", "vocabulary", "tone"} {
		if !strings.Contains(system.Content, aspect) {
			t.Errorf("system prompt should mention %q", aspect)
		}
	}
	if !strings.Contains(system.Content, "Spanish") {
		t.Error("system prompt should name the practiced language")
	}
	if gotMessages[1].Role != "system" || !strings.Contains(gotMessages[1].Content, "English") {
		t.Errorf("second system message should pin the response language: %+v", gotMessages[1])
	}
	if gotMessages[2].Role != "user" || gotMessages[2].Content != "Speaker 1: hola" {
		t.Errorf("unexpected user message: %+v", gotMessages[2])
	}
}

// 練習対象言語と応答言語が異なる場合に両方がプロンプトへ渡ることを検証
func TestService_Generate_SubjectLanguageThreaded(t *testing.T) {
	var gotMessages []openai.ChatMessage
	chat := &mockChat{
		createFn: func(ctx context.Context, messages []openai.ChatMessage) (string, error) {
			gotMessages = messages
			return "ok", nil
		},
	}
	svc := NewService(chat, nil, time.Minute)

	if _, err := svc.Generate(context.Background(), "Speaker 1: こんにちは", "Japanese", "English"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	var namesSubject bool
	for _, m := range gotMessages {
		if m.Role == "system" && strings.Contains(m.Content, "Japanese") {
			namesSubject = true
		}
	}
	if !namesSubject {
		t.Error("a system message must name the practiced language")
	}
}

// 言語未指定時のフォールバックを検証（応答言語はEnglish）
func TestService_Generate_DefaultLanguages(t *testing.T) {
	var gotMessages []openai.ChatMessage
	chat := &mockChat{
		createFn: func(ctx context.Context, messages []openai.ChatMessage) (string, error) {
			gotMessages = messages
			return "ok", nil
		},
	}
	svc := NewService(chat, nil, time.Minute)

	if _, err := svc.Generate(context.Background(), "transcript", "", ""); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(gotMessages[1].Content, "English") {
		t.Error("response language should default to English")
	}
}

// 空トランスクリプトがInvalidRequestになることを検証
func TestService_Generate_EmptyTranscript(t *testing.T) {
	svc := NewService(&mockChat{}, nil, time.Minute)

	_, err := svc.Generate(context.Background(), "", "Spanish", "English")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
}

// 外部APIの失敗が詳細を伏せたFeedbackFailedになることを検証
func TestService_Generate_UpstreamFailure(t *testing.T) {
	chat := &mockChat{
		createFn: func(ctx context.Context, messages []openai.ChatMessage) (string, error) {
			return "", errors.New("openai api returned status 429")
		},
	}
	svc := NewService(chat, nil, time.Minute)

	_, err := svc.Generate(context.Background(), "transcript", "Spanish", "English")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedbackFailed {
		t.Fatalf("expected FEEDBACK_FAILED, got %v", err)
	}
	if strings.Contains(apiErr.Message, "429") {
		t.Error("upstream error detail must not leak into the response")
	}
}
