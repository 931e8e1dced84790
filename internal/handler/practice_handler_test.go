package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/transcribe"
)

type mockTranscribeService struct {
	transcribeFn func(ctx context.Context, audioPath, originalFilename, language string) (*transcribe.Result, error)
}

func (m *mockTranscribeService) Transcribe(ctx context.Context, audioPath, originalFilename, language string) (*transcribe.Result, error) {
	if m.transcribeFn != nil {
		return m.transcribeFn(ctx, audioPath, originalFilename, language)
	}
	return &transcribe.Result{}, nil
}

type mockFeedbackService struct {
	generateFn func(ctx context.Context, transcript, subjectLanguage, feedbackLanguage string) (string, error)
}

func (m *mockFeedbackService) Generate(ctx context.Context, transcript, subjectLanguage, feedbackLanguage string) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, transcript, subjectLanguage, feedbackLanguage)
	}
	return "", nil
}

func newPracticeHandler(t *testing.T, ts TranscribeServiceInterface, fs FeedbackServiceInterface) *PracticeHandler {
	t.Helper()
	return NewPracticeHandler(ts, fs, PracticeHandlerConfig{
		UploadDir:     t.TempDir(),
		UploadMaxSize: 1 << 20,
	})
}

func multipartAudioRequest(t *testing.T, filename, language string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	part.Write(content)
	if language != "" {
		writer.WriteField("language", language)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// アップロードが保存されサービスへ渡り、トランスクリプトが返ることを検証
func TestPracticeHandler_Transcribe(t *testing.T) {
	var gotPath, gotFilename, gotLanguage string
	ts := &mockTranscribeService{
		transcribeFn: func(ctx context.Context, audioPath, originalFilename, language string) (*transcribe.Result, error) {
			gotPath, gotFilename, gotLanguage = audioPath, originalFilename, language
			if _, err := os.Stat(audioPath); err != nil {
				t.Errorf("saved upload should exist at %s: %v", audioPath, err)
			}
			return &transcribe.Result{Transcript: "Speaker 1: hola", Language: "es"}, nil
		},
	}
	h := newPracticeHandler(t, ts, &mockFeedbackService{})

	w := httptest.NewRecorder()
	h.Transcribe(w, multipartAudioRequest(t, "recording.mp3", "es", []byte("audio bytes")))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if gotFilename != "recording.mp3" || gotLanguage != "es" {
		t.Errorf("Transcribe(%q, %q, %q)", gotPath, gotFilename, gotLanguage)
	}
	if !strings.HasSuffix(gotPath, ".mp3") {
		t.Errorf("saved path should keep the extension: %q", gotPath)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["transcript"] != "Speaker 1: hola" || resp["language"] != "es" {
		t.Errorf("unexpected response: %v", resp)
	}
}

// 非対応フォーマットが保存前に415で拒否されることを検証
func TestPracticeHandler_Transcribe_UnsupportedFormat(t *testing.T) {
	called := false
	ts := &mockTranscribeService{
		transcribeFn: func(ctx context.Context, audioPath, originalFilename, language string) (*transcribe.Result, error) {
			called = true
			return nil, nil
		},
	}
	h := newPracticeHandler(t, ts, &mockFeedbackService{})

	w := httptest.NewRecorder()
	h.Transcribe(w, multipartAudioRequest(t, "notes.txt", "en", []byte("not audio")))

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", w.Code)
	}
	if called {
		t.Error("service must not be called for unsupported formats")
	}
}

// audioフィールド欠落が400になることを検証
func TestPracticeHandler_Transcribe_MissingFile(t *testing.T) {
	h := newPracticeHandler(t, &mockTranscribeService{}, &mockFeedbackService{})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("language", "en")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()

	h.Transcribe(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// 文字起こし失敗が502になることを検証
func TestPracticeHandler_Transcribe_UpstreamFailure(t *testing.T) {
	ts := &mockTranscribeService{
		transcribeFn: func(ctx context.Context, audioPath, originalFilename, language string) (*transcribe.Result, error) {
			return nil, model.NewTranscriptionFailedError()
		},
	}
	h := newPracticeHandler(t, ts, &mockFeedbackService{})

	w := httptest.NewRecorder()
	h.Transcribe(w, multipartAudioRequest(t, "recording.wav", "en", []byte("audio")))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

// フィードバック生成で練習対象言語と応答言語が両方サービスへ渡ることを検証
func TestPracticeHandler_Feedback(t *testing.T) {
	var gotTranscript, gotSubject, gotFeedbackLang string
	fs := &mockFeedbackService{
		generateFn: func(ctx context.Context, transcript, subjectLanguage, feedbackLanguage string) (string, error) {
			gotTranscript, gotSubject, gotFeedbackLang = transcript, subjectLanguage, feedbackLanguage
			return "Nice grammar overall.", nil
		},
	}
	h := newPracticeHandler(t, &mockTranscribeService{}, fs)

	body := `{"transcript":"Speaker 1: hello","language":"English","feedbackLanguage":"Japanese"}`
	req := httptest.NewRequest(http.MethodPost, "/api/get-feedback", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Feedback(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotTranscript != "Speaker 1: hello" || gotSubject != "English" || gotFeedbackLang != "Japanese" {
		t.Errorf("Generate(%q, %q, %q)", gotTranscript, gotSubject, gotFeedbackLang)
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["feedback"] != "Nice grammar overall." {
		t.Errorf("unexpected response: %v", resp)
	}
}

// feedbackLanguage省略時にlanguageへフォールバックすることを検証
func TestPracticeHandler_Feedback_LanguageFallback(t *testing.T) {
	var gotSubject, gotFeedbackLang string
	fs := &mockFeedbackService{
		generateFn: func(ctx context.Context, transcript, subjectLanguage, feedbackLanguage string) (string, error) {
			gotSubject, gotFeedbackLang = subjectLanguage, feedbackLanguage
			return "ok", nil
		},
	}
	h := newPracticeHandler(t, &mockTranscribeService{}, fs)

	body := `{"transcript":"t","language":"es"}`
	req := httptest.NewRequest(http.MethodPost, "/api/get-feedback", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Feedback(w, req)

	if gotSubject != "es" || gotFeedbackLang != "es" {
		t.Errorf("Generate languages = (%q, %q), want (es, es)", gotSubject, gotFeedbackLang)
	}
}

// フィードバック生成失敗が502になることを検証
func TestPracticeHandler_Feedback_UpstreamFailure(t *testing.T) {
	fs := &mockFeedbackService{
		generateFn: func(ctx context.Context, transcript, subjectLanguage, feedbackLanguage string) (string, error) {
			return "", model.NewFeedbackFailedError()
		},
	}
	h := newPracticeHandler(t, &mockTranscribeService{}, fs)

	req := httptest.NewRequest(http.MethodPost, "/api/get-feedback", strings.NewReader(`{"transcript":"t"}`))
	w := httptest.NewRecorder()

	h.Feedback(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}
