package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/hitoshi/talktome/internal/middleware"
	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/transcribe"
)

// TranscribeServiceInterface は文字起こしハンドラーが必要とするサービスインターフェース。
type TranscribeServiceInterface interface {
	// Transcribe は音声ファイルを文字起こしし、話者ラベル付きトランスクリプトを返す。
	Transcribe(ctx context.Context, audioPath, originalFilename, language string) (*transcribe.Result, error)
}

// FeedbackServiceInterface はフィードバックハンドラーが必要とするサービスインターフェース。
type FeedbackServiceInterface interface {
	// Generate はトランスクリプトへの学習フィードバックを生成する。
	// subjectLanguageは練習対象の言語、feedbackLanguageは応答言語。
	Generate(ctx context.Context, transcript, subjectLanguage, feedbackLanguage string) (string, error)
}

// PracticeHandlerConfig は練習系ハンドラーの設定。
type PracticeHandlerConfig struct {
	// UploadDir はアップロード音声の一時保存先。
	UploadDir string
	// UploadMaxSize はアップロードの最大バイト数。
	UploadMaxSize int64
}

// PracticeHandler は会話練習（文字起こし・フィードバック）のHTTPハンドラー。
type PracticeHandler struct {
	transcriber TranscribeServiceInterface
	feedback    FeedbackServiceInterface
	config      PracticeHandlerConfig
}

// NewPracticeHandler はPracticeHandlerを生成する。
func NewPracticeHandler(transcriber TranscribeServiceInterface, feedback FeedbackServiceInterface, config PracticeHandlerConfig) *PracticeHandler {
	return &PracticeHandler{
		transcriber: transcriber,
		feedback:    feedback,
		config:      config,
	}
}

// feedbackRequest はフィードバック生成リクエストのボディ。
type feedbackRequest struct {
	Transcript       string `json:"transcript"`
	Language         string `json:"language"`
	FeedbackLanguage string `json:"feedbackLanguage"`
}

// Transcribe は音声アップロードの文字起こしを処理する。
// multipart/form-dataのaudioフィールドにファイル、languageフィールドに言語を受け取る。
// POST /api/transcribe
func (h *PracticeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.UploadMaxSize)

	file, header, err := r.FormFile("audio")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.WriteErrorResponse(w, http.StatusRequestEntityTooLarge,
				model.NewInvalidRequestError("音声ファイルが大きすぎます"))
			return
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("audioフィールドに音声ファイルを指定してください"))
		return
	}
	defer file.Close()

	// 外部API呼び出し前にフォーマットを検査する（保存前の早期拒否）
	if err := transcribe.ValidateFormat(header.Filename); err != nil {
		handleServiceError(w, err)
		return
	}

	audioPath, err := h.saveUpload(file, header.Filename)
	if err != nil {
		slog.Error("failed to save uploaded audio",
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	result, err := h.transcriber.Transcribe(r.Context(), audioPath, header.Filename, r.FormValue("language"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"transcript": result.Transcript,
		"language":   result.Language,
	})
}

// Feedback はトランスクリプトへのフィードバック生成を処理する。
// POST /api/get-feedback
func (h *PracticeHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	// feedbackLanguage未指定時は練習対象の言語で応答する
	feedbackLanguage := req.FeedbackLanguage
	if feedbackLanguage == "" {
		feedbackLanguage = req.Language
	}

	result, err := h.feedback.Generate(r.Context(), req.Transcript, req.Language, feedbackLanguage)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"feedback": result})
}

// saveUpload はアップロードされた音声を一時ファイルとして保存し、パスを返す。
// ファイル名の衝突を避けるためUUIDを使い、元の拡張子のみ引き継ぐ。
func (h *PracticeHandler) saveUpload(file io.Reader, originalFilename string) (string, error) {
	if err := os.MkdirAll(h.config.UploadDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(h.config.UploadDir, uuid.New().String()+filepath.Ext(originalFilename))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	return path, nil
}
