// Package transcribe は音声ファイルの文字起こしと話者ラベル付与を提供する。
package transcribe

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/hitoshi/talktome/internal/metrics"
	"github.com/hitoshi/talktome/internal/model"
	"github.com/hitoshi/talktome/internal/openai"
)

// allowedExtensions は受け付ける音声フォーマットの拡張子。
// 文字起こしAPIがサポートするフォーマットに合わせている。
var allowedExtensions = map[string]struct{}{
	".flac": {},
	".m4a":  {},
	".mp3":  {},
	".mp4":  {},
	".mpeg": {},
	".mpga": {},
	".oga":  {},
	".ogg":  {},
	".wav":  {},
	".webm": {},
}

// defaultLanguage は言語指定が不正または空の場合のフォールバック。
const defaultLanguage = "en"

// SpeechToText は文字起こしバックエンドのインターフェース。
// テスト時にモックに差し替え可能。
type SpeechToText interface {
	Transcribe(ctx context.Context, audioPath, language string) (*openai.Transcription, error)
}

// Result は文字起こし処理の結果。
type Result struct {
	// Transcript は話者ラベル付きのトランスクリプト。
	Transcript string
	// Language は実際にAPIへ渡した正規化済み言語コード。
	Language string
}

// Service は文字起こしのビジネスロジックを提供する。
type Service struct {
	stt       SpeechToText
	collector metrics.MetricsCollector
	timeout   time.Duration
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(stt SpeechToText, collector metrics.MetricsCollector, timeout time.Duration) *Service {
	return &Service{
		stt:       stt,
		collector: collector,
		timeout:   timeout,
	}
}

// ValidateFormat は元のファイル名の拡張子がサポート対象かを検査する。
// 外部API呼び出しの前に必ず呼ぶこと。
func ValidateFormat(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return model.NewUnsupportedFormatError(ext)
	}
	return nil
}

// NormalizeLanguage は言語指定をISO-639ベースコードへ正規化する。
// 地域付きタグ（es-MX等）はベース言語に落とす。
// パースできない場合や空の場合はdefaultLanguageを返す。
func NormalizeLanguage(input string) string {
	if input == "" {
		return defaultLanguage
	}
	tag, err := language.Parse(input)
	if err != nil {
		return defaultLanguage
	}
	base, conf := tag.Base()
	if conf == language.No {
		return defaultLanguage
	}
	return base.String()
}

// Transcribe は保存済みの音声ファイルを文字起こしし、
// 話者ラベル付きのトランスクリプトを返す。
// originalFilenameはアップロード時のファイル名で、フォーマット検査に使用する。
// 処理完了後、成否にかかわらず音声ファイルを削除する。
// 外部APIの失敗は詳細を伏せたTranscriptionFailedとして返す（詳細はログ参照）。
func (s *Service) Transcribe(ctx context.Context, audioPath, originalFilename, lang string) (*Result, error) {
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove uploaded audio file",
				slog.String("path", audioPath),
				slog.String("error", err.Error()),
			)
		}
	}()

	if err := ValidateFormat(originalFilename); err != nil {
		return nil, err
	}

	normalized := NormalizeLanguage(lang)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	transcription, err := s.stt.Transcribe(ctx, audioPath, normalized)
	if s.collector != nil {
		s.collector.RecordPracticeLatency("transcribe", time.Since(start))
		s.collector.RecordTranscription(err == nil)
	}
	if err != nil {
		slog.Error("transcription failed",
			slog.String("language", normalized),
			slog.String("error", err.Error()),
		)
		return nil, model.NewTranscriptionFailedError()
	}

	return &Result{
		Transcript: LabelSpeakers(transcription.Segments),
		Language:   normalized,
	}, nil
}
