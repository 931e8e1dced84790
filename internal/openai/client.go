// Package openai はOpenAI APIのクライアントを提供する。
// 音声文字起こし（audio/transcriptions）とチャット補完（chat/completions）の
// 2エンドポイントのみを扱う薄いクライアント。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Segment は文字起こし結果の1セグメント。開始・終了は秒。
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription は文字起こし結果の全体。
type Transcription struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// ChatMessage はチャット補完の1メッセージ。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client はOpenAI APIのクライアント。
// baseURLはテスト時にhttptestサーバーへ差し替え可能。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	apiKey      string
	baseURL     string
	speechModel string
	chatModel   string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, baseURL, speechModel, chatModel string) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		apiKey:      apiKey,
		baseURL:     baseURL,
		speechModel: speechModel,
		chatModel:   chatModel,
	}
}

// Transcribe は音声ファイルをセグメント付きで文字起こしする。
// languageはISO-639-1コード。APIへはverbose_jsonフォーマットで
// セグメント粒度のタイムスタンプを要求する。
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (*Transcription, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy audio file: %w", err)
	}

	fields := map[string]string{
		"model":                     c.speechModel,
		"language":                  language,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result Transcription
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateChatCompletion はチャット補完を実行し、最初の選択肢の本文を返す。
func (c *Client) CreateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	payload := struct {
		Model    string        `json:"model"`
		Messages []ChatMessage `json:"messages"`
	}{
		Model:    c.chatModel,
		Messages: messages,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Choices []struct {
			Message ChatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// do はリクエストを実行してJSONレスポンスをデコードする。
// 非2xx応答はエラー本文の先頭部分をログに残した上でエラーを返す。
// 上流のエラー詳細は戻り値のエラーメッセージに含めない（ログ参照）。
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("openai request failed",
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to call openai api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.logger.Error("openai returned error status",
			slog.String("path", req.URL.Path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("detail", string(detail)),
		)
		return fmt.Errorf("openai api returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode openai response: %w", err)
	}
	return nil
}
