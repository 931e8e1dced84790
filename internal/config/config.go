// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	SpeechModel   string
	ChatModel     string

	// Session
	SessionTTL time.Duration

	// Practice (transcription / feedback)
	TranscribeTimeout time.Duration
	FeedbackTimeout   time.Duration
	UploadDir         string
	UploadMaxSize     int64
	UploadRetention   time.Duration

	// Rate Limit (req/min/user)
	RateLimitGeneral int
	RateLimitMessage int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.SpeechModel = getEnvString("SPEECH_MODEL", "whisper-1")
	cfg.ChatModel = getEnvString("CHAT_MODEL", "gpt-3.5-turbo")
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 24*time.Hour)
	cfg.TranscribeTimeout = getEnvDuration("TRANSCRIBE_TIMEOUT", 60*time.Second)
	cfg.FeedbackTimeout = getEnvDuration("FEEDBACK_TIMEOUT", 30*time.Second)
	cfg.UploadDir = getEnvString("UPLOAD_DIR", filepath.Join(os.TempDir(), "talktome-uploads"))
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 26214400) // Whisper APIの上限25MB
	cfg.UploadRetention = getEnvDuration("UPLOAD_RETENTION", time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMessage = getEnvInt("RATE_LIMIT_MESSAGE", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
