// Package cleanup はアップロード音声ファイルの自動削除ジョブを提供する。
// 文字起こし処理は完了後にファイルを削除するが、プロセス停止や
// panic等で残留したファイルを定期バッチで回収する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanupJob は保持期間を超過したアップロードファイルの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	uploadDir string
	logger    *slog.Logger
	Retention time.Duration // ファイルの保持期間
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(uploadDir string, logger *slog.Logger, retention time.Duration) *CleanupJob {
	return &CleanupJob{
		uploadDir: uploadDir,
		logger:    logger,
		Retention: retention,
	}
}

// Run は更新時刻がRetentionより古いファイルを削除する。
// サブディレクトリには降りない（アップロードはフラットに保存される）。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := start.Add(-j.Retention)

	entries, err := os.ReadDir(j.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		j.logger.Error("アップロードディレクトリの読み取りに失敗しました",
			slog.String("upload_dir", j.uploadDir),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read upload dir: %w", err)
	}

	var deletedCount int
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.uploadDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("残留ファイルの削除に失敗しました",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		deletedCount++
	}

	j.logger.Info("アップロードクリーンアップジョブが完了しました",
		slog.Int("deleted_count", deletedCount),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はクリーンアップジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("アップロードクリーンアップジョブを開始しました",
		slog.String("upload_dir", j.uploadDir),
		slog.Duration("interval", interval),
		slog.Duration("retention", j.Retention),
	)

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}
