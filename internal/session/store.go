// Package session はセッショントークンと認証済みアイデンティティの対応を管理する。
//
// ストアはインターフェースとして注入され、既定実装はプロセス内メモリに保持する。
// セッションはログアウトまたはプロセス再起動で消滅する。外部キャッシュに
// 差し替える場合もこのインターフェースの実装を追加するだけでよい。
package session

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/talktome/internal/model"
)

// Store はセッションの保存・検索・破棄のインターフェース。
type Store interface {
	// Create はセッションを登録する。
	Create(ctx context.Context, session *model.Session) error

	// Find は指定トークンのセッションを取得する。
	// 見つからない場合や期限切れの場合はnilを返す。
	// 有効なセッションは有効期限を延長する（スライディングTTL）。
	Find(ctx context.Context, token string) (*model.Session, error)

	// Delete は指定トークンのセッションを破棄する。
	// セッションが存在した場合はtrueを返す。
	Delete(ctx context.Context, token string) (bool, error)

	// RenameUser は指定ユーザーの全アクティブセッションのユーザー名を更新する。
	// プロフィール更新でのリネームをセッションに伝播させるために使用する。
	// 全セッションの線形走査になるが、このスケールでは許容範囲。
	RenameUser(ctx context.Context, userID, newUsername string) error
}

// MemoryStore はプロセス内メモリのセッションストア。
// 期限切れエントリはバックグラウンドのスイープループが回収する。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session

	ttl    time.Duration
	stopCh chan struct{}
}

// NewMemoryStore はMemoryStoreを生成し、期限切れセッションの
// バックグラウンドスイープを開始する。
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*model.Session),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// Stop はバックグラウンドスイープを停止する。
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}

// Create はセッションを登録する。ExpiresAtが未設定の場合はTTLから算出する。
// 渡された構造体はコピーして保持するため、登録後のストア内部の更新
// （リネーム伝播やTTL延長）が呼び出し側の構造体に漏れることはない。
func (s *MemoryStore) Create(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *session
	if stored.ExpiresAt.IsZero() {
		stored.ExpiresAt = time.Now().Add(s.ttl)
	}
	s.sessions[stored.Token] = &stored
	return nil
}

// Find は指定トークンのセッションを取得する。
// 期限切れセッションはその場で破棄してnilを返す。
// 有効なセッションはTTL分だけ有効期限を延長して返す。
func (s *MemoryStore) Find(ctx context.Context, token string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	if time.Now().After(session.ExpiresAt) {
		delete(s.sessions, token)
		return nil, nil
	}

	session.ExpiresAt = time.Now().Add(s.ttl)

	// 呼び出し側の変更がストア内部に影響しないようコピーを返す
	copied := *session
	return &copied, nil
}

// Delete は指定トークンのセッションを破棄する。
func (s *MemoryStore) Delete(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false, nil
	}
	delete(s.sessions, token)
	return true, nil
}

// RenameUser は指定ユーザーの全アクティブセッションのユーザー名を更新する。
func (s *MemoryStore) RenameUser(ctx context.Context, userID, newUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.UserID == userID {
			session.Username = newUsername
		}
	}
	return nil
}

// Count は現在保持しているセッション数を返す。テストおよびメトリクス用。
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// sweepLoop はバックグラウンドで期限切れセッションを定期的に回収する。
func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep は有効期限を過ぎたセッションを全て削除する。
func (s *MemoryStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

// compile-time interface check
var _ Store = (*MemoryStore)(nil)
