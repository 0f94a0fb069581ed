// Package storage はクライアント側の永続キーバリューストレージを提供する。
// 認証トークンとテーマ設定の保存に使用する。
package storage

import "sync"

// 永続化キー
const (
	// KeyAuthToken は認証トークンの保存キー。
	KeyAuthToken = "auth_token"
	// KeyTheme はテーマ設定の保存キー。
	KeyTheme = "theme"
)

// Storage は永続キーバリューストレージのインターフェース。
// 書き込みは後勝ちで、ロックによる調停は行わない。
type Storage interface {
	// GetItem は指定キーの値を返す。存在しない場合はfalseを返す。
	GetItem(key string) (string, bool)
	// SetItem は指定キーに値を保存する。
	SetItem(key, value string) error
	// RemoveItem は指定キーを削除する。存在しない場合も成功とする。
	RemoveItem(key string) error
}

// MemoryStorage はプロセス内でのみ保持するStorage実装。
// テストと一時的なCLI実行で使用する。
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage は空のMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

// GetItem は指定キーの値を返す。
func (m *MemoryStorage) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// SetItem は指定キーに値を保存する。
func (m *MemoryStorage) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// RemoveItem は指定キーを削除する。
func (m *MemoryStorage) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// compile-time interface check
var _ Storage = (*MemoryStorage)(nil)
