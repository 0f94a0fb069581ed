package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileDocument はYAMLファイルの構造。
type fileDocument struct {
	Items map[string]string `yaml:"items"`
}

// FileStorage はYAMLファイルに保存するStorage実装。
// CLIクライアントの認証トークンとテーマをプロセスをまたいで保持する。
type FileStorage struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	items map[string]string
}

// NewFileStorage はpathのファイルを読み込んでFileStorageを生成する。
// ファイルが存在しない場合は空の状態から開始する。
func NewFileStorage(path string, logger *slog.Logger) (*FileStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsys := &FileStorage{
		path:   path,
		logger: logger,
		items:  make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fsys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	for k, v := range doc.Items {
		fsys.items[k] = v
	}

	return fsys, nil
}

// Path は保存先のファイルパスを返す。
func (f *FileStorage) Path() string {
	return f.path
}

// GetItem は指定キーの値を返す。
func (f *FileStorage) GetItem(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[key]
	return v, ok
}

// SetItem は指定キーに値を保存し、ファイルへ書き出す。
func (f *FileStorage) SetItem(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.items[key]
	f.items[key] = value
	if err := f.flushLocked(); err != nil {
		if had {
			f.items[key] = prev
		} else {
			delete(f.items, key)
		}
		return err
	}
	return nil
}

// RemoveItem は指定キーを削除し、ファイルへ書き出す。
func (f *FileStorage) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.items[key]
	if !had {
		return nil
	}
	delete(f.items, key)
	if err := f.flushLocked(); err != nil {
		f.items[key] = prev
		return err
	}
	return nil
}

// flushLocked は一時ファイルに書き出してからリネームする。
// 認証トークンを含むため、パーミッションは0600とする。
func (f *FileStorage) flushLocked() error {
	data, err := yaml.Marshal(fileDocument{Items: f.items})
	if err != nil {
		return fmt.Errorf("failed to encode state file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	f.logger.Debug("状態ファイルを書き込みました",
		slog.String("path", f.path),
		slog.Int("keys", len(f.items)),
	)
	return nil
}

// compile-time interface check
var _ Storage = (*FileStorage)(nil)
