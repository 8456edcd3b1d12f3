package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
)

// Store はプロジェクト情報の保存先です。
type Store interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (*Project, error)
	// Update は fn でプロジェクトを書き換えて保存します。fn がエラーを返した場合は保存しません。
	Update(ctx context.Context, id string, fn func(*Project) error) (*Project, error)
}

// FileStore は JSON 配列 1 ファイルにすべてのプロジェクトを保存します。
// 読み込みから書き戻しまでをミューテックスで直列化し、書き込みは一時ファイル経由で置き換えます。
type FileStore struct {
	path  string
	clock clock.Clock
	mu    sync.Mutex
}

// NewFileStore は FileStore を作成します。ファイルが存在しない場合は空として扱います。
func NewFileStore(path string, c clock.Clock) *FileStore {
	if c == nil {
		c = clock.Real{}
	}
	return &FileStore{path: path, clock: c}
}

func (s *FileStore) List(ctx context.Context) ([]Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []Project{}
	}
	return items, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			p := items[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) Update(ctx context.Context, id string, fn func(*Project) error) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range items {
		if items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}

	updated := items[idx]
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.ID = id
	updated.UpdatedAt = s.clock.Now().UTC()
	items[idx] = updated

	if err := s.save(items); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *FileStore) load() ([]Project, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var items []Project
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse projects: %w", err)
	}
	return items, nil
}

func (s *FileStore) save(items []Project) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".projects-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode projects: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync projects: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace projects: %w", err)
	}
	return nil
}
