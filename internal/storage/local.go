// Package storage はアップロードされた画像ファイルの保存先を提供します。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrNotFound は指定したアセットが存在しないことを表します。
	ErrNotFound = errors.New("asset not found")
	// ErrUnsupportedType は画像以外のファイルであることを表します。
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrTooLarge はサイズ上限を超えたことを表します。
	ErrTooLarge = errors.New("file too large")
)

// 受け付ける画像形式。SVG はスクリプトを含められるため対象外。
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
}

// Asset は保存済みのファイルです。ID は保存先でのファイル名をそのまま使います。
type Asset struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// AssetStore はアセットの保存と削除を行います。
type AssetStore interface {
	Upload(ctx context.Context, r io.Reader) (*Asset, error)
	Destroy(ctx context.Context, id string) error
	Stat(ctx context.Context, id string) (*Asset, error)
}

// LocalStore はローカルディレクトリにアセットを保存します。
// 保存先: <dir>/<uuid><拡張子>
type LocalStore struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewLocalStore は LocalStore を作成し、保存先ディレクトリを用意します。
// baseURL は公開 URL の接頭辞です（例: /uploads）。
func NewLocalStore(dir, baseURL string, maxSize int64) (*LocalStore, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		maxSize: maxSize,
	}, nil
}

// Dir は保存先ディレクトリを返します。
func (s *LocalStore) Dir() string {
	return s.dir
}

// Upload は r の内容を検査して保存します。拡張子は内容から判定します。
func (s *LocalStore) Upload(ctx context.Context, r io.Reader) (*Asset, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, io.LimitReader(r, s.maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	if size > s.maxSize {
		return nil, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mtype, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}
	contentType := baseType(mtype.String())
	if !allowedTypes[contentType] {
		return nil, ErrUnsupportedType
	}

	id := uuid.NewString() + mtype.Extension()
	if err := os.Rename(tmpPath, filepath.Join(s.dir, id)); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	return &Asset{
		ID:          id,
		URL:         s.url(id),
		ContentType: contentType,
		Size:        size,
	}, nil
}

// Destroy はアセットを削除します。存在しない場合は ErrNotFound を返します。
func (s *LocalStore) Destroy(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// Stat はアセットの情報を返します。
func (s *LocalStore) Stat(ctx context.Context, id string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat asset: %w", err)
	}
	mtype, err := mimetype.DetectFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}
	return &Asset{
		ID:          id,
		URL:         s.url(id),
		ContentType: baseType(mtype.String()),
		Size:        info.Size(),
	}, nil
}

// path は ID を検証して保存先のパスに変換します。
// ディレクトリ区切りや隠しファイルを指す ID は存在しないものとして扱います。
func (s *LocalStore) path(id string) (string, error) {
	if !ValidID(id) {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, id), nil
}

func (s *LocalStore) url(id string) string {
	return path.Join(s.baseURL, id)
}

// ValidID は ID がアップロードで発行され得る形式かどうかを返します。
func ValidID(id string) bool {
	if id == "" || strings.HasPrefix(id, ".") || len(id) > 64 {
		return false
	}
	name, ext, _ := strings.Cut(id, ".")
	if err := uuid.Validate(name); err != nil || len(name) != 36 {
		return false
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func baseType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(t)
}
