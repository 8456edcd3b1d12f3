package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"), make([]byte, 64)...)
	gifBytes = append([]byte("GIF89a\x01\x00\x01\x00\x80\x00\x00"), make([]byte, 32)...)
)

func newStore(t *testing.T, maxSize int64) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"), "/uploads/", maxSize)
	require.NoError(t, err)
	return s
}

func TestUploadStoresImage(t *testing.T) {
	s := newStore(t, 1<<20)

	asset, err := s.Upload(context.Background(), bytes.NewReader(pngBytes))
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, int64(len(pngBytes)), asset.Size)
	assert.True(t, strings.HasSuffix(asset.ID, ".png"), asset.ID)
	assert.Equal(t, "/uploads/"+asset.ID, asset.URL)
	assert.True(t, ValidID(asset.ID))

	data, err := os.ReadFile(filepath.Join(s.Dir(), asset.ID))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	stat, err := s.Stat(context.Background(), asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset, stat)
}

func TestUploadRejectsNonImage(t *testing.T) {
	s := newStore(t, 1<<20)

	_, err := s.Upload(context.Background(), strings.NewReader("<svg xmlns=\"http://www.w3.org/2000/svg\"><script>alert(1)</script></svg>"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Upload(context.Background(), strings.NewReader("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave nothing behind")
}

func TestUploadRejectsLargeFile(t *testing.T) {
	s := newStore(t, int64(len(gifBytes)-1))

	_, err := s.Upload(context.Background(), bytes.NewReader(gifBytes))
	assert.ErrorIs(t, err, ErrTooLarge)

	s = newStore(t, int64(len(gifBytes)))
	_, err = s.Upload(context.Background(), bytes.NewReader(gifBytes))
	assert.NoError(t, err, "a file exactly at the limit is accepted")
}

func TestDestroy(t *testing.T) {
	s := newStore(t, 1<<20)
	asset, err := s.Upload(context.Background(), bytes.NewReader(gifBytes))
	require.NoError(t, err)

	require.NoError(t, s.Destroy(context.Background(), asset.ID))
	assert.ErrorIs(t, s.Destroy(context.Background(), asset.ID), ErrNotFound)
	_, err = s.Stat(context.Background(), asset.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDestroyRejectsTraversal(t *testing.T) {
	s := newStore(t, 1<<20)
	outside := filepath.Join(filepath.Dir(s.Dir()), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	for _, id := range []string{"../secret.txt", "..", ".", "", "/etc/passwd", ".upload-123"} {
		assert.ErrorIs(t, s.Destroy(context.Background(), id), ErrNotFound, id)
	}
	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("0b5e1f7e-4d1c-4a51-9b55-3c8f5c8c2b7a.png"))
	assert.True(t, ValidID("0b5e1f7e-4d1c-4a51-9b55-3c8f5c8c2b7a"))
	assert.False(t, ValidID("0b5e1f7e-4d1c-4a51-9b55-3c8f5c8c2b7a.PNG"))
	assert.False(t, ValidID("0b5e1f7e-4d1c-4a51-9b55-3c8f5c8c2b7a.png/.."))
	assert.False(t, ValidID("{0b5e1f7e-4d1c-4a51-9b55-3c8f5c8c2b7a}.png"))
	assert.False(t, ValidID("not-a-uuid.png"))
}
