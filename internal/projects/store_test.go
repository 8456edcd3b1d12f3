package projects

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reddomeuk/cityexperts-website-sub001/internal/clock"
)

const seedProjects = `[
  {"id": "harbour-view", "title": "Harbour View", "year": 2021, "featured": true},
  {"id": "old-mill", "title": "Old Mill", "images": ["a.jpg"]}
]`

func seededStore(t *testing.T) (*FileStore, string, *clock.Manual) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "projects.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(seedProjects), 0o644))
	c := clock.NewManual(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewFileStore(path, c), path, c
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "none.json"), nil)

	items, err := store.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	_, err = store.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreGet(t *testing.T) {
	store, _, _ := seededStore(t)

	p, err := store.Get(context.Background(), "old-mill")
	require.NoError(t, err)
	assert.Equal(t, "Old Mill", p.Title)
	assert.Equal(t, []string{"a.jpg"}, p.Images)
}

func TestFileStoreUpdatePersists(t *testing.T) {
	store, path, c := seededStore(t)
	title := "Harbour View II"

	updated, err := store.Update(context.Background(), "harbour-view", Patch{Title: &title}.Apply)
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, 2021, updated.Year, "fields absent from the patch are kept")
	assert.True(t, updated.UpdatedAt.Equal(c.Now()))

	reloaded := NewFileStore(path, nil)
	p, err := reloaded.Get(context.Background(), "harbour-view")
	require.NoError(t, err)
	assert.Equal(t, title, p.Title)

	items, err := reloaded.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreUpdateRejected(t *testing.T) {
	store, path, _ := seededStore(t)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	empty := "  "
	_, err = store.Update(context.Background(), "harbour-view", Patch{Title: &empty}.Apply)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = store.Update(context.Background(), "missing", func(*Project) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("boom")
	_, err = store.Update(context.Background(), "old-mill", func(*Project) error { return boom })
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestFileStoreUpdateKeepsID(t *testing.T) {
	store, _, _ := seededStore(t)

	p, err := store.Update(context.Background(), "old-mill", func(p *Project) error {
		p.ID = "hijacked"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "old-mill", p.ID)
}

func TestFileStoreConcurrentUpdates(t *testing.T) {
	store, _, _ := seededStore(t)

	const writers = 40
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(context.Background(), "harbour-view", func(p *Project) error {
				p.Year++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := store.Get(context.Background(), "harbour-view")
	require.NoError(t, err)
	assert.Equal(t, 2021+writers, p.Year)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path, nil).List(context.Background())
	assert.Error(t, err)
}

func TestFileStoreCanceledContext(t *testing.T) {
	store, _, _ := seededStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPatchApply(t *testing.T) {
	str := func(s string) *string { return &s }
	year := func(y int) *int { return &y }

	cases := []struct {
		name    string
		patch   Patch
		wantErr bool
	}{
		{"empty patch", Patch{}, false},
		{"title", Patch{Title: str("New")}, false},
		{"blank title", Patch{Title: str("")}, true},
		{"slug", Patch{Slug: str("old-mill-2")}, false},
		{"bad slug", Patch{Slug: str("Old Mill")}, true},
		{"year", Patch{Year: year(1999)}, false},
		{"negative year", Patch{Year: year(-1)}, true},
		{"blank image", Patch{Images: &[]string{"a.jpg", ""}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Project{ID: "x", Title: "Original"}
			err := tc.patch.Apply(&p)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
				assert.Equal(t, "Original", p.Title)
				return
			}
			assert.NoError(t, err)
		})
	}
}
