package mirror

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/record/memory"
)

func TestUnloadWritesOneFilePerRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Upsert(ctx, "questions", "q1", questionDoc()))

	dir := t.TempDir()
	reports, err := New(dir, store, nil).Unload(ctx, "questions")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Processed)
	assert.Empty(t, reports[0].Failures)

	entries, err := os.ReadDir(filepath.Join(dir, "questions"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q1.yaml", entries[0].Name())

	body, err := os.ReadFile(filepath.Join(dir, "questions", "q1.yaml"))
	require.NoError(t, err)

	// The file must not carry the _id key itself; nested keys like
	// mp_id are fine.
	var onDisk map[string]any
	require.NoError(t, yaml.Unmarshal(body, &onDisk))
	assert.NotContains(t, onDisk, "_id")
	assert.False(t, strings.HasPrefix(string(body), "_id:"))
	assert.NotContains(t, string(body), "\n_id:")
}

func TestUnloadIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Upsert(ctx, "questions", "q1", questionDoc()))

	dir := t.TempDir()
	m := New(dir, store, nil)

	_, err := m.Unload(ctx, "questions")
	require.NoError(t, err)
	first, err := os.ReadFile(filepath.Join(dir, "questions", "q1.yaml"))
	require.NoError(t, err)

	_, err = m.Unload(ctx, "questions")
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(dir, "questions", "q1.yaml"))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestLoadRestoresDeletedRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Upsert(ctx, "questions", "q1", questionDoc()))

	original, found, err := store.Get(ctx, "questions", "q1")
	require.NoError(t, err)
	require.True(t, found)

	dir := t.TempDir()
	m := New(dir, store, nil)
	_, err = m.Unload(ctx, "questions")
	require.NoError(t, err)

	store.Delete(ctx, "questions", "q1")
	_, found, err = store.Get(ctx, "questions", "q1")
	require.NoError(t, err)
	require.False(t, found)

	reports, err := m.Load(ctx, "questions")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Processed)

	restored, found, err := store.Get(ctx, "questions", "q1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, original, restored)
}

func TestLoadIsolatesMalformedFiles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	head := filepath.Join(dir, "questions")
	require.NoError(t, os.MkdirAll(head, 0o755))

	writeMirrorFile(t, head, "q1.yaml", "date: \"2020-05-01\"\nheading: H\n")
	writeMirrorFile(t, head, "broken.yaml", "{[not yaml\n")
	writeMirrorFile(t, head, "imposter.yaml", "_id: somebody-else\nheading: X\n")

	store := memory.New()
	reports, err := New(dir, store, nil).Load(ctx, "questions")
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.Equal(t, 1, reports[0].Processed)
	require.Len(t, reports[0].Failures, 2)
	files := []string{reports[0].Failures[0].File, reports[0].Failures[1].File}
	assert.Contains(t, files, filepath.Join("questions", "broken.yaml"))
	assert.Contains(t, files, filepath.Join("questions", "imposter.yaml"))

	_, found, err := store.Get(ctx, "questions", "q1")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = store.Get(ctx, "questions", "imposter")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadAcceptsMatchingInBodyID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	head := filepath.Join(dir, "mps")
	require.NoError(t, os.MkdirAll(head, 0o755))
	writeMirrorFile(t, head, "christos-christou.yaml",
		"_id: christos-christou\nname:\n  el: Χρίστος Χρίστου\n")

	store := memory.New()
	reports, err := New(dir, store, nil).Load(ctx, "mps")
	require.NoError(t, err)
	assert.Equal(t, 1, reports[0].Processed)
	assert.Empty(t, reports[0].Failures)
}

func TestLoadMissingDirectoryIsEmpty(t *testing.T) {
	t.Parallel()

	reports, err := New(t.TempDir(), memory.New(), nil).Load(context.Background(), "bills")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].Processed)
}

type failingStore struct {
	memory.Store
}

func (f *failingStore) Upsert(context.Context, string, string, record.Doc) error {
	return &record.StoreError{Collection: "questions", Op: "upsert", Err: errors.New("connection refused")}
}

func TestLoadAbortsOnStoreFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	head := filepath.Join(dir, "questions")
	require.NoError(t, os.MkdirAll(head, 0o755))
	writeMirrorFile(t, head, "q1.yaml", "heading: H\n")

	_, err := New(dir, &failingStore{}, nil).Load(context.Background(), "questions")
	require.Error(t, err)

	var se *record.StoreError
	assert.ErrorAs(t, err, &se)
}

func writeMirrorFile(t *testing.T, head, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(head, name), []byte(body), 0o644))
}
