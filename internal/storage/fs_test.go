package storage_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaflow/internal/config"
	"ideaflow/internal/storage"
)

func newFSStore(t *testing.T) *storage.FSStore {
	t.Helper()
	s, err := storage.NewFSStore(t.TempDir(), "https://files.example.com/")
	require.NoError(t, err)
	return s
}

func TestFSStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)
	key := "anexos/idea-1/1700000000000_abc123.pdf"

	require.NoError(t, s.Put(ctx, key, bytes.NewReader([]byte("%PDF")), 4, "application/pdf"))
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
	assert.Equal(t, "https://files.example.com/"+key, s.URL(key))

	require.NoError(t, s.Delete(ctx, key))
	assert.ErrorIs(t, s.Delete(ctx, key), storage.ErrNotFound)
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFSStoreNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)
	key := "anexos/idea-1/a.txt"
	require.NoError(t, s.Put(ctx, key, bytes.NewReader([]byte("first")), 5, "text/plain"))
	err := s.Put(ctx, key, bytes.NewReader([]byte("second")), 6, "text/plain")
	assert.ErrorIs(t, err, storage.ErrExists)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "first", string(data))
}

func TestFSStoreListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)
	for _, k := range []string{"anexos/a/1.txt", "anexos/b/2.txt", "other/3.txt"} {
		require.NoError(t, s.Put(ctx, k, bytes.NewReader([]byte("x")), 1, "text/plain"))
	}
	keys, err := s.List(ctx, "anexos/")
	require.NoError(t, err)
	assert.Equal(t, []string{"anexos/a/1.txt", "anexos/b/2.txt"}, keys)
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s := newFSStore(t)
	for _, k := range []string{"", "../etc/passwd", "anexos/../../x", "a\\b"} {
		err := s.Put(ctx, k, bytes.NewReader(nil), 0, "text/plain")
		assert.Error(t, err, k)
	}
}

func TestNewResolvesDrivers(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().Storage
	s, err := storage.New(ctx, cfg, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &storage.FSStore{}, s)

	cfg.Driver = "minio"
	cfg.Minio.Endpoint = ""
	_, err = storage.New(ctx, cfg, t.TempDir())
	assert.Error(t, err)

	cfg.Driver = "s4"
	_, err = storage.New(ctx, cfg, t.TempDir())
	assert.Error(t, err)
}
