package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePut(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFileStore(root)
	require.NoError(t, err)

	ref, err := fs.Put(context.Background(), "ep_abc/chunk_0000.mp3", []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ep_abc", "chunk_0000.mp3"), ref)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestFileStoreOverwrites(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = fs.Put(ctx, "ep/chunk_0001.mp3", []byte("old"))
	require.NoError(t, err)
	ref, err := fs.Put(ctx, "ep/chunk_0001.mp3", []byte("new"))
	require.NoError(t, err)
	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../outside.mp3", "ep/../../x"} {
		_, err := fs.Put(context.Background(), key, []byte("x"))
		assert.Error(t, err, "key %q", key)
	}
}

func TestFileStoreCancelled(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = fs.Put(ctx, "ep/chunk_0000.mp3", []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
}
