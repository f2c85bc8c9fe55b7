package pkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageStoreAndDelete(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStorage(root, "/static/uploads/", 16)
	ctx := context.Background()

	stored, err := s.Store(ctx, strings.NewReader("cover"), "Cover.PNG", "fandoms/covers")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "/static/uploads/fandoms/covers/"))
	assert.True(t, strings.HasSuffix(stored, ".png"))
	assert.True(t, s.Owns(stored))

	onDisk := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(stored, "/static/uploads/")))
	b, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "cover", string(b))

	require.NoError(t, s.Delete(ctx, stored))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	// 重复删除幂等
	assert.NoError(t, s.Delete(ctx, stored))
}

func TestLocalStorageRejectsLargeFile(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "/u", 4)
	_, err := s.Store(context.Background(), strings.NewReader("too large"), "a.txt", "posts")
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestLocalStorageIgnoresForeignURL(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "/u", 4)
	assert.False(t, s.Owns("https://cdn.example.com/logo.png"))
	assert.NoError(t, s.Delete(context.Background(), "https://cdn.example.com/logo.png"))
}

func TestCleanFolder(t *testing.T) {
	assert.Equal(t, "misc", cleanFolder(""))
	assert.Equal(t, "etc", cleanFolder("../../etc"))
	assert.Equal(t, "posts/media", cleanFolder("/posts/media/"))
}
