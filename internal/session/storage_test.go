package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, storage TokenStorage) {
	t.Helper()
	ctx := context.Background()

	token, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, storage.Save(ctx, "abc.def.ghi"))
	token, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, storage.Clear(ctx))
	require.NoError(t, storage.Clear(ctx))
	token, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStoragePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", TokenKey)
	exerciseStorage(t, NewFileStorage(path, ""))
}

func TestFileStorageSealed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), TokenKey)
	storage := NewFileStorage(path, "seal-key")
	exerciseStorage(t, storage)

	require.NoError(t, storage.Save(ctx, "secret-token"))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), sealedPrefix))
	assert.NotContains(t, string(raw), "secret-token")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = NewFileStorage(path, "other-key").Load(ctx)
	assert.ErrorIs(t, err, ErrSealedToken)
	_, err = NewFileStorage(path, "").Load(ctx)
	assert.ErrorIs(t, err, ErrSealedToken)
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	storage := NewRedisStorage(client, "console", time.Hour)
	exerciseStorage(t, storage)

	require.NoError(t, storage.Save(context.Background(), "tok"))
	assert.True(t, mr.Exists("console:"+TokenKey))
	assert.Equal(t, time.Hour, mr.TTL("console:"+TokenKey))
}
