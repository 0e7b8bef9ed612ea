package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/config"
	"github.com/sitebook/sitebook-api/internal/storage"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	path, size, err := s.Upload(ctx, "reports/P-100", "summary.CSV", "text/csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
	assert.True(t, strings.HasPrefix(path, "reports/P-100/"), path)
	assert.True(t, strings.HasSuffix(path, ".csv"), path)

	rc, err := s.Download(ctx, path)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(body))

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Download(ctx, path)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, path))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = s.Download(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)

	_, _, err = s.Upload(ctx, "reports/../..", "x.csv", "text/csv", strings.NewReader("x"))
	assert.NoError(t, err, "cleaned prefixes stay under the root")

	assert.ErrorIs(t, s.Delete(ctx, ""), storage.ErrInvalidPath)
}

func TestNewStorage_Modes(t *testing.T) {
	s, err := storage.NewStorage(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, s)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "azure"}, zap.NewNop())
	assert.ErrorContains(t, err, "connection string")

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "ftp"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported storage mode")
}
