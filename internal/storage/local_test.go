package storage_test

import (
	"bytes"
	"context"
	"io"
	"model-release/internal/storage"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestObjectStore(t *testing.T) (*storage.LocalObjectStore, string) {
	t.Helper()
	dir := t.TempDir()
	objectStore, err := storage.NewLocalObjectStore(dir)
	require.NoError(t, err)
	return objectStore, dir
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), os.ModePerm))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestLocalObjectStorePutGet(t *testing.T) {
	store, baseDir := setupTestObjectStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutObject(ctx, "bucket", "a/b.txt", bytes.NewReader([]byte("content"))))

	data, err := os.ReadFile(filepath.Join(baseDir, "bucket", "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	obj, err := store.GetObject(ctx, "bucket", "a/b.txt")
	require.NoError(t, err)
	defer obj.Close()
	read, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "content", string(read))

	_, err = store.GetObject(ctx, "bucket", "missing")
	assert.Error(t, err)
}

func TestLocalObjectStoreListAndDelete(t *testing.T) {
	store, baseDir := setupTestObjectStore(t)
	ctx := context.Background()
	writeTree(t, filepath.Join(baseDir, "bucket"), map[string]string{
		"models/iris/MLmodel":   "flavors: {}",
		"models/iris/model.pkl": "pkl",
		"models/other/model.pt": "pt",
		"unrelated/readme.txt":  "x",
	})

	objects, err := store.ListObjects(ctx, "bucket", "models/iris/")
	require.NoError(t, err)
	var names []string
	for _, o := range objects {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"models/iris/MLmodel", "models/iris/model.pkl"}, names)

	require.NoError(t, store.DeleteObjects(ctx, "bucket", "models/iris"))
	objects, err = store.ListObjects(ctx, "bucket", "models/")
	require.NoError(t, err)
	assert.Len(t, objects, 1)

	objects, err = store.ListObjects(ctx, "missing-bucket", "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestLocalObjectStoreUploadDownloadDir(t *testing.T) {
	store, _ := setupTestObjectStore(t)
	ctx := context.Background()

	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"config.pbtxt": "name: \"m\"",
		"1/model.onnx": "onnx",
	})

	require.NoError(t, store.UploadDir(ctx, "bundles", "repo/m", src))

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, store.DownloadDir(ctx, "bundles", "repo/m", dest, false))

	data, err := os.ReadFile(filepath.Join(dest, "1", "model.onnx"))
	require.NoError(t, err)
	assert.Equal(t, "onnx", string(data))

	assert.Error(t, store.DownloadDir(ctx, "bundles", "repo/m", dest, false))
	assert.NoError(t, store.DownloadDir(ctx, "bundles", "repo/m", dest, true))
}

func TestLocalObjectStoreUploadReplacesPrefix(t *testing.T) {
	store, baseDir := setupTestObjectStore(t)
	ctx := context.Background()

	first := t.TempDir()
	writeTree(t, first, map[string]string{"old.txt": "old"})
	require.NoError(t, store.UploadDir(ctx, "b", "p", first))

	second := t.TempDir()
	writeTree(t, second, map[string]string{"new.txt": "new"})
	require.NoError(t, store.UploadDir(ctx, "b", "p", second))

	_, err := os.Stat(filepath.Join(baseDir, "b", "p", "old.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(baseDir, "b", "p", "new.txt"))
	assert.NoError(t, err)
}

func TestParseS3URI(t *testing.T) {
	bucket, prefix, err := storage.ParseS3URI("s3://mlflow/1/abc/artifacts/model")
	require.NoError(t, err)
	assert.Equal(t, "mlflow", bucket)
	assert.Equal(t, "1/abc/artifacts/model", prefix)

	_, _, err = storage.ParseS3URI("gs://bucket/x")
	assert.Error(t, err)
	_, _, err = storage.ParseS3URI("s3:///nobucket")
	assert.Error(t, err)
}
