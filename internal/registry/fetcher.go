package registry

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"model-release/internal/release"
	"model-release/internal/storage"
)

// ArtifactProxy downloads artifacts served through the tracking server.
type ArtifactProxy interface {
	DownloadArtifacts(ctx context.Context, path, dest string) error
}

// Fetcher materializes artifact URIs on local disk. Local sources are used in
// place; remote ones are downloaded under CacheDir.
type Fetcher struct {
	CacheDir string
	S3       storage.ObjectStore
	Proxy    ArtifactProxy
}

func (f *Fetcher) Fetch(ctx context.Context, source string, ref release.ModelVersionRef) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid artifact uri %q: %w", source, err)
	}

	switch u.Scheme {
	case "", "file":
		dir := source
		if u.Scheme == "file" {
			dir = u.Path
		}
		stat, err := os.Stat(dir)
		if err != nil {
			return "", fmt.Errorf("artifact directory %s: %w", dir, err)
		}
		if !stat.IsDir() {
			return "", fmt.Errorf("artifact source %s is not a directory", dir)
		}
		return dir, nil

	case "s3":
		if f.S3 == nil {
			return "", fmt.Errorf("artifact %s is stored in s3 but no s3 store is configured", source)
		}
		bucket, prefix, err := storage.ParseS3URI(source)
		if err != nil {
			return "", err
		}
		dest := f.destination(ref)
		if err := f.S3.DownloadDir(ctx, bucket, prefix, dest, true); err != nil {
			return "", err
		}
		return dest, nil

	case "mlflow-artifacts":
		if f.Proxy == nil {
			return "", fmt.Errorf("artifact %s needs the tracking server artifact proxy", source)
		}
		dest := f.destination(ref)
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("error clearing artifact cache %s: %w", dest, err)
		}
		if err := f.Proxy.DownloadArtifacts(ctx, strings.TrimPrefix(u.Path, "/"), dest); err != nil {
			return "", err
		}
		return dest, nil

	default:
		return "", fmt.Errorf("unsupported artifact uri scheme %q in %s", u.Scheme, source)
	}
}

func (f *Fetcher) destination(ref release.ModelVersionRef) string {
	root := f.CacheDir
	if root == "" {
		root = filepath.Join(os.TempDir(), "model-release-artifacts")
	}
	return filepath.Join(root, ref.ModelName, ref.Version)
}
