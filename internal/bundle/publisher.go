package bundle

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"model-release/internal/storage"
)

// Publisher copies committed bundles to an object store so that serving
// nodes can pull them.
type Publisher struct {
	Store  storage.ObjectStore
	Bucket string
	Prefix string
}

func (p *Publisher) Key(name, version string) string {
	return path.Join(p.Prefix, name, version)
}

// Publish replaces <prefix>/<name>/<version> in the bucket with dir and
// returns the location it was written to.
func (p *Publisher) Publish(ctx context.Context, name, version, dir string) (string, error) {
	key := p.Key(name, version)
	if err := p.Store.UploadDir(ctx, p.Bucket, key, dir); err != nil {
		return "", fmt.Errorf("error publishing bundle %s/%s: %w", name, version, err)
	}

	location := fmt.Sprintf("s3://%s/%s", p.Bucket, key)
	slog.Info("bundle published", "model", name, "version", version, "location", location)
	return location, nil
}
