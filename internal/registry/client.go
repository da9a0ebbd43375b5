package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"model-release/internal/release"
	"model-release/internal/schema"
)

// Artifact is a model version materialized on the local filesystem.
type Artifact struct {
	Ref     release.ModelVersionRef
	Source  string
	Dir     string
	MLmodel *MLmodel
}

// Client is the registry surface the release flow depends on. Implementations
// are constructed once and passed explicitly to every component.
type Client interface {
	ResolveSignature(ctx context.Context, ref release.ModelVersionRef) (schema.RawSignature, error)
	LoadArtifact(ctx context.Context, ref release.ModelVersionRef) (*Artifact, error)
	GetFlavors(ctx context.Context, ref release.ModelVersionRef) ([]string, error)
	GetAlias(ctx context.Context, model, alias string) (release.OptionalVersion, error)
	SetAlias(ctx context.Context, model, alias, version string) error
}

// artifactCache resolves a version to its source URI, fetches it once and
// keeps the parsed MLmodel for later lookups in the same run.
type artifactCache struct {
	fetcher *Fetcher
	resolve func(ctx context.Context, ref release.ModelVersionRef) (string, error)

	mu        sync.Mutex
	artifacts map[release.ModelVersionRef]*Artifact
}

func newArtifactCache(fetcher *Fetcher, resolve func(context.Context, release.ModelVersionRef) (string, error)) *artifactCache {
	return &artifactCache{
		fetcher:   fetcher,
		resolve:   resolve,
		artifacts: make(map[release.ModelVersionRef]*Artifact),
	}
}

func (c *artifactCache) load(ctx context.Context, ref release.ModelVersionRef) (*Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.artifacts[ref]; ok {
		return a, nil
	}

	source, err := c.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	dir, err := c.fetcher.Fetch(ctx, source, ref)
	if err != nil {
		return nil, release.RegistryErrorf("error fetching artifacts for %s from %s: %w", ref.URI(), source, err)
	}

	mlmodel, err := ReadMLmodel(dir)
	if err != nil {
		return nil, release.RegistryErrorf("%s: %w", ref.URI(), err)
	}

	a := &Artifact{Ref: ref, Source: source, Dir: dir, MLmodel: mlmodel}
	c.artifacts[ref] = a
	slog.Info("artifact loaded", "model_uri", ref.URI(), "source", source, "dir", dir, "flavors", mlmodel.FlavorNames())
	return a, nil
}

func (c *artifactCache) signature(ctx context.Context, ref release.ModelVersionRef) (schema.RawSignature, error) {
	a, err := c.load(ctx, ref)
	if err != nil {
		return schema.RawSignature{}, err
	}
	sig, err := a.MLmodel.RawSignature()
	if err != nil {
		return schema.RawSignature{}, fmt.Errorf("model at %s: %w", ref.URI(), err)
	}
	return sig, nil
}

func (c *artifactCache) flavors(ctx context.Context, ref release.ModelVersionRef) ([]string, error) {
	a, err := c.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.MLmodel.FlavorNames(), nil
}
