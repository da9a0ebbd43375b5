package registry_test

import (
	"context"
	"errors"
	"model-release/internal/database"
	"model-release/internal/registry"
	"model-release/internal/release"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalRegistry(t *testing.T) *registry.LocalRegistry {
	db, err := database.NewDatabase("file::memory:")
	require.NoError(t, err)
	return registry.NewLocalRegistry(db, &registry.Fetcher{CacheDir: t.TempDir()})
}

func TestLocalRegisterVersion(t *testing.T) {
	reg := newLocalRegistry(t)
	ctx := context.Background()
	dir := writeModelDir(t, sklearnMLmodel)

	_, err := reg.RegisterVersion(ctx, "iris", "1", dir, "first")
	require.NoError(t, err)
	_, err = reg.RegisterVersion(ctx, "iris", "2", dir, "")
	require.NoError(t, err)

	_, err = reg.RegisterVersion(ctx, "iris", "1", dir, "again")
	assert.ErrorIs(t, err, registry.ErrVersionExists)

	versions, err := reg.ListVersions(ctx, "iris")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "first", versions[0].Description)
}

func TestLocalAliases(t *testing.T) {
	reg := newLocalRegistry(t)
	ctx := context.Background()
	dir := writeModelDir(t, sklearnMLmodel)

	for _, v := range []string{"1", "2"} {
		_, err := reg.RegisterVersion(ctx, "iris", v, dir, "")
		require.NoError(t, err)
	}

	got, err := reg.GetAlias(ctx, "iris", "prod")
	require.NoError(t, err)
	assert.False(t, got.IsPresent())

	require.NoError(t, reg.SetAlias(ctx, "iris", "prod", "1"))
	require.NoError(t, reg.SetAlias(ctx, "iris", "prod", "2"))
	// setting the same target twice is a no-op
	require.NoError(t, reg.SetAlias(ctx, "iris", "prod", "2"))

	got, err = reg.GetAlias(ctx, "iris", "prod")
	require.NoError(t, err)
	assert.Equal(t, release.Present("2"), got)

	other, err := reg.GetAlias(ctx, "iris", "archived")
	require.NoError(t, err)
	assert.False(t, other.IsPresent())
}

func TestLocalSetAliasUnknownVersion(t *testing.T) {
	reg := newLocalRegistry(t)

	err := reg.SetAlias(context.Background(), "iris", "prod", "7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, release.ErrRegistry))
}

func TestLocalResolveSignature(t *testing.T) {
	reg := newLocalRegistry(t)
	ctx := context.Background()
	dir := writeModelDir(t, sklearnMLmodel)

	_, err := reg.RegisterVersion(ctx, "iris", "1", dir, "")
	require.NoError(t, err)
	ref := release.ModelVersionRef{ModelName: "iris", Version: "1"}

	raw, err := reg.ResolveSignature(ctx, ref)
	require.NoError(t, err)
	require.Len(t, raw.Inputs, 1)
	require.Len(t, raw.Outputs, 1)

	flavors, err := reg.GetFlavors(ctx, ref)
	require.NoError(t, err)
	assert.Contains(t, flavors, "sklearn")

	_, err = reg.ResolveSignature(ctx, release.ModelVersionRef{ModelName: "iris", Version: "5"})
	assert.True(t, errors.Is(err, release.ErrRegistry))
}

func TestLocalMissingSignatureIsSchemaError(t *testing.T) {
	reg := newLocalRegistry(t)
	ctx := context.Background()
	dir := writeModelDir(t, "flavors:\n  sklearn: {}\n")

	_, err := reg.RegisterVersion(ctx, "iris", "1", dir, "")
	require.NoError(t, err)

	_, err = reg.ResolveSignature(ctx, release.ModelVersionRef{ModelName: "iris", Version: "1"})
	assert.True(t, errors.Is(err, release.ErrSchema))
}
