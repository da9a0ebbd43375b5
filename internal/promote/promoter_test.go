package promote_test

import (
	"context"
	"errors"
	"model-release/internal/promote"
	"model-release/internal/release"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAliases struct {
	aliases  map[string]string
	failGet  error
	failSet  map[string]error
	setCalls []string
}

func newFakeAliases() *fakeAliases {
	return &fakeAliases{aliases: map[string]string{}, failSet: map[string]error{}}
}

func (f *fakeAliases) GetAlias(ctx context.Context, model, alias string) (release.OptionalVersion, error) {
	if f.failGet != nil {
		return release.Absent(), f.failGet
	}
	if v, ok := f.aliases[model+"@"+alias]; ok {
		return release.Present(v), nil
	}
	return release.Absent(), nil
}

func (f *fakeAliases) SetAlias(ctx context.Context, model, alias, version string) error {
	if err := f.failSet[alias]; err != nil {
		return err
	}
	f.setCalls = append(f.setCalls, alias+"->"+version)
	f.aliases[model+"@"+alias] = version
	return nil
}

func TestPromoteFirstVersion(t *testing.T) {
	store := newFakeAliases()
	p := promote.NewPromoter(store)

	out, err := p.Promote(context.Background(), "iris", "prod", "1", true, "archived")
	require.NoError(t, err)

	assert.False(t, out.Previous.IsPresent())
	assert.False(t, out.Archived)
	assert.Equal(t, "1", store.aliases["iris@prod"])
	assert.NotContains(t, store.aliases, "iris@archived")
}

func TestPromoteArchivesPrevious(t *testing.T) {
	store := newFakeAliases()
	store.aliases["iris@prod"] = "1"
	p := promote.NewPromoter(store)

	out, err := p.Promote(context.Background(), "iris", "prod", "2", true, "archived")
	require.NoError(t, err)

	assert.Equal(t, release.Present("1"), out.Previous)
	assert.True(t, out.Archived)
	assert.Equal(t, release.Present("1"), out.ArchivedVersion())
	assert.Equal(t, "2", store.aliases["iris@prod"])
	assert.Equal(t, "1", store.aliases["iris@archived"])
	assert.Equal(t, []string{"prod->2", "archived->1"}, store.setCalls)
}

func TestPromoteSameVersionDoesNotArchive(t *testing.T) {
	store := newFakeAliases()
	store.aliases["iris@prod"] = "1"
	store.aliases["iris@archived"] = "0"
	p := promote.NewPromoter(store)

	for range 2 {
		out, err := p.Promote(context.Background(), "iris", "prod", "1", true, "archived")
		require.NoError(t, err)
		assert.False(t, out.Archived)
		assert.False(t, out.ArchivedVersion().IsPresent())
	}

	assert.Equal(t, "1", store.aliases["iris@prod"])
	assert.Equal(t, "0", store.aliases["iris@archived"])
}

func TestPromoteWithoutArchiving(t *testing.T) {
	store := newFakeAliases()
	store.aliases["iris@prod"] = "1"
	p := promote.NewPromoter(store)

	out, err := p.Promote(context.Background(), "iris", "prod", "2", false, "archived")
	require.NoError(t, err)
	assert.False(t, out.Archived)
	assert.Equal(t, release.Present("1"), out.Previous)
	assert.NotContains(t, store.aliases, "iris@archived")
}

func TestPromoteReadFailureLeavesAliasUntouched(t *testing.T) {
	store := newFakeAliases()
	store.aliases["iris@prod"] = "1"
	store.failGet = release.RegistryErrorf("connection refused")
	p := promote.NewPromoter(store)

	_, err := p.Promote(context.Background(), "iris", "prod", "2", true, "archived")
	require.Error(t, err)
	assert.False(t, release.Committed(err))
	assert.Empty(t, store.setCalls)
	assert.Equal(t, "1", store.aliases["iris@prod"])
}

func TestPromotePrimaryFailureIsNotCommitted(t *testing.T) {
	store := newFakeAliases()
	store.failSet["prod"] = release.RegistryErrorf("forbidden")
	p := promote.NewPromoter(store)

	_, err := p.Promote(context.Background(), "iris", "prod", "2", true, "archived")
	require.Error(t, err)
	assert.Equal(t, release.KindRegistry, release.Classify(err))
	assert.False(t, release.Committed(err))
}

func TestPromoteArchiveFailureIsPartial(t *testing.T) {
	store := newFakeAliases()
	store.aliases["iris@prod"] = "1"
	store.failSet["archived"] = release.RegistryErrorf("timeout")
	p := promote.NewPromoter(store)

	out, err := p.Promote(context.Background(), "iris", "prod", "2", true, "archived")
	require.Error(t, err)

	var archiveErr *release.ArchiveError
	require.True(t, errors.As(err, &archiveErr))
	assert.Equal(t, "archived", archiveErr.Alias)
	assert.Equal(t, "1", archiveErr.Version)
	assert.True(t, release.Committed(err))
	assert.Equal(t, release.KindArchive, release.Classify(err))

	assert.Equal(t, "2", store.aliases["iris@prod"])
	assert.Equal(t, release.Present("1"), out.Previous)
	assert.False(t, out.Archived)
}
