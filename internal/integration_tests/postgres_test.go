package integrationtests

import (
	"context"
	"model-release/internal/history"
	"model-release/internal/registry"
	"model-release/internal/release"
	"model-release/internal/schema"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresHistory(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	db := createDB(t)

	recorder := history.NewDBRecorder(db)

	first := history.NewRecord(release.ModelVersionRef{ModelName: "iris", Version: "1"}, "prod")
	first.ServingModelName = "iris"
	first.ServingVersion = "1"
	first.Signature = &schema.Signature{
		Inputs:  []schema.IOField{{Name: "input", DType: schema.DTypeFloat32, Shape: schema.Shape{-1, 4}}},
		Outputs: []schema.IOField{{Name: "output", DType: schema.DTypeInt64, Shape: schema.Shape{-1}}},
	}
	require.NoError(t, recorder.Append(ctx, first))

	second := history.NewRecord(release.ModelVersionRef{ModelName: "iris", Version: "2"}, "prod")
	second.ServingModelName = "iris"
	second.ServingVersion = "2"
	second.PreviousVersion = release.Present("1")
	archived, archiveErr := "archived", "tracking server unavailable"
	second.ArchivedAlias = &archived
	second.ArchiveError = &archiveErr
	require.NoError(t, recorder.Append(ctx, second))

	records, err := recorder.List(ctx, "iris")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, first.Id, records[0].Id)
	require.NotNil(t, records[0].Signature)
	assert.Equal(t, schema.DTypeInt64, records[0].Signature.Outputs[0].DType)

	assert.Equal(t, release.Present("1"), records[1].PreviousVersion)
	require.NotNil(t, records[1].ArchiveError)
	assert.Equal(t, archiveErr, *records[1].ArchiveError)
	assert.False(t, records[1].ArchivedVersion.IsPresent())
}

func TestPostgresLocalRegistry(t *testing.T) {
	skipShort(t)
	ctx := context.Background()
	db := createDB(t)

	reg := registry.NewLocalRegistry(db, &registry.Fetcher{CacheDir: t.TempDir()})

	_, err := reg.RegisterVersion(ctx, "iris", "1", "s3://mlflow/iris/1", "")
	require.NoError(t, err)
	_, err = reg.RegisterVersion(ctx, "iris", "1", "s3://mlflow/iris/1", "")
	assert.ErrorIs(t, err, registry.ErrVersionExists)

	v, err := reg.GetAlias(ctx, "iris", "prod")
	require.NoError(t, err)
	assert.False(t, v.IsPresent())

	require.NoError(t, reg.SetAlias(ctx, "iris", "prod", "1"))
	require.NoError(t, reg.SetAlias(ctx, "iris", "prod", "1"))

	v, err = reg.GetAlias(ctx, "iris", "prod")
	require.NoError(t, err)
	assert.Equal(t, release.Present("1"), v)
}
