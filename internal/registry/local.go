package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"model-release/internal/database"
	"model-release/internal/release"
	"model-release/internal/schema"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocalRegistry keeps versions and aliases in the release database. Artifact
// sources use the same URI schemes as the tracking server.
type LocalRegistry struct {
	db    *gorm.DB
	cache *artifactCache
}

var _ Client = (*LocalRegistry)(nil)

func NewLocalRegistry(db *gorm.DB, fetcher *Fetcher) *LocalRegistry {
	if fetcher == nil {
		fetcher = &Fetcher{}
	}
	r := &LocalRegistry{db: db}
	r.cache = newArtifactCache(fetcher, r.source)
	return r
}

var ErrVersionExists = errors.New("model version already registered")

// RegisterVersion adds an immutable version. Re-registering an existing
// version fails.
func (r *LocalRegistry) RegisterVersion(ctx context.Context, name, version, source, description string) (database.ModelVersion, error) {
	mv := database.ModelVersion{
		Name:         name,
		Version:      version,
		Source:       source,
		Description:  description,
		CreationTime: time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var existing database.ModelVersion
		err := txn.Where("name = ? AND version = ?", name, version).First(&existing).Error
		if err == nil {
			return fmt.Errorf("%w: %s/%s", ErrVersionExists, name, version)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return txn.Create(&mv).Error
	})
	if err != nil {
		return database.ModelVersion{}, fmt.Errorf("error registering model version: %w", err)
	}

	slog.Info("model version registered", "model", name, "version", version, "source", source)
	return mv, nil
}

func (r *LocalRegistry) ListVersions(ctx context.Context, name string) ([]database.ModelVersion, error) {
	var versions []database.ModelVersion
	if err := r.db.WithContext(ctx).Where("name = ?", name).Order("creation_time asc").Find(&versions).Error; err != nil {
		return nil, release.RegistryErrorf("error listing versions of %s: %w", name, err)
	}
	return versions, nil
}

func (r *LocalRegistry) source(ctx context.Context, ref release.ModelVersionRef) (string, error) {
	var mv database.ModelVersion
	err := r.db.WithContext(ctx).Where("name = ? AND version = ?", ref.ModelName, ref.Version).First(&mv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", release.RegistryErrorf("model version %s not found", ref.URI())
		}
		return "", release.RegistryErrorf("error reading model version %s: %w", ref.URI(), err)
	}
	return mv.Source, nil
}

func (r *LocalRegistry) ResolveSignature(ctx context.Context, ref release.ModelVersionRef) (schema.RawSignature, error) {
	return r.cache.signature(ctx, ref)
}

func (r *LocalRegistry) LoadArtifact(ctx context.Context, ref release.ModelVersionRef) (*Artifact, error) {
	return r.cache.load(ctx, ref)
}

func (r *LocalRegistry) GetFlavors(ctx context.Context, ref release.ModelVersionRef) ([]string, error) {
	return r.cache.flavors(ctx, ref)
}

func (r *LocalRegistry) GetAlias(ctx context.Context, model, alias string) (release.OptionalVersion, error) {
	var a database.ModelAlias
	err := r.db.WithContext(ctx).Where("name = ? AND alias = ?", model, alias).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return release.Absent(), nil
		}
		return release.Absent(), release.RegistryErrorf("error reading alias %s@%s: %w", model, alias, err)
	}
	return release.Present(a.Version), nil
}

// SetAlias requires the version to be registered, like the tracking server.
func (r *LocalRegistry) SetAlias(ctx context.Context, model, alias, version string) error {
	err := r.db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var count int64
		if err := txn.Model(&database.ModelVersion{}).Where("name = ? AND version = ?", model, version).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("model version %s/%s not found", model, version)
		}

		return txn.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}, {Name: "alias"}},
			DoUpdates: clause.AssignmentColumns([]string{"version", "update_time"}),
		}).Create(&database.ModelAlias{
			Name:       model,
			Alias:      alias,
			Version:    version,
			UpdateTime: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return release.RegistryErrorf("error setting alias %s@%s -> %s: %w", model, alias, version, err)
	}

	slog.Info("alias set", "model", model, "alias", alias, "version", version)
	return nil
}
