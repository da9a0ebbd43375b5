package promote

import (
	"context"
	"log/slog"

	"model-release/internal/release"
)

const (
	DefaultAlias         = "prod"
	DefaultArchivedAlias = "archived"
)

// AliasStore is the part of the registry client the promoter mutates.
type AliasStore interface {
	GetAlias(ctx context.Context, model, alias string) (release.OptionalVersion, error)
	SetAlias(ctx context.Context, model, alias, version string) error
}

type Outcome struct {
	// Previous is what alias pointed at before the promotion.
	Previous release.OptionalVersion
	// Archived is set when archivedAlias now points at Previous.
	Archived bool
}

// ArchivedVersion returns the version moved to the archived alias, if any.
func (o Outcome) ArchivedVersion() release.OptionalVersion {
	if !o.Archived {
		return release.Absent()
	}
	return o.Previous
}

type Promoter struct {
	aliases AliasStore
}

func NewPromoter(aliases AliasStore) *Promoter {
	return &Promoter{aliases: aliases}
}

// Promote points alias at version. SetAlias on the primary alias is the
// commit point: any error before it leaves the registry untouched. When
// archivePrevious is set and the alias previously pointed at a different
// version, archivedAlias is moved to that version afterwards; a failure there
// is returned as *release.ArchiveError together with a valid Outcome.
func (p *Promoter) Promote(ctx context.Context, model, alias, version string, archivePrevious bool, archivedAlias string) (Outcome, error) {
	previous, err := p.aliases.GetAlias(ctx, model, alias)
	if err != nil {
		return Outcome{}, err
	}

	if err := p.aliases.SetAlias(ctx, model, alias, version); err != nil {
		return Outcome{}, err
	}
	slog.Info("alias promoted", "model", model, "alias", alias, "version", version, "previous", previous.String())

	outcome := Outcome{Previous: previous}

	prev, ok := previous.Get()
	if !archivePrevious || !ok || prev == version {
		return outcome, nil
	}

	if err := p.aliases.SetAlias(ctx, model, archivedAlias, prev); err != nil {
		slog.Error("alias committed but archiving failed", "model", model, "alias", archivedAlias, "version", prev, "error", err)
		return outcome, &release.ArchiveError{Model: model, Alias: archivedAlias, Version: prev, Err: err}
	}

	outcome.Archived = true
	slog.Info("previous version archived", "model", model, "alias", archivedAlias, "version", prev)
	return outcome, nil
}
