package history

import (
	"context"
	"time"

	"model-release/internal/release"
	"model-release/internal/schema"

	"github.com/google/uuid"
)

// Record is one committed promotion. Records are only ever appended.
type Record struct {
	Id        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp_utc"`

	ModelName       string                  `json:"model_name"`
	Version         string                  `json:"version"`
	AliasSet        string                  `json:"alias_set"`
	PreviousVersion release.OptionalVersion `json:"previous_version_for_alias"`
	ArchivedAlias   *string                 `json:"archived_alias"`
	ArchivedVersion release.OptionalVersion `json:"archived_version"`

	ServingModelName string `json:"serving_model_name"`
	ServingVersion   string `json:"serving_version"`
	BundlePath       string `json:"bundle_path"`
	Platform         string `json:"platform"`
	MaxBatchSize     int    `json:"max_batch_size"`
	Flavor           string `json:"flavor"`
	ModelURI         string `json:"model_uri"`

	// ArchiveError is set when the alias was committed but the previous
	// version could not be archived.
	ArchiveError *string `json:"archive_error"`

	Signature *schema.Signature `json:"signature,omitempty"`
}

func NewRecord(ref release.ModelVersionRef, alias string) Record {
	return Record{
		Id:        uuid.New(),
		Timestamp: time.Now().UTC(),
		ModelName: ref.ModelName,
		Version:   ref.Version,
		AliasSet:  alias,
		ModelURI:  ref.URI(),
	}
}

type Recorder interface {
	// Append adds rec to the history of rec.ServingModelName.
	Append(ctx context.Context, rec Record) error
	// List returns the history of a serving model in append order.
	List(ctx context.Context, model string) ([]Record, error)
}

// Filter selects records returned by Query.
type Filter struct {
	Alias string
	// Limit keeps only the newest records when > 0.
	Limit int
}

// Query lists the history of model through r and applies f, keeping append
// order.
func Query(ctx context.Context, r Recorder, model string, f Filter) ([]Record, error) {
	records, err := r.List(ctx, model)
	if err != nil {
		return nil, err
	}

	if f.Alias != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.AliasSet == f.Alias {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	if f.Limit > 0 && len(records) > f.Limit {
		records = records[len(records)-f.Limit:]
	}
	return records, nil
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
