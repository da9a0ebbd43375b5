package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"model-release/internal/database"
	"model-release/internal/release"
	"model-release/internal/schema"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DBRecorder stores records in the promotion_records table. Seq keeps the
// append order.
type DBRecorder struct {
	db *gorm.DB
}

func NewDBRecorder(db *gorm.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

func (r *DBRecorder) Append(ctx context.Context, rec Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error saving promotion record: %w", err)
	}
	return nil
}

func (r *DBRecorder) List(ctx context.Context, model string) ([]Record, error) {
	var rows []database.PromotionRecord
	if err := r.db.WithContext(ctx).Where("serving_model_name = ?", model).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing promotion records: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRow(rec Record) (database.PromotionRecord, error) {
	var sig datatypes.JSON
	if rec.Signature != nil {
		data, err := json.Marshal(rec.Signature)
		if err != nil {
			return database.PromotionRecord{}, fmt.Errorf("error encoding signature: %w", err)
		}
		sig = data
	}

	return database.PromotionRecord{
		Id:               rec.Id,
		Timestamp:        rec.Timestamp,
		ModelName:        rec.ModelName,
		Version:          rec.Version,
		AliasSet:         rec.AliasSet,
		PreviousVersion:  database.NullString(rec.PreviousVersion.OrEmpty()),
		ArchivedAlias:    nullStringPtr(rec.ArchivedAlias),
		ArchivedVersion:  database.NullString(rec.ArchivedVersion.OrEmpty()),
		ServingModelName: rec.ServingModelName,
		ServingVersion:   rec.ServingVersion,
		BundlePath:       rec.BundlePath,
		Platform:         rec.Platform,
		MaxBatchSize:     rec.MaxBatchSize,
		Flavor:           rec.Flavor,
		ModelURI:         rec.ModelURI,
		ArchiveError:     nullStringPtr(rec.ArchiveError),
		Signature:        sig,
	}, nil
}

func fromRow(row database.PromotionRecord) (Record, error) {
	rec := Record{
		Id:               row.Id,
		Timestamp:        row.Timestamp.UTC(),
		ModelName:        row.ModelName,
		Version:          row.Version,
		AliasSet:         row.AliasSet,
		PreviousVersion:  optional(row.PreviousVersion),
		ArchivedAlias:    ptrNullString(row.ArchivedAlias),
		ArchivedVersion:  optional(row.ArchivedVersion),
		ServingModelName: row.ServingModelName,
		ServingVersion:   row.ServingVersion,
		BundlePath:       row.BundlePath,
		Platform:         row.Platform,
		MaxBatchSize:     row.MaxBatchSize,
		Flavor:           row.Flavor,
		ModelURI:         row.ModelURI,
		ArchiveError:     ptrNullString(row.ArchiveError),
	}

	if len(row.Signature) > 0 {
		var sig schema.Signature
		if err := json.Unmarshal(row.Signature, &sig); err != nil {
			return Record{}, fmt.Errorf("error decoding signature of record %s: %w", row.Id, err)
		}
		rec.Signature = &sig
	}
	return rec, nil
}

func optional(s sql.NullString) release.OptionalVersion {
	if !s.Valid {
		return release.Absent()
	}
	return release.Present(s.String)
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func ptrNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return stringPtr(s.String)
}
