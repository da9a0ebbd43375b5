package versions

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ModelVersion struct {
	Name         string `gorm:"primaryKey"`
	Version      string `gorm:"primaryKey"`
	Source       string `gorm:"not null"`
	Description  string
	CreationTime time.Time
}

type ModelAlias struct {
	Name       string `gorm:"primaryKey"`
	Alias      string `gorm:"primaryKey"`
	Version    string `gorm:"not null"`
	UpdateTime time.Time
}

type PromotionRecord struct {
	Seq uint64 `gorm:"primaryKey;autoIncrement"`

	Id               uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Timestamp        time.Time `gorm:"index"`
	ModelName        string    `gorm:"index;not null"`
	Version          string    `gorm:"not null"`
	AliasSet         string    `gorm:"not null"`
	PreviousVersion  sql.NullString
	ArchivedAlias    sql.NullString
	ArchivedVersion  sql.NullString
	ServingModelName string
	ServingVersion   string
	BundlePath       string
	Platform         string
	MaxBatchSize     int
	Flavor           string
	ModelURI         string
	ArchiveError     sql.NullString
}

// Migration0 creates the registry and history tables.
func Migration0(db *gorm.DB) error {
	return db.AutoMigrate(&ModelVersion{}, &ModelAlias{}, &PromotionRecord{})
}
