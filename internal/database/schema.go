package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ModelVersion is an immutable registered version in the local registry.
type ModelVersion struct {
	Name         string `gorm:"primaryKey"`
	Version      string `gorm:"primaryKey"`
	Source       string `gorm:"not null"`
	Description  string
	CreationTime time.Time
}

// ModelAlias is the mutable pointer from (name, alias) to a version.
type ModelAlias struct {
	Name       string `gorm:"primaryKey"`
	Alias      string `gorm:"primaryKey"`
	Version    string `gorm:"not null"`
	UpdateTime time.Time
}

// PromotionRecord is one committed promotion. Seq preserves append order.
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

	Signature datatypes.JSON
}

const (
	TaskQueued    string = "QUEUED"
	TaskRunning   string = "RUNNING"
	TaskCompleted string = "COMPLETED"
	TaskPartial   string = "PARTIAL"
	TaskFailed    string = "FAILED"
)

// PromotionTask tracks a promotion submitted through the queue.
type PromotionTask struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ModelName string    `gorm:"index;not null"`
	Version   string    `gorm:"not null"`
	Alias     string    `gorm:"not null"`
	Status    string    `gorm:"size:20;not null"`

	ErrorKind sql.NullString
	Error     sql.NullString

	Request datatypes.JSON

	CreationTime   time.Time
	CompletionTime sql.NullTime
}
