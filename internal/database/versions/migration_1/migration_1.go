package migration_1

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

type PromotionRecord struct {
	Signature datatypes.JSON
}

// Migration adds queued promotion tracking and the stored signature of each
// promotion record.
func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&PromotionTask{}); err != nil {
		return fmt.Errorf("error creating promotion_tasks: %w", err)
	}

	if err := db.Migrator().AddColumn(&PromotionRecord{}, "Signature"); err != nil {
		return fmt.Errorf("error adding signature column: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&PromotionRecord{}, "Signature"); err != nil {
		return fmt.Errorf("error dropping signature column: %w", err)
	}

	if err := db.Migrator().DropTable(&PromotionTask{}); err != nil {
		return fmt.Errorf("error dropping promotion_tasks: %w", err)
	}

	return nil
}
