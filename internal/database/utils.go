package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdatePromotionTaskStatus(ctx context.Context, txn *gorm.DB, taskId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == TaskCompleted || status == TaskPartial || status == TaskFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&PromotionTask{Id: taskId}).Updates(updates).Error; err != nil {
		slog.Error("error updating promotion task status", "task_id", taskId, "status", status, "error", err)
		return err
	}
	return nil
}

func SavePromotionTaskError(ctx context.Context, txn *gorm.DB, taskId uuid.UUID, status, kind, message string) error {
	updates := map[string]any{
		"status":          status,
		"error_kind":      sql.NullString{String: kind, Valid: kind != ""},
		"error":           sql.NullString{String: message, Valid: message != ""},
		"completion_time": time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Model(&PromotionTask{Id: taskId}).Updates(updates).Error; err != nil {
		slog.Error("error saving promotion task error", "task_id", taskId, "error", err)
		return err
	}
	return nil
}

func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
