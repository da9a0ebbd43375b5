package messaging

import (
	"context"
	"fmt"
	"time"

	"model-release/internal/release"

	"github.com/google/uuid"
)

const (
	PromotionQueue  = "promotion_queue"
	EventsQueue     = "promotion_events"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// PromotionTaskPayload asks a worker to export, validate and promote one
// model version.
type PromotionTaskPayload struct {
	TaskId uuid.UUID

	ModelName string
	Version   string
	Alias     string

	ArchivePrevious bool
	ArchivedAlias   string

	BatchHint       *int
	ServingName     string
	CleanVersionDir bool
}

func (p PromotionTaskPayload) Validate() error {
	switch {
	case p.TaskId == uuid.Nil:
		return fmt.Errorf("task id is required")
	case p.ModelName == "":
		return fmt.Errorf("model name is required")
	case p.Version == "":
		return fmt.Errorf("version is required")
	case p.Alias == "":
		return fmt.Errorf("alias is required")
	case p.ArchivePrevious && p.ArchivedAlias == "":
		return fmt.Errorf("archived alias is required when archiving")
	case p.ArchivePrevious && p.ArchivedAlias == p.Alias:
		return fmt.Errorf("archived alias must differ from alias %q", p.Alias)
	}
	return nil
}

const (
	EventCommitted = "committed"
	EventPartial   = "partial"
	EventFailed    = "failed"
)

// PromotionEvent announces the outcome of a promotion.
type PromotionEvent struct {
	TaskId    uuid.UUID `json:"task_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	ModelName       string                  `json:"model_name"`
	Version         string                  `json:"version"`
	Alias           string                  `json:"alias"`
	PreviousVersion release.OptionalVersion `json:"previous_version"`
	ArchivedVersion release.OptionalVersion `json:"archived_version"`
	BundlePath      string                  `json:"bundle_path,omitempty"`

	ErrorKind release.ErrorKind `json:"error_kind,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type Publisher interface {
	PublishPromotionTask(ctx context.Context, payload PromotionTaskPayload) error

	Close()
}

type EventPublisher interface {
	PublishPromotionEvent(ctx context.Context, event PromotionEvent) error
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
