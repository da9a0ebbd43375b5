package api

import (
	"time"

	"github.com/google/uuid"
)

type PromotionRequest struct {
	ModelName string
	Version   string
	Alias     string

	// ArchivePrevious and CleanVersionDir default to true when omitted.
	ArchivePrevious *bool
	ArchivedAlias   string

	BatchHint       *int
	ServingName     string
	CleanVersionDir *bool
}

type PromotionResponse struct {
	TaskId uuid.UUID
}

type PromotionTask struct {
	Id        uuid.UUID
	ModelName string
	Version   string
	Alias     string
	Status    string

	ErrorKind string `json:"ErrorKind,omitempty"`
	Error     string `json:"Error,omitempty"`

	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
}

type HistoryParams struct {
	Alias string `schema:"alias"`
	Limit int    `schema:"limit"`
}

type AliasResponse struct {
	Model   string
	Alias   string
	Version string
}

type RegisterVersionRequest struct {
	Version     string
	Source      string
	Description string
}

type ModelVersion struct {
	Name         string
	Version      string
	Source       string
	Description  string
	CreationTime time.Time
}
