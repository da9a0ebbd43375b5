package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"model-release/internal/database"
	"model-release/internal/history"
	"model-release/internal/messaging"
	"model-release/internal/promote"
	"model-release/internal/registry"
	"model-release/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	history   history.Recorder
	registry  registry.Client
}

func NewBackendService(db *gorm.DB, pub messaging.Publisher, recorder history.Recorder, reg registry.Client) *BackendService {
	return &BackendService{db: db, publisher: pub, history: recorder, registry: reg}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Route("/promotions", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitPromotion))
		r.Get("/{task_id}", RestHandler(s.GetPromotion))
	})

	r.Route("/models/{model}", func(r chi.Router) {
		r.Get("/history", RestHandler(s.GetHistory))
		r.Get("/aliases/{alias}", RestHandler(s.GetAlias))
		r.Post("/versions", RestHandler(s.RegisterVersion))
	})
}

func (s *BackendService) SubmitPromotion(r *http.Request) (any, error) {
	req, err := ParseRequest[api.PromotionRequest](r)
	if err != nil {
		return nil, err
	}

	payload := messaging.PromotionTaskPayload{
		TaskId:          uuid.New(),
		ModelName:       req.ModelName,
		Version:         req.Version,
		Alias:           req.Alias,
		ArchivePrevious: true,
		ArchivedAlias:   req.ArchivedAlias,
		BatchHint:       req.BatchHint,
		ServingName:     req.ServingName,
		CleanVersionDir: true,
	}
	if payload.Alias == "" {
		payload.Alias = promote.DefaultAlias
	}
	if payload.ArchivedAlias == "" {
		payload.ArchivedAlias = promote.DefaultArchivedAlias
	}
	if req.ArchivePrevious != nil {
		payload.ArchivePrevious = *req.ArchivePrevious
	}
	if req.CleanVersionDir != nil {
		payload.CleanVersionDir = *req.CleanVersionDir
	}

	if err := payload.Validate(); err != nil {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "invalid promotion request: %v", err)
	}

	ctx := r.Context()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error encoding promotion request")
	}

	task := database.PromotionTask{
		Id:           payload.TaskId,
		ModelName:    payload.ModelName,
		Version:      payload.Version,
		Alias:        payload.Alias,
		Status:       database.TaskQueued,
		Request:      body,
		CreationTime: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		slog.Error("error creating promotion task", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create promotion task entry")
	}

	if err := s.publisher.PublishPromotionTask(ctx, payload); err != nil {
		slog.Error("error publishing promotion task", "task_id", task.Id, "error", err)
		if err := database.SavePromotionTaskError(ctx, s.db, task.Id, database.TaskFailed, "", "failed to queue task"); err != nil {
			slog.Error("error marking unqueued promotion task as failed", "task_id", task.Id, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue promotion task")
	}

	slog.Info("submitted promotion", "task_id", task.Id, "model", task.ModelName, "version", task.Version, "alias", task.Alias)
	return api.PromotionResponse{TaskId: task.Id}, nil
}

func (s *BackendService) GetPromotion(r *http.Request) (any, error) {
	taskId, err := URLParamUUID(r, "task_id")
	if err != nil {
		return nil, err
	}

	var task database.PromotionTask
	if err := s.db.WithContext(r.Context()).First(&task, "id = ?", taskId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "promotion task not found")
		}
		slog.Error("error getting promotion task", "task_id", taskId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving promotion task record")
	}

	return convertPromotionTask(task), nil
}

func (s *BackendService) GetHistory(r *http.Request) (any, error) {
	model, err := URLParamName(r, "model")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.HistoryParams](r)
	if err != nil {
		return nil, err
	}
	if params.Limit < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "limit must not be negative")
	}

	records, err := history.Query(r.Context(), s.history, model, history.Filter{Alias: params.Alias, Limit: params.Limit})
	if err != nil {
		slog.Error("error listing promotion history", "model", model, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving promotion history")
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}

func (s *BackendService) GetAlias(r *http.Request) (any, error) {
	model, err := URLParamName(r, "model")
	if err != nil {
		return nil, err
	}
	alias, err := URLParamName(r, "alias")
	if err != nil {
		return nil, err
	}

	version, err := s.registry.GetAlias(r.Context(), model, alias)
	if err != nil {
		return nil, releaseError(err)
	}

	v, ok := version.Get()
	if !ok {
		return nil, CodedErrorf(http.StatusNotFound, "alias '%s' is not set for model '%s'", alias, model)
	}

	return api.AliasResponse{Model: model, Alias: alias, Version: v}, nil
}

func (s *BackendService) RegisterVersion(r *http.Request) (any, error) {
	local, ok := s.registry.(*registry.LocalRegistry)
	if !ok {
		return nil, CodedErrorf(http.StatusNotImplemented, "versions can only be registered with the local registry")
	}

	model, err := URLParamName(r, "model")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.RegisterVersionRequest](r)
	if err != nil {
		return nil, err
	}
	if err := validateName("version", req.Version); err != nil {
		return nil, err
	}
	if req.Source == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "source is required")
	}

	mv, err := local.RegisterVersion(r.Context(), model, req.Version, req.Source, req.Description)
	if err != nil {
		if errors.Is(err, registry.ErrVersionExists) {
			return nil, CodedError(http.StatusConflict, err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error registering model version")
	}

	return convertModelVersion(mv), nil
}

func convertPromotionTask(task database.PromotionTask) api.PromotionTask {
	out := api.PromotionTask{
		Id:           task.Id,
		ModelName:    task.ModelName,
		Version:      task.Version,
		Alias:        task.Alias,
		Status:       task.Status,
		ErrorKind:    task.ErrorKind.String,
		Error:        task.Error.String,
		CreationTime: task.CreationTime,
	}
	if task.CompletionTime.Valid {
		out.CompletionTime = &task.CompletionTime.Time
	}
	return out
}

func convertModelVersion(mv database.ModelVersion) api.ModelVersion {
	return api.ModelVersion{
		Name:         mv.Name,
		Version:      mv.Version,
		Source:       mv.Source,
		Description:  mv.Description,
		CreationTime: mv.CreationTime,
	}
}
