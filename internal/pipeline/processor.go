package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"model-release/internal/database"
	"model-release/internal/messaging"
	"model-release/internal/release"
	"model-release/internal/utils"

	"gorm.io/gorm"
)

const maxTrackedAliases = 1024

// TaskProcessor consumes promotion tasks from a queue. Promotions to the same
// model alias never overlap, and neither do promotions that build the same
// serving bundle. Anything else may run side by side when more than one
// worker is started.
type TaskProcessor struct {
	releaser *Releaser
	db       *gorm.DB
	receiver messaging.Receiver
	locks    *utils.MutexMap
}

// NewTaskProcessor builds a processor. db may be nil, in which case task
// status is not tracked.
func NewTaskProcessor(releaser *Releaser, db *gorm.DB, receiver messaging.Receiver) *TaskProcessor {
	return &TaskProcessor{
		releaser: releaser,
		db:       db,
		receiver: receiver,
		locks:    utils.NewMutexMap(maxTrackedAliases),
	}
}

// Start blocks until the receiver is closed.
func (proc *TaskProcessor) Start(workers int) {
	slog.Info("starting task processor", "workers", workers)

	tasks := proc.receiver.Tasks()

	var wg sync.WaitGroup
	for range max(1, workers) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				proc.ProcessTask(task)
			}
		}()
	}
	wg.Wait()
}

func (proc *TaskProcessor) Stop() {
	slog.Info("stopping task processor")
	proc.receiver.Close()
}

func (proc *TaskProcessor) ProcessTask(task messaging.Task) {
	ctx := context.Background()

	if task.Type() != messaging.PromotionQueue {
		slog.Error("received unknown task type", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	var payload messaging.PromotionTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("error unmarshalling promotion task", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}
	if err := payload.Validate(); err != nil {
		slog.Error("invalid promotion task", "task_id", payload.TaskId, "error", err)
		proc.saveResult(ctx, payload, err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	// alias first, then bundle, in every worker
	err := proc.locks.WithLock(payload.ModelName+"@"+payload.Alias, func() error {
		return proc.locks.WithLock(bundleLockKey(payload), func() error {
			return proc.processPromotionTask(ctx, payload)
		})
	})

	if err != nil && !release.Committed(err) {
		slog.Error("error processing task", "queue", task.Type(), "task_id", payload.TaskId, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
		return
	}

	slog.Info("processed promotion task", "task_id", payload.TaskId, "partial", err != nil)
	if err := task.Ack(); err != nil {
		slog.Error("error acknowledging message from queue", "error", err)
	}
}

func (proc *TaskProcessor) processPromotionTask(ctx context.Context, payload messaging.PromotionTaskPayload) error {
	if proc.db != nil {
		if err := database.UpdatePromotionTaskStatus(ctx, proc.db, payload.TaskId, database.TaskRunning); err != nil {
			slog.Warn("error marking promotion task running", "task_id", payload.TaskId, "error", err)
		}
	}

	req := Request{
		ModelName:       payload.ModelName,
		Version:         payload.Version,
		Alias:           payload.Alias,
		ArchivePrevious: payload.ArchivePrevious,
		ArchivedAlias:   payload.ArchivedAlias,
		BatchHint:       payload.BatchHint,
		ServingName:     payload.ServingName,
		CleanVersionDir: payload.CleanVersionDir,
	}

	_, err := proc.releaser.RunTask(ctx, payload.TaskId, req)
	proc.saveResult(ctx, payload, err)
	return err
}

func (proc *TaskProcessor) saveResult(ctx context.Context, payload messaging.PromotionTaskPayload, err error) {
	if proc.db == nil {
		return
	}

	var dbErr error
	switch {
	case err == nil:
		dbErr = database.UpdatePromotionTaskStatus(ctx, proc.db, payload.TaskId, database.TaskCompleted)
	case release.Committed(err):
		dbErr = database.SavePromotionTaskError(ctx, proc.db, payload.TaskId, database.TaskPartial, string(release.Classify(err)), err.Error())
	default:
		dbErr = database.SavePromotionTaskError(ctx, proc.db, payload.TaskId, database.TaskFailed, string(release.Classify(err)), err.Error())
	}
	if dbErr != nil {
		slog.Error("error saving promotion task result", "task_id", payload.TaskId, "error", dbErr)
	}
}

// bundleLockKey names the serving directory a task writes to.
func bundleLockKey(payload messaging.PromotionTaskPayload) string {
	name := payload.ServingName
	if name == "" {
		name = payload.ModelName
	}
	return "bundle:" + name + "/" + payload.Version
}
