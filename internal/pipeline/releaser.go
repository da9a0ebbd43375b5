package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"model-release/internal/bundle"
	"model-release/internal/convert"
	"model-release/internal/export"
	"model-release/internal/history"
	"model-release/internal/messaging"
	"model-release/internal/promote"
	"model-release/internal/registry"
	"model-release/internal/release"
	"model-release/internal/schema"
	"model-release/internal/tritonconfig"
	"model-release/internal/validate"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Releaser runs the export-then-promote flow. Every collaborator is passed in
// explicitly; Publisher, Events and Progress are optional.
type Releaser struct {
	Registry  registry.Client
	Converter convert.Converter
	Validator *validate.Validator
	Layout    bundle.Layout
	History   history.Recorder

	Publisher *bundle.Publisher
	Events    messaging.EventPublisher
	Progress  func(step Step)
}

func (r *Releaser) step(s Step) {
	if r.Progress != nil {
		r.Progress(s)
	}
}

// Run promotes req. Errors before the alias commit leave the registry and the
// history untouched. After the commit the only possible error is an
// *release.ArchiveError, returned together with a non-nil Result.
func (r *Releaser) Run(ctx context.Context, req Request) (*Result, error) {
	return r.run(ctx, uuid.Nil, req)
}

// RunTask is Run for queued tasks; taskId is carried into events.
func (r *Releaser) RunTask(ctx context.Context, taskId uuid.UUID, req Request) (*Result, error) {
	return r.run(ctx, taskId, req)
}

func (r *Releaser) run(ctx context.Context, taskId uuid.UUID, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid promotion request: %w", err)
	}

	start := time.Now()
	ref := req.Ref()
	slog.Info("starting promotion", "model_uri", ref.URI(), "alias", req.Alias, "serving_name", req.servingName())

	result, err := r.promote(ctx, req)
	if err != nil && !release.Committed(err) {
		slog.Error("promotion aborted", "model_uri", ref.URI(), "alias", req.Alias, "kind", release.Classify(err), "error", err)
		r.publishEvent(ctx, failureEvent(taskId, req, err))
		return nil, err
	}

	if err != nil {
		slog.Warn("promotion committed with errors", "model_uri", ref.URI(), "alias", req.Alias, "error", err, "duration", time.Since(start))
	} else {
		slog.Info("promotion completed", "model_uri", ref.URI(), "alias", req.Alias, "previous", result.Outcome.Previous.String(), "duration", time.Since(start))
	}
	r.publishEvent(ctx, successEvent(taskId, result, err))
	return result, err
}

func (r *Releaser) promote(ctx context.Context, req Request) (*Result, error) {
	ref := req.Ref()
	name := req.servingName()

	r.step(StepResolve)
	sig, flavor, artifact, err := r.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	exporter, err := export.ForFlavor(flavor)
	if err != nil {
		return nil, err
	}

	stage, err := r.Layout.Stage(name, ref.Version, req.CleanVersionDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := stage.Discard(); err != nil {
			slog.Warn("error discarding stage", "dir", stage.Dir, "error", err)
		}
	}()

	r.step(StepExport)
	policy := tritonconfig.NewBatchPolicy(req.BatchHint)
	cfg := tritonconfig.Generate(name, tritonconfig.PlatformONNX, policy, sig)

	// a started conversion runs to completion; cancellation is checked again
	// before the commit
	var g errgroup.Group
	g.Go(func() error {
		_, err := export.Export(context.WithoutCancel(ctx), r.Converter, exporter, artifact.Dir, stage.ModelPath(), sig)
		return err
	})
	g.Go(func() error {
		return tritonconfig.WriteFile(stage.ConfigPath(), cfg)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.step(StepValidate)
	if _, err := r.Validator.Validate(stage.Dir, tritonconfig.ConfigFileName, bundle.ModelFileName); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("promotion canceled before commit: %w", err)
	}
	bundlePath, err := stage.Commit()
	if err != nil {
		return nil, err
	}

	r.step(StepPublish)
	var publishedTo string
	if r.Publisher != nil {
		if publishedTo, err = r.Publisher.Publish(ctx, name, ref.Version, bundlePath); err != nil {
			return nil, err
		}
	}

	r.step(StepPromote)
	promoter := promote.NewPromoter(r.Registry)
	outcome, promoteErr := promoter.Promote(ctx, ref.ModelName, req.Alias, ref.Version, req.ArchivePrevious, req.ArchivedAlias)
	if promoteErr != nil && !release.Committed(promoteErr) {
		return nil, promoteErr
	}

	result := &Result{
		Ref:         ref,
		Alias:       req.Alias,
		Flavor:      flavor,
		Signature:   sig,
		Config:      cfg,
		BundlePath:  bundlePath,
		PublishedTo: publishedTo,
		Outcome:     outcome,
	}

	r.step(StepRecord)
	result.Record = buildRecord(req, result, promoteErr)
	if err := r.History.Append(ctx, result.Record); err != nil {
		// the alias is authoritative; a missing audit entry does not undo it
		slog.Error("error recording promotion history", "model_uri", ref.URI(), "error", err)
	}

	return result, promoteErr
}

func (r *Releaser) resolve(ctx context.Context, ref release.ModelVersionRef) (schema.Signature, convert.Flavor, *registry.Artifact, error) {
	raw, err := r.Registry.ResolveSignature(ctx, ref)
	if err != nil {
		return schema.Signature{}, "", nil, err
	}
	sig, err := schema.Map(raw)
	if err != nil {
		return schema.Signature{}, "", nil, err
	}

	flavors, err := r.Registry.GetFlavors(ctx, ref)
	if err != nil {
		return schema.Signature{}, "", nil, err
	}
	flavor, err := export.DetectFlavor(flavors)
	if err != nil {
		return schema.Signature{}, "", nil, err
	}

	artifact, err := r.Registry.LoadArtifact(ctx, ref)
	if err != nil {
		return schema.Signature{}, "", nil, err
	}

	slog.Info("model resolved", "model_uri", ref.URI(), "flavor", flavor, "inputs", sig.InputNames(), "outputs", sig.OutputNames())
	return sig, flavor, artifact, nil
}

func buildRecord(req Request, result *Result, archiveErr error) history.Record {
	rec := history.NewRecord(result.Ref, req.Alias)
	rec.PreviousVersion = result.Outcome.Previous
	if req.ArchivePrevious {
		alias := req.ArchivedAlias
		rec.ArchivedAlias = &alias
	}
	rec.ArchivedVersion = result.Outcome.ArchivedVersion()
	rec.ServingModelName = result.Config.Name
	rec.ServingVersion = result.Ref.Version
	rec.BundlePath = result.BundlePath
	rec.Platform = result.Config.Platform
	rec.MaxBatchSize = result.Config.MaxBatchSize
	rec.Flavor = string(result.Flavor)
	sig := result.Signature
	rec.Signature = &sig
	if archiveErr != nil {
		msg := archiveErr.Error()
		rec.ArchiveError = &msg
	}
	return rec
}

func (r *Releaser) publishEvent(ctx context.Context, event messaging.PromotionEvent) {
	if r.Events == nil {
		return
	}
	if err := r.Events.PublishPromotionEvent(ctx, event); err != nil {
		slog.Warn("error publishing promotion event", "model", event.ModelName, "version", event.Version, "error", err)
	}
}

func successEvent(taskId uuid.UUID, result *Result, err error) messaging.PromotionEvent {
	event := messaging.PromotionEvent{
		TaskId:          taskId,
		Status:          messaging.EventCommitted,
		Timestamp:       time.Now().UTC(),
		ModelName:       result.Ref.ModelName,
		Version:         result.Ref.Version,
		Alias:           result.Alias,
		PreviousVersion: result.Outcome.Previous,
		ArchivedVersion: result.Outcome.ArchivedVersion(),
		BundlePath:      result.BundlePath,
	}
	if err != nil {
		event.Status = messaging.EventPartial
		event.ErrorKind = release.Classify(err)
		event.Error = err.Error()
	}
	return event
}

func failureEvent(taskId uuid.UUID, req Request, err error) messaging.PromotionEvent {
	return messaging.PromotionEvent{
		TaskId:    taskId,
		Status:    messaging.EventFailed,
		Timestamp: time.Now().UTC(),
		ModelName: req.ModelName,
		Version:   req.Version,
		Alias:     req.Alias,
		ErrorKind: release.Classify(err),
		Error:     err.Error(),
	}
}
