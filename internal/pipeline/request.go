package pipeline

import (
	"fmt"

	"model-release/internal/convert"
	"model-release/internal/history"
	"model-release/internal/promote"
	"model-release/internal/release"
	"model-release/internal/schema"
	"model-release/internal/tritonconfig"
)

// Request is one promotion of a registry version to an alias.
type Request struct {
	ModelName string
	Version   string
	Alias     string

	ArchivePrevious bool
	ArchivedAlias   string

	// BatchHint <= 1 or nil disables batching.
	BatchHint *int
	// ServingName overrides the model name used in the serving repository.
	ServingName string
	// CleanVersionDir rebuilds the bundle from scratch instead of keeping
	// unrelated files from a previous export of the same version.
	CleanVersionDir bool
}

// NewRequest fills in the defaults used by the release tooling.
func NewRequest(model, version string) Request {
	return Request{
		ModelName:       model,
		Version:         version,
		Alias:           promote.DefaultAlias,
		ArchivePrevious: true,
		ArchivedAlias:   promote.DefaultArchivedAlias,
		CleanVersionDir: true,
	}
}

func (r Request) Validate() error {
	switch {
	case r.ModelName == "":
		return fmt.Errorf("model name is required")
	case r.Version == "":
		return fmt.Errorf("version is required")
	case r.Alias == "":
		return fmt.Errorf("alias is required")
	case r.ArchivePrevious && r.ArchivedAlias == "":
		return fmt.Errorf("archived alias is required when archiving")
	case r.ArchivePrevious && r.ArchivedAlias == r.Alias:
		return fmt.Errorf("archived alias must differ from alias %q", r.Alias)
	}
	return nil
}

func (r Request) Ref() release.ModelVersionRef {
	return release.ModelVersionRef{ModelName: r.ModelName, Version: r.Version}
}

func (r Request) servingName() string {
	if r.ServingName != "" {
		return r.ServingName
	}
	return r.ModelName
}

// Result describes a promotion that reached the commit point. It is returned
// alongside an *release.ArchiveError for partial successes.
type Result struct {
	Ref         release.ModelVersionRef
	Alias       string
	Flavor      convert.Flavor
	Signature   schema.Signature
	Config      tritonconfig.ModelConfig
	BundlePath  string
	PublishedTo string
	Outcome     promote.Outcome
	Record      history.Record
}

// Summary is the operator-facing description of the alias change.
func (r *Result) Summary() string {
	s := fmt.Sprintf("Set alias: %s@%s -> v%s", r.Ref.ModelName, r.Alias, r.Ref.Version)
	if v, ok := r.Outcome.ArchivedVersion().Get(); ok && r.Record.ArchivedAlias != nil {
		s += fmt.Sprintf("\nArchived previous %s: v%s via alias '%s'", r.Alias, v, *r.Record.ArchivedAlias)
	}
	return s
}

// Step names the stages of a run, in order.
type Step string

const (
	StepResolve  Step = "resolve"
	StepExport   Step = "export"
	StepValidate Step = "validate"
	StepPublish  Step = "publish"
	StepPromote  Step = "promote"
	StepRecord   Step = "record"
)

var Steps = []Step{StepResolve, StepExport, StepValidate, StepPublish, StepPromote, StepRecord}
