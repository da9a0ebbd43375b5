package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"model-release/cmd"
	"model-release/internal/config"
	"model-release/internal/pipeline"
	"model-release/internal/promote"
	"model-release/internal/registry"
	"model-release/internal/release"

	"github.com/schollz/progressbar/v3"
)

const (
	exitOK      = 0
	exitAborted = 1
	exitUsage   = 2
	exitPartial = 3
)

var errUsage = errors.New("usage error")

type options struct {
	modelURI        string
	model           string
	version         string
	alias           string
	archivePrevious bool
	archivedAlias   string
	batchHint       int
	servingName     string
	clean           bool

	outputRoot  string
	trackingURI string
}

// applyModelURI fills in -model and -version from -model-uri. For an alias
// URI the version is left empty and the alias is returned for lookup.
func (o *options) applyModelURI() (string, error) {
	if o.modelURI == "" {
		return "", nil
	}
	if o.model != "" || o.version != "" {
		return "", fmt.Errorf("%w: -model-uri cannot be combined with -model or -version", errUsage)
	}

	uri, err := release.ParseModelURI(o.modelURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	o.model = uri.ModelName
	o.version = uri.Version
	return uri.Alias, nil
}

// configure applies the command line overrides to the environment config.
func (o options) configure(cfg *config.Config) error {
	if o.outputRoot != "" {
		cfg.ModelRepository = o.outputRoot
	}
	if o.trackingURI != "" {
		cfg.TrackingURI = o.trackingURI
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func resolveAlias(ctx context.Context, reg registry.Client, model, alias string) (string, error) {
	current, err := reg.GetAlias(ctx, model, alias)
	if err != nil {
		return "", err
	}
	version, ok := current.Get()
	if !ok {
		return "", fmt.Errorf("alias %s@%s is not set", model, alias)
	}
	slog.Info("resolved source alias", "model", model, "alias", alias, "version", version)
	return version, nil
}

func (o options) request() (pipeline.Request, error) {
	if o.model == "" || o.version == "" {
		return pipeline.Request{}, fmt.Errorf("%w: -model and -version are required", errUsage)
	}

	req := pipeline.NewRequest(o.model, o.version)
	req.Alias = o.alias
	req.ArchivePrevious = o.archivePrevious
	req.ArchivedAlias = o.archivedAlias
	req.ServingName = o.servingName
	req.CleanVersionDir = o.clean
	if o.batchHint > 0 {
		hint := o.batchHint
		req.BatchHint = &hint
	}

	if err := req.Validate(); err != nil {
		return pipeline.Request{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	return req, nil
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case release.Committed(err):
		return exitPartial
	default:
		return exitAborted
	}
}

func main() {
	var opts options
	flag.StringVar(&opts.modelURI, "model-uri", "", "models:/<name>/<version> or models:/<name>@<alias>, instead of -model and -version")
	flag.StringVar(&opts.model, "model", "", "registered model name")
	flag.StringVar(&opts.version, "version", "", "model version to promote")
	flag.StringVar(&opts.alias, "alias", promote.DefaultAlias, "alias to point at the version")
	flag.BoolVar(&opts.archivePrevious, "archive-previous", true, "move the alias's previous version to -archived-alias")
	flag.StringVar(&opts.archivedAlias, "archived-alias", promote.DefaultArchivedAlias, "alias that receives the previous version")
	flag.IntVar(&opts.batchHint, "batch-hint", 0, "max batch size for the serving config, <= 1 disables batching")
	flag.StringVar(&opts.servingName, "serving-name", "", "model name in the serving repository, defaults to -model")
	flag.BoolVar(&opts.clean, "clean", true, "rebuild the version directory from scratch")
	flag.StringVar(&opts.outputRoot, "output-root", "", "serving model repository root, overrides MODEL_REPOSITORY")
	flag.StringVar(&opts.trackingURI, "tracking-uri", "", "MLflow tracking server, overrides MLFLOW_TRACKING_URI")

	cmd.LoadEnvFile()

	sourceAlias, err := opts.applyModelURI()
	if err == nil && sourceAlias == "" {
		_, err = opts.request()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(exitUsage)
	}

	cfg, err := config.Parse()
	if err == nil {
		err = opts.configure(cfg)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	components, err := cmd.Build(cfg)
	if err != nil {
		log.Fatalf("error initializing release components: %v", err)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sourceAlias != "" {
		version, err := resolveAlias(ctx, components.Registry, opts.model, sourceAlias)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error (%s): %v\n", release.Classify(err), err)
			components.Close()
			os.Exit(exitAborted)
		}
		opts.version = version
	}

	req, err := opts.request()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		components.Close()
		os.Exit(exitUsage)
	}

	bar := progressbar.NewOptions(len(pipeline.Steps),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("⏳ promoting"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	releaser := &pipeline.Releaser{
		Registry:  components.Registry,
		Converter: components.Converter,
		Validator: components.Validator,
		Layout:    components.Layout,
		History:   components.History,
		Publisher: components.Publisher,
		Progress: func(step pipeline.Step) {
			bar.Describe(fmt.Sprintf("⏳ %s", step))
			_ = bar.Add(1)
		},
	}

	result, err := releaser.Run(ctx, req)
	_ = bar.Finish()

	if result != nil {
		fmt.Println(result.Summary())
	}
	if err != nil {
		slog.Error("promotion failed", "kind", release.Classify(err), "error", err)
		fmt.Fprintf(os.Stderr, "error (%s): %v\n", release.Classify(err), err)
	}

	code := exitCode(err)
	if code != exitOK {
		components.Close()
		os.Exit(code)
	}
}
