package cmd

import (
	"flag"
	"fmt"
	"log"
	"log/slog"

	"model-release/internal/bundle"
	"model-release/internal/config"
	"model-release/internal/convert"
	"model-release/internal/database"
	"model-release/internal/history"
	"model-release/internal/onnx"
	"model-release/internal/registry"
	"model-release/internal/storage"
	"model-release/internal/validate"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

// LoadEnvFile parses the command line, so callers define their own flags
// first.
func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// Components is everything a promotion needs, built once per process from the
// configuration.
type Components struct {
	DB        *gorm.DB
	Store     storage.ObjectStore
	Registry  registry.Client
	Converter convert.Converter
	Validator *validate.Validator
	Layout    bundle.Layout
	History   history.Recorder
	Publisher *bundle.Publisher

	closers []func()
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func Build(cfg *config.Config) (*Components, error) {
	c := &Components{Layout: bundle.Layout{Root: cfg.ModelRepository}}

	if cfg.DatabaseURL != "" {
		db, err := database.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.DB = db
	}

	if cfg.HasS3() || cfg.BundleBucket != "" {
		store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating s3 object store: %w", err)
		}
		c.Store = store
	}

	fetcher := &registry.Fetcher{CacheDir: cfg.ArtifactCacheDir, S3: c.Store}
	switch cfg.RegistryBackend {
	case config.RegistryLocal:
		if c.DB == nil {
			return nil, fmt.Errorf("the local registry requires a database")
		}
		c.Registry = registry.NewLocalRegistry(c.DB, fetcher)
	default:
		client, err := registry.NewMLflowClient(registry.MLflowConfig{
			TrackingURI: cfg.TrackingURI,
			Token:       cfg.TrackingToken,
			CacheDir:    cfg.ArtifactCacheDir,
		}, fetcher)
		if err != nil {
			return nil, err
		}
		c.Registry = client
	}

	conv := convert.NewPluginConverter(cfg.ConverterPlugin)
	conv.Env = []string{
		"PYTHON_EXECUTABLE=" + cfg.PythonExecutable,
		"CONVERTER_SCRIPT=" + cfg.ConverterScript,
	}
	c.Converter = conv

	var inspector onnx.Inspector
	if cfg.OnnxRuntimeDylib != "" {
		ri, err := onnx.NewRuntimeInspector(cfg.OnnxRuntimeDylib)
		if err != nil {
			return nil, err
		}
		inspector = ri
		c.closers = append(c.closers, func() {
			if err := onnx.DestroyRuntime(); err != nil {
				slog.Error("error destroying onnx runtime", "error", err)
			}
		})
	}
	c.Validator = validate.NewValidator(inspector)
	c.Validator.StrictTensorNames = cfg.StrictTensorNames

	files := history.NewFileRecorder(c.Layout.HistoryPath)
	if c.DB != nil {
		c.History = history.Tee{files, history.NewDBRecorder(c.DB)}
	} else {
		c.History = files
	}

	if cfg.BundleBucket != "" {
		c.Publisher = &bundle.Publisher{Store: c.Store, Bucket: cfg.BundleBucket, Prefix: cfg.BundlePrefix}
	}

	return c, nil
}
