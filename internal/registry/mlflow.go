package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"model-release/internal/release"
	"model-release/internal/schema"
	"model-release/internal/utils"

	"github.com/go-resty/resty/v2"
)

const (
	mlflowDownloadWorkers = 4
	mlflowRequestTimeout  = 60 * time.Second
)

type MLflowConfig struct {
	TrackingURI string
	Token       string
	CacheDir    string
}

// MLflowClient talks to an MLflow tracking server's model registry REST API.
type MLflowClient struct {
	client *resty.Client
	cache  *artifactCache
}

var _ Client = (*MLflowClient)(nil)

// NewMLflowClient builds a client. fetcher may be nil, in which case only
// local and proxied artifacts can be loaded.
func NewMLflowClient(cfg MLflowConfig, fetcher *Fetcher) (*MLflowClient, error) {
	if cfg.TrackingURI == "" {
		return nil, fmt.Errorf("mlflow tracking uri is required")
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.TrackingURI, "/")).
		SetTimeout(mlflowRequestTimeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	c := &MLflowClient{client: client}

	if fetcher == nil {
		fetcher = &Fetcher{}
	}
	if fetcher.CacheDir == "" {
		fetcher.CacheDir = cfg.CacheDir
	}
	if fetcher.Proxy == nil {
		fetcher.Proxy = c
	}
	c.cache = newArtifactCache(fetcher, c.downloadURI)

	return c, nil
}

type mlflowError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func parseMLflowError(res *resty.Response) mlflowError {
	var e mlflowError
	_ = json.Unmarshal(res.Body(), &e)
	return e
}

func (c *MLflowClient) downloadURI(ctx context.Context, ref release.ModelVersionRef) (string, error) {
	var body struct {
		ArtifactURI string `json:"artifact_uri"`
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"name": ref.ModelName, "version": ref.Version}).
		SetResult(&body).
		Get("/api/2.0/mlflow/model-versions/get-download-uri")
	if err != nil {
		return "", release.RegistryErrorf("error resolving download uri for %s: %w", ref.URI(), err)
	}
	if !res.IsSuccess() {
		e := parseMLflowError(res)
		return "", release.RegistryErrorf("mlflow returned %d resolving %s: %s %s", res.StatusCode(), ref.URI(), e.ErrorCode, e.Message)
	}
	if body.ArtifactURI == "" {
		return "", release.RegistryErrorf("mlflow returned no artifact uri for %s", ref.URI())
	}
	return body.ArtifactURI, nil
}

func (c *MLflowClient) ResolveSignature(ctx context.Context, ref release.ModelVersionRef) (schema.RawSignature, error) {
	return c.cache.signature(ctx, ref)
}

func (c *MLflowClient) LoadArtifact(ctx context.Context, ref release.ModelVersionRef) (*Artifact, error) {
	return c.cache.load(ctx, ref)
}

func (c *MLflowClient) GetFlavors(ctx context.Context, ref release.ModelVersionRef) ([]string, error) {
	return c.cache.flavors(ctx, ref)
}

// GetAlias returns Absent when the alias or the registered model does not
// exist.
func (c *MLflowClient) GetAlias(ctx context.Context, model, alias string) (release.OptionalVersion, error) {
	var body struct {
		ModelVersion struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"model_version"`
	}

	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"name": model, "alias": alias}).
		SetResult(&body).
		Get("/api/2.0/mlflow/registered-models/alias")
	if err != nil {
		return release.Absent(), release.RegistryErrorf("error reading alias %s@%s: %w", model, alias, err)
	}

	if !res.IsSuccess() {
		e := parseMLflowError(res)
		if aliasNotFound(res.StatusCode(), e) {
			return release.Absent(), nil
		}
		return release.Absent(), release.RegistryErrorf("mlflow returned %d reading alias %s@%s: %s %s", res.StatusCode(), model, alias, e.ErrorCode, e.Message)
	}

	if body.ModelVersion.Version == "" {
		return release.Absent(), nil
	}
	return release.Present(body.ModelVersion.Version), nil
}

func aliasNotFound(status int, e mlflowError) bool {
	if status == http.StatusNotFound || e.ErrorCode == "RESOURCE_DOES_NOT_EXIST" {
		return true
	}
	// some stores report a missing alias as an invalid parameter
	return e.ErrorCode == "INVALID_PARAMETER_VALUE" && strings.Contains(strings.ToLower(e.Message), "not found")
}

func (c *MLflowClient) SetAlias(ctx context.Context, model, alias, version string) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"name": model, "alias": alias, "version": version}).
		Post("/api/2.0/mlflow/registered-models/alias")
	if err != nil {
		return release.RegistryErrorf("error setting alias %s@%s -> %s: %w", model, alias, version, err)
	}
	if !res.IsSuccess() {
		e := parseMLflowError(res)
		return release.RegistryErrorf("mlflow returned %d setting alias %s@%s -> %s: %s %s", res.StatusCode(), model, alias, version, e.ErrorCode, e.Message)
	}

	slog.Info("alias set", "model", model, "alias", alias, "version", version)
	return nil
}

type artifactListing struct {
	Files []struct {
		Path  string `json:"path"`
		IsDir bool   `json:"is_dir"`
	} `json:"files"`
}

func (c *MLflowClient) listArtifacts(ctx context.Context, dir string) ([]string, error) {
	var listing artifactListing
	res, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("path", dir).
		SetResult(&listing).
		Get("/api/2.0/mlflow-artifacts/artifacts")
	if err != nil {
		return nil, fmt.Errorf("error listing artifacts under %s: %w", dir, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("mlflow returned %d listing artifacts under %s: %s", res.StatusCode(), dir, res.String())
	}

	var files []string
	for _, f := range listing.Files {
		// entries are relative to the listed directory
		p := path.Join(dir, strings.TrimPrefix(f.Path, dir+"/"))
		if f.IsDir {
			nested, err := c.listArtifacts(ctx, p)
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
		} else {
			files = append(files, p)
		}
	}
	return files, nil
}

// DownloadArtifacts copies everything under the proxied artifact path into
// dest using a small worker pool.
func (c *MLflowClient) DownloadArtifacts(ctx context.Context, root, dest string) error {
	files, err := c.listArtifacts(ctx, root)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no artifacts found under %s", root)
	}

	err = utils.ForEach(files, mlflowDownloadWorkers, func(file string) error {
		rel := strings.TrimPrefix(strings.TrimPrefix(file, root), "/")
		local := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(local), os.ModePerm); err != nil {
			return err
		}

		res, err := c.client.R().
			SetContext(ctx).
			SetOutput(local).
			Get("/api/2.0/mlflow-artifacts/artifacts/" + file)
		if err != nil {
			return fmt.Errorf("error downloading artifact %s: %w", file, err)
		}
		if !res.IsSuccess() {
			return fmt.Errorf("mlflow returned %d downloading artifact %s", res.StatusCode(), file)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("artifacts downloaded from tracking server", "path", root, "files", len(files), "dest", dest)
	return nil
}
