package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"model-release/internal/registry"
	"model-release/internal/release"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMLflow struct {
	mu            sync.Mutex
	aliases       map[string]string
	sources       map[string]string
	artifacts     map[string]string
	downloadCalls atomic.Int32
	failSetAlias  map[string]bool
}

func newFakeMLflow() *fakeMLflow {
	return &fakeMLflow{
		aliases:      map[string]string{},
		sources:      map[string]string{},
		artifacts:    map[string]string{},
		failSetAlias: map[string]bool{},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeMLflow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := r.URL.Query()
	switch {
	case r.URL.Path == "/api/2.0/mlflow/model-versions/get-download-uri":
		f.downloadCalls.Add(1)
		source, ok := f.sources[q.Get("name")+"/"+q.Get("version")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "no such version"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"artifact_uri": source})

	case r.URL.Path == "/api/2.0/mlflow/registered-models/alias" && r.Method == http.MethodGet:
		version, ok := f.aliases[q.Get("name")+"@"+q.Get("alias")]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "INVALID_PARAMETER_VALUE", "message": "Registered model alias prod not found."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"model_version": map[string]string{"name": q.Get("name"), "version": version}})

	case r.URL.Path == "/api/2.0/mlflow/registered-models/alias" && r.Method == http.MethodPost:
		var body struct{ Name, Alias, Version string }
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "BAD_REQUEST"})
			return
		}
		if f.failSetAlias[body.Alias] {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error_code": "INTERNAL_ERROR", "message": "db down"})
			return
		}
		f.aliases[body.Name+"@"+body.Alias] = body.Version
		writeJSON(w, http.StatusOK, map[string]string{})

	case r.URL.Path == "/api/2.0/mlflow-artifacts/artifacts":
		dir := q.Get("path")
		type entry struct {
			Path  string `json:"path"`
			IsDir bool   `json:"is_dir"`
		}
		seen := map[string]bool{}
		var files []entry
		for p := range f.artifacts {
			rest, ok := strings.CutPrefix(p, dir+"/")
			if !ok {
				continue
			}
			name, _, nested := strings.Cut(rest, "/")
			if seen[name] {
				continue
			}
			seen[name] = true
			files = append(files, entry{Path: name, IsDir: nested})
		}
		writeJSON(w, http.StatusOK, map[string]any{"files": files})

	case strings.HasPrefix(r.URL.Path, "/api/2.0/mlflow-artifacts/artifacts/"):
		content, ok := f.artifacts[strings.TrimPrefix(r.URL.Path, "/api/2.0/mlflow-artifacts/artifacts/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(content))

	default:
		http.NotFound(w, r)
	}
}

func newClient(t *testing.T, fake *fakeMLflow) *registry.MLflowClient {
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := registry.NewMLflowClient(registry.MLflowConfig{TrackingURI: server.URL, CacheDir: t.TempDir()}, nil)
	require.NoError(t, err)
	return client
}

func TestMLflowAliasRoundTrip(t *testing.T) {
	fake := newFakeMLflow()
	client := newClient(t, fake)
	ctx := context.Background()

	prev, err := client.GetAlias(ctx, "iris", "prod")
	require.NoError(t, err)
	assert.False(t, prev.IsPresent())

	require.NoError(t, client.SetAlias(ctx, "iris", "prod", "3"))

	cur, err := client.GetAlias(ctx, "iris", "prod")
	require.NoError(t, err)
	v, ok := cur.Get()
	require.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestMLflowSetAliasFailureIsRegistryError(t *testing.T) {
	fake := newFakeMLflow()
	fake.failSetAlias["prod"] = true
	client := newClient(t, fake)

	err := client.SetAlias(context.Background(), "iris", "prod", "3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, release.ErrRegistry))
	assert.Contains(t, err.Error(), "db down")
}

func TestMLflowUnreachableIsRegistryError(t *testing.T) {
	client, err := registry.NewMLflowClient(registry.MLflowConfig{TrackingURI: "http://127.0.0.1:1"}, nil)
	require.NoError(t, err)

	_, err = client.GetAlias(context.Background(), "iris", "prod")
	assert.True(t, errors.Is(err, release.ErrRegistry))
}

func TestMLflowLoadsLocalArtifactOnce(t *testing.T) {
	fake := newFakeMLflow()
	dir := writeModelDir(t, sklearnMLmodel)
	fake.sources["iris/3"] = "file://" + dir
	client := newClient(t, fake)
	ctx := context.Background()
	ref := release.ModelVersionRef{ModelName: "iris", Version: "3"}

	flavors, err := client.GetFlavors(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"python_function", "sklearn"}, flavors)

	raw, err := client.ResolveSignature(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, raw.Inputs, 1)

	artifact, err := client.LoadArtifact(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, dir, artifact.Dir)

	assert.Equal(t, int32(1), fake.downloadCalls.Load())
}

func TestMLflowUnknownVersion(t *testing.T) {
	client := newClient(t, newFakeMLflow())

	_, err := client.LoadArtifact(context.Background(), release.ModelVersionRef{ModelName: "iris", Version: "9"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, release.ErrRegistry))
}

func TestMLflowProxiedArtifacts(t *testing.T) {
	fake := newFakeMLflow()
	fake.sources["net/1"] = "mlflow-artifacts:/0/abc123/artifacts/model"
	fake.artifacts["0/abc123/artifacts/model/MLmodel"] = "flavors:\n  pytorch: {}\nsignature:\n  inputs: '[{\"type\": \"tensor\", \"tensor-spec\": {\"dtype\": \"float32\", \"shape\": [-1, 3]}}]'\n  outputs: ''\n"
	fake.artifacts["0/abc123/artifacts/model/data/model.pth"] = "weights"
	client := newClient(t, fake)

	artifact, err := client.LoadArtifact(context.Background(), release.ModelVersionRef{ModelName: "net", Version: "1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"pytorch"}, artifact.MLmodel.FlavorNames())
	data, err := os.ReadFile(filepath.Join(artifact.Dir, "data", "model.pth"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
}

func TestMLflowS3ArtifactsNeedStore(t *testing.T) {
	fake := newFakeMLflow()
	fake.sources["iris/1"] = "s3://bucket/1/run/artifacts/model"
	client := newClient(t, fake)

	_, err := client.LoadArtifact(context.Background(), release.ModelVersionRef{ModelName: "iris", Version: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no s3 store is configured")
}
