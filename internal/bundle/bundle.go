package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"model-release/internal/tritonconfig"

	"github.com/google/uuid"
)

const (
	ModelFileName   = "model.onnx"
	HistoryFileName = "deployment_history.json"

	stagingDirName = ".staging"
)

// Layout is a serving model repository:
//
//	<root>/<name>/<version>/config.pbtxt
//	<root>/<name>/<version>/model.onnx
//	<root>/<name>/deployment_history.json
type Layout struct {
	Root string
}

func (l Layout) ModelDir(name string) string {
	return filepath.Join(l.Root, name)
}

func (l Layout) VersionDir(name, version string) string {
	return filepath.Join(l.Root, name, version)
}

func (l Layout) HistoryPath(name string) string {
	return filepath.Join(l.Root, name, HistoryFileName)
}

func (l Layout) stagingDir(name string) string {
	return filepath.Join(l.Root, name, stagingDirName)
}

// Stage is a provisional bundle. Nothing at the final version path changes
// until Commit.
type Stage struct {
	Name    string
	Version string
	Dir     string

	layout Layout
	id     string
}

// Stage creates a fresh staging directory for name/version. Unless clean is
// set, the files of an existing bundle for the same version are copied in
// first so that anything besides the config and model survives the rebuild.
// The config and model themselves are never carried over.
func (l Layout) Stage(name, version string, clean bool) (*Stage, error) {
	if name == "" || version == "" {
		return nil, fmt.Errorf("bundle name and version are required")
	}

	id := uuid.New().String()
	dir := filepath.Join(l.stagingDir(name), version+"-"+id)

	if err := os.MkdirAll(l.stagingDir(name), os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating staging directory: %w", err)
	}

	existing := l.VersionDir(name, version)
	if _, err := os.Stat(existing); err == nil && !clean {
		if err := os.CopyFS(dir, os.DirFS(existing)); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("error copying existing bundle %s into stage: %w", existing, err)
		}
		for _, generated := range []string{ModelFileName, tritonconfig.ConfigFileName} {
			if err := os.Remove(filepath.Join(dir, generated)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				_ = os.RemoveAll(dir)
				return nil, fmt.Errorf("error clearing %s from stage: %w", generated, err)
			}
		}
	} else if err := os.Mkdir(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating stage %s: %w", dir, err)
	}

	return &Stage{Name: name, Version: version, Dir: dir, layout: l, id: id}, nil
}

func (s *Stage) ConfigPath() string {
	return filepath.Join(s.Dir, tritonconfig.ConfigFileName)
}

func (s *Stage) ModelPath() string {
	return filepath.Join(s.Dir, ModelFileName)
}

// FinalDir is where the bundle lives once committed.
func (s *Stage) FinalDir() string {
	return s.layout.VersionDir(s.Name, s.Version)
}

// Commit swaps the stage into the version path. The previous bundle, if any,
// is moved aside first and restored if the swap fails.
func (s *Stage) Commit() (string, error) {
	final := s.FinalDir()
	trash := filepath.Join(s.layout.stagingDir(s.Name), s.Version+"-"+s.id+".old")

	replaced := false
	if _, err := os.Stat(final); err == nil {
		if err := os.Rename(final, trash); err != nil {
			return "", fmt.Errorf("error moving existing bundle %s aside: %w", final, err)
		}
		replaced = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("error checking bundle %s: %w", final, err)
	}

	if err := os.Rename(s.Dir, final); err != nil {
		if replaced {
			if rerr := os.Rename(trash, final); rerr != nil {
				slog.Error("error restoring previous bundle", "path", final, "error", rerr)
			}
		}
		return "", fmt.Errorf("error committing bundle to %s: %w", final, err)
	}

	if replaced {
		if err := os.RemoveAll(trash); err != nil {
			slog.Warn("error removing replaced bundle", "path", trash, "error", err)
		}
	}

	slog.Info("bundle committed", "model", s.Name, "version", s.Version, "path", final)
	return final, nil
}

// Discard removes the stage. It is safe to call after Commit. The shared
// staging directory is left in place for stages still in flight.
func (s *Stage) Discard() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("error removing stage %s: %w", s.Dir, err)
	}
	return nil
}
