package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileRecorder keeps one JSON array per serving model at
// <root>/<model>/deployment_history.json. Each append rewrites the file
// through a temporary file and a rename.
type FileRecorder struct {
	path func(model string) string

	mu sync.Mutex
}

func NewFileRecorder(path func(model string) string) *FileRecorder {
	return &FileRecorder{path: path}
}

func (r *FileRecorder) Append(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.path(rec.ServingModelName)

	records, err := readRecords(path)
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("error creating history directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".history-*.json")
	if err != nil {
		return fmt.Errorf("error creating history temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error replacing history file %s: %w", path, err)
	}

	slog.Info("history record appended", "path", path, "model", rec.ModelName, "version", rec.Version, "records", len(records))
	return nil
}

func (r *FileRecorder) List(ctx context.Context, model string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return readRecords(r.path(model))
}

func readRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading history file %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("error parsing history file %s: %w", path, err)
	}
	return records, nil
}
