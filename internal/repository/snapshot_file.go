package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

// FileSnapshotter stores the quota table as one JSON document, replaced
// atomically on every save.
type FileSnapshotter struct {
	path string
}

func NewFileSnapshotter(path string) *FileSnapshotter {
	return &FileSnapshotter{path: path}
}

func (f *FileSnapshotter) Load(_ context.Context) (map[int64]entities.UserQuota, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[int64]entities.UserQuota{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quota snapshot %s: %w", f.path, err)
	}
	out := map[int64]entities.UserQuota{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode quota snapshot %s: %w", f.path, err)
	}
	return out, nil
}

func (f *FileSnapshotter) Save(_ context.Context, quotas map[int64]entities.UserQuota) error {
	data, err := json.MarshalIndent(quotas, "", "  ")
	if err != nil {
		return fmt.Errorf("encode quota snapshot: %w", err)
	}
	return writeAtomic(f.path, append(data, '\n'))
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}
	return nil
}
