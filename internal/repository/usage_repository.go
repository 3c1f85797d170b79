package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
)

// UsageRepository appends audit entries to a JSON Lines file.
type UsageRepository struct {
	mu   sync.Mutex
	path string
}

func NewUsageRepository(path string) *UsageRepository {
	return &UsageRepository{path: path}
}

func (r *UsageRepository) Append(entry entities.UsageLogEntry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("encode usage entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure usage log dir: %w", err)
		}
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append usage log: %w", err)
	}
	return nil
}

// ReadAll decodes every entry in the log. Malformed lines are skipped.
func (r *UsageRepository) ReadAll() ([]entities.UsageLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read usage log: %w", err)
	}

	var out []entities.UsageLogEntry
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e entities.UsageLogEntry
		if json.Unmarshal(line, &e) == nil {
			out = append(out, e)
		}
	}
	return out, nil
}
