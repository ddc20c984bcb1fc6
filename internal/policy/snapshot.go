package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vietddude/triage/internal/core/domain"
)

// SaveSnapshot writes the model atomically: marshal to a temporary file in
// the same directory, fsync, then rename over the target. A crash mid-write
// leaves the previous snapshot intact.
func SaveSnapshot(path string, m *Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to swap snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads and validates a model snapshot. A missing file returns
// os.ErrNotExist; a corrupt or invalid file returns an error so the caller
// can fall back to an empty model.
func LoadSnapshot(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt snapshot %s: %w", path, err)
	}
	if m.Epsilon < 0 || m.Epsilon > 1 {
		return nil, fmt.Errorf("corrupt snapshot %s: epsilon %v out of range", path, m.Epsilon)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]map[domain.Destination]float64)
	}
	return &m, nil
}
