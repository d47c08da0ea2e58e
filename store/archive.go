package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Archiver keeps an out-of-database copy of a saved plan.
type Archiver interface {
	Archive(ctx context.Context, p StoredPlan) (string, error)
}

// ArchiveKey is the object name of a plan archive, relative to a prefix.
func ArchiveKey(p StoredPlan) string {
	return fmt.Sprintf("user-%d/%s.json", p.UserID, p.ID)
}

// DirArchiver writes plan archives below a local directory.
type DirArchiver struct {
	Dir string
}

func NewDirArchiver(dir string) *DirArchiver {
	return &DirArchiver{Dir: dir}
}

func (a *DirArchiver) Archive(ctx context.Context, p StoredPlan) (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode plan %s: %w", p.ID, err)
	}
	path := filepath.Join(a.Dir, filepath.FromSlash(ArchiveKey(p)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write plan archive: %w", err)
	}
	return path, nil
}

// LoadArchive reads a plan archive written by DirArchiver.
func LoadArchive(path string) (StoredPlan, error) {
	var p StoredPlan
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to decode plan archive: %w", err)
	}
	return p, nil
}

type NoOpArchiver struct{}

func (NoOpArchiver) Archive(context.Context, StoredPlan) (string, error) {
	return "", nil
}
