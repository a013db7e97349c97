package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tutorhq/tutorbook/internal/model"
)

// FileStore keeps the whole collection in a single JSON file. Instants are
// normalized to UTC on save so the RFC 3339 encoding round-trips exactly.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) ([]model.Appointment, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var appts []model.Appointment
	if err := json.Unmarshal(raw, &appts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return appts, nil
}

func (s *FileStore) Save(_ context.Context, appts []model.Appointment) error {
	out := make([]model.Appointment, len(appts))
	for i, a := range appts {
		a.Start = a.Start.UTC()
		a.CreatedAt = a.CreatedAt.UTC()
		out[i] = a
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode appointments: %w", err)
	}

	// Write to a temp file in the same directory, then rename. A crash mid-write
	// never leaves a truncated store behind.
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".appointments-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
