package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/prite36/farm-monitor/internal/farm"
	"github.com/prite36/farm-monitor/internal/models"
)

// FileStore keeps each logical key as a JSON document in a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) LoadPlants(ctx context.Context) ([]models.Plant, error) {
	var plants []models.Plant
	if _, err := s.load(farm.KeyPlants, &plants); err != nil {
		return nil, err
	}
	return plants, nil
}

func (s *FileStore) SavePlants(ctx context.Context, plants []models.Plant) error {
	return s.save(farm.KeyPlants, plants)
}

func (s *FileStore) LoadEvents(ctx context.Context) ([]models.EventEntry, error) {
	var entries []models.EventEntry
	if _, err := s.load(farm.KeyHistory, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *FileStore) SaveEvents(ctx context.Context, entries []models.EventEntry) error {
	return s.save(farm.KeyHistory, entries)
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// load reports false when nothing has been stored under key yet.
func (s *FileStore) load(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) save(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}
