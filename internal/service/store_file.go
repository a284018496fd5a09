package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileEntryStore keeps entries in a JSON file under the data directory.
type FileEntryStore struct {
	dataDir string
	entries map[string]Entry
	mu      sync.RWMutex
}

// NewFileEntryStore creates a file store, loading any entries already on disk.
func NewFileEntryStore(dataDir string) *FileEntryStore {
	s := &FileEntryStore{
		dataDir: dataDir,
		entries: make(map[string]Entry),
	}
	s.loadFromDisk()
	return s
}

// Put stores e.
func (s *FileEntryStore) Put(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.ID]; exists {
		return fmt.Errorf("entry %q already exists", e.ID)
	}
	s.entries[e.ID] = e
	if err := s.saveToDisk(); err != nil {
		delete(s.entries, e.ID)
		return err
	}
	return nil
}

// Get returns an entry by ID.
func (s *FileEntryStore) Get(_ context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, id)
	}
	return e, nil
}

// List returns a page of entries, newest first.
func (s *FileEntryStore) List(_ context.Context, offset, limit int) ([]Entry, int, error) {
	s.mu.RLock()
	all := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, offset, limit), len(all), nil
}

// Close is a no-op; every Put is already on disk.
func (s *FileEntryStore) Close() error { return nil }

func (s *FileEntryStore) file() string {
	return filepath.Join(s.dataDir, "entries.json")
}

func (s *FileEntryStore) loadFromDisk() {
	data, err := os.ReadFile(s.file())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	s.entries = entries
}

func (s *FileEntryStore) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.file(), data, 0644)
}

func page(all []Entry, offset, limit int) []Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []Entry{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
