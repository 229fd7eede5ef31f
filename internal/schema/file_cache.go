package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/loresync/internal/catalog"
)

const schemasDirName = "schemas"

// fileEntry is the on-disk form of an Entry.
type fileEntry struct {
	TargetID string    `yaml:"targetId"`
	Source   Source    `yaml:"source"`
	CachedAt time.Time `yaml:"cachedAt"`
	Schema   *Schema   `yaml:"schema"`
}

type fileCache struct {
	basePath string
	mu       sync.Mutex
}

// NewFileCache returns a cache storing one YAML file per user and logical
// database under basePath/<user>/schemas.
func NewFileCache(basePath string) Cache {
	return &fileCache{basePath: basePath}
}

func (f *fileCache) dir(userID uuid.UUID) string {
	return filepath.Join(f.basePath, userID.String(), schemasDirName)
}

func (f *fileCache) path(userID uuid.UUID, db catalog.LogicalDatabase) string {
	return filepath.Join(f.dir(userID), string(db)+".yaml")
}

func (f *fileCache) Get(_ context.Context, key Key) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, err := f.read(key.UserID, key.Database)
	if err != nil {
		return nil, err
	}
	if e.Key.TargetID != key.TargetID {
		return nil, ErrNotCached
	}
	return e, nil
}

func (f *fileCache) read(userID uuid.UUID, db catalog.LogicalDatabase) (*Entry, error) {
	// #nosec G304 -- path is built from a parsed UUID and a catalog name
	data, err := os.ReadFile(f.path(userID, db))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("failed to read schema cache for %s: %w", db, err)
	}

	var fe fileEntry
	if err := yaml.Unmarshal(data, &fe); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema cache for %s: %w", db, err)
	}
	if fe.Schema == nil {
		fe.Schema = &Schema{}
	}
	return &Entry{
		Key:      Key{UserID: userID, Database: db, TargetID: fe.TargetID},
		Schema:   fe.Schema,
		Source:   fe.Source,
		CachedAt: fe.CachedAt,
	}, nil
}

func (f *fileCache) Put(_ context.Context, entry *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := f.dir(entry.Key.UserID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create schema cache directory: %w", err)
	}

	data, err := yaml.Marshal(fileEntry{
		TargetID: entry.Key.TargetID,
		Source:   entry.Source,
		CachedAt: entry.CachedAt.UTC(),
		Schema:   entry.Schema,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal schema for %s: %w", entry.Key.Database, err)
	}

	filePath := f.path(entry.Key.UserID, entry.Key.Database)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary schema file for %s: %w", entry.Key.Database, err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename schema file for %s: %w", entry.Key.Database, err)
	}
	return nil
}

func (f *fileCache) List(_ context.Context, userID uuid.UUID) ([]*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	files, err := os.ReadDir(f.dir(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read schema cache directory: %w", err)
	}

	var out []*Entry
	for _, file := range files {
		name, ok := strings.CutSuffix(file.Name(), ".yaml")
		if file.IsDir() || !ok {
			continue
		}
		db, err := catalog.Parse(name)
		if err != nil {
			continue
		}
		e, err := f.read(userID, db)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}
