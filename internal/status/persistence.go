// Package status provides sync status tracking and persistence per user and
// logical database.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/stacklok/loresync/internal/catalog"
)

const (
	// StatusDirName is the per-user directory holding status files
	StatusDirName = "status"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

// StatusPersistence defines the interface for sync status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the sync status of one logical database
	SaveStatus(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, status *SyncStatus) error

	// LoadStatus loads the sync status of one logical database.
	// Returns an empty SyncStatus if the file doesn't exist (first run)
	LoadStatus(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase) (*SyncStatus, error)

	// LoadAllStatus loads sync status for every logical database of a user
	LoadAllStatus(ctx context.Context, userID uuid.UUID) (map[catalog.LogicalDatabase]*SyncStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence.
// Files live at basePath/<user>/status/<logical database>.json.
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

func (f *fileStatusPersistence) dir(userID uuid.UUID) string {
	return filepath.Join(f.basePath, userID.String(), StatusDirName)
}

// SaveStatus saves the sync status to a JSON file in the user's directory
func (f *fileStatusPersistence) SaveStatus(
	_ context.Context, userID uuid.UUID, db catalog.LogicalDatabase, status *SyncStatus,
) error {
	dir := f.dir(userID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for user '%s': %w", userID, err)
	}

	filePath := filepath.Join(dir, string(db)+".json")

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for '%s': %w", db, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for '%s': %w", db, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for '%s': %w", db, err)
	}

	return nil
}

// LoadStatus loads the sync status from a JSON file.
// Returns an empty SyncStatus if the file doesn't exist
func (f *fileStatusPersistence) LoadStatus(
	_ context.Context, userID uuid.UUID, db catalog.LogicalDatabase,
) (*SyncStatus, error) {
	filePath := filepath.Join(f.dir(userID), string(db)+".json")

	// #nosec G304 -- filePath is built from a parsed UUID and a catalog name
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &SyncStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for '%s': %w", db, err)
	}

	var status SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for '%s': %w", db, err)
	}

	return &status, nil
}

// LoadAllStatus loads sync status for every logical database with a file
func (f *fileStatusPersistence) LoadAllStatus(
	ctx context.Context, userID uuid.UUID,
) (map[catalog.LogicalDatabase]*SyncStatus, error) {
	result := make(map[catalog.LogicalDatabase]*SyncStatus)

	entries, err := os.ReadDir(f.dir(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if entry.IsDir() || !ok {
			continue
		}
		db, err := catalog.Parse(name)
		if err != nil {
			continue
		}

		status, err := f.LoadStatus(ctx, userID, db)
		if err != nil {
			// Partial results if some files fail to load
			continue
		}

		result[db] = status
	}

	return result, nil
}
