package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/filelock"
	"github.com/stacklok/loresync/internal/status"
	"github.com/stacklok/loresync/internal/versions"
)

const (
	// WorkspaceFileName is the per-user file holding the template root.
	WorkspaceFileName = "workspace.yaml"

	statusLockName = "status.lock"
)

type workspaceFile struct {
	TemplateRootID string    `yaml:"templateRootId,omitempty"`
	UpdatedAt      time.Time `yaml:"updatedAt,omitempty"`
	// WrittenBy is the version of the binary that wrote the file.
	WrittenBy string `yaml:"writtenBy,omitempty"`
}

type statusKey struct {
	user uuid.UUID
	db   catalog.LogicalDatabase
}

type fileStateService struct {
	statusPersistence status.StatusPersistence
	basePath          string

	// Thread-safe status management (per user and logical database)
	mu             sync.RWMutex
	cachedStatuses map[statusKey]*status.SyncStatus

	rootMu sync.Mutex
}

// NewFileStateService creates a new file-based state service
func NewFileStateService(statusPersistence status.StatusPersistence, basePath string) StateService {
	return &fileStateService{
		statusPersistence: statusPersistence,
		basePath:          basePath,
		cachedStatuses:    make(map[statusKey]*status.SyncStatus),
	}
}

func (f *fileStateService) Initialize(ctx context.Context, userIDs []uuid.UUID) error {
	for _, userID := range userIDs {
		statuses, err := f.statusPersistence.LoadAllStatus(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load sync statuses for user %s: %w", userID, err)
		}

		f.mu.Lock()
		for db, syncStatus := range statuses {
			if syncStatus.Phase == status.SyncPhaseSyncing {
				slog.WarnContext(ctx, "Previous sync was interrupted, resetting to Failed",
					"user_id", userID, "logical_database", db)
				syncStatus.Phase = status.SyncPhaseFailed
				syncStatus.Message = interruptedMessage
				if err := f.statusPersistence.SaveStatus(ctx, userID, db, syncStatus); err != nil {
					slog.WarnContext(ctx, "Failed to persist corrected sync status",
						"user_id", userID, "logical_database", db, "error", err)
				}
			}
			f.cachedStatuses[statusKey{userID, db}] = syncStatus
		}
		f.mu.Unlock()
	}
	return nil
}

func (f *fileStateService) ListSyncStatuses(
	ctx context.Context, userID uuid.UUID,
) (map[catalog.LogicalDatabase]*status.SyncStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	loaded, err := f.statusPersistence.LoadAllStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Disk wins over the cache: another process may have written since.
	result := make(map[catalog.LogicalDatabase]*status.SyncStatus, len(loaded))
	for db, syncStatus := range loaded {
		f.cachedStatuses[statusKey{userID, db}] = syncStatus
		statusCopy := *syncStatus
		result[db] = &statusCopy
	}
	return result, nil
}

func (f *fileStateService) GetSyncStatus(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase,
) (*status.SyncStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	syncStatus, err := f.load(ctx, userID, db)
	if err != nil {
		return nil, err
	}
	statusCopy := *syncStatus
	return &statusCopy, nil
}

// load returns the cached status, reading it from disk on first use.
// Callers hold f.mu.
func (f *fileStateService) load(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase,
) (*status.SyncStatus, error) {
	key := statusKey{userID, db}
	if syncStatus, ok := f.cachedStatuses[key]; ok && syncStatus != nil {
		return syncStatus, nil
	}
	syncStatus, err := f.statusPersistence.LoadStatus(ctx, userID, db)
	if err != nil {
		return nil, err
	}
	f.cachedStatuses[key] = syncStatus
	return syncStatus, nil
}

func (f *fileStateService) UpdateStatusAtomically(
	ctx context.Context,
	userID uuid.UUID,
	db catalog.LogicalDatabase,
	testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := filelock.Exclusive(ctx, f.lockPath(userID))
	if err != nil {
		return false, err
	}
	defer unlock()

	// Re-read under the lock; the cached copy may predate another writer.
	current, err := f.statusPersistence.LoadStatus(ctx, userID, db)
	if err != nil {
		return false, err
	}
	f.cachedStatuses[statusKey{userID, db}] = current

	syncStatus := *current
	shouldUpdate := testAndUpdateFn(&syncStatus)
	if shouldUpdate {
		if err := f.statusPersistence.SaveStatus(ctx, userID, db, &syncStatus); err != nil {
			return false, err
		}
		f.cachedStatuses[statusKey{userID, db}] = &syncStatus
	}
	return shouldUpdate, nil
}

func (f *fileStateService) UpdateSyncStatus(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, syncStatus *status.SyncStatus,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := filelock.Exclusive(ctx, f.lockPath(userID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := f.statusPersistence.SaveStatus(ctx, userID, db, syncStatus); err != nil {
		return err
	}
	statusCopy := *syncStatus
	f.cachedStatuses[statusKey{userID, db}] = &statusCopy
	return nil
}

func (f *fileStateService) lockPath(userID uuid.UUID) string {
	return filepath.Join(f.basePath, userID.String(), statusLockName)
}

func (f *fileStateService) workspacePath(userID uuid.UUID) string {
	return filepath.Join(f.basePath, userID.String(), WorkspaceFileName)
}

func (f *fileStateService) GetTemplateRoot(_ context.Context, userID uuid.UUID) (string, error) {
	f.rootMu.Lock()
	defer f.rootMu.Unlock()

	// #nosec G304 -- path is built from a parsed UUID
	data, err := os.ReadFile(f.workspacePath(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read workspace settings: %w", err)
	}
	var ws workspaceFile
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return "", fmt.Errorf("failed to parse workspace settings: %w", err)
	}
	if current := versions.GetVersionInfo().Version; versions.IsRelease() && versions.IsNewerVersion(ws.WrittenBy, current) {
		slog.Warn("Workspace settings were written by a newer version",
			"user_id", userID, "written_by", ws.WrittenBy, "version", current)
	}
	return ws.TemplateRootID, nil
}

func (f *fileStateService) SetTemplateRoot(_ context.Context, userID uuid.UUID, pageID string) error {
	f.rootMu.Lock()
	defer f.rootMu.Unlock()
	return f.writeWorkspace(userID, workspaceFile{
		TemplateRootID: pageID,
		UpdatedAt:      time.Now().UTC(),
		WrittenBy:      versions.GetVersionInfo().Version,
	})
}

func (f *fileStateService) ClearTemplateRoot(_ context.Context, userID uuid.UUID) error {
	f.rootMu.Lock()
	defer f.rootMu.Unlock()

	err := os.Remove(f.workspacePath(userID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove workspace settings: %w", err)
	}
	return nil
}

func (f *fileStateService) writeWorkspace(userID uuid.UUID, ws workspaceFile) error {
	filePath := f.workspacePath(userID)
	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return fmt.Errorf("failed to create workspace settings directory: %w", err)
	}
	data, err := yaml.Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace settings: %w", err)
	}
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary workspace settings: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename workspace settings: %w", err)
	}
	return nil
}
