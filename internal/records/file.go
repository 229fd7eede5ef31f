package records

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
	"github.com/stacklok/loresync/internal/filelock"
)

const (
	// RecordsFileName is the per-user file holding source rows in file mode.
	RecordsFileName = "records.yaml"

	recordsLockName = "records.lock"
)

// ErrRecordNotFound is returned by the file store when a row does not exist.
var ErrRecordNotFound = errors.New("record not found")

// tables maps a physical table name to its rows.
type tables map[string][]map[string]any

type fileStore struct {
	basePath string
	mu       sync.Mutex
}

// NewFileStore returns a Store over basePath/<user>/records.yaml, a map of
// table name to a list of rows using the same column names as the
// relational tables.
func NewFileStore(basePath string) Store {
	return &fileStore{basePath: basePath}
}

func (f *fileStore) path(userID uuid.UUID) string {
	return filepath.Join(f.basePath, userID.String(), RecordsFileName)
}

func (f *fileStore) lockPath(userID uuid.UUID) string {
	return filepath.Join(f.basePath, userID.String(), recordsLockName)
}

func (f *fileStore) load(userID uuid.UUID) (tables, error) {
	// #nosec G304 -- path is built from a parsed UUID
	data, err := os.ReadFile(f.path(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tables{}, nil
		}
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	var t tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse records file: %w", err)
	}
	if t == nil {
		t = tables{}
	}
	return t, nil
}

func (f *fileStore) save(userID uuid.UUID, t tables) error {
	filePath := f.path(userID)
	if err := os.MkdirAll(filepath.Dir(filePath), 0750); err != nil {
		return fmt.Errorf("failed to create records directory: %w", err)
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary records file: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename records file: %w", err)
	}
	return nil
}

// matches applies the same predicate as the relational query, minus the
// marker check.
func matches(row map[string]any, db catalog.LogicalDatabase) bool {
	if d := db.Discriminator(); d != "" {
		name, _ := row[ColumnDatabaseName].(string)
		return name == d
	}
	return true
}

func unsynced(row map[string]any) bool {
	v, ok := row[ColumnPageID]
	if !ok || v == nil {
		return true
	}
	s, isString := v.(string)
	return isString && strings.TrimSpace(s) == ""
}

func (f *fileStore) ListUnsynced(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := filelock.Shared(ctx, f.lockPath(userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	t, err := f.load(userID)
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, row := range t[db.SourceTable()] {
		if !matches(row, db) || !unsynced(row) {
			continue
		}
		rec, err := fromDocument(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (f *fileStore) MarkSynced(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, recordID uuid.UUID, pageID string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Other processes may share the data directory.
	unlock, err := filelock.Exclusive(ctx, f.lockPath(userID))
	if err != nil {
		return err
	}
	defer unlock()

	t, err := f.load(userID)
	if err != nil {
		return err
	}

	rows := t[db.SourceTable()]
	for _, row := range rows {
		if fmt.Sprint(row[ColumnID]) != recordID.String() || !matches(row, db) {
			continue
		}
		if !unsynced(row) {
			return fmt.Errorf("%s: %w", recordID, ErrAlreadySynced)
		}
		row[ColumnPageID] = pageID
		row[ColumnUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)
		return f.save(userID, t)
	}
	return fmt.Errorf("%s: %w", recordID, ErrRecordNotFound)
}
