package state

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/loresync/internal/config"
	"github.com/stacklok/loresync/internal/status"
)

// NewStateService creates a StateService based on the configured storage type.
//
// For file-based storage, it returns a service that uses the provided
// StatusPersistence for statuses and a YAML file per user for the template
// root, both under the configured base directory.
//
// For database storage, it returns a service that stores state directly in
// PostgreSQL. The pool parameter must not be nil when database storage is
// configured.
func NewStateService(
	cfg *config.Config,
	statusPersistence status.StatusPersistence,
	pool *pgxpool.Pool,
) (StateService, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when storage type is database")
		}
		return NewDBStateService(pool), nil
	default:
		return NewFileStateService(statusPersistence, cfg.GetFileStorageBaseDir()), nil
	}
}
