// Package state contains the sync state the server persists per user: the
// status of each logical database and the remembered template root page.
package state

import (
	"context"

	"github.com/google/uuid"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/status"
)

// StateService provides methods for inspecting and updating sync state.
//
//go:generate mockgen -destination=mocks/mock_state_service.go -package=mocks github.com/stacklok/loresync/internal/sync/state StateService
//nolint:revive // This name is fine
type StateService interface {
	// Initialize resets statuses left in Syncing by an interrupted process
	// for the given users. It is intended to be called at startup.
	Initialize(ctx context.Context, userIDs []uuid.UUID) error
	// ListSyncStatuses lists the statuses of a user's logical databases.
	ListSyncStatuses(ctx context.Context, userID uuid.UUID) (map[catalog.LogicalDatabase]*status.SyncStatus, error)
	// GetSyncStatus returns the status of one logical database, or an empty
	// status when it never ran.
	GetSyncStatus(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase) (*status.SyncStatus, error)
	// UpdateSyncStatus overrides the status of one logical database.
	UpdateSyncStatus(ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, s *status.SyncStatus) error
	// UpdateStatusAtomically fetches the current status, applies
	// testAndUpdateFn and stores the result if the function reports a change,
	// all as one atomic action. The function's result is returned.
	UpdateStatusAtomically(
		ctx context.Context,
		userID uuid.UUID,
		db catalog.LogicalDatabase,
		testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
	) (bool, error)

	// GetTemplateRoot returns the remembered template root page, or "".
	GetTemplateRoot(ctx context.Context, userID uuid.UUID) (string, error)
	// SetTemplateRoot remembers the template root page.
	SetTemplateRoot(ctx context.Context, userID uuid.UUID, pageID string) error
	// ClearTemplateRoot forgets the template root page.
	ClearTemplateRoot(ctx context.Context, userID uuid.UUID) error
}

// interruptedMessage is recorded on statuses reset by Initialize.
const interruptedMessage = "Previous sync was interrupted"
