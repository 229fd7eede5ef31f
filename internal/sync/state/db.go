package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/db/sqlc"
	"github.com/stacklok/loresync/internal/status"
)

type dbStateService struct {
	pool *pgxpool.Pool
}

// NewDBStateService creates a new database-backed state service
func NewDBStateService(pool *pgxpool.Pool) StateService {
	return &dbStateService{
		pool: pool,
	}
}

func (d *dbStateService) Initialize(ctx context.Context, userIDs []uuid.UUID) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	queries := sqlc.New(d.pool).WithTx(tx)
	for _, userID := range userIDs {
		rows, err := queries.ListSyncStatuses(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list sync statuses for user %s: %w", userID, err)
		}
		for _, row := range rows {
			if row.Phase != sqlc.SyncPhaseSyncing {
				continue
			}
			slog.WarnContext(ctx, "Previous sync was interrupted, resetting to Failed",
				"user_id", userID, "logical_database", row.LogicalDatabase)
			syncStatus := dbSyncToStatus(row)
			syncStatus.Phase = status.SyncPhaseFailed
			syncStatus.Message = interruptedMessage
			if err := queries.UpsertSyncStatus(ctx, upsertParams(userID, row.LogicalDatabase, syncStatus)); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (d *dbStateService) ListSyncStatuses(
	ctx context.Context, userID uuid.UUID,
) (map[catalog.LogicalDatabase]*status.SyncStatus, error) {
	rows, err := sqlc.New(d.pool).ListSyncStatuses(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make(map[catalog.LogicalDatabase]*status.SyncStatus, len(rows))
	for _, row := range rows {
		db, err := catalog.Parse(row.LogicalDatabase)
		if err != nil {
			slog.WarnContext(ctx, "Ignoring status of unknown logical database", "logical_database", row.LogicalDatabase)
			continue
		}
		result[db] = dbSyncToStatus(row)
	}
	return result, nil
}

func (d *dbStateService) GetSyncStatus(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase,
) (*status.SyncStatus, error) {
	row, err := sqlc.New(d.pool).GetSyncStatus(ctx, sqlc.GetSyncStatusParams{
		UserID:          userID,
		LogicalDatabase: string(db),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &status.SyncStatus{}, nil
		}
		return nil, err
	}
	return dbSyncToStatus(row), nil
}

func (d *dbStateService) UpdateSyncStatus(
	ctx context.Context, userID uuid.UUID, db catalog.LogicalDatabase, syncStatus *status.SyncStatus,
) error {
	return sqlc.New(d.pool).UpsertSyncStatus(ctx, upsertParams(userID, string(db), syncStatus))
}

func (d *dbStateService) UpdateStatusAtomically(
	ctx context.Context,
	userID uuid.UUID,
	db catalog.LogicalDatabase,
	testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
) (bool, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	queries := sqlc.New(d.pool).WithTx(tx)

	syncStatus := &status.SyncStatus{}
	row, err := queries.GetSyncStatus(ctx, sqlc.GetSyncStatusParams{
		UserID:          userID,
		LogicalDatabase: string(db),
	})
	switch {
	case err == nil:
		syncStatus = dbSyncToStatus(row)
	case !errors.Is(err, pgx.ErrNoRows):
		return false, err
	}

	shouldUpdate := testAndUpdateFn(syncStatus)
	if shouldUpdate {
		if err := queries.UpsertSyncStatus(ctx, upsertParams(userID, string(db), syncStatus)); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return shouldUpdate, nil
}

func (d *dbStateService) GetTemplateRoot(ctx context.Context, userID uuid.UUID) (string, error) {
	root, err := sqlc.New(d.pool).GetTemplateRoot(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read template root: %w", err)
	}
	return root, nil
}

func (d *dbStateService) SetTemplateRoot(ctx context.Context, userID uuid.UUID, pageID string) error {
	return sqlc.New(d.pool).UpsertTemplateRoot(ctx, sqlc.UpsertTemplateRootParams{
		UserID:         userID,
		TemplateRootID: pageID,
		UpdatedAt:      time.Now().UTC(),
	})
}

func (d *dbStateService) ClearTemplateRoot(ctx context.Context, userID uuid.UUID) error {
	return sqlc.New(d.pool).DeleteTemplateRoot(ctx, userID)
}

// dbSyncToStatus converts a database row to a status.SyncStatus
func dbSyncToStatus(row sqlc.SyncStatus) *status.SyncStatus {
	syncStatus := &status.SyncStatus{
		Phase:            dbPhaseToPhase(row.Phase),
		SchemaProperties: int(row.SchemaProperties),
		SyncedCount:      int(row.SyncedCount),
		ErrorCount:       int(row.ErrorCount),
		AttemptCount:     int(row.AttemptCount),
		LastAttempt:      row.LastAttempt,
		LastSyncTime:     row.LastSyncTime,
	}
	if row.Message != nil {
		syncStatus.Message = *row.Message
	}
	if row.TargetID != nil {
		syncStatus.TargetID = *row.TargetID
	}
	return syncStatus
}

func upsertParams(userID uuid.UUID, db string, syncStatus *status.SyncStatus) sqlc.UpsertSyncStatusParams {
	return sqlc.UpsertSyncStatusParams{
		UserID:           userID,
		LogicalDatabase:  db,
		Phase:            phaseToDBPhase(syncStatus.Phase),
		Message:          nullable(syncStatus.Message),
		TargetID:         nullable(syncStatus.TargetID),
		SchemaProperties: clampInt32(syncStatus.SchemaProperties),
		SyncedCount:      clampInt32(syncStatus.SyncedCount),
		ErrorCount:       clampInt32(syncStatus.ErrorCount),
		AttemptCount:     clampInt32(syncStatus.AttemptCount),
		LastAttempt:      syncStatus.LastAttempt,
		LastSyncTime:     syncStatus.LastSyncTime,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clampInt32(n int) int32 {
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < 0:
		return 0
	}
	return int32(n)
}

// dbPhaseToPhase converts the database sync_phase enum to status.SyncPhase
func dbPhaseToPhase(phase sqlc.SyncPhase) status.SyncPhase {
	switch phase {
	case sqlc.SyncPhaseSyncing:
		return status.SyncPhaseSyncing
	case sqlc.SyncPhaseComplete:
		return status.SyncPhaseComplete
	case sqlc.SyncPhaseSkipped:
		return status.SyncPhaseSkipped
	default:
		return status.SyncPhaseFailed
	}
}

// phaseToDBPhase converts status.SyncPhase to the database sync_phase enum
func phaseToDBPhase(phase status.SyncPhase) sqlc.SyncPhase {
	switch phase {
	case status.SyncPhaseSyncing:
		return sqlc.SyncPhaseSyncing
	case status.SyncPhaseComplete:
		return sqlc.SyncPhaseComplete
	case status.SyncPhaseSkipped:
		return sqlc.SyncPhaseSkipped
	default:
		return sqlc.SyncPhaseFailed
	}
}
