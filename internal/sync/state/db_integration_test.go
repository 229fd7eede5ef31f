//go:build integration

package state

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/loresync/database"
	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/status"
)

func TestDBStateService(t *testing.T) {
	t.Parallel()

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)
	ctx := context.Background()
	user := uuid.New()
	service := NewDBStateService(pool)

	empty, err := service.GetSyncStatus(ctx, user, catalog.Character)
	require.NoError(t, err)
	assert.Equal(t, &status.SyncStatus{}, empty)

	updated, err := service.UpdateStatusAtomically(ctx, user, catalog.Character, func(s *status.SyncStatus) bool {
		now := time.Now().UTC()
		s.Phase = status.SyncPhaseSyncing
		s.AttemptCount++
		s.LastAttempt = &now
		return true
	})
	require.NoError(t, err)
	assert.True(t, updated)

	require.NoError(t, service.UpdateSyncStatus(ctx, user, catalog.Lore, &status.SyncStatus{
		Phase: status.SyncPhaseSkipped, Message: "no target database",
	}))

	require.NoError(t, service.Initialize(ctx, []uuid.UUID{user}))

	statuses, err := service.ListSyncStatuses(ctx, user)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, status.SyncPhaseFailed, statuses[catalog.Character].Phase)
	assert.Equal(t, interruptedMessage, statuses[catalog.Character].Message)
	assert.Equal(t, 1, statuses[catalog.Character].AttemptCount)
	assert.Equal(t, status.SyncPhaseSkipped, statuses[catalog.Lore].Phase)

	root, err := service.GetTemplateRoot(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, root)
	require.NoError(t, service.SetTemplateRoot(ctx, user, "page-1"))
	root, err = service.GetTemplateRoot(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "page-1", root)
	require.NoError(t, service.ClearTemplateRoot(ctx, user))
	root, err = service.GetTemplateRoot(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, root)
}
