package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	old := now.Add(-48 * time.Hour)

	tests := []struct {
		name   string
		status *SyncStatus
		want   Health
	}{
		{"nil status", nil, HealthNeverSynced},
		{"empty status", &SyncStatus{}, HealthNeverSynced},
		{"skipped and never synced", &SyncStatus{Phase: SyncPhaseSkipped}, HealthNeverSynced},
		{"failed after a success", &SyncStatus{Phase: SyncPhaseFailed, LastSyncTime: &recent}, HealthError},
		{"failed without a success", &SyncStatus{Phase: SyncPhaseFailed}, HealthError},
		{"complete recently", &SyncStatus{Phase: SyncPhaseComplete, LastSyncTime: &recent}, HealthHealthy},
		{"complete long ago", &SyncStatus{Phase: SyncPhaseComplete, LastSyncTime: &old}, HealthStale},
		{"syncing with a recent success", &SyncStatus{Phase: SyncPhaseSyncing, LastSyncTime: &recent}, HealthHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.status, now, 24*time.Hour))
		})
	}
}

func TestClassify_NoThreshold(t *testing.T) {
	t.Parallel()

	old := time.Now().Add(-365 * 24 * time.Hour)
	assert.Equal(t, HealthHealthy, Classify(&SyncStatus{Phase: SyncPhaseComplete, LastSyncTime: &old}, time.Now(), 0))
}
