package status

import "time"

// SyncPhase represents the outcome of the latest sync of a logical database
type SyncPhase string

const (
	// SyncPhaseSyncing means sync is currently in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means every row was synced without error
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means the logical database failed or some rows errored
	SyncPhaseFailed SyncPhase = "Failed"

	// SyncPhaseSkipped means no target database was resolved
	SyncPhaseSkipped SyncPhase = "Skipped"
)

// SyncStatus is the persisted state of one logical database for one user
type SyncStatus struct {
	// Phase represents the latest synchronization phase
	Phase SyncPhase `json:"phase" yaml:"phase"`

	// Message provides additional information about the sync status
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// TargetID is the workspace database rows were written to
	TargetID string `json:"targetId,omitempty" yaml:"targetId,omitempty"`

	// SchemaProperties is the property count of the schema used
	SchemaProperties int `json:"schemaProperties,omitempty" yaml:"schemaProperties,omitempty"`

	// SyncedCount and ErrorCount are the row counts of the latest attempt
	SyncedCount int `json:"syncedCount,omitempty" yaml:"syncedCount,omitempty"`
	ErrorCount  int `json:"errorCount,omitempty" yaml:"errorCount,omitempty"`

	// AttemptCount is the number of sync attempts since last success
	AttemptCount int `json:"attemptCount,omitempty" yaml:"attemptCount,omitempty"`

	// LastAttempt is the timestamp of the last sync attempt
	LastAttempt *time.Time `json:"lastAttempt,omitempty" yaml:"lastAttempt,omitempty"`

	// LastSyncTime is the timestamp of the last sync that completed without errors
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty" yaml:"lastSyncTime,omitempty"`
}

// Health is the operator-facing classification of a logical database.
type Health string

const (
	// HealthHealthy means the last sync succeeded recently
	HealthHealthy Health = "healthy"
	// HealthStale means the last successful sync is older than the threshold
	HealthStale Health = "stale"
	// HealthNeverSynced means no sync has completed successfully yet
	HealthNeverSynced Health = "never-synced"
	// HealthError means the latest sync failed
	HealthError Health = "error"
)

// Classify derives the health of s at now. A nil status has never synced.
func Classify(s *SyncStatus, now time.Time, staleAfter time.Duration) Health {
	switch {
	case s == nil:
		return HealthNeverSynced
	case s.Phase == SyncPhaseFailed:
		return HealthError
	case s.LastSyncTime == nil:
		return HealthNeverSynced
	case staleAfter > 0 && now.Sub(*s.LastSyncTime) > staleAfter:
		return HealthStale
	}
	return HealthHealthy
}
