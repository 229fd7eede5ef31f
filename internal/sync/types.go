package sync

import (
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/schema"
	"github.com/stacklok/loresync/internal/status"
)

// RunRequest starts a run.
type RunRequest struct {
	UserID uuid.UUID `json:"userId"`
	// Databases restricts the run; empty means every configured database.
	Databases []catalog.LogicalDatabase `json:"databases,omitempty"`
	// RefreshSchema bypasses the schema cache.
	RefreshSchema bool `json:"refreshSchema,omitempty"`
}

// DatabaseResult is the outcome of one logical database in a run.
type DatabaseResult struct {
	Phase            status.SyncPhase `json:"phase"`
	TargetID         string           `json:"targetId,omitempty"`
	SchemaSource     schema.Source    `json:"schemaSource,omitempty"`
	SchemaProperties int              `json:"schemaProperties"`
	Synced           int              `json:"synced"`
	Errors           int              `json:"errors"`
	Message          string           `json:"message,omitempty"`
}

// RunResult summarizes a run. Partial failures are counted here rather
// than returned as errors.
type RunResult struct {
	RunID         uuid.UUID                                   `json:"runId"`
	UserID        uuid.UUID                                   `json:"userId"`
	StartedAt     time.Time                                   `json:"startedAt"`
	FinishedAt    time.Time                                   `json:"finishedAt"`
	DiscoveryTier string                                      `json:"discoveryTier,omitempty"`
	Missing       []catalog.LogicalDatabase                   `json:"missing,omitempty"`
	Databases     map[catalog.LogicalDatabase]*DatabaseResult `json:"databases"`
	TotalSynced   int                                         `json:"totalSynced"`
	TotalErrors   int                                         `json:"totalErrors"`
	Cancelled     bool                                        `json:"cancelled,omitempty"`
	// Error is set when discovery found nothing at all.
	Error string `json:"error,omitempty"`
}

// DatabaseStatus is the read-only view of one logical database.
type DatabaseStatus struct {
	Database         catalog.LogicalDatabase `json:"database"`
	Label            string                  `json:"label"`
	TargetID         string                  `json:"targetId,omitempty"`
	SchemaProperties int                     `json:"schemaProperties"`
	Phase            status.SyncPhase        `json:"phase,omitempty"`
	Health           status.Health           `json:"health"`
	LastSyncTime     *time.Time              `json:"lastSyncTime,omitempty"`
	LastAttempt      *time.Time              `json:"lastAttempt,omitempty"`
	Synced           int                     `json:"synced"`
	Errors           int                     `json:"errors"`
	Message          string                  `json:"message,omitempty"`
}

// StatusReport lists every logical database in processing order.
type StatusReport struct {
	UserID      uuid.UUID        `json:"userId"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Databases   []DatabaseStatus `json:"databases"`
}
