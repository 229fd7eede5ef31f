package app

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/loresync/internal/sync"
	"github.com/stacklok/loresync/internal/sync/coordinator"
	"github.com/stacklok/loresync/internal/sync/state"
	"github.com/stacklok/loresync/internal/telemetry"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Manager runs syncs and reports their status
	Manager sync.Manager

	// State holds sync statuses and template roots
	State state.StateService

	// Coordinator runs scheduled syncs; nil when no schedule is configured
	Coordinator coordinator.Coordinator

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry

	// Pool is the database pool (optional)
	Pool *pgxpool.Pool
}
