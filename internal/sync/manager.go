package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/loresync/internal/catalog"
	"github.com/stacklok/loresync/internal/coerce"
	"github.com/stacklok/loresync/internal/discovery"
	"github.com/stacklok/loresync/internal/notion"
	"github.com/stacklok/loresync/internal/otel"
	"github.com/stacklok/loresync/internal/records"
	"github.com/stacklok/loresync/internal/resolve"
	"github.com/stacklok/loresync/internal/schema"
	"github.com/stacklok/loresync/internal/status"
	"github.com/stacklok/loresync/internal/sync/state"
	"github.com/stacklok/loresync/internal/telemetry"
)

// Workspace is the part of the workspace client the manager writes through.
type Workspace interface {
	Me(ctx context.Context) (*notion.User, error)
	CreatePage(ctx context.Context, req notion.CreatePageRequest) (*notion.Object, error)
	RetrievePage(ctx context.Context, pageID string) (*notion.Object, error)
}

// Discoverer locates the target databases of a user.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) (*discovery.Result, error)
}

// SchemaProvider serves target schemas.
type SchemaProvider interface {
	Get(ctx context.Context, key schema.Key, refresh bool) (*schema.Entry, error)
	Cached(ctx context.Context, userID uuid.UUID) ([]*schema.Entry, error)
}

// Manager runs synchronizations and reports their state.
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/loresync/internal/sync Manager
type Manager interface {
	// Run synchronizes the user's unsynchronized rows. Partial failures are
	// reported in the result; an error means the run could not start.
	Run(ctx context.Context, req RunRequest) (*RunResult, error)

	// Status reports the state of every enabled logical database.
	Status(ctx context.Context, userID uuid.UUID) (*StatusReport, error)
}

// Dependencies are the collaborators of a Manager.
type Dependencies struct {
	Workspace  Workspace
	Discoverer Discoverer
	Schemas    SchemaProvider
	Records    records.Store
	State      state.StateService
	Resolver   *resolve.Resolver
	Coercer    coerce.Coercer
}

// Options tune a Manager.
type Options struct {
	// Databases enables a subset of logical databases. Empty enables all.
	Databases []catalog.LogicalDatabase
	// VerifyWrites reads every created page back before marking the row.
	VerifyWrites bool
	// StaleAfter is the age past which a completed sync counts as stale.
	StaleAfter time.Duration
	Metrics    *telemetry.SyncMetrics
	Tracer     trace.Tracer
	// Now defaults to time.Now.
	Now func() time.Time
}

// defaultSyncManager is the default implementation of Manager
type defaultSyncManager struct {
	deps Dependencies
	opts Options

	// running holds the users with a run in flight. Two overlapping runs
	// would both list the same unsynchronized rows and create each page twice.
	mu      gosync.Mutex
	running map[uuid.UUID]struct{}
}

// NewManager creates a Manager.
func NewManager(deps Dependencies, opts Options) Manager {
	if deps.Resolver == nil {
		deps.Resolver = resolve.New(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Coercer.Now == nil {
		deps.Coercer.Now = opts.Now
	}
	return &defaultSyncManager{deps: deps, opts: opts, running: make(map[uuid.UUID]struct{})}
}

// claim marks userID as running. The returned func releases it.
func (m *defaultSyncManager) claim(userID uuid.UUID) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.running[userID]; busy {
		return nil, false
	}
	m.running[userID] = struct{}{}
	return func() {
		m.mu.Lock()
		delete(m.running, userID)
		m.mu.Unlock()
	}, true
}

func (m *defaultSyncManager) now() time.Time {
	return m.opts.Now().UTC()
}

// databases returns the enabled databases narrowed to requested, in
// processing order.
func (m *defaultSyncManager) databases(requested []catalog.LogicalDatabase) ([]catalog.LogicalDatabase, error) {
	enabled := catalog.Filter(m.opts.Databases)
	if len(requested) == 0 {
		return enabled, nil
	}
	allowed := make(map[catalog.LogicalDatabase]bool, len(enabled))
	for _, db := range enabled {
		allowed[db] = true
	}
	for _, db := range requested {
		if !allowed[db] {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotEnabled, db)
		}
	}
	return catalog.Filter(requested), nil
}

// Run implements Manager.
func (m *defaultSyncManager) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.UserID == uuid.Nil {
		return nil, ErrNoUser
	}
	dbs, err := m.databases(req.Databases)
	if err != nil {
		return nil, err
	}
	release, ok := m.claim(req.UserID)
	if !ok {
		return nil, ErrRunInProgress
	}
	defer release()

	result := &RunResult{
		RunID:     uuid.New(),
		UserID:    req.UserID,
		StartedAt: m.now(),
		Databases: make(map[catalog.LogicalDatabase]*DatabaseResult, len(dbs)),
	}

	ctx, span := otel.StartSpan(ctx, m.opts.Tracer, "sync.run", trace.WithAttributes(
		otel.AttrUserID.String(req.UserID.String()),
	))
	defer span.End()

	logger := slog.With("run_id", result.RunID, "user_id", req.UserID)
	logger.InfoContext(ctx, "Starting sync run", "databases", len(dbs), "refresh_schema", req.RefreshSchema)

	if _, err := m.deps.Workspace.Me(ctx); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("workspace is not reachable: %w", err)
	}

	found, err := m.deps.Discoverer.Discover(ctx, discovery.Request{UserID: req.UserID, Databases: dbs})
	if err != nil {
		if found == nil || errors.Is(err, notion.ErrUnauthorized) {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("discovery failed: %w", err)
		}
		result.Error = err.Error()
		logger.WarnContext(ctx, "No target databases found", "error", err)
	}
	result.DiscoveryTier = found.Tier
	result.Missing = found.Missing
	span.SetAttributes(otel.AttrDiscoveryTier.String(found.Tier))

	for _, db := range dbs {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		dr := m.syncDatabase(ctx, logger, req, db, found)
		result.Databases[db] = dr
		result.TotalSynced += dr.Synced
		result.TotalErrors += dr.Errors
		if ctx.Err() != nil {
			result.Cancelled = true
		}
	}

	result.FinishedAt = m.now()
	span.SetAttributes(otel.AttrResultCount.Int(result.TotalSynced))
	logger.InfoContext(ctx, "Sync run finished",
		"synced", result.TotalSynced,
		"errors", result.TotalErrors,
		"cancelled", result.Cancelled,
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}

// syncDatabase processes one logical database. It never fails the run.
func (m *defaultSyncManager) syncDatabase(
	ctx context.Context,
	logger *slog.Logger,
	req RunRequest,
	db catalog.LogicalDatabase,
	found *discovery.Result,
) *DatabaseResult {
	logger = logger.With("logical_database", db)
	started := m.now()

	target, ok := found.Target(db)
	if !ok {
		dr := &DatabaseResult{Phase: status.SyncPhaseSkipped, Message: "No target database found"}
		logger.InfoContext(ctx, "Skipping logical database without target")
		m.saveStatus(ctx, logger, req.UserID, db, dr, started)
		return dr
	}

	ctx, span := otel.StartSpan(ctx, m.opts.Tracer, "sync.database", trace.WithAttributes(
		otel.AttrLogicalDatabase.String(string(db)),
		otel.AttrTargetID.String(target.ID),
	))
	defer span.End()

	dr := &DatabaseResult{Phase: status.SyncPhaseSyncing, TargetID: target.ID}
	if _, err := m.deps.State.UpdateStatusAtomically(ctx, req.UserID, db, func(s *status.SyncStatus) bool {
		s.Phase = status.SyncPhaseSyncing
		s.Message = ""
		s.TargetID = target.ID
		s.LastAttempt = &started
		s.AttemptCount++
		return true
	}); err != nil {
		logger.WarnContext(ctx, "Failed to record sync start", "error", err)
	}

	defer func() {
		m.saveStatus(ctx, logger, req.UserID, db, dr, started)
		m.opts.Metrics.RecordSyncDuration(ctx, string(db), m.now().Sub(started), dr.Phase == status.SyncPhaseComplete)
		m.opts.Metrics.RecordRows(ctx, string(db), telemetry.OutcomeSynced, dr.Synced)
		m.opts.Metrics.RecordRows(ctx, string(db), telemetry.OutcomeErrored, dr.Errors)
	}()

	entry, err := m.deps.Schemas.Get(ctx, schema.Key{UserID: req.UserID, Database: db, TargetID: target.ID}, req.RefreshSchema)
	if err != nil {
		m.failDatabase(ctx, span, logger, dr, &Error{Err: err, Message: fmt.Sprintf("Schema unavailable: %v", err), Stage: StageSchema})
		return dr
	}
	dr.SchemaSource = entry.Source
	dr.SchemaProperties = entry.Schema.Len()
	span.SetAttributes(otel.AttrSchemaSource.String(string(entry.Source)))

	recs, err := m.deps.Records.ListUnsynced(ctx, req.UserID, db)
	if err != nil {
		m.failDatabase(ctx, span, logger, dr, &Error{Err: err, Message: fmt.Sprintf("Failed to read source rows: %v", err), Stage: StageFetchRows})
		return dr
	}
	logger.DebugContext(ctx, "Fetched unsynchronized rows", "rows", len(recs), "schema_source", entry.Source)

	w := &rowWriter{m: m, userID: req.UserID, db: db, target: target, schema: entry.Schema}
	cancelled := false
	for _, rec := range recs {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		// A started row always finishes so a created page gets its marker.
		pageID, err := w.sync(context.WithoutCancel(ctx), rec)
		if err != nil {
			dr.Errors++
			logRowFailure(ctx, logger, rec, err)
			continue
		}
		dr.Synced++
		logger.DebugContext(ctx, "Synchronized row", "record_id", rec.ID, "page_id", pageID)
	}

	switch {
	case cancelled:
		dr.Phase = status.SyncPhaseFailed
		dr.Message = fmt.Sprintf("Run cancelled after %d of %d rows", dr.Synced+dr.Errors, len(recs))
	case dr.Errors > 0:
		dr.Phase = status.SyncPhaseFailed
		dr.Message = fmt.Sprintf("%d of %d rows failed", dr.Errors, len(recs))
	default:
		dr.Phase = status.SyncPhaseComplete
	}
	return dr
}

func (m *defaultSyncManager) failDatabase(
	ctx context.Context, span trace.Span, logger *slog.Logger, dr *DatabaseResult, syncErr *Error,
) {
	otel.RecordError(span, syncErr.Err)
	dr.Phase = status.SyncPhaseFailed
	dr.Message = syncErr.Message
	logger.WarnContext(ctx, "Logical database sync failed", "stage", syncErr.Stage, "error", syncErr.Err)
}

// saveStatus stores the outcome even when the run was cancelled.
func (m *defaultSyncManager) saveStatus(
	ctx context.Context,
	logger *slog.Logger,
	userID uuid.UUID,
	db catalog.LogicalDatabase,
	dr *DatabaseResult,
	started time.Time,
) {
	finished := m.now()
	_, err := m.deps.State.UpdateStatusAtomically(context.WithoutCancel(ctx), userID, db, func(s *status.SyncStatus) bool {
		s.Phase = dr.Phase
		s.Message = dr.Message
		s.TargetID = dr.TargetID
		s.SchemaProperties = dr.SchemaProperties
		s.SyncedCount = dr.Synced
		s.ErrorCount = dr.Errors
		if s.LastAttempt == nil {
			s.LastAttempt = &started
		}
		if dr.Phase == status.SyncPhaseComplete {
			s.LastSyncTime = &finished
			s.AttemptCount = 0
		}
		return true
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to save sync status", "error", err)
	}
}

// Status implements Manager.
func (m *defaultSyncManager) Status(ctx context.Context, userID uuid.UUID) (*StatusReport, error) {
	if userID == uuid.Nil {
		return nil, ErrNoUser
	}
	statuses, err := m.deps.State.ListSyncStatuses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync statuses: %w", err)
	}

	cached := make(map[catalog.LogicalDatabase]*schema.Entry)
	entries, err := m.deps.Schemas.Cached(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read cached schemas", "user_id", userID, "error", err)
	}
	for _, e := range entries {
		cached[e.Key.Database] = e
	}

	now := m.now()
	report := &StatusReport{UserID: userID, GeneratedAt: now}
	for _, db := range catalog.Filter(m.opts.Databases) {
		s := statuses[db]
		ds := DatabaseStatus{
			Database: db,
			Label:    db.Label(),
			Health:   status.Classify(s, now, m.opts.StaleAfter),
		}
		if s != nil {
			ds.TargetID = s.TargetID
			ds.SchemaProperties = s.SchemaProperties
			ds.Phase = s.Phase
			ds.LastSyncTime = s.LastSyncTime
			ds.LastAttempt = s.LastAttempt
			ds.Synced = s.SyncedCount
			ds.Errors = s.ErrorCount
			ds.Message = s.Message
		}
		if e, ok := cached[db]; ok && ds.TargetID != "" && e.Key.TargetID == ds.TargetID {
			ds.SchemaProperties = e.Schema.Len()
		}
		report.Databases = append(report.Databases, ds)
	}
	return report, nil
}
