package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/loresync/internal/config"
	pkgsync "github.com/stacklok/loresync/internal/sync"
	"github.com/stacklok/loresync/internal/sync/state"
)

// Coordinator manages background synchronization for the scheduled users
type Coordinator interface {
	// Start begins background sync coordination for all scheduled users.
	// Blocks until context is cancelled or an unrecoverable error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator and waits for running syncs
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager pkgsync.Manager
	config  *config.Config

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
	wg         sync.WaitGroup

	statusSvc state.StateService

	mu      sync.Mutex
	running map[uuid.UUID]bool
}

// New creates a new coordinator with injected dependencies
func New(
	manager pkgsync.Manager,
	statusSvc state.StateService,
	cfg *config.Config,
) Coordinator {
	return &defaultCoordinator{
		manager:   manager,
		statusSvc: statusSvc,
		config:    cfg,
		done:      make(chan struct{}),
		running:   make(map[uuid.UUID]bool),
	}
}

// Start begins background sync coordination for all scheduled users
func (c *defaultCoordinator) Start(ctx context.Context) error {
	if c.config.Schedule == nil {
		close(c.done)
		return fmt.Errorf("no schedule configured")
	}
	users, err := c.config.Schedule.UserIDs()
	if err != nil {
		close(c.done)
		return err
	}
	slog.Info("Starting background sync coordinator", "user_count", len(users))

	// Create cancellable context for this coordinator
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		c.wg.Wait()
		close(c.done)
		slog.Info("Background sync coordinator shut down")
	}()

	if err := c.statusSvc.Initialize(ctx, users); err != nil {
		return fmt.Errorf("failed to initialize sync status: %w", err)
	}

	base := getSyncInterval(c.config.Schedule)
	interval := withJitter(base)
	slog.Info("Configured coordinator sync interval",
		"base_interval", base,
		"actual_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.scheduleRuns(coordCtx, users)

	for {
		select {
		case <-ticker.C:
			c.scheduleRuns(coordCtx, users)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(withJitter(base))
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping sync coordinator")
		c.cancelFunc()
		<-c.done
	}
	return nil
}

// scheduleRuns starts a run for every user that is not already running
func (c *defaultCoordinator) scheduleRuns(ctx context.Context, users []uuid.UUID) {
	for _, user := range users {
		if !c.claim(user) {
			slog.Info("Previous sync still running, skipping", "user_id", user)
			continue
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer c.release(user)
			c.runUser(ctx, user)
		}()
	}
}

func (c *defaultCoordinator) claim(user uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[user] {
		return false
	}
	c.running[user] = true
	return true
}

func (c *defaultCoordinator) release(user uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, user)
}

// runUser executes one run. Failures are logged; the next tick retries.
func (c *defaultCoordinator) runUser(ctx context.Context, user uuid.UUID) {
	result, err := c.manager.Run(ctx, pkgsync.RunRequest{UserID: user})
	if errors.Is(err, pkgsync.ErrRunInProgress) {
		slog.Info("Skipping scheduled sync, a run is already in progress", "user_id", user)
		return
	}
	if err != nil {
		slog.Error("Scheduled sync could not start", "user_id", user, "error", err)
		return
	}
	slog.Info("Scheduled sync finished",
		"user_id", user,
		"run_id", result.RunID,
		"synced", result.TotalSynced,
		"errors", result.TotalErrors)
}
