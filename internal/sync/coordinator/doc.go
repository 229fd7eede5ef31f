// Package coordinator runs synchronizations in the background for a fixed
// set of users.
//
// It sits on top of sync.Manager and only handles scheduling:
//
//   - one run per configured user right after start, then one per interval
//   - a random ±10% jitter on every interval so instances do not align
//   - at most one run per user at a time; a tick that finds a user's
//     previous run still going skips that user
//   - graceful shutdown that waits for in-flight runs
//
// # Usage
//
//	manager := sync.NewManager(deps, opts)
//	coord := coordinator.New(manager, stateService, cfg)
//
//	go coord.Start(ctx)
//	// ... run server ...
//	coord.Stop()
//
// Statuses left in Syncing by a process that died mid-run are reset through
// the state service before the first run.
package coordinator
