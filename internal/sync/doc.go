// Package sync drives synchronization runs from the relational store to the
// target workspace.
//
// A run resolves the user's target databases through discovery, then walks
// the logical databases in their fixed order. For each one it obtains the
// target schema, lists the rows that have not been synchronized yet and, per
// row, resolves field names, coerces values, creates the page, reads it back
// and finally records the page id on the row.
//
// # Failure model
//
// Failures are local. A row that fails is counted and left unmarked so the
// next run retries it. A logical database that fails (schema unavailable,
// rows unreadable) is recorded in its status and the run moves on. Only
// conditions that prevent a run from starting at all, such as a rejected
// credential or an unreachable workspace, are returned as errors from
// Manager.Run.
//
// # Cancellation
//
// The caller's context is checked before each logical database and each row.
// A row already in flight always completes, so a created page is never left
// without its marker because of cancellation.
package sync
