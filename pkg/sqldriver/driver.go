// Package sqldriver defines the pluggable async SQL client contract the
// search executor streams rows through: prepare_and_stream plus close,
// as described in the design notes. PostgreSQL is the concrete backend
// (pkg/sqldriver/postgres); additional backends plug in behind this
// same interface.
package sqldriver

import "context"

// Rows streams the result of one query. Cancelling the context passed
// to PrepareAndStream aborts the underlying server-side query rather
// than merely detaching the client from it; Close must always be called
// once the caller is done, whether or not Next ever returned false.
type Rows interface {
	// Next advances to the next row, returning false at end-of-stream
	// or on error (check Err to distinguish the two).
	Next() bool
	// Scan copies the current row's columns into dest, in the order
	// requested of the query's projection list.
	Scan(dest ...any) error
	// Err returns the first error encountered by Next, if any.
	Err() error
	// Close releases the underlying resources. Safe to call multiple
	// times.
	Close()
}

// Driver is the pluggable async SQL client.
type Driver interface {
	// PrepareAndStream executes query with params bound positionally
	// and returns a row stream. ctx governs the lifetime of the
	// server-side query: cancellation (client disconnect, AbandonRequest,
	// or a search time limit) must abort the query on the server, not
	// just stop reading from the client side.
	PrepareAndStream(ctx context.Context, query string, params []any) (Rows, error)
	// Close releases the connection pool. Called once at server
	// shutdown.
	Close()
}
