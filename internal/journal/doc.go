// Package journal persists activity events, error entries, finalized file
// transfers, and run bookkeeping in a SQLite database under the daemon data
// directory.
//
// It implements the activity sink interfaces consumed by the core and gives
// the CLI a durable history to render after the fact.
package journal
