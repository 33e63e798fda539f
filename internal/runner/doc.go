// Package runner owns the single shared worker slot.
//
// Exactly one engine execution exists at a time; the idle check inside
// Start is the sole serialization point, so a scheduler fire and a manual
// start can never race into two concurrent engines. Stop is cooperative:
// it cancels the run context, which the engines observe at file, chunk, and
// task boundaries.
package runner
