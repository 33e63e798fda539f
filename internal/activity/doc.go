// Package activity defines the append-only event sinks the core writes to.
//
// The engines and the job runner emit one event per state transition and per
// file/task outcome; failures additionally go to the error sink. The core
// does not own persistence or formatting; internal/journal supplies the
// SQLite-backed implementation the daemon wires in.
package activity
