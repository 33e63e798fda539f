// Package tasks runs ordered media-server maintenance tasks in the shared
// worker slot.
//
// Tasks are triggered one at a time and polled to completion. A trigger or
// polling failure aborts the remaining queue; a stop request skips the queue
// but leaves the task already dispatched to finish on the server.
package tasks
