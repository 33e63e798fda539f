// Package daemon composes the sync engine, task orchestrator, runner,
// scheduler, and journal into the single background service and enforces
// single-instance execution with a file lock.
package daemon
