// Package status holds the shared run state for the sync worker.
//
// A single Tracker instance backs every status read in the system. The
// active engine is its only writer; all other callers receive deep-copied
// snapshots so concurrent polling never observes a torn update.
package status
