// Package transfer mirrors a remote file tree into local storage.
//
// A run scans the remote tree depth-first in a deterministic order, filters
// out skipped folders and files older than the configured cutoff, then
// downloads the remaining files one at a time with bounded retries. Progress,
// speed, and per-file outcomes stream into the shared status tracker.
package transfer
