// Package config loads, normalizes, and validates tidesync configuration
// data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TIDESYNC_SFTP_PASSWORD. The Provider interface is how the core consumes
// configuration: snapshot reads plus a change subscription that the file
// watcher feeds, so the scheduler can re-arm without polling shared state.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, normalized folder filters, and clear validation errors.
package config
