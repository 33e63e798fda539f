// Package main hosts the tidesync CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into one-shot
// sync and Jellyfin task runs, history queries against the journal, and
// configuration scaffolding. It centralizes configuration resolution and
// worker wiring so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
