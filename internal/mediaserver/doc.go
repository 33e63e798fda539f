// Package mediaserver abstracts the media-server maintenance API behind a
// capability interface consumed by the task orchestrator.
//
// The production implementation targets the Jellyfin ScheduledTasks
// endpoints; Emby servers answer the same shapes.
package mediaserver
