// Package scheduler arms the interval timer behind automatic sync runs.
//
// At most one timer is armed at a time. Rearm replaces the armed timer on
// every configuration change; a fire that finds the worker busy is skipped
// outright and re-armed one full interval later, never queued.
package scheduler
