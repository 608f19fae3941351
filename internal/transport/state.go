// Package transport implements the negotiator that selects between the
// reactive (push) and polling (pull) feed channels, and the status report
// types the channels use to drive it.
package transport

import "feedwire/pkg/feed"

// State is the active transport selection.
type State int

// Transport states. A session starts Detecting and settles on Reactive or
// Polling exactly once per detection cycle; only an explicit Reset returns
// it to Detecting.
const (
	StateDetecting State = iota
	StateReactive
	StatePolling
)

// String returns a human-readable label for the state.
func (s State) String() string {
	switch s {
	case StateDetecting:
		return "detecting"
	case StateReactive:
		return "reactive"
	case StatePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Source identifies which channel produced a status report.
type Source int

// Report sources.
const (
	SourceReactive Source = iota
	SourcePolling
)

// String returns a human-readable label for the source.
func (s Source) String() string {
	switch s {
	case SourceReactive:
		return "reactive"
	case SourcePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Phase is the lifecycle phase carried by a Status report.
type Phase int

// Status phases.
const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseErrored
)

// Status is an asynchronous report from a channel. Readiness, not content,
// is what the negotiator evaluates: a Ready status with an empty snapshot
// is a valid ready state.
type Status struct {
	Phase    Phase
	Snapshot feed.Snapshot
	Err      error
}

// Loading returns a status for a channel that has not settled yet.
func Loading() Status {
	return Status{Phase: PhaseLoading}
}

// Ready returns a status for a channel that delivered a snapshot.
func Ready(snap feed.Snapshot) Status {
	return Status{Phase: PhaseReady, Snapshot: snap}
}

// Errored returns a status for a channel that failed.
func Errored(err error) Status {
	return Status{Phase: PhaseErrored, Err: err}
}
