// Package pipeline drives a wiki generation job through its states: cache
// check, snapshot fetch, structure planning, page generation, and export.
package pipeline

import "fmt"

// State is the main-flow state of a generation job.
type State int

const (
	StateIdle State = iota
	StateCheckingCache
	StateFetchingStructure
	StateDeterminingStructure
	StateGeneratingPages
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingCache:
		return "checking-cache"
	case StateFetchingStructure:
		return "fetching-structure"
	case StateDeterminingStructure:
		return "determining-structure"
	case StateGeneratingPages:
		return "generating-pages"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether the main flow has finished.
func (s State) Terminal() bool {
	return s == StateReady || s == StateError
}

// Event advances the main-flow state machine.
type Event int

const (
	EventStart Event = iota
	EventCacheHit
	EventCacheMiss
	EventSnapshotFetched
	EventStructurePlanned
	EventPagesResolved
	EventFatalError
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventCacheHit:
		return "cache-hit"
	case EventCacheMiss:
		return "cache-miss"
	case EventSnapshotFetched:
		return "snapshot-fetched"
	case EventStructurePlanned:
		return "structure-planned"
	case EventPagesResolved:
		return "pages-resolved"
	case EventFatalError:
		return "fatal-error"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Transition is the pure main-flow transition function. It returns an error
// for any (state, event) pair the machine does not define, making the
// machine exhaustively testable.
func Transition(s State, e Event) (State, error) {
	// A fatal error is legal from any non-terminal state.
	if e == EventFatalError {
		if s.Terminal() {
			return s, fmt.Errorf("invalid transition: %s on terminal state %s", e, s)
		}
		return StateError, nil
	}

	switch s {
	case StateIdle:
		if e == EventStart {
			return StateCheckingCache, nil
		}
	case StateCheckingCache:
		switch e {
		case EventCacheHit:
			return StateReady, nil
		case EventCacheMiss:
			return StateFetchingStructure, nil
		}
	case StateFetchingStructure:
		if e == EventSnapshotFetched {
			return StateDeterminingStructure, nil
		}
	case StateDeterminingStructure:
		if e == EventStructurePlanned {
			return StateGeneratingPages, nil
		}
	case StateGeneratingPages:
		if e == EventPagesResolved {
			return StateReady, nil
		}
	}
	return s, fmt.Errorf("invalid transition: %s on state %s", e, s)
}

// ExportState is the orthogonal export sub-state. It never feeds back into
// the main flow.
type ExportState int

const (
	ExportIdle ExportState = iota
	Exporting
	ExportDone
	ExportFailed
)

func (s ExportState) String() string {
	switch s {
	case ExportIdle:
		return "export-idle"
	case Exporting:
		return "exporting"
	case ExportDone:
		return "export-done"
	case ExportFailed:
		return "export-failed"
	default:
		return fmt.Sprintf("ExportState(%d)", int(s))
	}
}
