package syncer

import (
	"errors"
	"fmt"
)

// State is the controller's position in the current sync cycle.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateComparing
	StateUploading
	StateDownloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateComparing:
		return "comparing"
	case StateUploading:
		return "uploading"
	case StateDownloading:
		return "downloading"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Direction is the way content flows in a cycle.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ErrSuperseded is the cause of a cycle canceled by a newer trigger.
var ErrSuperseded = errors.New("sync cycle superseded")

// CycleError reports a cycle whose remote transfer kept failing.
type CycleError struct {
	Direction Direction
	Attempts  int
	Err       error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("sync %s failed after %d attempts: %v", e.Direction, e.Attempts, e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }
