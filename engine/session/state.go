package session

import "fmt"

// State is the lifecycle state of a session
type State int

const (
	// StateDisconnected is the state before connect and after disconnect or load failure
	StateDisconnected State = iota
	// StateLoading is the state while entities of the owner are loaded
	StateLoading
	// StateActive is the state in which requests are served
	StateActive
	// StateDisconnecting is the state while entities of the owner are evicted
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateLoading:
		return "Loading"
	case StateActive:
		return "Active"
	case StateDisconnecting:
		return "Disconnecting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
