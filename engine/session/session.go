package session

import (
	"fmt"
	"time"

	timer "github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/opmon"
)

// Session is the connection of one owner
type Session struct {
	owner    string
	observer Observer
	manager  *Manager
	state    State
	err      error
	started  time.Time

	pending     int
	loaded      map[entity.Key]entity.Fields // nil fields for keys never stored
	loadTimer   *timer.Timer
	unsubscribe func()
}

func (s *Session) String() string {
	return fmt.Sprintf("Session<%s|%s>", s.owner, s.state)
}

// Owner returns the owner key of the session
func (s *Session) Owner() string {
	return s.owner
}

// State returns the lifecycle state
func (s *Session) State() State {
	return s.state
}

// IsActive returns if the session serves requests
func (s *Session) IsActive() bool {
	return s.state == StateActive
}

// Err returns the load failure that terminated the session, if any
func (s *Session) Err() error {
	return s.err
}

func (s *Session) setState(state State) {
	if s.state == state {
		return
	}
	debugSession("%s => %s", s, state)
	if s.state != StateDisconnected {
		opmon.Sessions.WithLabelValues(s.state.String()).Dec()
	}
	if state != StateDisconnected {
		opmon.Sessions.WithLabelValues(state.String()).Inc()
	}
	s.state = state
}

func (s *Session) load(key entity.Key) {
	if s.state != StateLoading {
		return
	}
	if s.manager.registry.Lookup(key) != nil {
		return // still live, from a previous session or game logic
	}
	s.pending += 1
	s.manager.loader.Load(key, func(data entity.Fields, err error) {
		if s.state != StateLoading {
			return
		}
		if err != nil {
			s.fail(&entity.LoadFailure{Key: key, Err: err})
			return
		}
		s.loaded[key] = data
		s.done()
	})
}

func (s *Session) list(typeName string) {
	if s.state != StateLoading {
		return
	}
	s.pending += 1
	s.manager.loader.List(typeName, s.owner, func(instances []string, err error) {
		if s.state != StateLoading {
			return
		}
		if err != nil {
			s.fail(&entity.LoadFailure{Key: entity.Key{TypeName: typeName, Owner: s.owner}, Err: err})
			return
		}
		for _, instance := range instances {
			s.load(entity.MultiKey(typeName, s.owner, instance))
		}
		s.done()
	})
}

func (s *Session) done() {
	if s.state != StateLoading {
		return
	}
	s.pending -= 1
	if s.pending == 0 {
		s.manager.activate(s)
	}
}

func (s *Session) fail(err error) {
	if s.state != StateLoading {
		return
	}
	s.manager.terminate(s, err)
}

func (s *Session) cancelLoadTimer() {
	if s.loadTimer != nil {
		s.loadTimer.Cancel()
		s.loadTimer = nil
	}
}
