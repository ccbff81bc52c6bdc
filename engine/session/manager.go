package session

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	timer "github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
	"github.com/xiaonanln/gwscope/engine/replication"
	"github.com/xiaonanln/gwscope/engine/storage"
)

var (
	// ErrAlreadyConnected is returned when connecting an owner with a live session
	ErrAlreadyConnected = errors.New("owner already connected")
	// ErrNotActive is returned for requests of sessions that are not active
	ErrNotActive = errors.New("session is not active")
	// ErrLoadTimeout is the cause of load failures of sessions loading for too long
	ErrLoadTimeout = errors.New("load timeout")
)

// Observer is the remote participant of a session
type Observer interface {
	// Deliver receives snapshots of every entity visible to the owner
	Deliver(snap entity.Snapshot)
	// Terminate ends the connection with a user-visible explanation
	Terminate(reason string)
}

// Loader reads stored entities, storage.Service is the Loader of servers
type Loader interface {
	Load(key entity.Key, callback storage.LoadCallbackFunc)
	List(typeName string, owner string, callback storage.ListCallbackFunc)
}

// Flusher writes one dirty entity immediately, persistence.Queue is the Flusher of servers
type Flusher interface {
	Flush(key entity.Key) bool
}

// Config configures session lifecycles
type Config struct {
	LoadTimeout  time.Duration // 0 disables the timeout
	FlushOnEvict bool          // write dirty Single entities before removing them
}

// Manager creates and evicts the entities of owners as they connect and disconnect
//
// All methods and load callbacks must run on the main routine.
type Manager struct {
	registry *entity.Registry
	hub      *replication.Hub
	loader   Loader
	flusher  Flusher
	config   Config
	sessions map[string]*Session
}

// NewManager creates a session manager, flusher may be nil if FlushOnEvict is off
func NewManager(registry *entity.Registry, hub *replication.Hub, loader Loader, flusher Flusher, config Config) *Manager {
	if config.FlushOnEvict && flusher == nil {
		gwlog.Panicf("session manager: FlushOnEvict requires a flusher")
	}
	return &Manager{
		registry: registry,
		hub:      hub,
		loader:   loader,
		flusher:  flusher,
		config:   config,
		sessions: map[string]*Session{},
	}
}

// Get returns the live session of owner, nil if absent
func (m *Manager) Get(owner string) *Session {
	return m.sessions[owner]
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	return len(m.sessions)
}

// Owners returns the owners of all live sessions
func (m *Manager) Owners() []string {
	owners := make([]string, 0, len(m.sessions))
	for owner := range m.sessions {
		owners = append(owners, owner)
	}
	return owners
}

// Connect starts the session of owner and loads its Single entities and Multi entities
//
// The session becomes Active once every entity is loaded, the observer then receives the
// snapshots of all its entities. If any load fails the session is terminated without
// creating any entity: the error is returned when the failure happens before Connect returns,
// otherwise it is reported through observer.Terminate.
func (m *Manager) Connect(owner string, observer Observer) (*Session, error) {
	if owner == "" || owner == entity.SharedOwner {
		return nil, errors.Wrapf(entity.ErrInvalidKey, "invalid owner %q", owner)
	}
	if m.sessions[owner] != nil {
		return nil, errors.Wrap(ErrAlreadyConnected, owner)
	}

	s := &Session{
		owner:    owner,
		observer: observer,
		manager:  m,
		loaded:   map[entity.Key]entity.Fields{},
		started:  time.Now(),
	}
	m.sessions[owner] = s
	s.setState(StateLoading)

	if m.config.LoadTimeout > 0 {
		s.loadTimer = timer.AddCallback(m.config.LoadTimeout, func() {
			s.loadTimer = nil
			s.fail(&entity.LoadFailure{Key: entity.Key{Owner: owner}, Err: errors.Wrapf(ErrLoadTimeout, "not loaded in %s", m.config.LoadTimeout)})
		})
	}

	s.pending += 1 // held until all loads are issued
	for _, desc := range m.registry.TypesOfScope(entity.ScopeSingle) {
		s.load(entity.SingleKey(desc.Name(), owner))
	}
	for _, desc := range m.registry.TypesOfScope(entity.ScopeMulti) {
		s.list(desc.Name())
	}
	s.done()

	if s.state == StateDisconnected {
		return s, s.err
	}
	return s, nil
}

// Disconnect ends the session of owner, it returns false if the owner has no session
//
// Single entities of the owner are removed, Multi entities stay in the registry.
// A session still loading is cancelled and its pending loads are ignored.
func (m *Manager) Disconnect(owner string) bool {
	s := m.sessions[owner]
	if s == nil {
		return false
	}

	prev := s.state
	s.setState(StateDisconnecting)
	s.cancelLoadTimer()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	if prev == StateActive {
		for _, desc := range m.registry.TypesOfScope(entity.ScopeSingle) {
			key := entity.SingleKey(desc.Name(), owner)
			if m.config.FlushOnEvict {
				m.flusher.Flush(key)
			}
			m.registry.RemoveKey(key)
		}
	}

	s.setState(StateDisconnected)
	delete(m.sessions, owner)
	gwlog.Infof("%s disconnected after %s", s, time.Since(s.started))
	return true
}

// DisconnectAll ends all sessions
func (m *Manager) DisconnectAll() {
	for _, owner := range m.Owners() {
		m.Disconnect(owner)
	}
}

func (m *Manager) activate(s *Session) {
	s.cancelLoadTimer()

	for key, data := range s.loaded {
		stored := data
		_, err := m.registry.GetOrCreate(key.TypeName, key.Owner, key.Instance, nil, func(entity.Key) (entity.Fields, error) {
			return stored, nil
		})
		if err != nil {
			// a key of an unregistered type, nothing was created for it
			gwlog.Errorf("%s: create %s failed: %s", s, key, err)
		}
	}
	s.loaded = nil

	typeNames := make([]string, 0)
	for _, desc := range m.registry.Types() {
		typeNames = append(typeNames, desc.Name())
	}
	s.setState(StateActive)
	gwlog.Infof("%s active, loaded in %s", s, time.Since(s.started))
	s.unsubscribe = m.hub.SubscribeAll(s.owner, typeNames, s.observer.Deliver)
}

func (m *Manager) terminate(s *Session, err error) {
	s.cancelLoadTimer()
	s.err = err
	s.loaded = nil
	s.setState(StateDisconnected)
	delete(m.sessions, s.owner)

	opmon.SessionLoadFailures.Inc()
	gwlog.Errorf("%s terminated: %s", s, err)
	s.observer.Terminate(fmt.Sprintf("Your saved data could not be loaded (%s). Please reconnect later.", errors.Cause(err)))
}

func debugSession(format string, args ...interface{}) {
	if consts.DEBUG_SESSIONS {
		gwlog.Debugf(format, args...)
	}
}
