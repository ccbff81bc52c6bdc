package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	timer "github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwscope/engine/config"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/crontab"
	"github.com/xiaonanln/gwscope/engine/dispatch"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/persistence"
	"github.com/xiaonanln/gwscope/engine/replication"
	"github.com/xiaonanln/gwscope/engine/session"
	"github.com/xiaonanln/gwscope/engine/storage"
)

const (
	rsNotRunning = iota
	rsRunning
	rsTerminating
	rsTerminated
)

// Server hosts the entity registry and serves clients on TCP, KCP and WebSocket
//
// All entity state is owned by the main routine started by Run: client messages,
// timers and storage callbacks are all handled there one at a time.
type Server struct {
	config *config.GWScopeConfig

	registry    *entity.Registry
	hub         *replication.Hub
	tables      *dispatch.Tables
	storage     *storage.Service
	persistence *persistence.Queue
	sessions    *session.Manager
	crontab     *crontab.Crontab

	sharedDefaults map[string]entity.DefaultsFunc

	events            chan clientEvent
	loginTimeout      time.Duration
	readTimeout       time.Duration
	checkClientsTimer *timer.Timer
	clientProxies     map[string]*ClientProxy
	clientProxiesLock sync.RWMutex

	listenersLock sync.Mutex
	listeners     []net.Listener
	httpServer    *http.Server
	stopStats     context.CancelFunc

	runState   xnsyncutil.AtomicInt
	started    *xnsyncutil.OneTimeCond
	terminated *xnsyncutil.OneTimeCond
}

// NewServer creates a server using the config and the storage backend opened by opener
func NewServer(cfg *config.GWScopeConfig, opener storage.Opener) *Server {
	hub := replication.NewHub()
	registry := entity.NewRegistry(hub)
	storageService := storage.NewService(opener, cfg.Persistence.WritesPerSecond, cfg.Persistence.WriteBurst)
	queue := persistence.NewQueue(registry, storageService, persistence.Config{
		Interval:         cfg.Persistence.SaveInterval,
		MaxWritesPerTick: cfg.Persistence.MaxWritesPerTick,
	})
	registry.SetDirtyMarker(queue)
	sessions := session.NewManager(registry, hub, storageService, queue, session.Config{
		LoadTimeout:  cfg.Session.LoadTimeout,
		FlushOnEvict: cfg.Session.FlushOnEvict,
	})

	return &Server{
		config:         cfg,
		registry:       registry,
		hub:            hub,
		tables:         dispatch.NewTables(),
		storage:        storageService,
		persistence:    queue,
		sessions:       sessions,
		crontab:        crontab.New(),
		sharedDefaults: map[string]entity.DefaultsFunc{},
		events:         make(chan clientEvent, consts.GAME_SERVICE_EVENT_QUEUE_SIZE),
		loginTimeout:   consts.CLIENT_LOGIN_TIMEOUT,
		readTimeout:    consts.CLIENT_PROXY_READ_TIMEOUT,
		clientProxies:  map[string]*ClientProxy{},
		started:        xnsyncutil.NewOneTimeCond(),
		terminated:     xnsyncutil.NewOneTimeCond(),
	}
}

func (s *Server) String() string {
	return fmt.Sprintf("Server<%s>", s.config.Server.ListenAddr)
}

// RegisterType registers an entity type, it must be called before Start
func (s *Server) RegisterType(typeName string, scope entity.Scope) *entity.TypeDesc {
	s.assertNotRunning("RegisterType")
	return s.registry.RegisterType(typeName, scope)
}

// SetSharedDefaults sets the fields the Shared entity of type is created with at startup
func (s *Server) SetSharedDefaults(typeName string, defaults entity.DefaultsFunc) {
	s.assertNotRunning("SetSharedDefaults")
	s.sharedDefaults[typeName] = defaults
}

// AddTable adds a dispatch table, it must be called before Start
func (s *Server) AddTable(t *dispatch.Table) *dispatch.Table {
	s.assertNotRunning("AddTable")
	return s.tables.Add(t)
}

func (s *Server) assertNotRunning(op string) {
	if s.runState.Load() != rsNotRunning {
		gwlog.Panicf("%s: %s after server started", s, op)
	}
}

// Registry returns the entity registry
func (s *Server) Registry() *entity.Registry {
	return s.registry
}

// Tables returns the dispatch tables
func (s *Server) Tables() *dispatch.Tables {
	return s.tables
}

// Sessions returns the session manager
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Persistence returns the persistence queue
func (s *Server) Persistence() *persistence.Queue {
	return s.persistence
}

// Storage returns the storage service
func (s *Server) Storage() *storage.Service {
	return s.storage
}

// Crontab returns the crontab, its callbacks run on the main routine
func (s *Server) Crontab() *crontab.Crontab {
	return s.crontab
}

// NumClients returns the number of connected clients
func (s *Server) NumClients() int {
	s.clientProxiesLock.RLock()
	defer s.clientProxiesLock.RUnlock()
	return len(s.clientProxies)
}

// Start opens the storage, materialises Shared entities and starts accepting clients
func (s *Server) Start() error {
	s.assertNotRunning("Start")
	if err := s.storage.Start(); err != nil {
		return errors.Wrap(err, "start storage")
	}

	for _, desc := range s.registry.TypesOfScope(entity.ScopeShared) {
		if _, err := s.registry.GetOrCreate(desc.Name(), entity.SharedOwner, "", s.sharedDefaults[desc.Name()], nil); err != nil {
			return errors.Wrapf(err, "create shared entity %s", desc.Name())
		}
	}
	s.tables.Freeze()

	cfg := &s.config.Server
	if err := s.listenTCP(cfg.ListenAddr); err != nil {
		return err
	}
	if cfg.KCPAddr != "" {
		if err := s.listenKCP(cfg.KCPAddr); err != nil {
			return err
		}
	}
	s.setupHTTPServer(cfg.HTTPAddr)

	s.persistence.Start()
	s.crontab.Start()
	s.checkClientsTimer = timer.AddTimer(consts.CLIENT_PROXY_CHECK_INTERVAL, s.checkClients)
	s.runState.Store(rsRunning)
	s.started.Signal()
	gwlog.Infof("%s started: %d entity types, dispatch tables %v", s, len(s.registry.Types()), s.tables.Names())
	return nil
}

// Addr returns the address of the TCP listener, nil before Start
func (s *Server) Addr() net.Addr {
	s.listenersLock.Lock()
	defer s.listenersLock.Unlock()
	if len(s.listeners) == 0 {
		return nil
	}
	return s.listeners[0].Addr()
}

// Terminate asks the main routine to shut the server down, it is safe to call from any goroutine
func (s *Server) Terminate() {
	if s.runState.Load() == rsRunning {
		s.runState.Store(rsTerminating)
	}
}

// WaitTerminated blocks until the server is shut down
func (s *Server) WaitTerminated() {
	s.terminated.Wait()
}

func (s *Server) closeListeners() {
	s.listenersLock.Lock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
	s.listenersLock.Unlock()

	if s.httpServer != nil {
		s.httpServer.Close()
	}
}
