package server

import (
	"context"
	"fmt"
	"time"

	timer "github.com/xiaonanln/goTimer"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/dispatch"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
	"github.com/xiaonanln/gwscope/engine/post"
	"github.com/xiaonanln/gwscope/engine/proto"
	"github.com/xiaonanln/gwscope/engine/session"
)

type clientEventKind int

const (
	clientConnected clientEventKind = iota
	clientMessage
	clientDisconnected
)

type clientEvent struct {
	kind clientEventKind
	cp   *ClientProxy
	msg  *proto.Message
}

// Run starts the server and runs the main routine until the server is terminated
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopStats = cancel
	go opmon.CollectProcessStats(ctx, consts.PROCESS_STATS_INTERVAL)

	s.serveRoutine()
	return nil
}

func (s *Server) serveRoutine() {
	tickInterval := s.config.Server.TickInterval
	if tickInterval <= 0 {
		tickInterval = consts.GAME_SERVICE_TICK_INTERVAL
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// here begins the main loop of the server
	for {
		select {
		case ev := <-s.events:
			op := opmon.StartOperation("server.handleClientEvent")
			s.handleClientEvent(ev)
			op.Finish(time.Millisecond * 100)
		case <-ticker.C:
			if s.runState.Load() == rsTerminating {
				s.doTerminate()
				return
			}
			timer.Tick()
		}

		// after handling events or firing timers, check the posted functions
		post.Tick()
	}
}

func (s *Server) handleClientEvent(ev clientEvent) {
	switch ev.kind {
	case clientConnected:
		ev.cp.connectTime = time.Now()
		ev.cp.heartbeatTime = ev.cp.connectTime
		s.clientProxiesLock.Lock()
		s.clientProxies[ev.cp.clientid] = ev.cp
		s.clientProxiesLock.Unlock()
		if consts.DEBUG_CLIENTS {
			gwlog.Debugf("%s: client %s connected", s, ev.cp)
		}
	case clientMessage:
		ev.cp.heartbeatTime = time.Now()
		s.handleClientMessage(ev.cp, ev.msg)
	case clientDisconnected:
		s.onClientProxyClose(ev.cp)
	}
}

func (s *Server) handleClientMessage(cp *ClientProxy, msg *proto.Message) {
	if cp.session == nil && msg.Type != proto.MT_LOGIN {
		gwlog.Warnf("%s: expect %s, but received %s", s, proto.MT_LOGIN, msg.Type)
		cp.Terminate(fmt.Sprintf("login required, but received %s", msg.Type))
		return
	}

	switch msg.Type {
	case proto.MT_LOGIN:
		s.handleLogin(cp, msg.Owner)
	case proto.MT_REQUEST:
		s.handleRequest(cp, msg)
	case proto.MT_HEARTBEAT:
	default:
		gwlog.Warnf("%s: unexpected message %s from %s", s, msg.Type, cp)
	}
}

func (s *Server) handleLogin(cp *ClientProxy, owner string) {
	if cp.session != nil {
		cp.SendError("", "login", session.ErrAlreadyConnected)
		return
	}

	sess, err := s.sessions.Connect(owner, cp)
	if err != nil {
		if sess == nil {
			// rejected before loading anything, the session of the owner (if any) is untouched
			gwlog.Warnf("%s: login of %s as %q rejected: %s", s, cp, owner, err)
			cp.Terminate(err.Error())
		}
		// a load failure has already terminated the observer
		return
	}

	cp.owner = owner
	cp.session = sess
	gwlog.Infof("%s: %s logged in as %s", s, cp, owner)
}

func (s *Server) handleRequest(cp *ClientProxy, msg *proto.Message) {
	sess := cp.session
	if sess == nil || !sess.IsActive() || s.sessions.Get(cp.owner) != sess {
		opmon.DispatchRejected.WithLabelValues(msg.Table, "not_active").Inc()
		cp.SendError(msg.Table, msg.Action, session.ErrNotActive)
		return
	}

	table := msg.Table
	ctx := &dispatch.Context{
		Owner:    cp.owner,
		Registry: s.registry,
		Reply: func(action dispatch.ActionID, err error) {
			cp.SendError(table, string(action), err)
		},
	}
	s.tables.Dispatch(table, dispatch.ActionID(msg.Action), ctx, dispatch.Args(msg.Args))
}

// checkClients closes clients which do not login in time or stop sending messages (including heartbeats)
func (s *Server) checkClients() {
	now := time.Now()
	s.clientProxiesLock.RLock()
	defer s.clientProxiesLock.RUnlock()

	for _, cp := range s.clientProxies {
		if cp.session == nil && now.Sub(cp.connectTime) > s.loginTimeout {
			gwlog.Warnf("%s: %s login timeout", s, cp)
			cp.Terminate("login timeout")
		} else if now.Sub(cp.heartbeatTime) > s.readTimeout {
			gwlog.Warnf("%s: %s sent nothing for %s, closing", s, cp, now.Sub(cp.heartbeatTime))
			cp.close()
		}
	}
}

func (s *Server) onClientProxyClose(cp *ClientProxy) {
	s.clientProxiesLock.Lock()
	delete(s.clientProxies, cp.clientid)
	s.clientProxiesLock.Unlock()

	if cp.session != nil && s.sessions.Get(cp.owner) == cp.session {
		s.sessions.Disconnect(cp.owner)
	}
	cp.session = nil
	if consts.DEBUG_CLIENTS {
		gwlog.Debugf("%s: client %s disconnected", s, cp)
	}
}

func (s *Server) doTerminate() {
	gwlog.Infof("%s terminating: %d clients, %d sessions ...", s, s.NumClients(), s.sessions.Len())
	s.closeListeners()
	s.crontab.Stop()
	if s.checkClientsTimer != nil {
		s.checkClientsTimer.Cancel()
	}

	s.clientProxiesLock.RLock()
	for _, cp := range s.clientProxies { // close all connected clients when terminating
		cp.Terminate("server is shutting down")
	}
	s.clientProxiesLock.RUnlock()

	// flush before the sessions evict their Single entities
	s.persistence.Stop()
	n := s.persistence.FlushAll()
	s.sessions.DisconnectAll()
	gwlog.Infof("%s: %d dirty entities flushed, waiting for storage ...", s, n)
	s.storage.Shutdown()
	post.Tick() // run the save callbacks

	if s.persistence.Len() > 0 {
		gwlog.Errorf("%s: %d entities could not be saved", s, s.persistence.Len())
	}
	if s.stopStats != nil {
		s.stopStats()
	}
	s.runState.Store(rsTerminated)
	gwlog.Infof("%s terminated", s)
	s.terminated.Signal()
}
