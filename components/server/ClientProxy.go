package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/entity"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/netutil"
	"github.com/xiaonanln/gwscope/engine/proto"
	"github.com/xiaonanln/gwscope/engine/session"
)

// ClientProxy is a client connection of the server, it observes the session of its owner
type ClientProxy struct {
	*proto.MessageConnection
	clientid  string
	server    *Server
	closeOnce sync.Once
	closing   chan struct{}

	// main routine only
	owner         string
	session       *session.Session
	connectTime   time.Time
	heartbeatTime time.Time
}

var _ session.Observer = (*ClientProxy)(nil)

func newClientProxy(conn net.Conn, server *Server) *ClientProxy {
	return &ClientProxy{
		MessageConnection: proto.NewMessageConnection(conn, server.config.Server.CompressConnection),
		clientid:          uuid.NewString(), // each client has its unique clientid
		server:            server,
		closing:           make(chan struct{}),
	}
}

func (cp *ClientProxy) String() string {
	return fmt.Sprintf("ClientProxy<%s@%s>", cp.clientid, cp.RemoteAddr())
}

// ClientID returns the unique id of the client
func (cp *ClientProxy) ClientID() string {
	return cp.clientid
}

// Deliver sends the snapshot of an observed entity to the client
func (cp *ClientProxy) Deliver(snap entity.Snapshot) {
	cp.send(proto.NewSnapshotMsg(snap))
}

// Terminate sends the reason to the client and closes the connection once it is flushed
func (cp *ClientProxy) Terminate(reason string) {
	if cp.isClosing() {
		return
	}
	cp.send(proto.NewTerminateMsg(reason))
	close(cp.closing)
	time.AfterFunc(consts.CLIENT_PROXY_TERMINATE_DELAY, cp.close)
}

// SendError tells the client its request was rejected
func (cp *ClientProxy) SendError(table string, action string, err error) {
	cp.send(proto.NewErrorMsg(table, action, err))
}

func (cp *ClientProxy) send(msg *proto.Message) {
	if cp.isClosing() {
		return
	}
	if err := cp.SendMsg(msg); err != nil {
		if !netutil.IsConnectionError(err) {
			gwlog.Errorf("%s: send %s failed: %v", cp, msg.Type, err)
		}
		cp.close()
	}
}

func (cp *ClientProxy) isClosing() bool {
	select {
	case <-cp.closing:
		return true
	default:
		return false
	}
}

func (cp *ClientProxy) close() {
	cp.closeOnce.Do(func() {
		cp.Close()
	})
}

func (cp *ClientProxy) serve() {
	defer func() {
		cp.close()
		// tell the server that this client is down
		cp.server.events <- clientEvent{kind: clientDisconnected, cp: cp}

		if err := recover(); err != nil {
			gwlog.TraceError("%s paniced: %v", cp, err)
		}
	}()

	cp.server.events <- clientEvent{kind: clientConnected, cp: cp}
	err := cp.Recv(func(msg *proto.Message) {
		cp.server.events <- clientEvent{kind: clientMessage, cp: cp, msg: msg}
	})
	if err != nil && !netutil.IsConnectionError(err) {
		gwlog.Errorf("%s error: %v", cp, err)
	} else {
		gwlog.Debugf("%s disconnected", cp)
	}
}
