package server

import (
	"net"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/binutil"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/gwutils"
	"github.com/xiaonanln/gwscope/engine/netutil"
	"github.com/xtaci/kcp-go"
	"golang.org/x/net/websocket"
)

func (s *Server) listenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen tcp %s", addr)
	}
	s.addListener(ln)

	go func() {
		err := netutil.ServeListener(ln, s)
		if s.runState.Load() == rsRunning {
			gwlog.Errorf("%s: TCP listener quited: %v", s, err)
		}
	}()
	return nil
}

func (s *Server) listenKCP(addr string) error {
	kcpListener, err := kcp.ListenWithOptions(addr, nil, 10, 3)
	if err != nil {
		return errors.Wrapf(err, "listen kcp %s", addr)
	}
	s.addListener(kcpListener)
	gwlog.Infof("Listening on KCP: %s ...", addr)

	go gwutils.RepeatUntilPanicless(func() {
		for {
			conn, err := kcpListener.AcceptKCP()
			if err != nil {
				if s.runState.Load() == rsRunning {
					gwlog.Errorf("%s: KCP listener quited: %v", s, err)
				}
				return
			}
			go s.handleKCPConn(conn)
		}
	})
	return nil
}

func (s *Server) addListener(ln net.Listener) {
	s.listenersLock.Lock()
	s.listeners = append(s.listeners, ln)
	s.listenersLock.Unlock()
}

func (s *Server) setupHTTPServer(addr string) {
	s.httpServer = binutil.SetupHTTPServer(addr, s.handleWebSocketConn)
}

// ServeTCPConnection handle TCP connections from clients
func (s *Server) ServeTCPConnection(conn net.Conn) {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetWriteBuffer(consts.CLIENT_PROXY_WRITE_BUFFER_SIZE)
		tcpConn.SetReadBuffer(consts.CLIENT_PROXY_READ_BUFFER_SIZE)
		tcpConn.SetNoDelay(consts.CLIENT_PROXY_SET_TCP_NO_DELAY)
	}

	s.handleClientConnection(conn)
}

func (s *Server) handleKCPConn(conn *kcp.UDPSession) {
	gwlog.Infof("KCP connection from %s", conn.RemoteAddr())

	conn.SetReadBuffer(consts.CLIENT_PROXY_READ_BUFFER_SIZE)
	conn.SetWriteBuffer(consts.CLIENT_PROXY_WRITE_BUFFER_SIZE)
	// turn on turbo mode according to https://github.com/skywind3000/kcp/blob/master/README.en.md#protocol-configuration
	conn.SetStreamMode(true)
	conn.SetWriteDelay(true)
	conn.SetNoDelay(1, 10, 2, 1)
	s.handleClientConnection(conn)
}

func (s *Server) handleWebSocketConn(wsConn *websocket.Conn) {
	gwlog.Debugf("WebSocket Connection: %s", wsConn.RemoteAddr())
	wsConn.PayloadType = websocket.BinaryFrame
	s.handleClientConnection(wsConn)
}

func (s *Server) handleClientConnection(conn net.Conn) {
	if s.runState.Load() != rsRunning {
		// server terminating, not accepting more connections
		conn.Close()
		return
	}

	cp := newClientProxy(conn, s)
	cp.serve()
}
