package netutil

import (
	"net"

	"github.com/xiaonanln/gwscope/engine/gwioutil"
	"github.com/xiaonanln/gwscope/engine/gwlog"
)

// TCPServerDelegate is the implementations that a TCP server should provide
type TCPServerDelegate interface {
	ServeTCPConnection(net.Conn)
}

// ServeListener accepts connections of the listener until it is closed
func ServeListener(ln net.Listener, delegate TCPServerDelegate) error {
	gwlog.Infof("Listening on TCP: %s ...", ln.Addr())
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if gwioutil.IsTimeoutError(err) {
				continue
			} else {
				return err
			}
		}

		gwlog.Infof("Connection from: %s", conn.RemoteAddr())
		go delegate.ServeTCPConnection(conn)
	}
}
