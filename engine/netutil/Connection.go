package netutil

import (
	"net"

	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/netconnutil"
)

// Connection is a network connection whose writes are sent on Flush
type Connection interface {
	netconnutil.FlushableConn
}

// NetConn adapts a net.Conn to Connection, writes are not buffered
type NetConn struct {
	net.Conn
}

// Flush does nothing since writes are not buffered
func (n NetConn) Flush() error {
	return nil
}

// NewBufferedConnection wraps the client connection with buffered (and optionally snappy compressed) streams
//
// Temporary errors of the connection are retried instead of being returned.
func NewBufferedConnection(_conn net.Conn, compress bool) Connection {
	_conn = netconnutil.NewNoTempErrorConn(_conn)
	var conn Connection = NetConn{_conn}
	if compress {
		conn = netconnutil.NewSnappyConn(conn)
	}
	conn = netconnutil.NewBufferedConn(conn, consts.BUFFERED_READ_BUFFSIZE, consts.BUFFERED_WRITE_BUFFSIZE)
	return conn
}
