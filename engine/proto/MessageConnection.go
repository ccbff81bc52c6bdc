package proto

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/netutil"
	"github.com/xiaonanln/pktconn"
)

// ErrMessageTooLarge is returned when a message exceeds consts.MAX_MESSAGE_SIZE
var ErrMessageTooLarge = errors.New("message too large")

// MessageConnection sends and receives Messages over a stream connection
//
// Every message is one packet carrying the MessagePack payload. Sent packets are
// flushed by the packet connection shortly after they are queued.
type MessageConnection struct {
	packetConn *pktconn.PacketConn
	closed     xnsyncutil.AtomicBool
}

// NewMessageConnection creates a MessageConnection on the network connection, both sides must agree on compress
func NewMessageConnection(conn net.Conn, compress bool) *MessageConnection {
	config := pktconn.DefaultConfig()
	config.Tag = conn.RemoteAddr()
	return &MessageConnection{
		packetConn: pktconn.NewPacketConnWithConfig(context.TODO(), netutil.NewBufferedConnection(conn, compress), config),
	}
}

func (mc *MessageConnection) String() string {
	return fmt.Sprintf("MessageConnection<%s>", mc.RemoteAddr())
}

// SendMsg packs the message and queues it for sending
func (mc *MessageConnection) SendMsg(msg *Message) error {
	if mc.closed.Load() {
		return errors.Wrapf(net.ErrClosed, "send %s", msg.Type)
	}

	data, err := netutil.MSG_PACKER.PackMsg(msg, nil)
	if err != nil {
		return errors.Wrapf(err, "pack %s", msg.Type)
	}
	if len(data) > consts.MAX_MESSAGE_SIZE {
		return errors.Wrapf(ErrMessageTooLarge, "send %s of %d bytes", msg.Type, len(data))
	}

	packet := pktconn.NewPacket()
	packet.WriteBytes(data)
	mc.packetConn.Send(packet)
	packet.Release()

	if consts.DEBUG_PACKETS {
		gwlog.Debugf("%s: send %s", mc, msg)
	}
	return nil
}

// Recv calls handle for every received message until the connection fails or is closed
//
// A message that can not be unpacked closes the connection.
func (mc *MessageConnection) Recv(handle func(msg *Message)) error {
	packets := make(chan *pktconn.Packet, consts.MESSAGE_RECV_QUEUE_SIZE)
	recvErr := make(chan error, 1)
	go func() {
		recvErr <- mc.packetConn.RecvChan(packets)
	}()

	var unpackErr error
	onPacket := func(packet *pktconn.Packet) {
		defer packet.Release()
		if unpackErr != nil {
			return
		}

		msg := &Message{}
		if err := netutil.MSG_PACKER.UnpackMsg(packet.Payload(), msg); err != nil {
			unpackErr = errors.Wrap(err, "unpack message")
			mc.Close()
			return
		}
		if consts.DEBUG_PACKETS {
			gwlog.Debugf("%s: recv %s", mc, msg)
		}
		handle(msg)
	}

	for {
		select {
		case packet := <-packets:
			onPacket(packet)
		case err := <-recvErr:
			// the packets received before the failure are still handled
			for {
				select {
				case packet := <-packets:
					onPacket(packet)
				default:
					if unpackErr != nil {
						return unpackErr
					}
					return err
				}
			}
		}
	}
}

// RecvChan sends every received message to recvChan until the connection fails or is closed
func (mc *MessageConnection) RecvChan(recvChan chan<- *Message) error {
	return mc.Recv(func(msg *Message) {
		recvChan <- msg
	})
}

// Close closes the underlying connection
func (mc *MessageConnection) Close() error {
	if mc.closed.Load() {
		return nil
	}
	mc.closed.Store(true)
	return mc.packetConn.Close()
}

// IsClosed returns if the connection is closed
func (mc *MessageConnection) IsClosed() bool {
	return mc.closed.Load()
}

// RemoteAddr returns the remote address
func (mc *MessageConnection) RemoteAddr() net.Addr {
	return mc.packetConn.RemoteAddr()
}

// LocalAddr returns the local address
func (mc *MessageConnection) LocalAddr() net.Addr {
	return mc.packetConn.LocalAddr()
}
