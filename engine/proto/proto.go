package proto

import (
	"fmt"

	"github.com/xiaonanln/gwscope/engine/entity"
)

// MsgType is the type of message types
type MsgType uint16

const (
	// MT_INVALID is the invalid message type
	MT_INVALID MsgType = iota
	// MT_LOGIN is sent by clients to bind the connection to an owner
	MT_LOGIN
	// MT_REQUEST is sent by clients to invoke an action of a dispatch table
	MT_REQUEST
	// MT_HEARTBEAT is sent by clients to keep the connection alive
	MT_HEARTBEAT
	// MT_SNAPSHOT is sent to clients when an observed entity changes
	MT_SNAPSHOT
	// MT_ERROR is sent to clients when a request is rejected
	MT_ERROR
	// MT_TERMINATE is sent to clients right before the server closes the session
	MT_TERMINATE
)

func (mt MsgType) String() string {
	switch mt {
	case MT_LOGIN:
		return "MT_LOGIN"
	case MT_REQUEST:
		return "MT_REQUEST"
	case MT_HEARTBEAT:
		return "MT_HEARTBEAT"
	case MT_SNAPSHOT:
		return "MT_SNAPSHOT"
	case MT_ERROR:
		return "MT_ERROR"
	case MT_TERMINATE:
		return "MT_TERMINATE"
	default:
		return fmt.Sprintf("MT_INVALID(%d)", uint16(mt))
	}
}

// Message is the unit of communication between clients and the server
//
// Which fields are meaningful depends on Type.
type Message struct {
	Type MsgType `msgpack:"t"`

	Owner  string        `msgpack:"o,omitempty"`  // MT_LOGIN, MT_SNAPSHOT
	Table  string        `msgpack:"tb,omitempty"` // MT_REQUEST, MT_ERROR
	Action string        `msgpack:"a,omitempty"`  // MT_REQUEST, MT_ERROR
	Args   []interface{} `msgpack:"args,omitempty"`

	EntityType string                 `msgpack:"et,omitempty"`
	Instance   string                 `msgpack:"i,omitempty"`
	Seq        uint64                 `msgpack:"s,omitempty"`
	Fields     map[string]interface{} `msgpack:"f,omitempty"`
	Removed    bool                   `msgpack:"r,omitempty"`

	Text string `msgpack:"x,omitempty"` // error message or terminate reason
}

func (m *Message) String() string {
	switch m.Type {
	case MT_LOGIN:
		return fmt.Sprintf("%s{%s}", m.Type, m.Owner)
	case MT_REQUEST:
		return fmt.Sprintf("%s{%s.%s%v}", m.Type, m.Table, m.Action, m.Args)
	case MT_SNAPSHOT:
		return fmt.Sprintf("%s{%s seq=%d removed=%v}", m.Type, m.Key(), m.Seq, m.Removed)
	case MT_ERROR:
		return fmt.Sprintf("%s{%s.%s: %s}", m.Type, m.Table, m.Action, m.Text)
	case MT_TERMINATE:
		return fmt.Sprintf("%s{%s}", m.Type, m.Text)
	default:
		return m.Type.String()
	}
}

// NewLoginMsg creates a MT_LOGIN message
func NewLoginMsg(owner string) *Message {
	return &Message{Type: MT_LOGIN, Owner: owner}
}

// NewRequestMsg creates a MT_REQUEST message
func NewRequestMsg(table string, action string, args ...interface{}) *Message {
	return &Message{Type: MT_REQUEST, Table: table, Action: action, Args: args}
}

// NewHeartbeatMsg creates a MT_HEARTBEAT message
func NewHeartbeatMsg() *Message {
	return &Message{Type: MT_HEARTBEAT}
}

// NewSnapshotMsg creates a MT_SNAPSHOT message carrying the snapshot
func NewSnapshotMsg(snap entity.Snapshot) *Message {
	return &Message{
		Type:       MT_SNAPSHOT,
		EntityType: snap.Key.TypeName,
		Owner:      snap.Key.Owner,
		Instance:   snap.Key.Instance,
		Seq:        snap.Seq,
		Fields:     snap.Fields,
		Removed:    snap.Removed,
	}
}

// NewErrorMsg creates a MT_ERROR message for a rejected request
func NewErrorMsg(table string, action string, err error) *Message {
	return &Message{Type: MT_ERROR, Table: table, Action: action, Text: err.Error()}
}

// NewTerminateMsg creates a MT_TERMINATE message
func NewTerminateMsg(reason string) *Message {
	return &Message{Type: MT_TERMINATE, Text: reason}
}

// Key returns the registry key carried by a MT_SNAPSHOT message
func (m *Message) Key() entity.Key {
	return entity.Key{TypeName: m.EntityType, Owner: m.Owner, Instance: m.Instance}
}

// Snapshot converts a MT_SNAPSHOT message back to an entity snapshot
func (m *Message) Snapshot() entity.Snapshot {
	return entity.Snapshot{
		Key:     m.Key(),
		Seq:     m.Seq,
		Fields:  entity.Fields(m.Fields),
		Removed: m.Removed,
	}
}
