package gwscope

import (
	"github.com/xiaonanln/gwscope/components/server"
	"github.com/xiaonanln/gwscope/engine/dispatch"
	"github.com/xiaonanln/gwscope/engine/entity"
)

// Scopes of entity types
const (
	Single = entity.ScopeSingle
	Shared = entity.ScopeShared
	Multi  = entity.ScopeMulti
)

// Server is the host process of entities and client sessions
type Server = server.Server

// Fields is the user data of an entity
type Fields = entity.Fields

// Entity is one addressable unit of state
type Entity = entity.Entity

// Context is the caller side of a dispatched action
type Context = dispatch.Context

// Args are the arguments of a dispatched action
type Args = dispatch.Args

// Run parses the command line, calls setup to register entity types and dispatch tables, then serves clients until terminated
func Run(setup func(s *Server)) {
	server.Start(setup)
}

// NewTable creates a dispatch table whose actions receive at most numArgs arguments
func NewTable(name string, numArgs int) *dispatch.Table {
	return dispatch.NewTable(name, numArgs)
}

// InvalidArgument creates the error an action handler returns to decline a request
func InvalidArgument(format string, args ...interface{}) error {
	return dispatch.InvalidArgument(format, args...)
}
