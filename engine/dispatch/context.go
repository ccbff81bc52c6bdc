package dispatch

import "github.com/xiaonanln/gwscope/engine/entity"

// ReplyFunc reports a declined request back to its requester
type ReplyFunc func(action ActionID, err error)

// Context is the caller side of one dispatched request
type Context struct {
	Owner    string
	Registry *entity.Registry
	Reply    ReplyFunc
}

// Single returns the live Single entity of the requesting owner, nil if absent
func (ctx *Context) Single(typeName string) *entity.Entity {
	return ctx.Registry.Get(typeName, ctx.Owner, "")
}

// Multi returns one live Multi entity of the requesting owner, nil if absent
func (ctx *Context) Multi(typeName string, instance string) *entity.Entity {
	return ctx.Registry.Get(typeName, ctx.Owner, instance)
}

// Shared returns the live Shared entity of the type, nil if absent
func (ctx *Context) Shared(typeName string) *entity.Entity {
	return ctx.Registry.Get(typeName, entity.SharedOwner, "")
}

func (ctx *Context) reply(action ActionID, err error) {
	if ctx.Reply != nil {
		ctx.Reply(action, err)
	}
}
