package dispatch

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
)

// ActionID identifies one action of a table
type ActionID string

// Handler runs one action, returning an InvalidArgumentError declines the request
type Handler func(ctx *Context, args Args) error

// Table maps action ids to handlers sharing one argument list
//
// Every handler of a table receives exactly NumArgs arguments: shorter requests are padded
// with nil, longer ones are declined before any handler runs.
type Table struct {
	name     string
	numArgs  int
	handlers map[ActionID]Handler
	frozen   bool
}

// NewTable creates an empty table whose handlers take numArgs arguments
func NewTable(name string, numArgs int) *Table {
	if numArgs < 0 {
		gwlog.Panicf("dispatch table %s: negative number of arguments", name)
	}
	return &Table{
		name:     name,
		numArgs:  numArgs,
		handlers: map[ActionID]Handler{},
	}
}

func (t *Table) String() string {
	return "Table<" + t.name + ">"
}

// Name returns the table name
func (t *Table) Name() string {
	return t.name
}

// NumArgs returns the number of arguments every handler receives
func (t *Table) NumArgs() int {
	return t.numArgs
}

// Register adds the handler of an action, registering an action twice or after Freeze panics
func (t *Table) Register(action ActionID, handler Handler) *Table {
	if t.frozen {
		gwlog.Panicf("%s: register %s after the table is frozen", t, action)
	}
	if action == "" || handler == nil {
		gwlog.Panicf("%s: invalid registration of action %q", t, action)
	}
	if _, ok := t.handlers[action]; ok {
		gwlog.Panicf("%s: action %s already registered", t, action)
	}
	t.handlers[action] = handler
	gwlog.Infof("    %s.%s registered", t.name, action)
	return t
}

// Freeze forbids further registrations
func (t *Table) Freeze() {
	t.frozen = true
}

// IsFrozen returns if the table is frozen
func (t *Table) IsFrozen() bool {
	return t.frozen
}

// Has returns if the action is registered
func (t *Table) Has(action ActionID) bool {
	_, ok := t.handlers[action]
	return ok
}

// Actions returns the registered actions in order
func (t *Table) Actions() []ActionID {
	actions := make([]ActionID, 0, len(t.handlers))
	for action := range t.handlers {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool {
		return actions[i] < actions[j]
	})
	return actions
}

// Dispatch resolves the action and runs its handler
//
// Unknown actions and requests with too many arguments are reported and dropped without
// running any handler. Handler errors and panics are reported and contained here,
// the returned error only tells the caller what happened.
func (t *Table) Dispatch(action ActionID, ctx *Context, args Args) error {
	handler := t.handlers[action]
	if handler == nil {
		err := errors.Wrapf(ErrUnknownAction, "%s.%s", t.name, action)
		gwlog.Warnf("%s: owner %s requested unknown action %q, args=%v", t, ctx.Owner, action, args)
		opmon.DispatchRejected.WithLabelValues(t.name, "unknown_action").Inc()
		ctx.reply(action, err)
		return err
	}

	if len(args) > t.numArgs {
		err := InvalidArgument("%s.%s receives %d arguments, but given %d", t.name, action, t.numArgs, len(args))
		gwlog.Warnf("%s: owner %s: %s", t, ctx.Owner, err)
		opmon.DispatchRejected.WithLabelValues(t.name, "invalid_argument").Inc()
		ctx.reply(action, err)
		return err
	}
	if len(args) < t.numArgs {
		padded := make(Args, t.numArgs)
		copy(padded, args)
		args = padded
	}

	if consts.DEBUG_DISPATCH {
		gwlog.Debugf("%s: owner %s => %s%v", t, ctx.Owner, action, args)
	}

	monop := opmon.StartOperation("dispatch." + t.name + "." + string(action))
	err := t.call(handler, action, ctx, args)
	monop.Finish(consts.DISPATCH_WARN_THRESHOLD)

	if err != nil {
		if IsInvalidArgument(err) {
			gwlog.Warnf("%s: owner %s: %s declined: %s", t, ctx.Owner, action, err)
			opmon.DispatchRejected.WithLabelValues(t.name, "invalid_argument").Inc()
		} else {
			gwlog.Errorf("%s: owner %s: %s failed: %s", t, ctx.Owner, action, err)
			opmon.DispatchRejected.WithLabelValues(t.name, "handler_error").Inc()
		}
		ctx.reply(action, err)
	}
	return err
}

func (t *Table) call(handler Handler, action ActionID, ctx *Context, args Args) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if iae, ok := r.(*InvalidArgumentError); ok {
			err = iae
			return
		}
		gwlog.TraceError("%s.%s paniced: %v", t.name, action, r)
		err = errors.Errorf("%s.%s paniced: %v", t.name, action, r)
	}()

	return handler(ctx, args)
}
