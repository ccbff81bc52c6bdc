package dispatch

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
)

// Tables is the set of dispatch tables of a server, addressed by table name
type Tables struct {
	tables map[string]*Table
}

// NewTables creates an empty set of tables
func NewTables() *Tables {
	return &Tables{
		tables: map[string]*Table{},
	}
}

// Add adds a table, adding two tables of the same name panics
func (ts *Tables) Add(t *Table) *Table {
	if _, ok := ts.tables[t.name]; ok {
		gwlog.Panicf("dispatch table %s already added", t.name)
	}
	ts.tables[t.name] = t
	return t
}

// Get returns the table of name, nil if absent
func (ts *Tables) Get(name string) *Table {
	return ts.tables[name]
}

// Names returns the table names in order
func (ts *Tables) Names() []string {
	names := make([]string, 0, len(ts.tables))
	for name := range ts.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Freeze freezes all tables
func (ts *Tables) Freeze() {
	for _, t := range ts.tables {
		t.Freeze()
	}
}

// Dispatch routes the action to its table, an unknown table is handled like an unknown action
func (ts *Tables) Dispatch(tableName string, action ActionID, ctx *Context, args Args) error {
	t := ts.tables[tableName]
	if t == nil {
		err := errors.Wrapf(ErrUnknownAction, "%s.%s: unknown table", tableName, action)
		gwlog.Warnf("dispatch: owner %s requested action %q of unknown table %q", ctx.Owner, action, tableName)
		opmon.DispatchRejected.WithLabelValues("", "unknown_table").Inc()
		ctx.reply(action, err)
		return err
	}
	return t.Dispatch(action, ctx, args)
}
