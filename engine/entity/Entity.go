package entity

import (
	"fmt"
	"sync"

	"github.com/xiaonanln/gwscope/engine/gwlog"
)

// Snapshot is an immutable copy of an entity state at one sequence number
type Snapshot struct {
	Key     Key
	Seq     uint64
	Fields  Fields
	Removed bool // the entity was removed from the registry
}

// Entity is one addressable unit of state identified by its Key
//
// Every mutation marks the entity dirty, bumps its sequence and is re-broadcast
// by the registry once the entity lock is released.
type Entity struct {
	key   Key
	scope Scope

	mu        sync.RWMutex
	fields    Fields
	dirty     bool
	seq       uint64
	destroyed bool

	registry *Registry
}

func newEntity(registry *Registry, scope Scope, key Key, fields Fields) *Entity {
	return &Entity{
		key:      key,
		scope:    scope,
		fields:   fields,
		seq:      1,
		registry: registry,
	}
}

func (e *Entity) String() string {
	return e.key.String()
}

// Key returns the registry key of the entity
func (e *Entity) Key() Key {
	return e.key
}

// TypeName returns the type name of the entity
func (e *Entity) TypeName() string {
	return e.key.TypeName
}

// Owner returns the owner key of the entity
func (e *Entity) Owner() string {
	return e.key.Owner
}

// Instance returns the instance key of the entity, empty unless Multi
func (e *Entity) Instance() string {
	return e.key.Instance
}

// Scope returns the scope of the entity type
func (e *Entity) Scope() Scope {
	return e.scope
}

// IsDirty returns if the entity has mutations not yet written to the store
func (e *Entity) IsDirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty
}

// Seq returns the current mutation sequence of the entity
func (e *Entity) Seq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// IsDestroyed returns if the entity was removed from the registry
func (e *Entity) IsDestroyed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.destroyed
}

// Snapshot returns a copy of the current state
func (e *Entity) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Entity) snapshotLocked() Snapshot {
	return Snapshot{
		Key:     e.key,
		Seq:     e.seq,
		Fields:  e.fields.Clone(),
		Removed: e.destroyed,
	}
}

// Fields returns a copy of all fields
func (e *Entity) Fields() Fields {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fields.Clone()
}

// Has returns if the field exists
func (e *Entity) Has(name string) bool {
	e.mu.RLock()
	_, ok := e.fields[name]
	e.mu.RUnlock()
	return ok
}

// Get returns a copy of the field value
func (e *Entity) Get(name string) interface{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneValue(e.fields[name])
}

// GetInt returns the field as int64
func (e *Entity) GetInt(name string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fields.GetInt(name)
}

// GetFloat returns the field as float64
func (e *Entity) GetFloat(name string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fields.GetFloat(name)
}

// GetStr returns the field as string
func (e *Entity) GetStr(name string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fields.GetStr(name)
}

// GetBool returns the field as bool
func (e *Entity) GetBool(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fields.GetBool(name)
}

// Set sets the field value
func (e *Entity) Set(name string, val interface{}) {
	checkFieldName(e, name)
	val = normalizeValue(val)
	e.mutate(func(fields Fields) {
		fields[name] = val
	})
}

// SetInt sets int value of the field
func (e *Entity) SetInt(name string, v int64) {
	e.Set(name, v)
}

// SetFloat sets float value of the field
func (e *Entity) SetFloat(name string, v float64) {
	e.Set(name, v)
}

// SetStr sets string value of the field
func (e *Entity) SetStr(name string, v string) {
	e.Set(name, v)
}

// SetBool sets bool value of the field
func (e *Entity) SetBool(name string, v bool) {
	e.Set(name, v)
}

// IncInt adds delta to an int field and returns the new value
func (e *Entity) IncInt(name string, delta int64) int64 {
	checkFieldName(e, name)
	var res int64
	e.mutate(func(fields Fields) {
		res = fields.GetInt(name) + delta
		fields[name] = res
	})
	return res
}

// Delete removes the field
func (e *Entity) Delete(name string) {
	e.mutate(func(fields Fields) {
		delete(fields, name)
	})
}

// Update applies several changes as one mutation, so observers receive one snapshot
//
// f works on a copy of the fields which replaces the current fields once f returns.
func (e *Entity) Update(f func(fields Fields)) {
	e.mutate(func(fields Fields) {
		work := fields.Clone()
		f(work)
		updated := make(Fields, len(work))
		for k, v := range work {
			checkFieldName(e, k)
			updated[k] = normalizeValue(v)
		}
		for k := range fields {
			delete(fields, k)
		}
		for k, v := range updated {
			fields[k] = v
		}
	})
}

func (e *Entity) mutate(f func(fields Fields)) {
	snap := e.applyMutation(f)
	if e.registry != nil {
		e.registry.onEntityMutated(e, snap)
	}
}

func (e *Entity) applyMutation(f func(fields Fields)) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		gwlog.Panicf("%s: mutating a removed entity", e)
	}
	f(e.fields)
	e.seq += 1
	if e.scope.IsPersistent() {
		e.dirty = true
	}
	return e.snapshotLocked()
}

// MarkPersisted is called when the snapshot at seq was written to the store,
// it clears the dirty flag unless a newer mutation happened
func (e *Entity) MarkPersisted(seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq {
		return false
	}
	e.dirty = false
	return true
}

func (e *Entity) markCreated() {
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()
}

func (e *Entity) destroy() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	return e.snapshotLocked()
}

func checkFieldName(e *Entity, name string) {
	if IsReservedField(name) {
		gwlog.Panicf("%s: field name %s is reserved", e, name)
	}
}

// GoString describes the entity with its fields, for debugging
func (e *Entity) GoString() string {
	snap := e.Snapshot()
	return fmt.Sprintf("%s#%d%v", snap.Key, snap.Seq, snap.Fields)
}
