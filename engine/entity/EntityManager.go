package entity

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwscope/engine/consts"
	"github.com/xiaonanln/gwscope/engine/gwlog"
	"github.com/xiaonanln/gwscope/engine/opmon"
	"golang.org/x/sync/singleflight"
)

// Replicator receives the snapshot of every entity mutation and removal
type Replicator interface {
	Replicate(scope Scope, snap Snapshot)
	Evict(scope Scope, snap Snapshot)
}

// DirtyMarker is notified when a persistent entity needs to be written
type DirtyMarker interface {
	MarkDirty(key Key)
}

// Registry owns all live entities, addressed by Key
//
// The registry is the single source of truth for in-memory entity state:
// the replication channels only carry snapshots and the persistence queue only carries keys.
type Registry struct {
	replicator  Replicator
	dirtyMarker DirtyMarker

	typesLock sync.RWMutex
	types     map[string]*TypeDesc

	lock     sync.RWMutex
	entities map[Key]*Entity
	byType   map[string]int
	owners   *ownerIndex

	loads singleflight.Group
}

// NewRegistry creates an empty registry publishing snapshots to replicator
func NewRegistry(replicator Replicator) *Registry {
	return &Registry{
		replicator: replicator,
		types:      map[string]*TypeDesc{},
		entities:   map[Key]*Entity{},
		byType:     map[string]int{},
		owners:     newOwnerIndex(),
	}
}

// SetDirtyMarker sets the persistence queue notified of dirty persistent entities
func (r *Registry) SetDirtyMarker(marker DirtyMarker) {
	r.dirtyMarker = marker
}

// RegisterType registers an entity type with its scope
func (r *Registry) RegisterType(typeName string, scope Scope) *TypeDesc {
	if typeName == "" {
		gwlog.Panicf("RegisterType: empty type name")
	}
	if !scope.IsValid() {
		gwlog.Panicf("RegisterType: %s has invalid scope %s", typeName, scope)
	}

	r.typesLock.Lock()
	defer r.typesLock.Unlock()
	if _, ok := r.types[typeName]; ok {
		gwlog.Panicf("RegisterType: entity type %s already registered", typeName)
	}
	desc := &TypeDesc{
		name:          typeName,
		scope:         scope,
		fieldDefaults: Fields{},
	}
	r.types[typeName] = desc
	gwlog.Infof(">>> RegisterType %s => %s <<<", typeName, scope)
	return desc
}

// TypeDesc returns the registered type, nil if unknown
func (r *Registry) TypeDesc(typeName string) *TypeDesc {
	r.typesLock.RLock()
	defer r.typesLock.RUnlock()
	return r.types[typeName]
}

// Types returns all registered types ordered by name
func (r *Registry) Types() []*TypeDesc {
	r.typesLock.RLock()
	descs := make([]*TypeDesc, 0, len(r.types))
	for _, desc := range r.types {
		descs = append(descs, desc)
	}
	r.typesLock.RUnlock()
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].name < descs[j].name
	})
	return descs
}

// TypesOfScope returns registered types of the scope ordered by name
func (r *Registry) TypesOfScope(scope Scope) []*TypeDesc {
	var res []*TypeDesc
	for _, desc := range r.Types() {
		if desc.scope == scope {
			res = append(res, desc)
		}
	}
	return res
}

// MakeKey builds the key of an entity, validating owner and instance against the scope of the type
func (r *Registry) MakeKey(typeName string, owner string, instance string) (Key, error) {
	desc := r.TypeDesc(typeName)
	if desc == nil {
		return Key{}, errors.Wrap(ErrUnknownType, typeName)
	}
	return desc.makeKey(owner, instance)
}

// GetOrCreate returns the live entity of the key, loading or creating it if absent
//
// The loader is only called for persistent scopes. When it returns (nil, nil) the entity is
// created from defaults (or the type defaults if defaults is nil). When it fails the result is a
// *LoadFailure and no entity is created. Concurrent calls for one key return the same entity.
func (r *Registry) GetOrCreate(typeName string, owner string, instance string, defaults DefaultsFunc, loader LoadFunc) (*Entity, error) {
	desc := r.TypeDesc(typeName)
	if desc == nil {
		return nil, errors.Wrap(ErrUnknownType, typeName)
	}
	key, err := desc.makeKey(owner, instance)
	if err != nil {
		return nil, err
	}

	if e := r.Lookup(key); e != nil {
		return e, nil
	}

	v, err, _ := r.loads.Do(key.flightKey(), func() (interface{}, error) {
		return r.loadOrCreate(desc, key, defaults, loader)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entity), nil
}

func (r *Registry) loadOrCreate(desc *TypeDesc, key Key, defaults DefaultsFunc, loader LoadFunc) (*Entity, error) {
	if e := r.Lookup(key); e != nil {
		return e, nil
	}

	var data Fields
	if desc.scope.IsPersistent() && loader != nil {
		var err error
		data, err = loader(key)
		if err != nil {
			gwlog.Errorf("Registry: load %s failed: %s", key, err)
			return nil, &LoadFailure{Key: key, Err: err}
		}
		if consts.DEBUG_SAVE_LOAD {
			gwlog.Debugf("Registry: loaded %s: %v", key, data)
		}
	}

	created := data == nil
	if created {
		data = desc.newFields(defaults)
	}
	e := newEntity(r, desc.scope, key, sanitizeFields(key, data))

	r.lock.Lock()
	if existing := r.entities[key]; existing != nil {
		r.lock.Unlock()
		return existing, nil
	}
	r.entities[key] = e
	r.byType[key.TypeName] += 1
	if desc.scope == ScopeMulti {
		r.owners.add(key)
	}
	r.lock.Unlock()
	opmon.RegistryEntities.WithLabelValues(key.TypeName).Inc()

	if created && desc.scope.IsPersistent() {
		// new records are written without waiting for a mutation
		e.markCreated()
		r.markDirty(key)
	}
	if r.replicator != nil {
		r.replicator.Replicate(desc.scope, e.Snapshot())
	}
	gwlog.Debugf("Registry: %s created (new=%v)", key, created)
	return e, nil
}

// Get returns the live entity, nil if absent
func (r *Registry) Get(typeName string, owner string, instance string) *Entity {
	key, err := r.MakeKey(typeName, owner, instance)
	if err != nil {
		return nil
	}
	return r.Lookup(key)
}

// Lookup returns the live entity of the key, nil if absent
func (r *Registry) Lookup(key Key) *Entity {
	r.lock.RLock()
	e := r.entities[key]
	r.lock.RUnlock()
	return e
}

// Remove evicts the entity from memory, it returns false if the entity is absent
//
// Unsaved mutations of the entity are not written unless it was flushed before.
func (r *Registry) Remove(typeName string, owner string, instance string) bool {
	key, err := r.MakeKey(typeName, owner, instance)
	if err != nil {
		gwlog.Warnf("Registry: remove %s<%s/%s>: %s", typeName, owner, instance, err)
		return false
	}
	return r.RemoveKey(key)
}

// RemoveKey evicts the entity of the key from memory
func (r *Registry) RemoveKey(key Key) bool {
	r.lock.Lock()
	e := r.entities[key]
	if e == nil {
		r.lock.Unlock()
		return false
	}
	delete(r.entities, key)
	r.byType[key.TypeName] -= 1
	if r.byType[key.TypeName] == 0 {
		delete(r.byType, key.TypeName)
	}
	if e.scope == ScopeMulti {
		r.owners.remove(key)
	}
	r.lock.Unlock()
	opmon.RegistryEntities.WithLabelValues(key.TypeName).Dec()

	snap := e.destroy()
	if r.replicator != nil {
		r.replicator.Evict(e.scope, snap)
	}
	if e.IsDirty() {
		gwlog.Warnf("Registry: %s removed with unsaved mutations", key)
	} else {
		gwlog.Debugf("Registry: %s removed", key)
	}
	return true
}

// ListInstancesForOwner returns instance keys of live Multi entities of owner in ascending order
func (r *Registry) ListInstancesForOwner(typeName string, owner string) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.owners.instances(typeName, owner)
}

// Len returns the number of live entities
func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.entities)
}

// CountByType returns the number of live entities of each type
func (r *Registry) CountByType() map[string]int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	res := make(map[string]int, len(r.byType))
	for typeName, n := range r.byType {
		res[typeName] = n
	}
	return res
}

// TraverseByType calls f for every live entity of the type
func (r *Registry) TraverseByType(typeName string, f func(e *Entity)) {
	r.lock.RLock()
	entities := make([]*Entity, 0, r.byType[typeName])
	for key, e := range r.entities {
		if key.TypeName == typeName {
			entities = append(entities, e)
		}
	}
	r.lock.RUnlock()

	for _, e := range entities {
		f(e)
	}
}

func (r *Registry) onEntityMutated(e *Entity, snap Snapshot) {
	if r.replicator != nil {
		r.replicator.Replicate(e.scope, snap)
		if e.IsDestroyed() {
			// removed while the snapshot was on its way
			r.replicator.Evict(e.scope, e.Snapshot())
		}
	}
	if e.scope.IsPersistent() {
		r.markDirty(e.key)
	}
}

func (r *Registry) markDirty(key Key) {
	if r.dirtyMarker != nil {
		r.dirtyMarker.MarkDirty(key)
	}
}
