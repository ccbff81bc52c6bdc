package replication

import (
	"sync"

	"github.com/xiaonanln/gwscope/engine/entity"
)

// Hub owns one channel per entity type and routes registry snapshots to them
type Hub struct {
	lock     sync.RWMutex
	channels map[string]*Channel
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		channels: map[string]*Channel{},
	}
}

// Channel returns the channel of an entity type, creating it on first use
func (h *Hub) Channel(typeName string) *Channel {
	h.lock.RLock()
	ch := h.channels[typeName]
	h.lock.RUnlock()
	if ch != nil {
		return ch
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if ch = h.channels[typeName]; ch == nil {
		ch = NewChannel(typeName)
		h.channels[typeName] = ch
	}
	return ch
}

// Replicate publishes the snapshot of a mutated entity
func (h *Hub) Replicate(scope entity.Scope, snap entity.Snapshot) {
	ch := h.Channel(snap.Key.TypeName)
	if scope == entity.ScopeShared {
		ch.SetGlobal(snap)
	} else {
		ch.SetFor(snap.Key.Owner, snap)
	}
}

// Evict drops the channel value of a removed entity
func (h *Hub) Evict(scope entity.Scope, snap entity.Snapshot) {
	ch := h.Channel(snap.Key.TypeName)
	if scope == entity.ScopeShared {
		ch.ClearGlobal()
	} else {
		ch.Clear(snap.Key.Owner, snap)
	}
}

// SubscribeAll subscribes the observer to the channels of all given types and
// returns one function unsubscribing from all of them
func (h *Hub) SubscribeAll(observerID string, typeNames []string, callback Callback) (unsubscribe func()) {
	unsubs := make([]func(), 0, len(typeNames))
	for _, typeName := range typeNames {
		unsubs = append(unsubs, h.Channel(typeName).Subscribe(observerID, callback))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
